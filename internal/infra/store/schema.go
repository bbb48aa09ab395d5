package store

import "database/sql"

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS voice_bindings (
			guild_id TEXT PRIMARY KEY,
			guild_name TEXT NOT NULL,
			voice_channel_id TEXT NOT NULL,
			voice_channel_name TEXT NOT NULL,
			text_channel_id TEXT NOT NULL,
			joined_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS guild_volume (
			guild_id TEXT PRIMARY KEY,
			volume REAL NOT NULL
		);
	`)
	return err
}
