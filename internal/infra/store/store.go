// Package store persists voice bindings in SQLite.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/osa030/decobox/internal/domain/voice"
)

// Store is the SQLite-backed binding repository.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create state directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open state database")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to set pragma")
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to init schema")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBinding inserts or replaces the binding of b.GuildID.
// A previously saved volume is kept.
func (s *Store) SaveBinding(ctx context.Context, b voice.Binding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO voice_bindings (guild_id, guild_name, voice_channel_id, voice_channel_name, text_channel_id, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			guild_name = excluded.guild_name,
			voice_channel_id = excluded.voice_channel_id,
			voice_channel_name = excluded.voice_channel_name,
			text_channel_id = excluded.text_channel_id,
			joined_at = excluded.joined_at
	`, b.GuildID, b.GuildName, b.VoiceChannelID, b.VoiceChannelName, b.TextChannelID, b.JoinedAt.Unix())
	if err != nil {
		return errors.Wrapf(err, "failed to save binding for guild %s", b.GuildID)
	}
	return nil
}

// DeleteBinding removes the binding of guildID. Missing rows are not an error.
func (s *Store) DeleteBinding(ctx context.Context, guildID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM voice_bindings WHERE guild_id = ?`, guildID); err != nil {
		return errors.Wrapf(err, "failed to delete binding for guild %s", guildID)
	}
	return nil
}

// Binding returns the binding of guildID, or nil when none is saved.
func (s *Store) Binding(ctx context.Context, guildID string) (*voice.Binding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, guild_name, voice_channel_id, voice_channel_name, text_channel_id, joined_at
		FROM voice_bindings WHERE guild_id = ?
	`, guildID)
	b, err := scanBinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Bindings returns every saved binding ordered by join time.
func (s *Store) Bindings(ctx context.Context) ([]voice.Binding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, guild_name, voice_channel_id, voice_channel_name, text_channel_id, joined_at
		FROM voice_bindings ORDER BY joined_at, guild_id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query bindings")
	}
	defer rows.Close()

	var result []voice.Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate bindings")
	}
	return result, nil
}

// SaveVolume stores the last volume used in guildID.
func (s *Store) SaveVolume(ctx context.Context, guildID string, volume float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_volume (guild_id, volume) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET volume = excluded.volume
	`, guildID, volume)
	if err != nil {
		return errors.Wrapf(err, "failed to save volume for guild %s", guildID)
	}
	return nil
}

// Volume returns the saved volume of guildID and whether one exists.
func (s *Store) Volume(ctx context.Context, guildID string) (float64, bool, error) {
	var volume float64
	err := s.db.QueryRowContext(ctx, `SELECT volume FROM guild_volume WHERE guild_id = ?`, guildID).Scan(&volume)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "failed to read volume for guild %s", guildID)
	}
	return volume, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBinding(row scanner) (*voice.Binding, error) {
	var (
		b        voice.Binding
		joinedAt int64
	)
	if err := row.Scan(&b.GuildID, &b.GuildName, &b.VoiceChannelID, &b.VoiceChannelName, &b.TextChannelID, &joinedAt); err != nil {
		return nil, err
	}
	b.JoinedAt = time.Unix(joinedAt, 0)
	return &b, nil
}
