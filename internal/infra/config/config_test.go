package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
bot:
  token: "bot-token"
  owner_id: "1234"
admin:
  token: "admin-token"
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "::", cfg.Bot.Prefix)
	assert.Equal(t, []string{"corecommands", "repl", "voice"}, cfg.Bot.Plugins)
	assert.Equal(t, 5.0, cfg.Bot.SendRate)
	assert.Equal(t, ":8080", cfg.Admin.Addr)
	assert.Equal(t, 10, cfg.Voice.QueueCapacity)
	assert.Equal(t, 1.0, cfg.Voice.DefaultVolume)
	assert.Equal(t, "ffmpeg", cfg.Voice.FFmpegPath)
	assert.Equal(t, 96, cfg.Voice.BitrateKbps)
	assert.Contains(t, cfg.Voice.AllowedHosts, "youtu.be")
	assert.Equal(t, filepath.Join(os.TempDir(), "decobox"), cfg.Voice.CacheDir)
	assert.Equal(t, "US", cfg.Spotify.Market)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-bot-token")
	t.Setenv("DECOBOX_OWNER_ID", "9999")
	t.Setenv("ADMIN_TOKEN", "env-admin-token")
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")

	cfg, err := Parse([]byte("bot: {}\n"))
	require.NoError(t, err)

	assert.Equal(t, "env-bot-token", cfg.Bot.Token)
	assert.Equal(t, "9999", cfg.Bot.OwnerID)
	assert.Equal(t, "env-admin-token", cfg.Admin.Token)
	assert.Equal(t, "env-id", cfg.Spotify.ClientID)
	assert.Equal(t, "env-secret", cfg.Spotify.ClientSecret)
}

func TestConfig_Validate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			yaml:    minimalYAML,
			wantErr: false,
		},
		{
			name: "missing bot token",
			yaml: `
bot: {owner_id: "1"}
admin: {token: "a"}
`,
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name: "missing owner",
			yaml: `
bot: {token: "t"}
admin: {token: "a"}
`,
			wantErr: true,
			errMsg:  "OwnerID",
		},
		{
			name: "missing admin token",
			yaml: `
bot: {token: "t", owner_id: "1"}
`,
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name: "queue capacity above ten",
			yaml: minimalYAML + `
voice:
  queue_capacity: 11
`,
			wantErr: true,
			errMsg:  "QueueCapacity",
		},
		{
			name: "default volume out of range",
			yaml: minimalYAML + `
voice:
  default_volume: 2.5
`,
			wantErr: true,
			errMsg:  "DefaultVolume",
		},
		{
			name: "spotify secret required with id",
			yaml: minimalYAML + `
spotify:
  client_id: "id"
`,
			wantErr: true,
			errMsg:  "ClientSecret",
		},
		{
			name: "invalid market length",
			yaml: minimalYAML + `
spotify:
  market: "JAPAN"
`,
			wantErr: true,
			errMsg:  "Market",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bot-token", cfg.Bot.Token)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_IsFilterEnabled(t *testing.T) {
	off := false
	on := true
	cfg := &Config{Filters: map[string]FilterConfig{
		"off":      {Enabled: &off},
		"on":       {Enabled: &on},
		"implicit": {Settings: map[string]any{"x": 1}},
	}}

	assert.False(t, cfg.IsFilterEnabled("off"))
	assert.True(t, cfg.IsFilterEnabled("on"))
	assert.True(t, cfg.IsFilterEnabled("implicit"))
	assert.True(t, cfg.IsFilterEnabled("absent"))
	assert.Equal(t, map[string]any{"x": 1}, cfg.FilterSettings("implicit"))
	assert.Nil(t, cfg.FilterSettings("absent"))
}

type replSettings struct {
	MaxOutput int    `mapstructure:"max_output" default:"1990" validate:"gte=100,lte=1990"`
	Language  string `mapstructure:"language" default:"js"`
}

func TestConfig_DecodePluginSettings(t *testing.T) {
	tests := []struct {
		name     string
		plugins  map[string]PluginSettings
		expected replSettings
		wantErr  bool
	}{
		{
			name:     "absent uses defaults",
			expected: replSettings{MaxOutput: 1990, Language: "js"},
		},
		{
			name: "decoded values kept",
			plugins: map[string]PluginSettings{
				"repl": {Settings: map[string]any{"max_output": 500}},
			},
			expected: replSettings{MaxOutput: 500, Language: "js"},
		},
		{
			name: "invalid values rejected",
			plugins: map[string]PluginSettings{
				"repl": {Settings: map[string]any{"max_output": 5000}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Plugins: tt.plugins}
			var out replSettings
			err := cfg.DecodePluginSettings("repl", &out)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestConfig_Membership(t *testing.T) {
	cfg := &Config{Bot: BotConfig{
		OwnerID:         "owner",
		IgnoredChannels: []string{"c1"},
		BannedUsers:     []string{"u1"},
	}}

	assert.True(t, cfg.IsOwner("owner"))
	assert.False(t, cfg.IsOwner(""))
	assert.True(t, cfg.IsIgnoredChannel("c1"))
	assert.False(t, cfg.IsIgnoredChannel("c2"))
	assert.True(t, cfg.IsBannedUser("u1"))
	assert.False(t, cfg.IsBannedUser("u2"))
}
