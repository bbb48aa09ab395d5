// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Bot     BotConfig                 `yaml:"bot"`
	Admin   AdminConfig               `yaml:"admin"`
	Text    TextConfig                `yaml:"text"`
	Voice   VoiceConfig               `yaml:"voice"`
	Spotify SpotifyConfig             `yaml:"spotify"`
	Plugins map[string]PluginSettings `yaml:"plugins"`
	Filters map[string]FilterConfig   `yaml:"filters"`
}

// BotConfig represents chat connection and command configuration.
type BotConfig struct {
	Token           string   `yaml:"token" validate:"required"`
	Prefix          string   `yaml:"prefix" default:"::" validate:"required"`
	OwnerID         string   `yaml:"owner_id" validate:"required"`
	IgnoredChannels []string `yaml:"ignored_channels"`
	BannedUsers     []string `yaml:"banned_users"`
	Plugins         []string `yaml:"plugins" default:"[\"corecommands\",\"repl\",\"voice\"]"`
	SendRate        float64  `yaml:"send_rate" default:"5" validate:"gt=0"`
	SendBurst       int      `yaml:"send_burst" default:"5" validate:"gte=1"`
}

// AdminConfig represents the admin API configuration.
type AdminConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Token string      `yaml:"token" validate:"required"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// TextConfig represents message template configuration.
type TextConfig struct {
	Dir string `yaml:"dir"` // Overrides for the embedded templates
}

// VoiceConfig represents voice playback configuration.
type VoiceConfig struct {
	QueueCapacity int              `yaml:"queue_capacity" default:"10" validate:"gte=1,lte=10"`
	DefaultVolume float64          `yaml:"default_volume" default:"1.0" validate:"gt=0,lte=2"`
	CacheDir      string           `yaml:"cache_dir"`
	FFmpegPath    string           `yaml:"ffmpeg_path" default:"ffmpeg"`
	YtdlpPath     string           `yaml:"ytdlp_path"`
	BitrateKbps   int              `yaml:"bitrate_kbps" default:"96" validate:"gte=8,lte=512"`
	StateDB       string           `yaml:"state_db" default:"decobox.db"`
	NoRejoin      bool             `yaml:"no_rejoin"`
	AllowedHosts  []string         `yaml:"allowed_hosts" default:"[\"youtube.com\",\"www.youtube.com\",\"m.youtube.com\",\"youtu.be\",\"soundcloud.com\",\"open.spotify.com\"]"`
	Resolvers     []ResolverConfig `yaml:"resolvers"`
}

// ResolverConfig represents a single source resolver configuration.
type ResolverConfig struct {
	Type     string         `yaml:"type" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// SpotifyConfig represents Spotify API configuration.
// Spotify link resolution is disabled when the client ID is empty.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret" validate:"required_with=ClientID"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// PluginSettings represents free-form per-plugin settings.
type PluginSettings struct {
	Settings map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  *bool          `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if cfg.Voice.CacheDir == "" {
		cfg.Voice.CacheDir = filepath.Join(os.TempDir(), "decobox")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Bot.Token = v
	}
	if v := os.Getenv("DECOBOX_OWNER_ID"); v != "" {
		c.Bot.OwnerID = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	for _, ch := range c.Bot.IgnoredChannels {
		if ch == "" {
			return errors.New("ignored_channels must not contain empty IDs")
		}
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
// Filters without an explicit entry are enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	f, ok := c.Filters[filterName]
	if !ok || f.Enabled == nil {
		return true
	}
	return *f.Enabled
}

// FilterSettings returns the settings for a filter.
func (c *Config) FilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}

// DecodePluginSettings decodes a plugin's settings into out, then applies
// out's default tags and validates it.
func (c *Config) DecodePluginSettings(plugin string, out any) error {
	if p, ok := c.Plugins[plugin]; ok && p.Settings != nil {
		if err := mapstructure.Decode(p.Settings, out); err != nil {
			return errors.Wrapf(err, "failed to decode %s settings", plugin)
		}
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrapf(err, "failed to set %s defaults", plugin)
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrapf(err, "invalid %s settings", plugin)
	}
	return nil
}

// IsOwner reports whether userID is the configured bot owner.
func (c *Config) IsOwner(userID string) bool {
	return userID != "" && userID == c.Bot.OwnerID
}

// IsIgnoredChannel reports whether commands from channelID are ignored.
func (c *Config) IsIgnoredChannel(channelID string) bool {
	return slices.Contains(c.Bot.IgnoredChannels, channelID)
}

// IsBannedUser reports whether userID is banned from using commands.
func (c *Config) IsBannedUser(userID string) bool {
	return slices.Contains(c.Bot.BannedUsers, userID)
}
