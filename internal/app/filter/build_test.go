package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/decobox/internal/infra/config"
)

func TestBuildChain(t *testing.T) {
	disabled := false
	tests := []struct {
		name     string
		filters  map[string]config.FilterConfig
		expected []string
		wantErr  bool
	}{
		{
			name: "all enabled by default",
			expected: []string{
				"ignored_channel_filter",
				"banned_user_filter",
				"owner_only_filter",
				"bound_channel_filter",
				"source_filter",
			},
		},
		{
			name: "disabled filter left out",
			filters: map[string]config.FilterConfig{
				"banned_user_filter": {Enabled: &disabled},
				"source_filter":      {Enabled: &disabled},
			},
			expected: []string{
				"ignored_channel_filter",
				"owner_only_filter",
				"bound_channel_filter",
			},
		},
		{
			name: "invalid settings",
			filters: map[string]config.FilterConfig{
				"source_filter": {Settings: map[string]any{"max_length": 5000}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Bot:     config.BotConfig{OwnerID: "owner"},
				Filters: tt.filters,
			}
			chain, err := BuildChain(cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			var names []string
			for _, f := range chain.Filters() {
				names = append(names, f.Name())
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestValidateConfig_UnknownFilter(t *testing.T) {
	cfg := &config.Config{Filters: map[string]config.FilterConfig{"nope": {}}}
	assert.Error(t, ValidateConfig(cfg))
}
