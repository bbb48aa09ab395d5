package filter

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceFilter_Check(t *testing.T) {
	hosts := []string{"youtube.com", "youtu.be", "open.spotify.com"}

	tests := []struct {
		name         string
		args         string
		takesSource  bool
		wantAccepted bool
		wantCode     string
	}{
		{name: "search text", args: "never gonna give you up", takesSource: true, wantAccepted: true},
		{name: "allowed link", args: "https://youtu.be/dQw4w9WgXcQ", takesSource: true, wantAccepted: true},
		{name: "allowed subdomain", args: "https://music.youtube.com/watch?v=x", takesSource: true, wantAccepted: true},
		{name: "bracketed link", args: "<https://open.spotify.com/track/abc>", takesSource: true, wantAccepted: true},
		{name: "uppercase host", args: "HTTPS://YOUTU.BE/abc", takesSource: true, wantAccepted: true},
		{name: "empty", args: "   ", takesSource: true, wantCode: "empty_source"},
		{name: "empty brackets", args: "<>", takesSource: true, wantCode: "empty_source"},
		{name: "foreign host", args: "https://example.com/a.mp3", takesSource: true, wantCode: "unsupported_source"},
		{name: "lookalike host", args: "https://notyoutube.com/watch", takesSource: true, wantCode: "unsupported_source"},
		{name: "too long", args: strings.Repeat("a", 201), takesSource: true, wantCode: "source_too_long"},
		{name: "command without source", args: "", takesSource: false, wantAccepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewSourceFilter(hosts)

			result := f.Check(context.Background(), Request{Args: tt.args, TakesSource: tt.takesSource})

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, tt.wantCode, result.Code)
			}
		})
	}
}

func TestSourceFilter_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
	}{
		{name: "empty settings", settings: map[string]any{}},
		{name: "custom length", settings: map[string]any{"max_length": 50}},
		{name: "custom hosts", settings: map[string]any{"allowed_hosts": []any{"soundcloud.com"}}},
		{name: "zero length", settings: map[string]any{"max_length": -1}, wantErr: true},
		{name: "bad host", settings: map[string]any{"allowed_hosts": []any{"not a host"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSourceFilter([]string{"youtu.be"}).ValidateConfig(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSourceFilter_SettingsOverrideHosts(t *testing.T) {
	f := NewSourceFilter([]string{"youtu.be"})
	require.NoError(t, f.ValidateConfig(map[string]any{"allowed_hosts": []any{"SoundCloud.com"}, "max_length": 10}))

	ctx := context.Background()
	assert.True(t, f.Check(ctx, Request{TakesSource: true, Args: "https://soundcloud.com/a/b"}).Accepted)
	assert.Equal(t, "unsupported_source", f.Check(ctx, Request{TakesSource: true, Args: "https://youtu.be/x"}).Code)
	assert.Equal(t, "source_too_long", f.Check(ctx, Request{TakesSource: true, Args: "eleven chars"}).Code)
}

func TestSourceFilter_KeepsHostsWithoutSettings(t *testing.T) {
	f := NewSourceFilter([]string{"youtu.be"})
	require.NoError(t, f.ValidateConfig(nil))

	assert.True(t, f.Check(context.Background(), Request{TakesSource: true, Args: "https://youtu.be/x"}).Accepted)
}

func TestCleanSource(t *testing.T) {
	assert.Equal(t, "https://a.b/c", CleanSource("  <https://a.b/c> "))
	assert.Equal(t, "plain", CleanSource("plain"))
	assert.Equal(t, "<half", CleanSource("<half"))
	assert.True(t, IsLink("HTTP://x"))
	assert.False(t, IsLink("ytsearch1:x"))
}
