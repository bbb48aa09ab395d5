package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/decobox/internal/domain/voice"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func binding(guild, voiceCh, text string, joined time.Time) voice.Binding {
	return voice.Binding{
		GuildID:          guild,
		GuildName:        "guild " + guild,
		VoiceChannelID:   voiceCh,
		VoiceChannelName: "voice " + voiceCh,
		TextChannelID:    text,
		JoinedAt:         joined,
	}
}

func TestStore_Bindings_Empty(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	list, err := s.Bindings(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	b, err := s.Binding(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestStore_SaveAndList(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	require.NoError(t, s.SaveBinding(ctx, binding("g2", "v2", "t2", base.Add(time.Minute))))
	require.NoError(t, s.SaveBinding(ctx, binding("g1", "v1", "t1", base)))

	list, err := s.Bindings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "g1", list[0].GuildID)
	assert.Equal(t, "g2", list[1].GuildID)
	assert.Equal(t, base, list[0].JoinedAt)
	assert.Equal(t, "voice v1", list[0].VoiceChannelName)
}

func TestStore_SaveReplaces(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, s.SaveBinding(ctx, binding("g1", "v1", "t1", now)))
	require.NoError(t, s.SaveBinding(ctx, binding("g1", "v9", "t1", now)))

	b, err := s.Binding(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "v9", b.VoiceChannelID)

	list, err := s.Bindings(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_Delete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveBinding(ctx, binding("g1", "v1", "t1", time.Now())))
	require.NoError(t, s.DeleteBinding(ctx, "g1"))
	require.NoError(t, s.DeleteBinding(ctx, "g1"))

	b, err := s.Binding(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestStore_Volume(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Volume(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveVolume(ctx, "g1", 0.5))
	require.NoError(t, s.SaveVolume(ctx, "g1", 1.5))

	v, ok, err := s.Volume(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "decobox.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveBinding(context.Background(), binding("g1", "v1", "t1", time.Now())))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	list, err := s.Bindings(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
