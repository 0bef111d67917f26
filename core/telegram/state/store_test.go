package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/assistbot/core/kv"
)

// downStore fails every call as an unreachable store would.
type downStore struct{}

func (downStore) Get(context.Context, string) (string, error) { return "", kv.ErrUnavailable }
func (downStore) Set(context.Context, string, string) error   { return kv.ErrUnavailable }
func (downStore) SetEX(context.Context, string, string, time.Duration) error {
	return kv.ErrUnavailable
}
func (downStore) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, kv.ErrUnavailable
}
func (downStore) Delete(context.Context, string) error { return kv.ErrUnavailable }
func (downStore) Close() error                         { return nil }

func TestModeRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := NewStore(mem)

	assert.Equal(t, ModeNone, s.Mode(ctx, 7))

	require.NoError(t, s.SetMode(ctx, 7, ModeCrypto))
	assert.Equal(t, ModeCrypto, s.Mode(ctx, 7))
	raw, err := mem.Get(ctx, "session:7:mode")
	require.NoError(t, err)
	assert.Equal(t, "crypto", raw)

	require.NoError(t, s.SetMode(ctx, 7, ModeAI))
	assert.Equal(t, ModeAI, s.Mode(ctx, 7))

	s.ClearMode(ctx, 7)
	assert.Equal(t, ModeNone, s.Mode(ctx, 7))
	s.ClearMode(ctx, 7)
}

func TestModeIsolatedPerUser(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())

	require.NoError(t, s.SetMode(ctx, 1, ModeAI))
	assert.Equal(t, ModeNone, s.Mode(ctx, 2))
}

func TestUnknownStoredValuesFallBack(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := NewStore(mem)

	require.NoError(t, mem.Set(ctx, "session:3:mode", "weather"))
	require.NoError(t, mem.Set(ctx, "session:3:menu", "carousel"))
	assert.Equal(t, ModeNone, s.Mode(ctx, 3))
	assert.Equal(t, LayoutGrid, s.MenuLayout(ctx, 3))
}

func TestLayoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())

	assert.Equal(t, LayoutGrid, s.MenuLayout(ctx, 9))
	require.NoError(t, s.SetMenuLayout(ctx, 9, LayoutHybrid))
	assert.Equal(t, LayoutHybrid, s.MenuLayout(ctx, 9))
}

func TestStoreDownFailsOpen(t *testing.T) {
	ctx := context.Background()
	s := NewStore(downStore{})

	assert.Equal(t, ModeNone, s.Mode(ctx, 1))
	assert.Equal(t, LayoutGrid, s.MenuLayout(ctx, 1))
	s.ClearMode(ctx, 1)

	err := s.SetMode(ctx, 1, ModeCrypto)
	require.Error(t, err)
	assert.ErrorIs(t, err, kv.ErrUnavailable)
	assert.ErrorIs(t, s.SetMenuLayout(ctx, 1, LayoutList), kv.ErrUnavailable)
}

func TestParseLayout(t *testing.T) {
	l, ok := ParseLayout(" List ")
	assert.True(t, ok)
	assert.Equal(t, LayoutList, l)

	l, ok = ParseLayout("")
	assert.False(t, ok)
	assert.Equal(t, LayoutGrid, l)
}
