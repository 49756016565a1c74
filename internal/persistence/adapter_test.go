package persistence_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nikolayk812/cartstate/internal/domain"
	"github.com/nikolayk812/cartstate/internal/memstore"
	"github.com/nikolayk812/cartstate/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "shopify-luxe-cart"

func TestNewAdapter(t *testing.T) {
	_, err := persistence.NewAdapter(nil, key)
	require.EqualError(t, err, "kv store is nil")

	_, err = persistence.NewAdapter(memstore.NewHub().Open(), "")
	require.EqualError(t, err, "key is empty")
}

func TestHydrate(t *testing.T) {
	saved := randomCart(3)
	data, err := persistence.Encode(saved)
	require.NoError(t, err)

	tests := []struct {
		name  string
		setup func(t *testing.T, hub *memstore.Hub)
		want  domain.Cart
	}{
		{
			name: "saved cart: loaded",
			setup: func(t *testing.T, hub *memstore.Hub) {
				require.NoError(t, hub.Open().Set(t.Context(), key, string(data)))
			},
			want: saved,
		},
		{
			name:  "absent key: empty",
			setup: func(t *testing.T, hub *memstore.Hub) {},
			want:  domain.Cart{},
		},
		{
			name: "malformed value: empty",
			setup: func(t *testing.T, hub *memstore.Hub) {
				require.NoError(t, hub.Open().Set(t.Context(), key, "not-json"))
			},
			want: domain.Cart{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := memstore.NewHub()
			tt.setup(t, hub)

			adapter, err := persistence.NewAdapter(hub.Open(), key)
			require.NoError(t, err)
			require.False(t, adapter.Hydrated())

			got := adapter.Hydrate(t.Context())
			assertCart(t, tt.want, got)
			assert.True(t, adapter.Hydrated())
		})
	}
}

func TestHydrate_LoadError(t *testing.T) {
	adapter, err := persistence.NewAdapter(&failingKV{err: errors.New("connection refused")}, key)
	require.NoError(t, err)

	got := adapter.Hydrate(t.Context())
	assert.True(t, got.IsEmpty())
	assert.True(t, adapter.Hydrated(), "a failed read still completes hydration")
}

func TestSave_BeforeHydrationNeverWrites(t *testing.T) {
	ctx := t.Context()
	hub := memstore.NewHub()

	saved, err := persistence.Encode(randomCart(2))
	require.NoError(t, err)
	require.NoError(t, hub.Open().Set(ctx, key, string(saved)))

	adapter, err := persistence.NewAdapter(hub.Open(), key)
	require.NoError(t, err)

	err = adapter.Save(ctx, domain.Cart{})
	require.ErrorIs(t, err, persistence.ErrNotHydrated)
	err = adapter.Purge(ctx)
	require.ErrorIs(t, err, persistence.ErrNotHydrated)

	raw, found := hub.Snapshot(key)
	require.True(t, found)
	assert.Equal(t, string(saved), raw)
}

func TestSaveAndPurge(t *testing.T) {
	ctx := t.Context()
	hub := memstore.NewHub()

	adapter, err := persistence.NewAdapter(hub.Open(), key)
	require.NoError(t, err)
	adapter.Hydrate(ctx)

	cart := randomCart(2)
	require.NoError(t, adapter.Save(ctx, cart))

	raw, found := hub.Snapshot(key)
	require.True(t, found)
	got, err := persistence.Decode([]byte(raw))
	require.NoError(t, err)
	assertCart(t, cart, got)

	require.NoError(t, adapter.Purge(ctx))
	_, found = hub.Snapshot(key)
	assert.False(t, found, "purge must remove the key, not store an empty cart")
}

func TestSave_KVError(t *testing.T) {
	ctx := t.Context()
	kv := &failingKV{}
	adapter, err := persistence.NewAdapter(kv, key)
	require.NoError(t, err)
	adapter.Hydrate(ctx)

	kv.err = errors.New("disk full")
	err = adapter.Save(ctx, randomCart(1))
	require.EqualError(t, err, "kv.Set: disk full")

	err = adapter.Purge(ctx)
	require.EqualError(t, err, "kv.Delete: disk full")
}

type failingKV struct {
	err error
}

func (f *failingKV) Get(context.Context, string) (string, bool, error) {
	return "", false, f.err
}

func (f *failingKV) Set(context.Context, string, string) error {
	return f.err
}

func (f *failingKV) Delete(context.Context, string) error {
	return f.err
}
