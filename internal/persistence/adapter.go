package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nikolayk812/cartstate/internal/domain"
	"github.com/nikolayk812/cartstate/internal/logger"
	"github.com/nikolayk812/cartstate/internal/metrics"
	"github.com/nikolayk812/cartstate/internal/port"
)

// ErrNotHydrated is returned by writes attempted before Hydrate has finished.
var ErrNotHydrated = errors.New("cart not hydrated yet")

// Adapter mirrors the in-memory cart to a single key of the substrate.
type Adapter struct {
	kv      port.KVStore
	key     string
	logg    *logger.Logger
	metrics *metrics.CartMetrics

	hydrated atomic.Bool
}

type Option func(*Adapter)

func WithLogger(logg *logger.Logger) Option {
	return func(a *Adapter) {
		if logg != nil {
			a.logg = logg
		}
	}
}

func WithMetrics(m *metrics.CartMetrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

func NewAdapter(kv port.KVStore, key string, opts ...Option) (*Adapter, error) {
	if kv == nil {
		return nil, fmt.Errorf("kv store is nil")
	}
	if key == "" {
		return nil, fmt.Errorf("key is empty")
	}

	a := &Adapter{
		kv:   kv,
		key:  key,
		logg: logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

func (a *Adapter) Key() string {
	return a.key
}

func (a *Adapter) Hydrated() bool {
	return a.hydrated.Load()
}

// Hydrate reads the saved cart. Absent, unreadable or malformed data yields
// an empty cart and a log entry. Writes are enabled once it returns.
func (a *Adapter) Hydrate(ctx context.Context) domain.Cart {
	defer a.hydrated.Store(true)

	ctx = a.logg.WithField(ctx, "key", a.key)

	raw, found, err := a.kv.Get(ctx, a.key)
	if err != nil {
		a.metrics.IncFailure("hydrate")
		a.logg.Error(ctx, "failed to load cart", err)
		return domain.Cart{}
	}
	if !found {
		a.logg.Debug(ctx, "no saved cart")
		return domain.Cart{}
	}

	cart, err := Decode([]byte(raw))
	if err != nil {
		a.metrics.IncFailure("decode")
		a.logg.Warn(ctx, "discarding malformed saved cart", err)
		return domain.Cart{}
	}

	return cart
}

// Save writes the full cart under the fixed key.
func (a *Adapter) Save(ctx context.Context, cart domain.Cart) error {
	if !a.Hydrated() {
		return ErrNotHydrated
	}

	data, err := Encode(cart)
	if err != nil {
		return fmt.Errorf("Encode: %w", err)
	}

	if err := a.kv.Set(ctx, a.key, string(data)); err != nil {
		return fmt.Errorf("kv.Set: %w", err)
	}

	return nil
}

// Purge deletes the key so other readers observe absence rather than an empty cart.
func (a *Adapter) Purge(ctx context.Context) error {
	if !a.Hydrated() {
		return ErrNotHydrated
	}

	if err := a.kv.Delete(ctx, a.key); err != nil {
		return fmt.Errorf("kv.Delete: %w", err)
	}

	return nil
}
