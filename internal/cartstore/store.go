package cartstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nikolayk812/cartstate/internal/domain"
	"github.com/nikolayk812/cartstate/internal/logger"
	"github.com/nikolayk812/cartstate/internal/metrics"
	"github.com/nikolayk812/cartstate/internal/persistence"
	"github.com/nikolayk812/cartstate/internal/tabsync"
)

const (
	opAdd    = "add"
	opRemove = "remove"
	opQty    = "quantity"
	opSwitch = "switch"
	opClear  = "clear"
)

var ErrAlreadyOpen = errors.New("store already opened")

// Store is the single cart instance of one browsing context. Mutations are
// serialized and each committed one is written through to the substrate.
type Store struct {
	persist *persistence.Adapter
	sync    *tabsync.Synchronizer
	logg    *logger.Logger
	metrics *metrics.CartMetrics

	mu        sync.Mutex
	cart      domain.Cart
	opened    bool
	closed    bool
	stopSync  func()
	// replacing counts replacements in flight on the sync goroutine
	replacing atomic.Int32
	listeners map[int]func(domain.Cart)
	nextID    int
}

type Option func(*Store)

// WithSynchronizer enables cross-context replacement of the cart.
func WithSynchronizer(s *tabsync.Synchronizer) Option {
	return func(st *Store) {
		st.sync = s
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(st *Store) {
		if logg != nil {
			st.logg = logg
		}
	}
}

func WithMetrics(m *metrics.CartMetrics) Option {
	return func(st *Store) {
		st.metrics = m
	}
}

func New(persist *persistence.Adapter, opts ...Option) (*Store, error) {
	if persist == nil {
		return nil, fmt.Errorf("persistence adapter is nil")
	}

	s := &Store{
		persist:   persist,
		logg:      logger.Nop(),
		listeners: map[int]func(domain.Cart){},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Open subscribes to other contexts' writes, then hydrates from the substrate.
// The subscription lives until Close or until ctx is done. Anything mutated
// before Open is discarded in favour of the hydrated cart.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.opened {
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.opened = true

	if s.sync != nil {
		stop, err := s.sync.Start(ctx, s.replace)
		if err != nil {
			s.opened = false
			s.mu.Unlock()
			return fmt.Errorf("sync.Start: %w", err)
		}
		s.stopSync = stop
	}

	// held across hydration so a concurrent replacement lands after it
	s.cart = s.persist.Hydrate(ctx)
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	s.logg.Debug(s.logg.WithField(ctx, "items", snapshot.Len()), "cart hydrated")
	notify(listeners, snapshot)
	return nil
}

// Close stops cross-context synchronization. It is safe to call more than
// once, and from a change listener. No replacement is applied once it returns.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	stop := s.stopSync
	s.stopSync = nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	if s.replacing.Load() > 0 {
		// the sync goroutine may be the caller and cannot wait for itself
		go stop()
		return
	}
	stop()
}

// AddItem adds one unit of the product's variant. It reports false when the
// product has no variants to add.
func (s *Store) AddItem(ctx context.Context, p domain.Product, variantID string) bool {
	ok := false
	s.commit(ctx, opAdd, func(c domain.Cart) (domain.Cart, bool) {
		next, added := c.AddItem(p, variantID)
		ok = added
		return next, added
	})

	if !ok {
		s.logg.Warn(s.logg.WithField(ctx, "product_id", p.ID), "product has no variants to add", nil)
	}
	return ok
}

func (s *Store) RemoveItem(ctx context.Context, variantID string) {
	s.commit(ctx, opRemove, func(c domain.Cart) (domain.Cart, bool) {
		return c.RemoveItem(variantID), true
	})
}

// UpdateQuantity shifts a line item's quantity by delta, never below 1.
func (s *Store) UpdateQuantity(ctx context.Context, variantID string, delta int) {
	s.commit(ctx, opQty, func(c domain.Cart) (domain.Cart, bool) {
		return c.SetQuantityDelta(variantID, delta), true
	})
}

func (s *Store) SwitchVariant(ctx context.Context, fromVariantID, toVariantID string) {
	s.commit(ctx, opSwitch, func(c domain.Cart) (domain.Cart, bool) {
		return c.SwitchVariant(fromVariantID, toVariantID), true
	})
}

// Clear empties the cart and deletes the saved copy.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.cart = s.cart.Clear()
	s.record(ctx, opClear, s.persist.Purge(ctx))
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.IncMutation(opClear)
	notify(listeners, snapshot)
}

// Cart returns a copy of the current cart.
func (s *Store) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *Store) Items() []domain.LineItem {
	return s.Cart().Items
}

func (s *Store) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalQuantity()
}

func (s *Store) Subtotal() domain.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Subtotal()
}

// OnChange registers fn to receive a copy of the cart after every local
// mutation, hydration and cross-context replacement.
func (s *Store) OnChange(fn func(domain.Cart)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) commit(ctx context.Context, op string, fn func(domain.Cart) (domain.Cart, bool)) {
	s.mu.Lock()
	next, ok := fn(s.cart)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.cart = next
	s.record(ctx, op, s.persist.Save(ctx, next))
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.IncMutation(op)
	notify(listeners, snapshot)
}

func (s *Store) replace(cart domain.Cart) {
	s.replacing.Add(1)
	defer s.replacing.Add(-1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.cart = cart
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
}

// record logs the outcome of a write-through; persistence never fails a mutation.
func (s *Store) record(ctx context.Context, op string, err error) {
	if err == nil {
		return
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"op": op, "key": s.persist.Key()})
	if errors.Is(err, persistence.ErrNotHydrated) {
		s.logg.Debug(ctx, "store not opened, change kept in memory only")
		return
	}

	stage := "save"
	if op == opClear {
		stage = "purge"
	}
	s.metrics.IncFailure(stage)
	s.logg.Error(ctx, "failed to persist cart", err)
}

func (s *Store) snapshotLocked() (domain.Cart, []func(domain.Cart)) {
	listeners := make([]func(domain.Cart), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	return s.cart.Clone(), listeners
}

func notify(listeners []func(domain.Cart), cart domain.Cart) {
	for _, fn := range listeners {
		fn(cart.Clone())
	}
}
