package tabsync

import (
	"context"
	"fmt"

	"github.com/nikolayk812/cartstate/internal/domain"
	"github.com/nikolayk812/cartstate/internal/logger"
	"github.com/nikolayk812/cartstate/internal/metrics"
	"github.com/nikolayk812/cartstate/internal/persistence"
	"github.com/nikolayk812/cartstate/internal/port"
)

// Synchronizer replaces the local cart wholesale whenever another browsing
// context writes the cart key. It never writes itself.
type Synchronizer struct {
	sub     port.Subscriber
	key     string
	logg    *logger.Logger
	metrics *metrics.CartMetrics
}

type Option func(*Synchronizer)

func WithLogger(logg *logger.Logger) Option {
	return func(s *Synchronizer) {
		if logg != nil {
			s.logg = logg
		}
	}
}

func WithMetrics(m *metrics.CartMetrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

func New(sub port.Subscriber, key string, opts ...Option) (*Synchronizer, error) {
	if sub == nil {
		return nil, fmt.Errorf("subscriber is nil")
	}
	if key == "" {
		return nil, fmt.Errorf("key is empty")
	}

	s := &Synchronizer{
		sub:  sub,
		key:  key,
		logg: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start subscribes to the cart key and calls apply with every successfully
// parsed cart written elsewhere. Deletions and unparseable payloads are
// ignored, leaving local state untouched.
func (s *Synchronizer) Start(ctx context.Context, apply func(domain.Cart)) (stop func(), err error) {
	if apply == nil {
		return nil, fmt.Errorf("apply is nil")
	}

	logCtx := s.logg.WithField(context.WithoutCancel(ctx), "key", s.key)

	stop, err = s.sub.Subscribe(ctx, s.key, func(change port.Change) {
		s.handle(logCtx, change, apply)
	})
	if err != nil {
		return nil, fmt.Errorf("sub.Subscribe: %w", err)
	}

	return stop, nil
}

func (s *Synchronizer) handle(ctx context.Context, change port.Change, apply func(domain.Cart)) {
	ctx = s.logg.WithOrigin(ctx, change.Origin)

	if !change.Present {
		s.logg.Debug(ctx, "cart removed elsewhere, keeping local state")
		return
	}

	cart, err := persistence.Decode([]byte(change.Value))
	if err != nil {
		s.metrics.IncFailure("decode")
		s.logg.Warn(ctx, "ignoring unparseable cart from another context", err)
		return
	}

	s.metrics.IncReplacement()
	apply(cart)
}
