package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikolayk812/cartstate/internal/catalog"
	"github.com/nikolayk812/cartstate/internal/domain"
	"github.com/nikolayk812/cartstate/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const requestIDHeader = "X-Request-Id"

// CartStore is the part of cartstore.Store the API drives.
type CartStore interface {
	Cart() domain.Cart
	AddItem(ctx context.Context, p domain.Product, variantID string) bool
	RemoveItem(ctx context.Context, variantID string)
	UpdateQuantity(ctx context.Context, variantID string, delta int)
	SwitchVariant(ctx context.Context, fromVariantID, toVariantID string)
	Clear(ctx context.Context)
}

type Options struct {
	Store                 CartStore
	Catalog               catalog.Source
	ShopDomain            string
	FreeShippingThreshold decimal.Decimal
	Logger                *logger.Logger
	// Gatherer backs /metrics; the route is not mounted when nil.
	Gatherer prometheus.Gatherer
	// Ready backs /healthz; nil means always healthy.
	Ready func(ctx context.Context) error
}

func NewRouter(opts Options) (http.Handler, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	h := &handler{
		store:     opts.Store,
		catalog:   opts.Catalog,
		shop:      opts.ShopDomain,
		threshold: opts.FreeShippingThreshold,
		logg:      opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(
		recoverer(opts.Logger),
		requestID(opts.Logger),
		logging(opts.Logger),
	)

	r.Get("/healthz", healthz(opts.Ready, opts.Logger))
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/products", h.listProducts)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Get("/checkout", h.checkout)
		r.Post("/items", h.addItem)
		r.Delete("/items/{variantID}", h.removeItem)
		r.Post("/items/{variantID}/quantity", h.updateQuantity)
		r.Post("/items/{variantID}/variant", h.switchVariant)
	})

	return r, nil
}

func healthz(ready func(ctx context.Context) error, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				logg.Warn(r.Context(), "health check failed", err)
				writeJSON(w, http.StatusServiceUnavailable, successEnvelope{Data: map[string]string{"status": "unavailable"}})
				return
			}
		}
		writeSuccess(w, map[string]string{"status": "ok"})
	}
}

func requestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := logg.WithField(r.Context(), "request_id", reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					writeError(r.Context(), logg, w, fmt.Errorf("panic: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			logg.Info(logg.WithFields(ctx, map[string]any{
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			}), "request.complete")
		})
	}
}
