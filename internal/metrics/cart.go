package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart engine activity. A nil *CartMetrics is a no-op.
type CartMetrics struct {
	mutations    *prometheus.CounterVec
	replacements prometheus.Counter
	failures     *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Committed cart mutations by operation.",
	}, []string{"op"})
	replacements := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_sync_replacements_total",
		Help: "Carts replaced wholesale from another browsing context.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_persistence_failures_total",
		Help: "Failed persistence steps by stage.",
	}, []string{"stage"})
	reg.MustRegister(mutations, replacements, failures)
	return &CartMetrics{
		mutations:    mutations,
		replacements: replacements,
		failures:     failures,
	}
}

func (c *CartMetrics) IncMutation(op string) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(op)).Inc()
}

func (c *CartMetrics) IncReplacement() {
	if c == nil || c.replacements == nil {
		return
	}
	c.replacements.Inc()
}

// IncFailure counts a failed stage: hydrate, save, purge or decode.
func (c *CartMetrics) IncFailure(stage string) {
	if c == nil || c.failures == nil {
		return
	}
	c.failures.WithLabelValues(normalizeLabel(stage)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
