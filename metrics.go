package txfs

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the optional Prometheus instrumentation for a Volume
// (SPEC_FULL.md DOMAIN STACK item 4, grounded on gcsfuse's use of
// github.com/prometheus/client_golang). A nil *Metrics is never passed
// around — Volume.metrics is nil when the caller doesn't register one, and
// every call site checks for nil before touching it, so metrics stay
// entirely optional on a target with no scrape sink.
type Metrics struct {
	transactions     prometheus.Counter
	transactFailures prometheus.Counter
	blocksAllocated  prometheus.Counter
	blocksFreed      prometheus.Counter
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	cacheEvictions   prometheus.Counter
	buffersFlushed   prometheus.Counter
	crcFailures      prometheus.Counter
	criticalErrors   prometheus.Counter
}

// NewMetrics creates and registers a Metrics set with reg, labeling every
// series with the given volume name. Pass a prometheus.NewRegistry() (or
// prometheus.DefaultRegisterer) from the host; reg may be nil to build an
// unregistered Metrics usable only for local inspection in tests.
func NewMetrics(reg prometheus.Registerer, volume string) *Metrics {
	labels := prometheus.Labels{"volume": volume}
	newCounter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "txfs",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		if reg != nil {
			reg.MustRegister(c)
		}
		return c
	}

	return &Metrics{
		transactions:     newCounter("transactions_total", "committed transactions"),
		transactFailures: newCounter("transact_failures_total", "transactions that failed before commit"),
		blocksAllocated:  newCounter("blocks_allocated_total", "blocks allocated"),
		blocksFreed:      newCounter("blocks_freed_total", "blocks freed"),
		cacheHits:        newCounter("cache_hits_total", "buffer cache hits"),
		cacheMisses:      newCounter("cache_misses_total", "buffer cache misses"),
		cacheEvictions:   newCounter("cache_evictions_total", "buffer cache evictions"),
		buffersFlushed:   newCounter("buffers_flushed_total", "dirty buffers written to disk"),
		crcFailures:      newCounter("crc_failures_total", "metadata blocks that failed CRC/signature verification"),
		criticalErrors:   newCounter("critical_errors_total", "Fubar-class invariant violations"),
	}
}

// WithMetrics attaches m to v; pass nil to disable metrics.
func (v *Volume) WithMetrics(m *Metrics) { v.metrics = m }
