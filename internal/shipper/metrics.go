package shipper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics instruments the pipeline on its own registry so the watch
// command can expose it without dragging in the default Go collectors
// of every other process linking this package.
type metrics struct {
	registry *prometheus.Registry

	parsed    prometheus.Counter
	processed prometheus.Counter
	synced    prometheus.Counter
	skipped   prometheus.Counter
	evicted   prometheus.Counter
	attempts  *prometheus.CounterVec
}

func newMetrics(queue *syncQueue) *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &metrics{
		registry: registry,
		parsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowguard",
			Subsystem: "shipper",
			Name:      "entries_parsed_total",
			Help:      "Log entries parsed out of source files.",
		}),
		processed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowguard",
			Subsystem: "shipper",
			Name:      "entries_processed_total",
			Help:      "Entries sanitized, enriched, and dispatched.",
		}),
		synced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowguard",
			Subsystem: "shipper",
			Name:      "entries_synced_total",
			Help:      "Entries delivered to the destination.",
		}),
		skipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowguard",
			Subsystem: "shipper",
			Name:      "entries_skipped_total",
			Help:      "Entries the destination failed to deliver.",
		}),
		evicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowguard",
			Subsystem: "shipper",
			Name:      "queue_evicted_total",
			Help:      "Entries evicted from a full sync queue.",
		}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowguard",
			Subsystem: "shipper",
			Name:      "sync_attempts_total",
			Help:      "Sync attempts by outcome.",
		}, []string{"outcome"}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "flowguard",
		Subsystem: "shipper",
		Name:      "queue_depth",
		Help:      "Entries waiting in the sync queue.",
	}, func() float64 { return float64(queue.Len()) })

	return m
}
