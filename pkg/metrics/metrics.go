// Package metrics exposes pool and spawner activity as Prometheus metrics.
//
// # Overview
//
// PoolCollector implements pool.Observer, so one collector can be handed to
// any number of pools (or to a spawner, which passes it to every pool it
// creates). Every metric carries a "pool" label with the pool name.
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewPoolCollector(reg, "spawnpool")
//
//	s := spawner.New(host, root, spawner.Callbacks[*scene.Node, *scene.Node]{},
//	    spawner.WithObserver(collector))
//
// # Metric Types
//
//	<ns>_pool_events_total{pool,event}   counter per pool.Event
//	<ns>_pool_entries{pool}              gauge, entries owned
//	<ns>_pool_in_use{pool}               gauge, entries handed out
//	<ns>_pool_reuse_ratio{pool}          gauge, hits / (hits + misses)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/spawnpool/pkg/pool"
)

// PoolCollector records pool events into Prometheus metrics.
type PoolCollector struct {
	events     *prometheus.CounterVec
	entries    *prometheus.GaugeVec
	inUse      *prometheus.GaugeVec
	reuseRatio *prometheus.GaugeVec
}

// NewPoolCollector creates the pool metrics and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewPoolCollector(reg, "spawnpool")
//	p := pool.New(create, pool.Hooks[*Bullet]{}, pool.WithName("bullets"), pool.WithObserver(collector))
func NewPoolCollector(reg prometheus.Registerer, namespace string) *PoolCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PoolCollector{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "events_total",
				Help:      "Total number of pool lifecycle events",
			},
			[]string{"pool", "event"},
		),
		entries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "entries",
				Help:      "Number of entries owned by the pool",
			},
			[]string{"pool"},
		),
		inUse: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "in_use",
				Help:      "Number of entries currently handed out",
			},
			[]string{"pool"},
		),
		reuseRatio: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "reuse_ratio",
				Help:      "Fraction of acquires served by an existing entry",
			},
			[]string{"pool"},
		),
	}
}

// Observe implements pool.Observer.
func (c *PoolCollector) Observe(name string, event pool.Event, stats pool.Stats) {
	c.events.WithLabelValues(name, string(event)).Inc()
	c.entries.WithLabelValues(name).Set(float64(stats.Allocated))
	c.inUse.WithLabelValues(name).Set(float64(stats.InUse))

	if total := stats.Hits + stats.Misses; total > 0 {
		c.reuseRatio.WithLabelValues(name).Set(float64(stats.Hits) / float64(total))
	}
}
