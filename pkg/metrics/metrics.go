// Package metrics exports capacity snapshots as Prometheus gauges.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pario-ai/headroom/pkg/models"
)

// Collector holds the Prometheus metrics for capacity snapshots.
type Collector struct {
	gatherer prometheus.Gatherer

	Utilization *prometheus.GaugeVec
	Used        *prometheus.GaugeVec
	Limit       *prometheus.GaugeVec
	Tier        prometheus.Gauge
	PExplore    prometheus.Gauge
	ComputedAt  prometheus.Gauge
	Source      *prometheus.GaugeVec
	Recomputes  prometheus.Counter
}

// New creates a collector on its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the metrics with reg and gathers from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		gatherer: g,
		Utilization: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "headroom",
				Name:      "utilization_percent",
				Help:      "Window utilization as a percentage of the plan limit",
			},
			[]string{"window"},
		),
		Used: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "headroom",
				Name:      "used_credits",
				Help:      "Credits consumed inside the window",
			},
			[]string{"window"},
		),
		Limit: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "headroom",
				Name:      "limit_credits",
				Help:      "Plan credit limit for the window",
			},
			[]string{"window"},
		),
		Tier: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "headroom",
				Name:      "tier",
				Help:      "Combined capacity tier (0 available, 1 moderate, 2 conserve, 3 critical)",
			},
		),
		PExplore: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "headroom",
				Name:      "p_explore",
				Help:      "Continuous exploration probability",
			},
		),
		ComputedAt: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "headroom",
				Name:      "computed_at_seconds",
				Help:      "Unix time of the last snapshot",
			},
		),
		Source: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "headroom",
				Name:      "snapshot_info",
				Help:      "Plan and provenance of the last snapshot",
			},
			[]string{"plan", "provenance"},
		),
		Recomputes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "headroom",
				Name:      "recomputes_total",
				Help:      "Total number of snapshots observed",
			},
		),
	}
}

// Observe sets every gauge from snap.
func (c *Collector) Observe(snap models.CapacitySnapshot) {
	c.observeWindow("five_hour", snap.FiveHour)
	c.observeWindow("seven_day", snap.SevenDay)
	c.Tier.Set(float64(snap.Tier))
	c.PExplore.Set(snap.PExplore)
	c.ComputedAt.Set(float64(snap.ComputedAt.Unix()))
	c.Source.Reset()
	c.Source.WithLabelValues(string(snap.Plan), string(snap.Provenance)).Set(1)
	c.Recomputes.Inc()
}

func (c *Collector) observeWindow(name string, u models.WindowUsage) {
	c.Utilization.WithLabelValues(name).Set(u.Pct)
	c.Used.WithLabelValues(name).Set(float64(u.Used))
	c.Limit.WithLabelValues(name).Set(float64(u.Limit))
}

// WriteTextfile writes the current metrics in the text exposition format,
// replacing path atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
