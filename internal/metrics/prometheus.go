package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"prospect/internal/eventing"
)

// Collectors exposes run progress as Prometheus metrics. It is fed from
// the event bus rather than called directly, so the orchestrator stays
// unaware of it.
type Collectors struct {
	turnsTotal   *prometheus.CounterVec
	rewardTotal  *prometheus.CounterVec
	discoveries  *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	activeRuns   prometheus.Gauge
}

func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prospect",
			Name:      "turns_total",
			Help:      "Completed turns by outcome.",
		}, []string{"model", "outcome"}),
		rewardTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prospect",
			Name:      "reward_total",
			Help:      "Reward accumulated across runs.",
		}, []string{"model"}),
		discoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prospect",
			Name:      "discoveries_total",
			Help:      "Distinct instruction keys discovered.",
		}, []string{"model"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "prospect",
			Name:      "turn_duration_seconds",
			Help:      "Wall time per completed turn.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"model"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "prospect",
			Name:      "active_runs",
			Help:      "Runs currently in progress.",
		}),
	}
	reg.MustRegister(c.turnsTotal, c.rewardTotal, c.discoveries, c.turnDuration, c.activeRuns)
	return c
}

// Attach subscribes the collectors to the bus. Subscriptions stay live
// for the life of the process.
func (c *Collectors) Attach(bus *eventing.Bus) error {
	if err := bus.OnRunStarted(func(eventing.RunEvent) {
		c.activeRuns.Inc()
	}); err != nil {
		return err
	}
	if err := bus.OnTurn(func(evt eventing.TurnEvent) {
		c.turnsTotal.WithLabelValues(evt.Model, evt.Outcome).Inc()
		c.turnDuration.WithLabelValues(evt.Model).Observe(float64(evt.DurationMs) / 1000)
		if evt.RewardDelta > 0 {
			c.rewardTotal.WithLabelValues(evt.Model).Add(float64(evt.RewardDelta))
			c.discoveries.WithLabelValues(evt.Model).Add(float64(len(evt.NewKeys)))
		}
	}); err != nil {
		return err
	}
	return bus.OnRunFinished(func(eventing.RunEvent) {
		c.activeRuns.Dec()
	})
}
