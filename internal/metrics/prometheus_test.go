package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospect/internal/eventing"
)

func TestCollectorsFollowBusEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)
	bus := eventing.NewBus()
	require.NoError(t, c.Attach(bus))

	bus.PublishRunStarted(eventing.RunEvent{RunID: "r1", Model: "m"})
	bus.PublishTurn(eventing.TurnEvent{
		RunID: "r1", Model: "m", Turn: 1, Outcome: "rewarded",
		RewardDelta: 2, TotalReward: 2, NewKeys: []string{"a#0", "b#1"}, DurationMs: 1500,
	})
	bus.PublishTurn(eventing.TurnEvent{RunID: "r1", Model: "m", Turn: 2, Outcome: "no_discovery"})
	bus.Drain()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("m", "rewarded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("m", "no_discovery")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.rewardTotal.WithLabelValues("m")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.discoveries.WithLabelValues("m")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeRuns))
	assert.Equal(t, 1, testutil.CollectAndCount(c.turnDuration))

	bus.PublishRunFinished(eventing.RunEvent{RunID: "r1", Model: "m", Reason: "budget_exhausted"})
	bus.Drain()
	assert.Equal(t, 0.0, testutil.ToFloat64(c.activeRuns))
}

func TestCollectorsRegisterOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollectors(reg)
	assert.Panics(t, func() { NewCollectors(reg) }, "duplicate registration must panic")
}
