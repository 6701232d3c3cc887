package eventing

import (
	"sync"
	"testing"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var turns []TurnEvent
	var runs []RunEvent
	if err := bus.OnTurn(func(evt TurnEvent) {
		mu.Lock()
		turns = append(turns, evt)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("OnTurn() error = %v", err)
	}
	if err := bus.OnRunFinished(func(evt RunEvent) {
		mu.Lock()
		runs = append(runs, evt)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("OnRunFinished() error = %v", err)
	}

	bus.PublishTurn(TurnEvent{RunID: "r1", Turn: 1, Outcome: "rewarded", RewardDelta: 2})
	bus.PublishTurn(TurnEvent{RunID: "r1", Turn: 2, Outcome: "timeout"})
	bus.PublishRunFinished(RunEvent{RunID: "r1", Reason: "budget_exhausted", TotalReward: 2})
	bus.Drain()

	mu.Lock()
	defer mu.Unlock()
	if len(turns) != 2 {
		t.Fatalf("turn events = %d, want 2", len(turns))
	}
	if len(runs) != 1 || runs[0].Reason != "budget_exhausted" {
		t.Fatalf("run events = %+v", runs)
	}
}

func TestBusPublishWithoutSubscribersIsHarmless(t *testing.T) {
	bus := NewBus()
	bus.PublishRunStarted(RunEvent{RunID: "r1"})
	bus.PublishTurn(TurnEvent{RunID: "r1"})
	bus.Drain()
}
