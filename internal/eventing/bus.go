// Package eventing fans run progress out to observational consumers: the
// watch feed, the metrics collectors, the CLI. The bus is never on the
// reward path; the durable turn record is written before events publish.
package eventing

import (
	evbus "github.com/asaskevich/EventBus"
)

const (
	topicRunStarted    = "run:started"
	topicTurnCompleted = "run:turn_completed"
	topicRunFinished   = "run:finished"
)

// TurnEvent mirrors one completed turn.
type TurnEvent struct {
	RunID       string
	Model       string
	Turn        int
	Outcome     string
	RewardDelta int
	TotalReward int
	NewKeys     []string
	DurationMs  int64
}

// RunEvent marks a run starting or finishing. Reason is empty on start.
type RunEvent struct {
	RunID       string
	Model       string
	Reason      string
	TotalReward int
	Turns       int
	Discovered  int
}

// Bus is a typed wrapper over the process-wide event bus.
type Bus struct {
	bus evbus.Bus
}

func NewBus() *Bus { return &Bus{bus: evbus.New()} }

func (b *Bus) PublishRunStarted(evt RunEvent)  { b.bus.Publish(topicRunStarted, evt) }
func (b *Bus) PublishTurn(evt TurnEvent)       { b.bus.Publish(topicTurnCompleted, evt) }
func (b *Bus) PublishRunFinished(evt RunEvent) { b.bus.Publish(topicRunFinished, evt) }

// Subscriptions run async so a slow consumer never stalls a run.

func (b *Bus) OnRunStarted(fn func(RunEvent)) error {
	return b.bus.SubscribeAsync(topicRunStarted, fn, false)
}

func (b *Bus) OnTurn(fn func(TurnEvent)) error {
	return b.bus.SubscribeAsync(topicTurnCompleted, fn, false)
}

func (b *Bus) OnRunFinished(fn func(RunEvent)) error {
	return b.bus.SubscribeAsync(topicRunFinished, fn, false)
}

// Drain blocks until queued async callbacks have completed.
func (b *Bus) Drain() { b.bus.WaitAsync() }
