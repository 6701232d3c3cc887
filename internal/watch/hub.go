// Package watch exposes live run progress: a websocket feed, a JSON
// snapshot of known runs and the Prometheus scrape endpoint. It is
// read-only; watchers cannot influence a run.
package watch

import (
	"sort"
	"strings"
	"sync"
	"time"

	"prospect/internal/eventing"
)

const finishedRunRetention = 5 * time.Minute

// Event is the wire form pushed to watchers.
type Event struct {
	Type string              `json:"type"`
	Run  *eventing.RunEvent  `json:"run,omitempty"`
	Turn *eventing.TurnEvent `json:"turn,omitempty"`
}

// RunSnapshot is one row of the /runs listing.
type RunSnapshot struct {
	RunID       string `json:"run_id"`
	Model       string `json:"model"`
	Status      string `json:"status"`
	Turns       int    `json:"turns"`
	TotalReward int    `json:"total_reward"`
	Reason      string `json:"reason,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

type subscription struct {
	runID string
	ch    chan Event
}

// Hub fans run events out to subscribers. A subscriber that falls
// behind loses its oldest queued event rather than stalling the run.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
	runs map[string]RunSnapshot
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[*subscription]struct{}),
		runs: make(map[string]RunSnapshot),
	}
}

// Attach wires the hub to the event bus.
func (h *Hub) Attach(bus *eventing.Bus) error {
	if err := bus.OnRunStarted(h.onRunStarted); err != nil {
		return err
	}
	if err := bus.OnTurn(h.onTurn); err != nil {
		return err
	}
	return bus.OnRunFinished(h.onRunFinished)
}

// Subscribe registers a watcher. An empty runID watches every run. The
// returned cancel func must be called when the watcher goes away.
func (h *Hub) Subscribe(runID string, size int) (<-chan Event, func()) {
	if size <= 0 {
		size = 1
	}
	sub := &subscription{
		runID: strings.TrimSpace(runID),
		ch:    make(chan Event, size),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// Snapshot lists known runs, running first, then by run ID.
func (h *Hub) Snapshot() []RunSnapshot {
	h.mu.RLock()
	out := make([]RunSnapshot, 0, len(h.runs))
	for _, snap := range h.runs {
		out = append(out, snap)
	}
	h.mu.RUnlock()
	sortSnapshots(out)
	return out
}

func (h *Hub) onRunStarted(evt eventing.RunEvent) {
	h.mu.Lock()
	h.runs[evt.RunID] = RunSnapshot{
		RunID:     evt.RunID,
		Model:     evt.Model,
		Status:    "running",
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	h.mu.Unlock()
	h.broadcast(evt.RunID, Event{Type: "run_started", Run: &evt})
}

func (h *Hub) onTurn(evt eventing.TurnEvent) {
	h.mu.Lock()
	snap := h.runs[evt.RunID]
	snap.RunID = evt.RunID
	snap.Model = evt.Model
	snap.Status = "running"
	snap.Turns = evt.Turn
	snap.TotalReward = evt.TotalReward
	snap.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	h.runs[evt.RunID] = snap
	h.mu.Unlock()
	h.broadcast(evt.RunID, Event{Type: "turn", Turn: &evt})
}

func (h *Hub) onRunFinished(evt eventing.RunEvent) {
	h.mu.Lock()
	snap := h.runs[evt.RunID]
	snap.RunID = evt.RunID
	snap.Model = evt.Model
	snap.Status = "finished"
	snap.Turns = evt.Turns
	snap.TotalReward = evt.TotalReward
	snap.Reason = evt.Reason
	snap.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	h.runs[evt.RunID] = snap
	h.mu.Unlock()
	h.broadcast(evt.RunID, Event{Type: "run_finished", Run: &evt})
	h.scheduleCleanup(evt.RunID)
}

// scheduleCleanup drops a finished run from the snapshot after a
// retention period so the listing does not grow without bound.
func (h *Hub) scheduleCleanup(runID string) {
	time.AfterFunc(finishedRunRetention, func() {
		h.mu.Lock()
		delete(h.runs, strings.TrimSpace(runID))
		h.mu.Unlock()
	})
}

func (h *Hub) broadcast(runID string, evt Event) {
	h.mu.RLock()
	targets := make([]*subscription, 0, len(h.subs))
	for sub := range h.subs {
		if sub.runID != "" && sub.runID != runID {
			continue
		}
		targets = append(targets, sub)
	}
	h.mu.RUnlock()
	for _, sub := range targets {
		pushEvent(sub.ch, evt)
	}
}

// pushEvent drops the oldest queued event when the buffer is full.
func pushEvent(ch chan Event, evt Event) {
	select {
	case ch <- evt:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- evt:
	default:
	}
}

func sortSnapshots(snaps []RunSnapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].Status != snaps[j].Status {
			return snaps[i].Status == "running"
		}
		return snaps[i].RunID < snaps[j].RunID
	})
}
