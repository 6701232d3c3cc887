// Package metrics persists the observational record of a run: one
// checkpointed JSON artifact for scores and outcomes, one for the
// conversation transcript, plus Prometheus collectors for live views.
// Nothing here participates in reward computation.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"prospect/internal/chain"
	"prospect/internal/generator"
	"prospect/internal/util/jsonutil"
)

// TurnMessage is the per-turn record. Index is 1-based and matches the
// orchestrator's turn numbering.
type TurnMessage struct {
	Index       int      `json:"index"`
	Timestamp   string   `json:"timestamp"`
	DurationMs  int64    `json:"duration_ms"`
	Reward      int      `json:"reward"`
	TotalReward int      `json:"total_reward"`
	Outcome     string   `json:"outcome"`
	Discovered  []string `json:"instructions_discovered"`
	Error       string   `json:"error,omitempty"`
}

// RunMetrics is the persisted per-run artifact.
type RunMetrics struct {
	RunID              string         `json:"run_id"`
	Model              string         `json:"model"`
	StartedAt          string         `json:"started_at"`
	FinishedAt         string         `json:"finished_at,omitempty"`
	Termination        string         `json:"termination,omitempty"`
	CumulativeRewards  []int          `json:"cumulative_rewards"`
	Messages           []TurnMessage  `json:"messages"`
	ProgramsDiscovered map[string]int `json:"programs_discovered"`
	Errors             []string       `json:"errors"`
}

// Recorder checkpoints run metrics and the conversation transcript after
// every turn. Records are append-only and never rewritten once added.
type Recorder struct {
	dir string

	mu           sync.Mutex
	run          RunMetrics
	conversation []generator.Message
}

func NewRecorder(dir, runID, model string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("metrics dir: %w", err)
	}
	r := &Recorder{
		dir: dir,
		run: RunMetrics{
			RunID:              runID,
			Model:              model,
			StartedAt:          time.Now().UTC().Format(time.RFC3339),
			CumulativeRewards:  []int{},
			Messages:           []TurnMessage{},
			ProgramsDiscovered: map[string]int{},
			Errors:             []string{},
		},
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r, r.checkpoint()
}

// RecordTurn appends one turn and checkpoints both artifacts before
// returning. The conversation snapshot replaces the previous one.
func (r *Recorder) RecordTurn(msg TurnMessage, newKeys []chain.InstructionKey, conversation []generator.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Messages = append(r.run.Messages, msg)
	r.run.CumulativeRewards = append(r.run.CumulativeRewards, msg.TotalReward)
	for _, key := range newKeys {
		r.run.ProgramsDiscovered[key.String()] = msg.Index
	}
	if msg.Error != "" {
		r.run.Errors = append(r.run.Errors, fmt.Sprintf("turn %d: %s", msg.Index, msg.Error))
	}
	r.conversation = conversation
	return r.checkpoint()
}

// Finish stamps the termination outcome and writes the final state.
func (r *Recorder) Finish(termination string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Termination = termination
	r.run.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	return r.checkpoint()
}

// Snapshot returns a copy of the run metrics as currently persisted.
func (r *Recorder) Snapshot() RunMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.run
	out.CumulativeRewards = append([]int(nil), r.run.CumulativeRewards...)
	out.Messages = append([]TurnMessage(nil), r.run.Messages...)
	out.Errors = append([]string(nil), r.run.Errors...)
	out.ProgramsDiscovered = make(map[string]int, len(r.run.ProgramsDiscovered))
	for k, v := range r.run.ProgramsDiscovered {
		out.ProgramsDiscovered[k] = v
	}
	return out
}

func (r *Recorder) MetricsPath() string {
	return filepath.Join(r.dir, r.run.RunID+"_metrics.json")
}

func (r *Recorder) ConversationPath() string {
	return filepath.Join(r.dir, r.run.RunID+"_conversation.json")
}

// checkpoint writes both artifacts. Callers hold r.mu. Artifacts are
// encoded without HTML escaping so TypeScript in the transcript stays
// readable.
func (r *Recorder) checkpoint() error {
	metricsDoc, err := jsonutil.MarshalNoEscapeIndent(r.run, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileSync(r.MetricsPath(), metricsDoc); err != nil {
		return fmt.Errorf("checkpoint metrics: %w", err)
	}
	conv := r.conversation
	if conv == nil {
		conv = []generator.Message{}
	}
	convDoc, err := jsonutil.MarshalNoEscapeIndent(conv, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileSync(r.ConversationPath(), convDoc); err != nil {
		return fmt.Errorf("checkpoint conversation: %w", err)
	}
	return nil
}

// writeFileSync writes via temp file, fsync and rename so a crash never
// leaves a torn checkpoint.
func writeFileSync(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".checkpoint-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
