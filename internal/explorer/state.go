// Package explorer drives one run: the bounded turn loop that asks the
// generator for code, executes it, submits the result to the replica,
// scores the receipt and feeds the outcome back. All run state lives
// here and is touched by nothing else.
package explorer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"prospect/internal/chain"
	"prospect/internal/ledger"
)

// State names the phase a run is in. Transitions are strictly those of
// the turn loop; there are no retries inside the machine.
type State string

const (
	StateAwaitingCode State = "awaiting_code"
	StateExecuting    State = "executing"
	StateSubmitting   State = "submitting"
	StateScoring      State = "scoring"
	StateFeedback     State = "feedback"
	StateTerminated   State = "terminated"
)

// OutcomeKind tags how a turn resolved. Sandbox failures reuse their
// error kind string so one vocabulary covers records, metrics and
// events.
type OutcomeKind string

const (
	OutcomeRewarded           OutcomeKind = "rewarded"
	OutcomeNoDiscovery        OutcomeKind = "no_discovery"
	OutcomeOnChainFailure     OutcomeKind = "on_chain_failure"
	OutcomeSubmissionRejected OutcomeKind = "submission_rejected"
	OutcomeNoCode             OutcomeKind = "no_code"
	OutcomeGeneratorError     OutcomeKind = "generator_error"
)

// TerminationReason distinguishes how a run ended. Budget exhaustion is
// the expected ending; the others are abnormal.
type TerminationReason string

const (
	TerminationBudgetExhausted TerminationReason = "budget_exhausted"
	TerminationFatalBridge     TerminationReason = "fatal_bridge_error"
	TerminationCanceled        TerminationReason = "canceled"
)

// TurnRecord is one completed turn. Immutable once appended to the
// transcript.
type TurnRecord struct {
	Index            int
	Timestamp        time.Time
	DurationMs       int64
	RewardDelta      int
	CumulativeReward int
	NewKeys          []chain.InstructionKey
	Outcome          OutcomeKind
	Feedback         string
	ErrorMessage     string
}

// RunState is the mutable heart of a run. Only the Explorer touches it;
// after termination it is read-only.
type RunState struct {
	RunID            string
	Model            string
	Environment      string
	Budget           int
	TurnIndex        int
	CumulativeReward int
	State            State
	StartedAt        time.Time
	Ledger           *ledger.Ledger
	Transcript       []TurnRecord
}

// RunReport is the finalized view handed back to the caller.
type RunReport struct {
	RunID            string
	Model            string
	Environment      string
	StartedAt        time.Time
	FinishedAt       time.Time
	Termination      TerminationReason
	Turns            int
	CumulativeReward int
	Transcript       []TurnRecord
	Discoveries      map[string]int
	FatalErr         error
}

// NewRunID builds a unique, sortable run identifier. The timestamp keeps
// artifacts browsable; the uuid fragment keeps concurrent runs apart.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("code_loop_%s_%s",
		now.UTC().Format("06-01-02_150405"),
		uuid.NewString()[:8])
}
