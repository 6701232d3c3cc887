package explorer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"prospect/internal/chain"
	"prospect/internal/config"
	"prospect/internal/eventing"
	"prospect/internal/generator"
	"prospect/internal/ledger"
	"prospect/internal/metrics"
	"prospect/internal/sandbox"
	"prospect/internal/validator"
)

const defaultBudget = 10

// Options wires an Explorer. Gateway, Bridge and Generator are
// required; Recorder and Bus are optional observers.
type Options struct {
	Gateway     *sandbox.Gateway
	Bridge      *validator.Bridge
	Generator   generator.Generator
	Environment *config.Environment
	Recorder    *metrics.Recorder
	Bus         *eventing.Bus
	Budget      int
	Log         *zap.Logger
}

// Explorer owns one run at a time. Instances are cheap; batch mode
// creates one per run so nothing is shared.
type Explorer struct {
	gateway  *sandbox.Gateway
	bridge   *validator.Bridge
	gen      generator.Generator
	env      *config.Environment
	recorder *metrics.Recorder
	bus      *eventing.Bus
	budget   int
	log      *zap.Logger
}

func New(opts Options) (*Explorer, error) {
	if opts.Gateway == nil || opts.Bridge == nil || opts.Generator == nil {
		return nil, errors.New("explorer: gateway, bridge and generator are required")
	}
	env := opts.Environment
	if env == nil {
		env = config.DefaultEnvironment()
	}
	budget := opts.Budget
	if budget <= 0 {
		budget = defaultBudget
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Explorer{
		gateway:  opts.Gateway,
		bridge:   opts.Bridge,
		gen:      opts.Generator,
		env:      env,
		recorder: opts.Recorder,
		bus:      opts.Bus,
		budget:   budget,
		log:      log,
	}, nil
}

// Run executes one full run. The report is always non-nil; err is
// non-nil only when the run terminated abnormally (fatal bridge error
// or cancellation).
func (e *Explorer) Run(ctx context.Context, runID string) (*RunReport, error) {
	if strings.TrimSpace(runID) == "" {
		runID = NewRunID(time.Now())
	}
	st := &RunState{
		RunID:       runID,
		Model:       e.gen.Name(),
		Environment: e.env.Name,
		Budget:      e.budget,
		State:       StateAwaitingCode,
		StartedAt:   time.Now().UTC(),
		Ledger:      ledger.New(e.env.Reward.AllowedPrograms),
	}
	e.log.Info("run starting",
		zap.String("run_id", st.RunID), zap.String("model", st.Model),
		zap.String("environment", st.Environment), zap.Int("budget", st.Budget))
	if e.bus != nil {
		e.bus.PublishRunStarted(eventing.RunEvent{RunID: st.RunID, Model: st.Model})
	}

	identity, err := e.bridge.ResetIdentity(ctx)
	if err != nil {
		return e.finalize(ctx, st, err)
	}
	obs, err := e.bridge.Observe(ctx, identity.Pubkey())
	if err != nil {
		return e.finalize(ctx, st, err)
	}

	conv := generator.NewConversation(renderPrompt(e.promptTemplate(), promptVars{
		AgentPubkey: identity.Pubkey(),
		SOLBalance:  float64(obs.Balance) / 1e9,
		BlockHeight: obs.BlockHeight,
		TotalReward: 0,
		Budget:      st.Budget,
	}))
	conv.Append(generator.RoleUser, initialUserPrompt)

	for st.TurnIndex < st.Budget {
		if ctx.Err() != nil {
			return e.finalize(ctx, st, ctx.Err())
		}
		turn := st.TurnIndex + 1
		rec, fatal := e.runTurn(ctx, st, conv, identity, turn)
		if fatal != nil {
			return e.finalize(ctx, st, fatal)
		}

		st.TurnIndex = turn
		st.CumulativeReward = rec.CumulativeReward
		st.Transcript = append(st.Transcript, *rec)

		st.State = StateFeedback
		conv.Append(generator.RoleUser, rec.Feedback)
		if err := e.checkpoint(*rec, conv); err != nil {
			e.log.Warn("checkpoint failed", zap.String("run_id", st.RunID), zap.Error(err))
		}
		e.publishTurn(st, *rec)
		e.log.Info("turn completed",
			zap.String("run_id", st.RunID), zap.Int("turn", rec.Index),
			zap.String("outcome", string(rec.Outcome)), zap.Int("reward", rec.RewardDelta),
			zap.Int("total", rec.CumulativeReward), zap.Int64("ms", rec.DurationMs))
		st.State = StateAwaitingCode
	}
	return e.finalize(ctx, st, nil)
}

// runTurn drives one turn through the state machine. It returns either
// a completed record (any turn-scoped outcome) or a fatal error; never
// both, and never a partial record.
func (e *Explorer) runTurn(ctx context.Context, st *RunState, conv *generator.Conversation, identity *validator.FundedIdentity, turn int) (*TurnRecord, error) {
	started := time.Now()
	rec := &TurnRecord{Index: turn, Timestamp: started.UTC()}
	finish := func(outcome OutcomeKind, delta int, newKeys []chain.InstructionKey, feedback, errMsg string) (*TurnRecord, error) {
		rec.Outcome = outcome
		rec.RewardDelta = delta
		rec.NewKeys = newKeys
		rec.CumulativeReward = st.CumulativeReward + delta
		rec.Feedback = feedback
		rec.ErrorMessage = errMsg
		rec.DurationMs = time.Since(started).Milliseconds()
		return rec, nil
	}

	st.State = StateAwaitingCode
	reply, err := e.gen.Generate(ctx, conv.Messages())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return finish(OutcomeGeneratorError, 0, nil, generatorErrorFeedback(err), err.Error())
	}
	conv.Append(generator.RoleAssistant, reply)

	unit, ok := generator.ExtractCodeUnit(reply)
	if !ok {
		return finish(OutcomeNoCode, 0, nil, noCodeFeedback, "no code block in response")
	}

	reference, err := e.bridge.LatestReference(ctx)
	if err != nil {
		return nil, err
	}

	st.State = StateExecuting
	res, err := e.gateway.Execute(ctx, unit, e.env.Timeout(), sandbox.ExecContext{
		RunID:     st.RunID,
		Turn:      turn,
		Identity:  identity.Pubkey(),
		Reference: reference,
	})
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return finish(OutcomeKind(res.Err.Kind), 0, nil,
			sandboxFailureFeedback(turn, st.Budget, res.Err), res.Err.Message)
	}

	st.State = StateSubmitting
	signed, err := chain.SignTransaction(res.SerializedTx, identity.Keys.Private)
	if err != nil {
		detail := fmt.Sprintf("transaction bytes are not a valid wire transaction: %v", err)
		return finish(OutcomeSubmissionRejected, 0, nil,
			rejectionFeedback(turn, st.Budget, detail), detail)
	}
	receipt, err := e.bridge.Submit(ctx, signed)
	if err != nil {
		var submitErr *validator.SubmitError
		if errors.As(err, &submitErr) {
			return finish(OutcomeSubmissionRejected, 0, nil,
				rejectionFeedback(turn, st.Budget, submitErr.Error()), submitErr.Error())
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	st.State = StateScoring
	if !receipt.Success() {
		errText := "unknown"
		if receipt.Meta != nil && len(receipt.Meta.Err) > 0 {
			errText = string(receipt.Meta.Err)
		}
		return finish(OutcomeOnChainFailure, 0, nil,
			onChainFailureFeedback(turn, st.Budget, receipt),
			"on-chain failure: "+errText)
	}
	delta, newKeys := st.Ledger.ScoreReceipt(receipt, turn)

	obs, err := e.bridge.Observe(ctx, identity.Pubkey())
	if err != nil {
		return nil, err
	}
	outcome := OutcomeRewarded
	if delta == 0 {
		outcome = OutcomeNoDiscovery
	}
	return finish(outcome, delta, newKeys,
		successFeedback(turn, st.Budget, delta, st.CumulativeReward+delta, newKeys, obs, st.Ledger.Size()), "")
}

// finalize seals the run: terminal state, recorder summary, finish
// event, report. The ledger and transcript are read-only from here on.
func (e *Explorer) finalize(ctx context.Context, st *RunState, fatal error) (*RunReport, error) {
	st.State = StateTerminated
	reason := TerminationBudgetExhausted
	if fatal != nil {
		reason = TerminationFatalBridge
		if errors.Is(fatal, context.Canceled) || errors.Is(fatal, context.DeadlineExceeded) || ctx.Err() != nil {
			reason = TerminationCanceled
		}
	}

	report := &RunReport{
		RunID:            st.RunID,
		Model:            st.Model,
		Environment:      st.Environment,
		StartedAt:        st.StartedAt,
		FinishedAt:       time.Now().UTC(),
		Termination:      reason,
		Turns:            st.TurnIndex,
		CumulativeReward: st.CumulativeReward,
		Transcript:       append([]TurnRecord(nil), st.Transcript...),
		Discoveries:      st.Ledger.Discoveries(),
		FatalErr:         fatal,
	}

	if e.recorder != nil {
		if err := e.recorder.Finish(string(reason)); err != nil {
			e.log.Warn("final checkpoint failed", zap.String("run_id", st.RunID), zap.Error(err))
		}
	}
	if e.bus != nil {
		e.bus.PublishRunFinished(eventing.RunEvent{
			RunID:       st.RunID,
			Model:       st.Model,
			Reason:      string(reason),
			TotalReward: st.CumulativeReward,
			Turns:       st.TurnIndex,
			Discovered:  st.Ledger.Size(),
		})
	}

	if fatal != nil {
		e.log.Error("run terminated abnormally",
			zap.String("run_id", st.RunID), zap.String("reason", string(reason)),
			zap.Int("turns", st.TurnIndex), zap.Int("total_reward", st.CumulativeReward),
			zap.Error(fatal))
		return report, fatal
	}
	e.log.Info("run finished",
		zap.String("run_id", st.RunID), zap.Int("turns", st.TurnIndex),
		zap.Int("total_reward", st.CumulativeReward), zap.Int("discovered", st.Ledger.Size()))
	return report, nil
}

func (e *Explorer) checkpoint(rec TurnRecord, conv *generator.Conversation) error {
	if e.recorder == nil {
		return nil
	}
	discovered := make([]string, 0, len(rec.NewKeys))
	for _, key := range rec.NewKeys {
		discovered = append(discovered, key.String())
	}
	return e.recorder.RecordTurn(metrics.TurnMessage{
		Index:       rec.Index,
		Timestamp:   rec.Timestamp.Format(time.RFC3339),
		DurationMs:  rec.DurationMs,
		Reward:      rec.RewardDelta,
		TotalReward: rec.CumulativeReward,
		Outcome:     string(rec.Outcome),
		Discovered:  discovered,
		Error:       rec.ErrorMessage,
	}, rec.NewKeys, conv.Messages())
}

func (e *Explorer) publishTurn(st *RunState, rec TurnRecord) {
	if e.bus == nil {
		return
	}
	keys := make([]string, 0, len(rec.NewKeys))
	for _, key := range rec.NewKeys {
		keys = append(keys, key.String())
	}
	e.bus.PublishTurn(eventing.TurnEvent{
		RunID:       st.RunID,
		Model:       st.Model,
		Turn:        rec.Index,
		Outcome:     string(rec.Outcome),
		RewardDelta: rec.RewardDelta,
		TotalReward: rec.CumulativeReward,
		NewKeys:     keys,
		DurationMs:  rec.DurationMs,
	})
}
