// Package sandbox executes one untrusted code unit per turn under a
// timeout and a single-transaction policy, and normalizes every failure
// into a structured record the rest of the harness can act on.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrorKind tags the failure classes an execution can produce. The string
// values match the "type" field of the runner's JSON result.
type ErrorKind string

const (
	ErrorKindInterface ErrorKind = "interface_error"
	ErrorKindCompile   ErrorKind = "compile_error"
	ErrorKindRuntime   ErrorKind = "runtime_error"
	ErrorKindPolicy    ErrorKind = "policy_violation"
	ErrorKindTimeout   ErrorKind = "timeout"
)

// Diagnostic is one entry of a compile failure. A single failed build can
// carry many of them.
type Diagnostic struct {
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	File    string `json:"file,omitempty"`
}

// ErrorRecord is the structured failure of one execution. Message is the
// human-readable summary fed back to the generator; Details carries raw
// trace or log text. Compile records enumerate every diagnostic, not just
// the first.
type ErrorRecord struct {
	Kind        ErrorKind    `json:"type"`
	Message     string       `json:"error"`
	Details     string       `json:"details,omitempty"`
	Diagnostics []Diagnostic `json:"errors,omitempty"`
}

// Result is the outcome of one execution: either the serialized unsigned
// transaction the code unit produced, or the error record. Never both.
type Result struct {
	SerializedTx []byte
	Err          *ErrorRecord
}

func (r *Result) OK() bool { return r != nil && r.Err == nil }

func failure(kind ErrorKind, message string) *Result {
	return &Result{Err: &ErrorRecord{Kind: kind, Message: message}}
}

// CodeUnit is the opaque code payload of one turn.
type CodeUnit struct {
	Language string
	Source   []byte
}

// ExecContext carries the per-turn parameters an engine hands to the code
// unit: the funded identity paying fees and the freshness token to embed.
type ExecContext struct {
	RunID     string
	Turn      int
	Identity  string
	Reference string
}

// Engine is one execution backend. Execute returns an error only for
// caller cancellation or an internal engine fault; everything the code
// unit itself did wrong comes back inside the Result.
type Engine interface {
	Execute(ctx context.Context, unit CodeUnit, timeout time.Duration, ec ExecContext) (*Result, error)
}

// Gateway fronts an engine: it applies the default timeout, folds internal
// engine faults into runtime error records, and keeps cancellation errors
// flowing to the caller.
type Gateway struct {
	engine  Engine
	timeout time.Duration
	log     *zap.Logger
}

func NewGateway(engine Engine, defaultTimeout time.Duration, log *zap.Logger) *Gateway {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{engine: engine, timeout: defaultTimeout, log: log}
}

// Execute runs one code unit. A nil error with Result.Err set is a
// turn-scoped failure; a non-nil error means the caller's context ended.
func (g *Gateway) Execute(ctx context.Context, unit CodeUnit, timeout time.Duration, ec ExecContext) (*Result, error) {
	if timeout <= 0 {
		timeout = g.timeout
	}
	started := time.Now()
	res, err := g.engine.Execute(ctx, unit, timeout, ec)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.log.Warn("engine fault", zap.String("run_id", ec.RunID), zap.Int("turn", ec.Turn), zap.Error(err))
		return failure(ErrorKindRuntime, fmt.Sprintf("execution backend failed: %v", err)), nil
	}
	if res.OK() {
		g.log.Debug("execution produced transaction",
			zap.String("run_id", ec.RunID), zap.Int("turn", ec.Turn),
			zap.Int("tx_bytes", len(res.SerializedTx)), zap.Duration("took", time.Since(started)))
	} else {
		g.log.Debug("execution failed",
			zap.String("run_id", ec.RunID), zap.Int("turn", ec.Turn),
			zap.String("kind", string(res.Err.Kind)), zap.Duration("took", time.Since(started)))
	}
	return res, nil
}
