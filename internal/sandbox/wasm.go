package sandbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"prospect/internal/safeio"
)

const (
	wasmEntry = "execute_skill"
	wasmAlloc = "alloc"
	wasmEmit  = "emit_transaction"
	// policyExitCode is the close code the emit host function uses to abort
	// a module that tries to produce a second transaction.
	policyExitCode = 64
)

const policyViolationMessage = "only one transaction may be produced per execution; split additional transactions across turns"

// WasmEngine executes precompiled WebAssembly code units fully in-process.
// The module runs against a fresh wazero runtime per call; the one
// capability it receives is an emit_transaction host function carrying the
// base64 transaction out.
type WasmEngine struct {
	artifacts *safeio.SafeFS
	log       *zap.Logger
}

func NewWasmEngine(artifactDir string, log *zap.Logger) (*WasmEngine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fsys, err := safeio.NewSafeFS(artifactDir)
	if err != nil {
		return nil, fmt.Errorf("artifact root: %w", err)
	}
	return &WasmEngine{artifacts: fsys, log: log}, nil
}

// emitState is the per-call guard. A fresh one exists for every execution;
// nothing is shared across calls or runs.
type emitState struct {
	calls   int
	payload []byte
}

func (e *WasmEngine) Execute(ctx context.Context, unit CodeUnit, timeout time.Duration, ec ExecContext) (*Result, error) {
	if _, err := writeArtifact(e.artifacts, ec, unit); err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rt := wazero.NewRuntimeWithConfig(execCtx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	defer rt.Close(context.Background())

	if _, err := wasi_snapshot_preview1.Instantiate(execCtx, rt); err != nil {
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}

	guard := &emitState{}
	_, err := rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(hostCtx context.Context, mod api.Module, ptr, length uint32) {
			guard.calls++
			if guard.calls > 1 {
				_ = mod.CloseWithExitCode(hostCtx, policyExitCode)
				return
			}
			if data, ok := mod.Memory().Read(ptr, length); ok {
				guard.payload = append([]byte(nil), data...)
			}
		}).
		Export(wasmEmit).
		Instantiate(execCtx)
	if err != nil {
		return nil, fmt.Errorf("instantiate host module: %w", err)
	}

	compiled, err := rt.CompileModule(execCtx, unit.Source)
	if err != nil {
		return &Result{Err: &ErrorRecord{
			Kind:        ErrorKindCompile,
			Message:     "module failed to compile",
			Diagnostics: []Diagnostic{{Message: err.Error()}},
		}}, nil
	}

	mod, err := rt.InstantiateModule(execCtx, compiled, wazero.NewModuleConfig().WithName("skill"))
	if err != nil {
		// Command-style modules do their work in the start function and
		// exit; code 0 with one emit is a completed execution.
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
			return finishEmit(guard), nil
		}
		if res := classifyWasmFault(execCtx, ctx, err); res != nil {
			return res, nil
		}
		return nil, ctx.Err()
	}
	defer mod.Close(context.Background())

	entry := mod.ExportedFunction(wasmEntry)
	if entry == nil {
		return failure(ErrorKindInterface, "module does not export execute_skill"), nil
	}

	ref := []byte(ec.Reference)
	ptr, werr := writeWasmMemory(execCtx, mod, ref)
	if werr != nil {
		return failure(ErrorKindInterface, werr.Error()), nil
	}

	if _, err := entry.Call(execCtx, uint64(ptr), uint64(len(ref))); err != nil {
		if res := classifyWasmFault(execCtx, ctx, err); res != nil {
			return res, nil
		}
		return nil, ctx.Err()
	}
	return finishEmit(guard), nil
}

// finishEmit maps the guard state after a completed execution to a result.
func finishEmit(guard *emitState) *Result {
	switch {
	case guard.calls == 0:
		return failure(ErrorKindInterface, "execute_skill returned without emitting a transaction")
	case guard.calls > 1:
		return failure(ErrorKindPolicy, policyViolationMessage)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(guard.payload)))
	if err != nil || len(raw) == 0 {
		return failure(ErrorKindInterface, "emitted artifact is not a base64-encoded transaction")
	}
	return &Result{SerializedTx: raw}
}

// classifyWasmFault maps an execution fault to a turn-scoped result, or
// nil when the caller's own context ended and cancellation should
// propagate instead.
func classifyWasmFault(execCtx, callerCtx context.Context, err error) *Result {
	if callerCtx.Err() != nil {
		return nil
	}
	if execCtx.Err() == context.DeadlineExceeded {
		return failure(ErrorKindTimeout, "execution exceeded its time budget and was terminated")
	}
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == policyExitCode {
			return failure(ErrorKindPolicy, policyViolationMessage)
		}
		return failure(ErrorKindRuntime, fmt.Sprintf("module exited with code %d", exitErr.ExitCode()))
	}
	return &Result{Err: &ErrorRecord{
		Kind:    ErrorKindRuntime,
		Message: "module trapped during execution",
		Details: err.Error(),
	}}
}

func writeWasmMemory(ctx context.Context, mod api.Module, data []byte) (uint32, error) {
	alloc := mod.ExportedFunction(wasmAlloc)
	if alloc == nil {
		return 0, errors.New("module does not export alloc")
	}
	results, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil || len(results) == 0 {
		return 0, errors.New("alloc call failed")
	}
	ptr := uint32(results[0])
	if len(data) > 0 && !mod.Memory().Write(ptr, data) {
		return 0, errors.New("write to module memory failed")
	}
	return ptr, nil
}
