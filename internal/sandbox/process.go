package sandbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"prospect/internal/procgroup"
	"prospect/internal/safeio"
)

const (
	runnerScript = "runskill.ts"
	// startupGrace covers interpreter startup on top of the code unit's own
	// budget; the runner enforces the inner timeout itself.
	startupGrace = 10 * time.Second
)

// ProcessEngine executes TypeScript code units in a Bun subprocess. The
// runner script and its package.json are embedded and materialized into a
// workspace directory; each execution is one short-lived process in its
// own process group.
type ProcessEngine struct {
	bun         string
	workspace   string
	runnerPath  string
	artifacts   *safeio.SafeFS
	packageJSON []byte
	log         *zap.Logger
}

// NewProcessEngine prepares an engine rooted at workspace. packageJSON
// overrides the embedded runner dependencies when non-nil.
func NewProcessEngine(workspace, bunBin string, packageJSON []byte, log *zap.Logger) (*ProcessEngine, error) {
	if strings.TrimSpace(workspace) == "" {
		return nil, fmt.Errorf("workspace directory is required")
	}
	if strings.TrimSpace(bunBin) == "" {
		bunBin = "bun"
	}
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	artifacts, err := safeio.NewSafeFS(filepath.Join(abs, "runs"))
	if err != nil {
		return nil, fmt.Errorf("artifact root: %w", err)
	}
	return &ProcessEngine{
		bun:         bunBin,
		workspace:   abs,
		runnerPath:  filepath.Join(abs, runnerScript),
		artifacts:   artifacts,
		packageJSON: packageJSON,
		log:         log,
	}, nil
}

// EnsureWorkspace materializes the embedded runner assets and installs
// their dependencies once. Call before the first Execute; concurrent runs
// share the installed workspace.
func (e *ProcessEngine) EnsureWorkspace(ctx context.Context) error {
	if err := os.WriteFile(e.runnerPath, runnerSource, 0o644); err != nil {
		return fmt.Errorf("write runner: %w", err)
	}
	pkg := e.packageJSON
	if len(pkg) == 0 {
		pkg = runnerPackageJSON
	}
	if err := os.WriteFile(filepath.Join(e.workspace, "package.json"), pkg, 0o644); err != nil {
		return fmt.Errorf("write package.json: %w", err)
	}
	if _, err := os.Stat(filepath.Join(e.workspace, "node_modules")); err == nil {
		return nil
	}
	e.log.Info("installing runner dependencies", zap.String("workspace", e.workspace))
	cmd := exec.CommandContext(ctx, e.bun, "install")
	cmd.Dir = e.workspace
	procgroup.Configure(cmd)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("bun install: %w: %s", err, tail(out, 2048))
	}
	return nil
}

func (e *ProcessEngine) Execute(ctx context.Context, unit CodeUnit, timeout time.Duration, ec ExecContext) (*Result, error) {
	artifact, err := writeArtifact(e.artifacts, ec, unit)
	if err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout+startupGrace)
	defer cancel()

	timeoutMs := strconv.FormatInt(timeout.Milliseconds(), 10)
	cmd := exec.CommandContext(execCtx, e.bun, e.runnerPath, artifact, timeoutMs, ec.Identity, ec.Reference)
	cmd.Dir = e.workspace
	procgroup.Configure(cmd)
	cmd.Cancel = func() error {
		procgroup.Kill(cmd)
		return nil
	}
	cmd.WaitDelay = 3 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if execCtx.Err() == context.DeadlineExceeded {
		return failure(ErrorKindTimeout,
			fmt.Sprintf("execution exceeded the %d ms budget and was terminated", timeout.Milliseconds())), nil
	}

	payload, ok := parseRunnerOutput(stdout.Bytes())
	if !ok {
		msg := "runner produced no parseable result"
		if runErr != nil {
			msg = fmt.Sprintf("runner failed: %v", runErr)
		}
		return &Result{Err: &ErrorRecord{
			Kind:    ErrorKindRuntime,
			Message: msg,
			Details: tail(stderr.Bytes(), 2048),
		}}, nil
	}

	if payload.SerializedTx != nil {
		raw, decErr := base64.StdEncoding.DecodeString(strings.TrimSpace(*payload.SerializedTx))
		if decErr != nil || len(raw) == 0 {
			return failure(ErrorKindInterface, "emitted artifact is not a base64-encoded transaction"), nil
		}
		return &Result{SerializedTx: raw}, nil
	}

	return &Result{Err: &ErrorRecord{
		Kind:        runnerKind(payload.Type),
		Message:     payload.Error,
		Details:     payload.Details,
		Diagnostics: payload.Errors,
	}}, nil
}

// runnerPayload is the single JSON line the runner prints on stdout.
type runnerPayload struct {
	SerializedTx *string      `json:"serialized_tx"`
	Error        string       `json:"error"`
	Details      string       `json:"details"`
	Type         string       `json:"type"`
	Errors       []Diagnostic `json:"errors"`
}

// parseRunnerOutput scans stdout from the last line backwards for the
// result object, tolerating stray prints from the code unit above it.
func parseRunnerOutput(out []byte) (runnerPayload, bool) {
	lines := strings.Split(string(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}
		var payload runnerPayload
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			continue
		}
		if payload.SerializedTx != nil || payload.Error != "" || payload.Type != "" {
			return payload, true
		}
	}
	return runnerPayload{}, false
}

func runnerKind(raw string) ErrorKind {
	switch ErrorKind(strings.TrimSpace(raw)) {
	case ErrorKindInterface, ErrorKindCompile, ErrorKindRuntime, ErrorKindPolicy, ErrorKindTimeout:
		return ErrorKind(strings.TrimSpace(raw))
	default:
		return ErrorKindRuntime
	}
}

func tail(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
