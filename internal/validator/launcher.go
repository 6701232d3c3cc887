package validator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"prospect/internal/procgroup"
)

// readyToken is the line the replica prints once its RPC surface is up.
const readyToken = "Connection established."

// Launcher manages a local surfpool process: start, wait for readiness,
// terminate the whole process group on stop.
type Launcher struct {
	bin      string
	upstream string
	dir      string
	log      *zap.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// NewLauncher prepares a launcher for the given binary. upstream, when
// set, is the RPC endpoint the replica forks its state from.
func NewLauncher(bin, upstream, dir string, log *zap.Logger) *Launcher {
	if strings.TrimSpace(bin) == "" {
		bin = "surfpool"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Launcher{bin: bin, upstream: upstream, dir: dir, log: log}
}

// Start launches the replica and blocks until it reports readiness, the
// process exits, or ctx ends.
func (l *Launcher) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cmd != nil {
		return errors.New("launcher: already started")
	}

	args := []string{"start", "--no-tui"}
	if strings.TrimSpace(l.upstream) != "" {
		args = append(args, "-u", l.upstream)
	}
	cmd := exec.Command(l.bin, args...)
	cmd.Dir = l.dir
	procgroup.Configure(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("launcher: stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launcher: start %s: %w", l.bin, err)
	}
	l.cmd = cmd
	l.done = make(chan struct{})

	ready := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		signaled := false
		for scanner.Scan() {
			line := scanner.Text()
			l.log.Debug("surfpool", zap.String("line", line))
			if !signaled && strings.Contains(line, readyToken) {
				signaled = true
				close(ready)
			}
		}
	}()
	go func() {
		_ = cmd.Wait()
		close(l.done)
	}()

	select {
	case <-ready:
		l.log.Info("validator ready", zap.String("bin", l.bin))
		return nil
	case <-l.done:
		return fmt.Errorf("launcher: %s exited before becoming ready", l.bin)
	case <-ctx.Done():
		procgroup.Kill(cmd)
		return ctx.Err()
	}
}

// Stop terminates the replica: SIGTERM to the process group, then SIGKILL
// after a grace period.
func (l *Launcher) Stop() error {
	l.mu.Lock()
	cmd, done := l.cmd, l.done
	l.cmd = nil
	l.mu.Unlock()
	if cmd == nil {
		return nil
	}

	procgroup.Interrupt(cmd)
	select {
	case <-done:
		return nil
	case <-time.After(10 * time.Second):
	}
	procgroup.Kill(cmd)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
	return nil
}
