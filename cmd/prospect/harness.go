package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"prospect/internal/archive"
	"prospect/internal/config"
	"prospect/internal/eventing"
	"prospect/internal/explorer"
	"prospect/internal/generator"
	"prospect/internal/metrics"
	"prospect/internal/sandbox"
	"prospect/internal/validator"
	"prospect/internal/watch"
)

// harness bundles the pieces shared by every run of one command
// invocation: the sandbox workspace, the event fanout, the archive and
// optionally the replica process and the watch server.
type harness struct {
	settings *config.Settings
	env      *config.Environment
	gateway  *sandbox.Gateway
	bus      *eventing.Bus
	hub      *watch.Hub
	registry *prometheus.Registry
	watchSrv *watch.Server
	launcher *validator.Launcher
	store    *archive.Store
	s3       *archive.S3Store
}

type harnessOptions struct {
	withWatch         bool
	externalValidator bool
	upstream          string
}

func newHarness(ctx context.Context, env *config.Environment, opts harnessOptions) (*harness, error) {
	h := &harness{
		settings: settings,
		env:      env,
		bus:      eventing.NewBus(),
		hub:      watch.NewHub(),
		registry: prometheus.NewRegistry(),
		store:    archive.NewFromEnv(settings.ArchivePath),
	}
	h.store.EnsureLoaded()

	if err := metrics.NewCollectors(h.registry).Attach(h.bus); err != nil {
		return nil, err
	}
	if err := h.hub.Attach(h.bus); err != nil {
		return nil, err
	}
	s3, err := archive.NewS3FromEnv()
	if err != nil {
		logger.Warn("s3 archive disabled", zap.Error(err))
	} else {
		h.s3 = s3
	}

	var packageJSON []byte
	if env.PackageJSON != "" {
		packageJSON = []byte(env.PackageJSON)
	}
	engine, err := sandbox.NewProcessEngine(settings.WorkspaceDir, settings.BunBin, packageJSON, logger.Named("sandbox"))
	if err != nil {
		return nil, err
	}
	if err := engine.EnsureWorkspace(ctx); err != nil {
		return nil, fmt.Errorf("prepare runner workspace: %w", err)
	}
	h.gateway = sandbox.NewGateway(engine, env.Timeout(), logger.Named("gateway"))

	if opts.withWatch {
		h.watchSrv = watch.NewServer(settings.WatchAddr, h.hub, h.registry, logger.Named("watch"))
		go func() {
			if err := h.watchSrv.Start(); err != nil {
				logger.Error("watch server failed", zap.Error(err))
			}
		}()
	}

	if !opts.externalValidator {
		h.launcher = validator.NewLauncher(settings.SurfpoolBin, opts.upstream, "", logger.Named("surfpool"))
		if err := h.launcher.Start(ctx); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *harness) close() {
	if h.launcher != nil {
		_ = h.launcher.Stop()
	}
	if h.watchSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = h.watchSrv.Shutdown(ctx)
		cancel()
	}
	h.bus.Drain()
	h.store.Save()
}

// executeRun performs one complete run for a model. The returned report
// is non-nil whenever the run got far enough to start.
func (h *harness) executeRun(ctx context.Context, model string) (*explorer.RunReport, error) {
	runID := explorer.NewRunID(time.Now())

	gen, err := generator.New(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("init generator for %s: %w", model, err)
	}
	defer gen.Close()

	bridge, err := validator.Dial(ctx, validator.Config{
		URL:             h.settings.RPCURL,
		AirdropLamports: uint64(h.settings.AirdropSOL * 1e9),
	}, logger.Named("bridge"))
	if err != nil {
		return nil, err
	}
	defer bridge.Close()

	recorder, err := metrics.NewRecorder(filepath.Join(h.settings.OutputDir, "metrics"), runID, model)
	if err != nil {
		return nil, err
	}

	expl, err := explorer.New(explorer.Options{
		Gateway:     h.gateway,
		Bridge:      bridge,
		Generator:   gen,
		Environment: h.env,
		Recorder:    recorder,
		Bus:         h.bus,
		Budget:      h.settings.MaxTurns,
		Log:         logger.Named("explorer"),
	})
	if err != nil {
		return nil, err
	}

	report, runErr := expl.Run(ctx, runID)
	h.archiveRun(report, recorder)
	return report, runErr
}

// archiveRun records the finished run and mirrors its artifacts. Runs on
// its own context so archiving survives command cancellation.
func (h *harness) archiveRun(report *explorer.RunReport, recorder *metrics.Recorder) {
	if report == nil {
		return
	}
	h.store.Put(archive.RunRecord{
		RunID:       report.RunID,
		Model:       report.Model,
		Environment: report.Environment,
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
		Termination: string(report.Termination),
		TotalReward: report.CumulativeReward,
		Turns:       report.Turns,
		Discoveries: report.Discoveries,
	})
	if h.s3 == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	files := make(map[string][]byte, 2)
	if b, err := os.ReadFile(recorder.MetricsPath()); err == nil {
		files["metrics.json"] = b
	}
	if b, err := os.ReadFile(recorder.ConversationPath()); err == nil {
		files["conversation.json"] = b
	}
	if err := h.s3.ArchiveRun(ctx, report.RunID, files); err != nil {
		logger.Warn("s3 archive failed", zap.String("run_id", report.RunID), zap.Error(err))
	}
}
