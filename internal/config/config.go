// Package config resolves process settings from the environment (with
// .env support) and loads environment definition files that describe
// what a run is scored against.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings are the process-level knobs. Flags may override individual
// fields after Load.
type Settings struct {
	Env          string
	RPCURL       string
	SurfpoolBin  string
	BunBin       string
	Model        string
	WorkspaceDir string
	OutputDir    string
	ArchivePath  string
	WatchAddr    string
	LogFile      string
	MaxTurns     int
	ExecTimeout  time.Duration
	AirdropSOL   float64
}

func Load() (*Settings, error) {
	_ = godotenv.Load()

	env := strings.TrimSpace(os.Getenv("PROSPECT_ENV"))
	if env == "" {
		env = "local"
	}

	outputDir := firstNonEmpty(strings.TrimSpace(os.Getenv("PROSPECT_OUTPUT_DIR")), "output")

	return &Settings{
		Env:          env,
		RPCURL:       firstNonEmpty(strings.TrimSpace(os.Getenv("PROSPECT_RPC_URL")), "http://127.0.0.1:8899"),
		SurfpoolBin:  firstNonEmpty(strings.TrimSpace(os.Getenv("PROSPECT_SURFPOOL_BIN")), "surfpool"),
		BunBin:       firstNonEmpty(strings.TrimSpace(os.Getenv("PROSPECT_BUN_BIN")), "bun"),
		Model:        firstNonEmpty(strings.TrimSpace(os.Getenv("PROSPECT_MODEL")), "gemini-2.5-flash"),
		WorkspaceDir: firstNonEmpty(strings.TrimSpace(os.Getenv("PROSPECT_WORKSPACE_DIR")), "workspace"),
		OutputDir:    outputDir,
		ArchivePath:  firstNonEmpty(strings.TrimSpace(os.Getenv("PROSPECT_ARCHIVE_PATH")), filepath.Join(outputDir, "archive.json")),
		WatchAddr:    firstNonEmpty(strings.TrimSpace(os.Getenv("PROSPECT_WATCH_ADDR")), ":8090"),
		LogFile:      strings.TrimSpace(os.Getenv("PROSPECT_LOG_FILE")),
		MaxTurns:     intFromEnv("PROSPECT_MAX_TURNS", 10),
		ExecTimeout:  time.Duration(intFromEnv("PROSPECT_EXEC_TIMEOUT_MS", 60000)) * time.Millisecond,
		AirdropSOL:   floatFromEnv("PROSPECT_AIRDROP_SOL", 2),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func intFromEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func floatFromEnv(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
