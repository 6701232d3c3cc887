package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProspectEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PROSPECT_ENV", "PROSPECT_RPC_URL", "PROSPECT_SURFPOOL_BIN", "PROSPECT_BUN_BIN",
		"PROSPECT_MODEL", "PROSPECT_WORKSPACE_DIR", "PROSPECT_OUTPUT_DIR", "PROSPECT_ARCHIVE_PATH",
		"PROSPECT_WATCH_ADDR", "PROSPECT_LOG_FILE", "PROSPECT_MAX_TURNS",
		"PROSPECT_EXEC_TIMEOUT_MS", "PROSPECT_AIRDROP_SOL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearProspectEnv(t)

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "local", s.Env)
	assert.Equal(t, "http://127.0.0.1:8899", s.RPCURL)
	assert.Equal(t, "surfpool", s.SurfpoolBin)
	assert.Equal(t, "bun", s.BunBin)
	assert.Equal(t, "gemini-2.5-flash", s.Model)
	assert.Equal(t, "workspace", s.WorkspaceDir)
	assert.Equal(t, "output", s.OutputDir)
	assert.Equal(t, "output/archive.json", s.ArchivePath)
	assert.Equal(t, ":8090", s.WatchAddr)
	assert.Empty(t, s.LogFile)
	assert.Equal(t, 10, s.MaxTurns)
	assert.Equal(t, 60*time.Second, s.ExecTimeout)
	assert.Equal(t, 2.0, s.AirdropSOL)
}

func TestLoadReadsEnvironment(t *testing.T) {
	clearProspectEnv(t)
	t.Setenv("PROSPECT_ENV", "staging")
	t.Setenv("PROSPECT_RPC_URL", "http://10.0.0.5:8899")
	t.Setenv("PROSPECT_MODEL", "qwen/qwen3-coder")
	t.Setenv("PROSPECT_MAX_TURNS", "25")
	t.Setenv("PROSPECT_EXEC_TIMEOUT_MS", "1500")
	t.Setenv("PROSPECT_AIRDROP_SOL", "0.5")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "staging", s.Env)
	assert.Equal(t, "http://10.0.0.5:8899", s.RPCURL)
	assert.Equal(t, "qwen/qwen3-coder", s.Model)
	assert.Equal(t, 25, s.MaxTurns)
	assert.Equal(t, 1500*time.Millisecond, s.ExecTimeout)
	assert.Equal(t, 0.5, s.AirdropSOL)
}

func TestLoadRejectsNonPositiveNumbers(t *testing.T) {
	clearProspectEnv(t)
	t.Setenv("PROSPECT_MAX_TURNS", "0")
	t.Setenv("PROSPECT_EXEC_TIMEOUT_MS", "-5")
	t.Setenv("PROSPECT_AIRDROP_SOL", "not-a-number")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, s.MaxTurns)
	assert.Equal(t, 60*time.Second, s.ExecTimeout)
	assert.Equal(t, 2.0, s.AirdropSOL)
}
