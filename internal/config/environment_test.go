package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvironmentFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEnvironment(t *testing.T) {
	path := writeEnvironmentFile(t, "memo-v1.json", `{
		"name": "memo",
		"system_prompt_template": "prompts/memo.txt",
		"timeout_ms": 30000,
		"reward_config": {"allowed_programs": ["MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"]},
		"package_json": "{\"dependencies\":{}}"
	}`)

	env, err := LoadEnvironment(path)
	require.NoError(t, err)
	assert.Equal(t, "memo", env.Name)
	assert.Equal(t, 30000, env.TimeoutMs)
	assert.Equal(t, 30*time.Second, env.Timeout())
	assert.Equal(t, []string{"MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"}, env.Reward.AllowedPrograms)
	assert.Equal(t, "prompts/memo.txt", env.SystemPromptTemplate)
}

func TestLoadEnvironmentNameDefaultsFromFilename(t *testing.T) {
	path := writeEnvironmentFile(t, "memo-only.json", `{"reward_config": {}}`)

	env, err := LoadEnvironment(path)
	require.NoError(t, err)
	assert.Equal(t, "memo-only", env.Name)
	assert.Equal(t, defaultExecTimeoutMs, env.TimeoutMs)
}

func TestLoadEnvironmentRejectsBadJSON(t *testing.T) {
	path := writeEnvironmentFile(t, "broken.json", `{"name":`)

	_, err := LoadEnvironment(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse environment")
}

func TestLoadEnvironmentMissingFile(t *testing.T) {
	_, err := LoadEnvironment(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestEnvironmentTimeoutNilSafe(t *testing.T) {
	var env *Environment
	assert.Equal(t, 60*time.Second, env.Timeout())
	assert.Equal(t, 60*time.Second, DefaultEnvironment().Timeout())
}
