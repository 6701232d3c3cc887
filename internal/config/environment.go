package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultExecTimeoutMs = 60_000

// Environment describes what one run is measured against: the prompt
// the model receives, the execution timeout and the reward allow-list.
// SystemPromptTemplate is a file path; empty selects the built-in prompt.
type Environment struct {
	Name                 string       `json:"name"`
	SystemPromptTemplate string       `json:"system_prompt_template,omitempty"`
	TimeoutMs            int          `json:"timeout_ms,omitempty"`
	Reward               RewardConfig `json:"reward_config"`
	PackageJSON          string       `json:"package_json,omitempty"`
}

// RewardConfig narrows which programs may yield reward. An empty list
// means every program counts.
type RewardConfig struct {
	AllowedPrograms []string `json:"allowed_programs,omitempty"`
}

// LoadEnvironment reads an environment definition from a JSON file.
func LoadEnvironment(path string) (*Environment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	var env Environment
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("parse environment %s: %w", path, err)
	}
	if strings.TrimSpace(env.Name) == "" {
		env.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if env.TimeoutMs <= 0 {
		env.TimeoutMs = defaultExecTimeoutMs
	}
	return &env, nil
}

// DefaultEnvironment is used when no definition file is given: every
// program counts and the stock prompt applies.
func DefaultEnvironment() *Environment {
	return &Environment{
		Name:      "default",
		TimeoutMs: defaultExecTimeoutMs,
	}
}

func (e *Environment) Timeout() time.Duration {
	if e == nil || e.TimeoutMs <= 0 {
		return defaultExecTimeoutMs * time.Millisecond
	}
	return time.Duration(e.TimeoutMs) * time.Millisecond
}
