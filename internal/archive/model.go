// Package archive keeps finished-run records for later comparison. The
// store is file-backed by default and switches to Postgres when a DSN is
// configured; artifacts can additionally be mirrored to S3-compatible
// object storage.
package archive

import (
	"strings"
	"time"
)

// RunRecord is the durable summary of one finished run.
type RunRecord struct {
	RunID       string         `json:"run_id"`
	Model       string         `json:"model"`
	Environment string         `json:"environment"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Termination string         `json:"termination"`
	TotalReward int            `json:"total_reward"`
	Turns       int            `json:"turns"`
	Discoveries map[string]int `json:"discoveries"`
}

func normalizeRecord(rec RunRecord) RunRecord {
	rec.RunID = strings.TrimSpace(rec.RunID)
	rec.Model = strings.TrimSpace(rec.Model)
	rec.Environment = strings.TrimSpace(rec.Environment)
	rec.Termination = strings.TrimSpace(rec.Termination)
	if rec.Discoveries == nil {
		rec.Discoveries = map[string]int{}
	}
	return rec
}

type rowScanner interface {
	Scan(dest ...any) error
}
