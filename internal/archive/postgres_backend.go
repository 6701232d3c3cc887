package archive

import (
	"database/sql"
	"encoding/json"
	"strings"
)

func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS run_records (
  run_id TEXT PRIMARY KEY,
  model TEXT NOT NULL DEFAULT '',
  environment TEXT NOT NULL DEFAULT '',
  started_at TIMESTAMP WITH TIME ZONE,
  finished_at TIMESTAMP WITH TIME ZONE,
  termination TEXT NOT NULL DEFAULT '',
  total_reward INTEGER NOT NULL DEFAULT 0,
  turns INTEGER NOT NULL DEFAULT 0,
  discoveries JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_run_records_model ON run_records (model);
CREATE INDEX IF NOT EXISTS idx_run_records_finished_at ON run_records (finished_at);
`)
	})
	return s.schemaErr
}

func scanRecordDB(row rowScanner) (RunRecord, bool) {
	var rec RunRecord
	var discoveries []byte
	err := row.Scan(
		&rec.RunID,
		&rec.Model,
		&rec.Environment,
		&rec.StartedAt,
		&rec.FinishedAt,
		&rec.Termination,
		&rec.TotalReward,
		&rec.Turns,
		&discoveries,
	)
	if err != nil {
		return RunRecord{}, false
	}
	if len(discoveries) > 0 {
		_ = json.Unmarshal(discoveries, &rec.Discoveries)
	}
	return normalizeRecord(rec), true
}

func (s *Store) getDB(runID string) (RunRecord, bool) {
	if err := s.ensureSchema(); err != nil {
		return RunRecord{}, false
	}
	id := strings.TrimSpace(runID)
	if id == "" {
		return RunRecord{}, false
	}
	row := s.db.QueryRow(`SELECT run_id, model, environment, started_at, finished_at, termination, total_reward, turns, discoveries
FROM run_records WHERE run_id = $1`, id)
	return scanRecordDB(row)
}

func (s *Store) putDB(rec RunRecord) {
	if err := s.ensureSchema(); err != nil {
		return
	}
	n := normalizeRecord(rec)
	if n.RunID == "" {
		return
	}
	discoveries, err := json.Marshal(n.Discoveries)
	if err != nil {
		return
	}
	_, _ = s.db.Exec(`
INSERT INTO run_records (
  run_id, model, environment, started_at, finished_at, termination, total_reward, turns, discoveries
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (run_id)
DO UPDATE SET model=EXCLUDED.model,
  environment=EXCLUDED.environment,
  started_at=EXCLUDED.started_at,
  finished_at=EXCLUDED.finished_at,
  termination=EXCLUDED.termination,
  total_reward=EXCLUDED.total_reward,
  turns=EXCLUDED.turns,
  discoveries=EXCLUDED.discoveries`,
		n.RunID, n.Model, n.Environment, n.StartedAt, n.FinishedAt, n.Termination, n.TotalReward, n.Turns, discoveries)
}

func (s *Store) listDB(model string) []RunRecord {
	if err := s.ensureSchema(); err != nil {
		return nil
	}
	m := strings.TrimSpace(model)
	var (
		rows *sql.Rows
		err  error
	)
	if m == "" {
		rows, err = s.db.Query(`SELECT run_id, model, environment, started_at, finished_at, termination, total_reward, turns, discoveries
FROM run_records ORDER BY finished_at DESC`)
	} else {
		rows, err = s.db.Query(`SELECT run_id, model, environment, started_at, finished_at, termination, total_reward, turns, discoveries
FROM run_records WHERE model = $1 ORDER BY finished_at DESC`, m)
	}
	if err != nil {
		return nil
	}
	defer rows.Close()
	out := make([]RunRecord, 0, 32)
	for rows.Next() {
		rec, ok := scanRecordDB(rows)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}
