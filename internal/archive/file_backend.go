package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"prospect/internal/util/jsonutil"
)

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var rows []RunRecord
		if err := json.Unmarshal(b, &rows); err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, row := range rows {
			id := strings.TrimSpace(row.RunID)
			if id == "" {
				continue
			}
			s.byID[id] = normalizeRecord(row)
		}
	})
}

func (s *Store) saveFile() {
	s.ensureLoadedFile()
	s.mu.RLock()
	rows := make([]RunRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		rows = append(rows, normalizeRecord(rec))
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].RunID < rows[j].RunID })
	b, err := jsonutil.MarshalNoEscapeIndent(rows, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(s.path), 0o755)
	_ = os.WriteFile(s.path, b, 0o644)
}

func (s *Store) getFile(runID string) (RunRecord, bool) {
	s.ensureLoadedFile()
	id := strings.TrimSpace(runID)
	if id == "" {
		return RunRecord{}, false
	}
	s.mu.RLock()
	rec, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return RunRecord{}, false
	}
	return normalizeRecord(rec), true
}

func (s *Store) putFile(rec RunRecord) {
	s.ensureLoadedFile()
	normalized := normalizeRecord(rec)
	if normalized.RunID == "" {
		return
	}
	s.mu.Lock()
	s.byID[normalized.RunID] = normalized
	s.mu.Unlock()
	s.saveFile()
}

func (s *Store) listFile(model string) []RunRecord {
	s.ensureLoadedFile()
	m := strings.TrimSpace(model)
	s.mu.RLock()
	out := make([]RunRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		if m != "" && strings.TrimSpace(rec.Model) != m {
			continue
		}
		out = append(out, normalizeRecord(rec))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.After(out[j].FinishedAt) })
	return out
}
