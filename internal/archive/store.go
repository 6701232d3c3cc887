package archive

import (
	"database/sql"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store persists run records. With a nil db it keeps an in-memory map
// flushed to a JSON file; with a db it goes straight to Postgres.
type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	byID     map[string]RunRecord

	schemaOnce sync.Once
	schemaErr  error

	recordCache *lru.Cache[string, RunRecord]
}

func New(path string) *Store {
	return &Store{
		path: path,
		byID: make(map[string]RunRecord),
	}
}

func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, RunRecord](1024)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{
		db:          db,
		recordCache: cache,
	}, nil
}

// NewFromEnv picks Postgres when PROSPECT_ARCHIVE_PG_DSN is set and
// reachable, the JSON file otherwise.
func NewFromEnv(path string) *Store {
	dsn := strings.TrimSpace(os.Getenv("PROSPECT_ARCHIVE_PG_DSN"))
	if dsn == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New(path)
	}
	return s
}

func (s *Store) EnsureLoaded() {
	if s == nil {
		return
	}
	if s.db != nil {
		_ = s.ensureSchema()
		return
	}
	s.ensureLoadedFile()
}

func (s *Store) Save() {
	if s == nil || s.db != nil {
		return
	}
	s.saveFile()
}

func (s *Store) Get(runID string) (RunRecord, bool) {
	if s == nil {
		return RunRecord{}, false
	}
	if s.db != nil {
		if s.recordCache != nil {
			if cached, ok := s.recordCache.Get(strings.TrimSpace(runID)); ok {
				return cached, true
			}
		}
		rec, ok := s.getDB(runID)
		if ok && s.recordCache != nil {
			s.recordCache.Add(rec.RunID, rec)
		}
		return rec, ok
	}
	return s.getFile(runID)
}

func (s *Store) Put(rec RunRecord) {
	if s == nil {
		return
	}
	if s.db != nil {
		s.putDB(rec)
		if s.recordCache != nil {
			s.recordCache.Remove(strings.TrimSpace(rec.RunID))
		}
		return
	}
	s.putFile(rec)
}

// List returns records for one model, or every record when model is
// empty. Ordered by finish time, newest first.
func (s *Store) List(model string) []RunRecord {
	if s == nil {
		return nil
	}
	if s.db != nil {
		return s.listDB(model)
	}
	return s.listFile(model)
}
