package execlog

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/deskrun/internal/domain"
	"github.com/doeshing/deskrun/internal/pkg/filesystem"
	"github.com/doeshing/deskrun/internal/ports"
)

// SQLiteStore persists execution records in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteStore creates (or opens) the database; path defaults to
// ~/.deskrun/log/executions.db. When the database cannot be opened the
// store degrades to the jsonl FileStore at a sibling path.
func NewSQLiteStore(path string) *SQLiteStore {
	if path == "" {
		path = filepath.Join(filesystem.UserHomeDir(), ".deskrun", "log", "executions.db")
	}
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &SQLiteStore{path: path}
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		return &SQLiteStore{path: path}
	}
	return store
}

func (s *SQLiteStore) init() error {
	if s.db == nil {
		return os.ErrInvalid
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		raw TEXT,
		resolved TEXT,
		submitted_at TEXT,
		started_at TEXT,
		ended_at TEXT,
		state TEXT,
		failure TEXT,
		exit_code INTEGER,
		elevated INTEGER,
		stdout TEXT,
		stderr TEXT
	);`)
	return err
}

func (s *SQLiteStore) fallback() *FileStore {
	return NewFileStore(strings.TrimSuffix(s.path, ".db") + ".jsonl")
}

// Save inserts a record; re-saving the same execution id replaces it.
func (s *SQLiteStore) Save(record domain.ExecutionRecord) error {
	if s.db == nil {
		return s.fallback().Save(record)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var exitCode interface{}
	if record.ExitCode != nil {
		exitCode = *record.ExitCode
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO executions
		(id, raw, resolved, submitted_at, started_at, ended_at, state, failure, exit_code, elevated, stdout, stderr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Raw,
		record.Resolved,
		record.SubmittedAt.Format(time.RFC3339),
		formatTime(record.StartedAt),
		formatTime(record.EndedAt),
		string(record.State),
		string(record.Failure),
		exitCode,
		boolToInt(record.Elevated),
		record.Stdout,
		record.Stderr,
	)
	return err
}

// Records returns entries newest-first (limit/search optional).
func (s *SQLiteStore) Records(limit int, search string) ([]domain.ExecutionRecord, error) {
	if s.db == nil {
		return s.fallback().Records(limit, search)
	}
	builder := strings.Builder{}
	builder.WriteString("SELECT id, raw, resolved, submitted_at, started_at, ended_at, state, failure, exit_code, elevated, stdout, stderr FROM executions")
	var args []interface{}
	if search != "" {
		builder.WriteString(" WHERE raw LIKE ? OR resolved LIKE ?")
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	builder.WriteString(" ORDER BY datetime(submitted_at) DESC")
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	rows, err := s.db.Query(builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []domain.ExecutionRecord
	for rows.Next() {
		var rec domain.ExecutionRecord
		var submitted string
		var started, ended sql.NullString
		var state, failure string
		var exitCode sql.NullInt64
		var elevated int
		if err := rows.Scan(&rec.ID, &rec.Raw, &rec.Resolved, &submitted, &started, &ended,
			&state, &failure, &exitCode, &elevated, &rec.Stdout, &rec.Stderr); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, submitted); err == nil {
			rec.SubmittedAt = t
		}
		rec.StartedAt = parseTime(started)
		rec.EndedAt = parseTime(ended)
		rec.State = domain.ExecutionState(state)
		rec.Failure = domain.FailureKind(failure)
		if exitCode.Valid {
			code := int(exitCode.Int64)
			rec.ExitCode = &code
		}
		rec.Elevated = elevated == 1
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear deletes all records.
func (s *SQLiteStore) Clear() error {
	if s.db == nil {
		return s.fallback().Clear()
	}
	_, err := s.db.Exec("DELETE FROM executions")
	return err
}

// ExportJSON writes the executions table to a jsonl file.
func (s *SQLiteStore) ExportJSON(dest string) error {
	records, err := s.Records(0, "")
	if err != nil {
		return err
	}
	return writeJSONL(dest, records)
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func formatTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.ExecutionStore = (*SQLiteStore)(nil)
