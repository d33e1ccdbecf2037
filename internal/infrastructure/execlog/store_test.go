package execlog_test

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/doeshing/deskrun/internal/domain"
	"github.com/doeshing/deskrun/internal/infrastructure/execlog"
	"github.com/doeshing/deskrun/internal/ports"
)

func sampleRecord(id, raw string, at time.Time) domain.ExecutionRecord {
	code := 0
	ended := at.Add(time.Second)
	return domain.ExecutionRecord{
		ID:          id,
		Raw:         raw,
		Resolved:    raw,
		SubmittedAt: at,
		StartedAt:   &at,
		EndedAt:     &ended,
		State:       domain.StateCompleted,
		ExitCode:    &code,
		Stdout:      "out\n",
		Stderr:      "",
	}
}

func testStore(t *testing.T, store ports.ExecutionStore) {
	t.Helper()
	base := time.Now().Truncate(time.Millisecond)

	if err := store.Save(sampleRecord("a", "echo first", base)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(sampleRecord("b", "echo second", base.Add(time.Minute))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(sampleRecord("c", "ls -la", base.Add(2*time.Minute))); err != nil {
		t.Fatalf("Save: %v", err)
	}

	records, err := store.Records(0, "")
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	// newest first
	if records[0].ID != "c" || records[2].ID != "a" {
		t.Errorf("unexpected order: %s, %s, %s", records[0].ID, records[1].ID, records[2].ID)
	}
	if records[2].ExitCode == nil || *records[2].ExitCode != 0 {
		t.Errorf("exit code lost: %v", records[2].ExitCode)
	}
	if records[2].StartedAt == nil || records[2].EndedAt == nil {
		t.Error("timestamps lost")
	}
	if records[2].Stdout != "out\n" {
		t.Errorf("stdout lost: %q", records[2].Stdout)
	}

	// search and limit
	records, err = store.Records(0, "echo")
	if err != nil {
		t.Fatalf("Records(search): %v", err)
	}
	if len(records) != 2 {
		t.Errorf("search: expected 2 records, got %d", len(records))
	}
	records, err = store.Records(1, "")
	if err != nil {
		t.Fatalf("Records(limit): %v", err)
	}
	if len(records) != 1 || records[0].ID != "c" {
		t.Errorf("limit: got %v", records)
	}

	// export
	dest := filepath.Join(t.TempDir(), "export.jsonl")
	if err := store.ExportJSON(dest); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	file, err := os.Open(dest)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer file.Close()
	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
	}
	if lines != 3 {
		t.Errorf("export: expected 3 lines, got %d", lines)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	records, err = store.Records(0, "")
	if err != nil {
		t.Fatalf("Records after clear: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty store after clear, got %d", len(records))
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "executions.jsonl")
	testStore(t, execlog.NewFileStore(path))
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "executions.db")
	testStore(t, execlog.NewSQLiteStore(path))
}

// TestSQLiteStore_CancelledRecord tests null exit codes round-tripping
func TestSQLiteStore_CancelledRecord(t *testing.T) {
	store := execlog.NewSQLiteStore(filepath.Join(t.TempDir(), "executions.db"))

	at := time.Now()
	rec := domain.ExecutionRecord{
		ID:          "x",
		Raw:         "sleep 5",
		Resolved:    "sleep 5",
		SubmittedAt: at,
		StartedAt:   &at,
		State:       domain.StateCancelled,
		Stdout:      "partial",
	}
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	records, err := store.Records(0, "")
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.ExitCode != nil {
		t.Errorf("cancelled record must have no exit code, got %d", *got.ExitCode)
	}
	if got.EndedAt != nil {
		t.Errorf("unset ended_at must stay nil, got %v", got.EndedAt)
	}
	if got.State != domain.StateCancelled {
		t.Errorf("state = %s", got.State)
	}
	if got.Stdout != "partial" {
		t.Errorf("partial output lost: %q", got.Stdout)
	}
}
