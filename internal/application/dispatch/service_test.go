package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/deskrun/internal/application/dispatch"
	"github.com/doeshing/deskrun/internal/application/registry"
	"github.com/doeshing/deskrun/internal/domain"
	"github.com/doeshing/deskrun/internal/pkg/logger"
	"github.com/doeshing/deskrun/internal/ports"
)

// mockRunner stands in for the OS process layer.
type mockRunner struct {
	mu       sync.Mutex
	specs    []ports.RunSpec
	runs     atomic.Int32
	block    chan struct{} // when set, Run parks until closed or ctx cancel
	outcome  func(spec ports.RunSpec) domain.RunOutcome
	spawnErr bool
}

func (m *mockRunner) Run(ctx context.Context, spec ports.RunSpec, started func(time.Time)) domain.RunOutcome {
	m.runs.Add(1)
	m.mu.Lock()
	m.specs = append(m.specs, spec)
	block := m.block
	m.mu.Unlock()

	if m.spawnErr {
		return domain.RunOutcome{
			State:   domain.StateFailed,
			Failure: domain.FailureSpawn,
			Stderr:  []byte("spawn refused\n"),
		}
	}
	started(time.Now())
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.RunOutcome{State: domain.StateCancelled, Stdout: []byte("partial")}
		}
	}
	if m.outcome != nil {
		return m.outcome(spec)
	}
	code := 0
	return domain.RunOutcome{State: domain.StateCompleted, ExitCode: &code, Stdout: []byte("ok\n")}
}

func (m *mockRunner) seenSpecs() []ports.RunSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.RunSpec, len(m.specs))
	copy(out, m.specs)
	return out
}

type mockStore struct {
	mu      sync.Mutex
	records []domain.ExecutionRecord
}

func (m *mockStore) Save(rec domain.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *mockStore) Records(int, string) ([]domain.ExecutionRecord, error) { return nil, nil }
func (m *mockStore) Clear() error                                          { return nil }
func (m *mockStore) ExportJSON(string) error                               { return nil }
func (m *mockStore) Path() string                                          { return "" }

func newService(runner ports.ProcessRunner, store ports.ExecutionStore) *dispatch.Service {
	return &dispatch.Service{
		Aliases:  domain.NewAliasTable(),
		History:  domain.NewHistoryLog(),
		Registry: registry.New(0),
		Runner:   runner,
		Store:    store,
		Logger:   logger.NewStd(false),
	}
}

// TestSubmit_EmptyCommand tests fast-fail on empty submissions
func TestSubmit_EmptyCommand(t *testing.T) {
	runner := &mockRunner{}
	s := newService(runner, nil)

	for _, raw := range []string{"", "   ", "\t\n"} {
		if _, err := s.Submit(context.Background(), raw, false); !errors.Is(err, domain.ErrInvalidCommand) {
			t.Errorf("Submit(%q): got %v, want ErrInvalidCommand", raw, err)
		}
	}

	if s.History.Len() != 0 {
		t.Error("empty submission appended a history entry")
	}
	if len(s.Executions()) != 0 {
		t.Error("empty submission created an execution")
	}
	if runner.runs.Load() != 0 {
		t.Error("empty submission reached the runner")
	}
}

// TestSubmit_DeliversCompletion tests the full submit/complete round trip
func TestSubmit_DeliversCompletion(t *testing.T) {
	store := &mockStore{}
	s := newService(&mockRunner{}, store)

	handle, err := s.Submit(context.Background(), "echo hi", false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	exec, err := handle.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if exec.State != domain.StateCompleted {
		t.Errorf("expected completed, got %s", exec.State)
	}
	if string(exec.Stdout) != "ok\n" {
		t.Errorf("stdout = %q", exec.Stdout)
	}
	if exec.EndedAt == nil {
		t.Error("EndedAt missing on terminal snapshot")
	}

	s.WaitIdle()
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.records) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(store.records))
	}
	if store.records[0].ID != exec.ID {
		t.Errorf("persisted the wrong execution: %s", store.records[0].ID)
	}
}

// TestSubmit_AliasResolution tests exact-match alias expansion on submit
func TestSubmit_AliasResolution(t *testing.T) {
	runner := &mockRunner{}
	s := newService(runner, nil)
	s.Aliases.Set("ll", "ls -la")

	handle, err := s.Submit(context.Background(), "ll", false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	specs := runner.seenSpecs()
	if len(specs) != 1 || specs[0].Command != "ls -la" {
		t.Errorf("runner saw %v, want resolved command", specs)
	}

	entries := s.HistoryEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
	if entries[0].Raw != "ll" || entries[0].Resolved != "ls -la" {
		t.Errorf("history entry = %+v", entries[0])
	}
}

// TestSubmit_HistoryOrderAndOutcomeIndependence tests that history follows
// submission order and records failures and cancellations alike
func TestSubmit_HistoryOrderAndOutcomeIndependence(t *testing.T) {
	block := make(chan struct{})
	runner := &mockRunner{block: block}
	s := newService(runner, nil)

	slow, err := s.Submit(context.Background(), "slow", false)
	if err != nil {
		t.Fatalf("Submit slow: %v", err)
	}
	// make sure the slow run is parked before unblocking later submissions
	for runner.runs.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	runner.mu.Lock()
	runner.block = nil
	runner.mu.Unlock()
	fast, err := s.Submit(context.Background(), "fast", false)
	if err != nil {
		t.Fatalf("Submit fast: %v", err)
	}
	if _, err := fast.Wait(context.Background()); err != nil {
		t.Fatalf("Wait fast: %v", err)
	}

	// the slow one is cancelled after the fast one already completed
	if !s.Cancel(slow.ID) {
		t.Error("expected to cancel the slow execution")
	}
	slowExec, err := slow.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait slow: %v", err)
	}
	if slowExec.State != domain.StateCancelled {
		t.Errorf("expected cancelled, got %s", slowExec.State)
	}

	var raws []string
	for _, entry := range s.HistoryEntries() {
		raws = append(raws, entry.Raw)
	}
	if diff := cmp.Diff([]string{"slow", "fast"}, raws); diff != "" {
		t.Errorf("history order (-want +got):\n%s", diff)
	}
}

// TestCancel_UnknownAndTerminal tests that cancel is a reported no-op there
func TestCancel_UnknownAndTerminal(t *testing.T) {
	s := newService(&mockRunner{}, nil)

	if s.Cancel("no-such-id") {
		t.Error("cancelling an unknown id must report false")
	}

	handle, err := s.Submit(context.Background(), "echo hi", false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	exec, err := handle.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if s.Cancel(handle.ID) {
		t.Error("cancelling a terminal execution must report false")
	}
	after, _ := s.Get(handle.ID)
	if after.State != exec.State {
		t.Errorf("terminal state changed: %s -> %s", exec.State, after.State)
	}
}

// TestCancel_PendingNeverSpawns tests that a queued execution cancelled
// before its turn never reaches the runner
func TestCancel_PendingNeverSpawns(t *testing.T) {
	block := make(chan struct{})
	runner := &mockRunner{block: block}
	s := newService(runner, nil)
	s.LimitConcurrency(1)

	first, err := s.Submit(context.Background(), "hold the slot", false)
	if err != nil {
		t.Fatalf("Submit first: %v", err)
	}
	// wait until the first run is parked inside the runner
	for runner.runs.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	second, err := s.Submit(context.Background(), "never starts", false)
	if err != nil {
		t.Fatalf("Submit second: %v", err)
	}
	if !s.Cancel(second.ID) {
		t.Fatal("expected to cancel the queued execution")
	}

	exec, err := second.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait second: %v", err)
	}
	if exec.State != domain.StateCancelled {
		t.Errorf("expected cancelled, got %s", exec.State)
	}
	if exec.StartedAt != nil {
		t.Error("a never-started execution must not have StartedAt")
	}

	close(block)
	if _, err := first.Wait(context.Background()); err != nil {
		t.Fatalf("Wait first: %v", err)
	}
	if got := runner.runs.Load(); got != 1 {
		t.Errorf("runner saw %d runs, want 1", got)
	}
}

// TestSubmit_SpawnFailure tests Pending -> Failed with no Running interval
func TestSubmit_SpawnFailure(t *testing.T) {
	s := newService(&mockRunner{spawnErr: true}, nil)

	handle, err := s.Submit(context.Background(), "doomed", false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	exec, err := handle.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if exec.State != domain.StateFailed {
		t.Errorf("expected failed, got %s", exec.State)
	}
	if exec.Failure != domain.FailureSpawn {
		t.Errorf("expected spawn failure, got %q", exec.Failure)
	}
	if exec.StartedAt != nil {
		t.Error("spawn failure must not record a Running interval")
	}
	if len(exec.Stderr) == 0 {
		t.Error("expected diagnostic stderr")
	}

	// submission is still recorded in history
	if s.History.Len() != 1 {
		t.Errorf("expected 1 history entry, got %d", s.History.Len())
	}
}

// TestSubmit_ElevatedFlag tests that elevation is carried through and
// distinguishes otherwise identical submissions
func TestSubmit_ElevatedFlag(t *testing.T) {
	runner := &mockRunner{}
	s := newService(runner, nil)

	plain, err := s.Submit(context.Background(), "id", false)
	if err != nil {
		t.Fatalf("Submit plain: %v", err)
	}
	elevated, err := s.Submit(context.Background(), "id", true)
	if err != nil {
		t.Fatalf("Submit elevated: %v", err)
	}

	plainExec, _ := plain.Wait(context.Background())
	elevatedExec, _ := elevated.Wait(context.Background())

	if plainExec.Elevated {
		t.Error("plain submission marked elevated")
	}
	if !elevatedExec.Elevated {
		t.Error("elevated submission lost its flag")
	}

	sawElevated := false
	for _, spec := range runner.seenSpecs() {
		if spec.Elevated {
			sawElevated = true
		}
	}
	if !sawElevated {
		t.Error("runner never saw the elevated spec")
	}
}

// TestHandle_WaitContext tests that Wait honors its context
func TestHandle_WaitContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	s := newService(&mockRunner{block: block}, nil)

	handle, err := s.Submit(context.Background(), "parked", false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := handle.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait: got %v, want DeadlineExceeded", err)
	}

	s.Cancel(handle.ID)
}
