// Package registry tracks every execution by identity, from creation to
// explicit removal. It is the single owner of Execution values; all other
// components see snapshots only.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/deskrun/internal/domain"
)

type entry struct {
	exec            domain.Execution
	cancel          context.CancelFunc
	cancelRequested bool
}

// Registry is safe for concurrent use. A single mutex guards the map; every
// critical section is O(1) apart from amortized terminal eviction.
type Registry struct {
	mu             sync.Mutex
	entries        map[string]*entry
	terminalOrder  []string
	retainTerminal int
}

// New builds a registry. retainTerminal bounds how many finished executions
// are kept before the oldest are evicted; 0 keeps everything, matching the
// historical unbounded behavior.
func New(retainTerminal int) *Registry {
	return &Registry{
		entries:        make(map[string]*entry),
		retainTerminal: retainTerminal,
	}
}

// Create allocates an id and inserts a Pending execution. cancel is the
// routing target for cancellation requests and may be nil.
func (r *Registry) Create(req domain.CommandRequest, elevated bool, cancel context.CancelFunc) domain.Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &entry{
		exec: domain.Execution{
			ID:       uuid.NewString(),
			Request:  req,
			State:    domain.StatePending,
			Elevated: elevated,
		},
		cancel: cancel,
	}
	r.entries[e.exec.ID] = e
	return e.exec
}

// Get returns a snapshot of the execution with the given id.
func (r *Registry) Get(id string) (domain.Execution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.Execution{}, false
	}
	return e.exec, true
}

// List returns snapshots of all tracked executions, ordered by submission.
func (r *Registry) List() []domain.Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Execution, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.exec)
	}
	sortBySubmission(out)
	return out
}

// ListRunning returns snapshots of executions currently in the Running state.
func (r *Registry) ListRunning() []domain.Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Execution
	for _, e := range r.entries {
		if e.exec.State == domain.StateRunning {
			out = append(out, e.exec)
		}
	}
	sortBySubmission(out)
	return out
}

// MarkRunning transitions Pending to Running once the OS process spawned.
func (r *Registry) MarkRunning(id string, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.ErrExecutionNotFound
	}
	if !e.exec.State.CanAdvance(domain.StateRunning) {
		return domain.ErrStateConflict
	}
	at := startedAt
	e.exec.State = domain.StateRunning
	e.exec.StartedAt = &at
	return nil
}

// Complete applies a terminal outcome exactly once and returns the final
// snapshot. Two workers finishing at the same instant cannot both succeed:
// the second transition fails with ErrStateConflict.
func (r *Registry) Complete(id string, outcome domain.RunOutcome) (domain.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.Execution{}, domain.ErrExecutionNotFound
	}
	if !outcome.State.Terminal() || !e.exec.State.CanAdvance(outcome.State) {
		return domain.Execution{}, domain.ErrStateConflict
	}
	now := time.Now()
	e.exec.State = outcome.State
	e.exec.Stdout = outcome.Stdout
	e.exec.Stderr = outcome.Stderr
	e.exec.Failure = outcome.Failure
	e.exec.EndedAt = &now
	if outcome.State != domain.StateCancelled {
		e.exec.ExitCode = outcome.ExitCode
	}
	r.terminalOrder = append(r.terminalOrder, id)
	r.evictLocked()
	return e.exec, nil
}

// RequestCancel routes a cancellation request to the execution's context.
// A Pending execution is flagged so its worker never spawns a process. The
// return value reports whether a live execution was found; false for
// terminal or unknown ids is a no-op, not an error.
func (r *Registry) RequestCancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.exec.State.Terminal() {
		return false
	}
	e.cancelRequested = true
	if e.cancel != nil {
		e.cancel()
	}
	return true
}

// CancelRequested reports whether a cancel arrived for the given id.
func (r *Registry) CancelRequested(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return ok && e.cancelRequested
}

// Remove drops a terminal execution. Live executions cannot be removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || !e.exec.State.Terminal() {
		return false
	}
	delete(r.entries, id)
	r.dropTerminalLocked(id)
	return true
}

func (r *Registry) evictLocked() {
	if r.retainTerminal <= 0 {
		return
	}
	for len(r.terminalOrder) > r.retainTerminal {
		oldest := r.terminalOrder[0]
		r.terminalOrder = r.terminalOrder[1:]
		delete(r.entries, oldest)
	}
}

func (r *Registry) dropTerminalLocked(id string) {
	for i, tid := range r.terminalOrder {
		if tid == id {
			r.terminalOrder = append(r.terminalOrder[:i], r.terminalOrder[i+1:]...)
			return
		}
	}
}

func sortBySubmission(execs []domain.Execution) {
	sort.SliceStable(execs, func(i, j int) bool {
		return execs[i].Request.SubmittedAt.Before(execs[j].Request.SubmittedAt)
	})
}
