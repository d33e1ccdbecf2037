// Package dispatch is the entry point of the execution core: it resolves
// aliases, records history, creates executions and hands them to workers.
package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/deskrun/internal/application/registry"
	"github.com/doeshing/deskrun/internal/domain"
	"github.com/doeshing/deskrun/internal/ports"
)

// Handle lets the caller observe one execution's completion without
// blocking on submit.
type Handle struct {
	ID   string
	done chan domain.Execution
}

// Done yields the terminal snapshot. It is published exactly once.
func (h *Handle) Done() <-chan domain.Execution { return h.done }

// Wait blocks until the execution reaches a terminal state or ctx expires.
func (h *Handle) Wait(ctx context.Context) (domain.Execution, error) {
	select {
	case exec := <-h.done:
		return exec, nil
	case <-ctx.Done():
		return domain.Execution{}, ctx.Err()
	}
}

// Service dispatches submitted commands to dedicated workers. The caller's
// goroutine never blocks on process I/O: spawning, stream capture and exit
// waiting all happen on the execution's own worker.
type Service struct {
	Aliases  *domain.AliasTable
	History  *domain.HistoryLog
	Registry *registry.Registry
	Runner   ports.ProcessRunner
	Store    ports.ExecutionStore
	Logger   ports.Logger

	// OnOutput, when set, receives child output lines as they appear.
	OnOutput func(id, stream, line string)

	mu  sync.Mutex
	sem chan struct{}
	wg  sync.WaitGroup
}

// LimitConcurrency caps simultaneously running commands. n <= 0 removes the
// cap, restoring the historical unbounded worker-per-execution behavior.
func (s *Service) LimitConcurrency(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		s.sem = nil
		return
	}
	s.sem = make(chan struct{}, n)
}

// Submit resolves rawText through the alias table, appends exactly one
// history entry, registers a Pending execution and starts its worker. It
// returns immediately; empty input fails fast with ErrInvalidCommand and
// leaves no execution and no history entry behind.
func (s *Service) Submit(ctx context.Context, rawText string, elevated bool) (*Handle, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, domain.ErrInvalidCommand
	}

	req := domain.CommandRequest{
		Raw:         rawText,
		Resolved:    s.Aliases.Resolve(rawText),
		SubmittedAt: time.Now(),
	}
	s.History.Append(req)

	// The worker outlives the submitting call, so the execution gets its
	// own context; cancellation is routed through the registry.
	runCtx, cancel := context.WithCancel(context.Background())
	exec := s.Registry.Create(req, elevated, cancel)

	s.Logger.Info("execution submitted", map[string]interface{}{
		"id":       exec.ID,
		"command":  req.Resolved,
		"elevated": elevated,
	})

	handle := &Handle{ID: exec.ID, done: make(chan domain.Execution, 1)}
	s.wg.Add(1)
	go s.work(runCtx, cancel, exec.ID, req, elevated, handle)
	return handle, nil
}

// Cancel requests termination of a live execution. False means no live
// execution had that id, which is a no-op, not an error.
func (s *Service) Cancel(id string) bool {
	found := s.Registry.RequestCancel(id)
	if found {
		s.Logger.Info("cancel requested", map[string]interface{}{"id": id})
	}
	return found
}

// HistoryEntries returns a snapshot of all submissions in order.
func (s *Service) HistoryEntries() []domain.CommandRequest {
	return s.History.All()
}

// Executions returns snapshots of everything the registry tracks.
func (s *Service) Executions() []domain.Execution {
	return s.Registry.List()
}

// Running returns snapshots of executions that are currently running.
func (s *Service) Running() []domain.Execution {
	return s.Registry.ListRunning()
}

// Get returns a snapshot of one execution.
func (s *Service) Get(id string) (domain.Execution, bool) {
	return s.Registry.Get(id)
}

// WaitIdle blocks until every worker started so far has finished.
func (s *Service) WaitIdle() {
	s.wg.Wait()
}

func (s *Service) work(ctx context.Context, cancel context.CancelFunc, id string, req domain.CommandRequest, elevated bool, handle *Handle) {
	defer s.wg.Done()
	defer cancel()

	s.mu.Lock()
	sem := s.sem
	s.mu.Unlock()
	if sem != nil {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-ctx.Done():
			s.finish(handle, id, domain.RunOutcome{State: domain.StateCancelled})
			return
		}
	}

	// A cancel that arrived while the execution was still Pending means the
	// process is never started.
	if s.Registry.CancelRequested(id) {
		s.finish(handle, id, domain.RunOutcome{State: domain.StateCancelled})
		return
	}

	spec := ports.RunSpec{Command: req.Resolved, Elevated: elevated}
	if s.OnOutput != nil {
		emit := s.OnOutput
		spec.OnOutput = func(stream, line string) { emit(id, stream, line) }
	}

	outcome := s.Runner.Run(ctx, spec, func(at time.Time) {
		if err := s.Registry.MarkRunning(id, at); err != nil {
			s.Logger.Warn("mark running failed", map[string]interface{}{
				"id":    id,
				"error": err.Error(),
			})
		}
	})
	s.finish(handle, id, outcome)
}

// finish applies the terminal outcome, persists the record and publishes
// the snapshot exactly once.
func (s *Service) finish(handle *Handle, id string, outcome domain.RunOutcome) {
	snapshot, err := s.Registry.Complete(id, outcome)
	if err != nil {
		s.Logger.Error("completing execution", err, map[string]interface{}{"id": id})
		snapshot, _ = s.Registry.Get(id)
	}

	if s.Store != nil {
		if err := s.Store.Save(domain.RecordOf(snapshot)); err != nil {
			s.Logger.Warn("persisting execution record", map[string]interface{}{
				"id":    id,
				"error": err.Error(),
			})
		}
	}

	fields := map[string]interface{}{
		"id":    id,
		"state": string(snapshot.State),
	}
	if snapshot.ExitCode != nil {
		fields["exit_code"] = *snapshot.ExitCode
	}
	s.Logger.Info("execution finished", fields)

	handle.done <- snapshot
}
