// Package domain defines the core entities of the deskrun execution core.
//
// The domain layer is independent of infrastructure concerns: it knows
// nothing about OS processes, storage, or the CLI. It owns the execution
// state machine, alias resolution, and the submission history.
package domain

import (
	"errors"
	"time"
)

// ExecutionState tracks one execution through its lifecycle.
type ExecutionState string

const (
	StatePending   ExecutionState = "pending"
	StateRunning   ExecutionState = "running"
	StateCompleted ExecutionState = "completed"
	StateFailed    ExecutionState = "failed"
	StateCancelled ExecutionState = "cancelled"
)

// Terminal reports whether no further transitions can occur from s.
func (s ExecutionState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// CanAdvance reports whether moving from s to next is a legal transition.
// Pending may move straight to a terminal state (spawn failure, or a cancel
// honored before the process ever started).
func (s ExecutionState) CanAdvance(next ExecutionState) bool {
	switch s {
	case StatePending:
		return next == StateRunning || next.Terminal()
	case StateRunning:
		return next.Terminal()
	}
	return false
}

// FailureKind classifies why an execution ended up Failed.
type FailureKind string

const (
	FailureNone FailureKind = ""
	// FailureSpawn: the OS never created the child process.
	FailureSpawn FailureKind = "spawn"
	// FailureRuntime: the child ran and exited non-zero.
	FailureRuntime FailureKind = "runtime"
	// FailureElevation: the privilege-escalation request was refused.
	FailureElevation FailureKind = "elevation"
)

var (
	// ErrInvalidCommand rejects an empty submission before any execution exists.
	ErrInvalidCommand = errors.New("invalid command: empty submission")
	// ErrExecutionNotFound reports an unknown execution id.
	ErrExecutionNotFound = errors.New("execution not found")
	// ErrStateConflict reports an illegal execution state transition.
	ErrStateConflict = errors.New("illegal execution state transition")
)

// CommandRequest is one submission after alias resolution. Immutable once
// created.
type CommandRequest struct {
	Raw         string
	Resolved    string
	SubmittedAt time.Time
}

// Execution tracks one external command from submission to a terminal state.
// EndedAt is set exactly when the state is terminal; ExitCode only for
// Completed and Failed.
type Execution struct {
	ID        string
	Request   CommandRequest
	State     ExecutionState
	Stdout    []byte
	Stderr    []byte
	StartedAt *time.Time
	EndedAt   *time.Time
	ExitCode  *int
	Elevated  bool
	Failure   FailureKind
}

// RunOutcome is what a process runner reports once its child is done.
// State must be terminal.
type RunOutcome struct {
	State    ExecutionState
	ExitCode *int
	Stdout   []byte
	Stderr   []byte
	Failure  FailureKind
	Err      error
}

// ExecutionRecord is the persisted, flattened form of a finished execution.
type ExecutionRecord struct {
	ID          string         `json:"id"`
	Raw         string         `json:"raw"`
	Resolved    string         `json:"resolved"`
	SubmittedAt time.Time      `json:"submitted_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	EndedAt     *time.Time     `json:"ended_at,omitempty"`
	State       ExecutionState `json:"state"`
	Failure     FailureKind    `json:"failure,omitempty"`
	ExitCode    *int           `json:"exit_code,omitempty"`
	Elevated    bool           `json:"elevated"`
	Stdout      string         `json:"stdout"`
	Stderr      string         `json:"stderr"`
}

// RecordOf flattens an execution for persistence.
func RecordOf(e Execution) ExecutionRecord {
	return ExecutionRecord{
		ID:          e.ID,
		Raw:         e.Request.Raw,
		Resolved:    e.Request.Resolved,
		SubmittedAt: e.Request.SubmittedAt,
		StartedAt:   e.StartedAt,
		EndedAt:     e.EndedAt,
		State:       e.State,
		Failure:     e.Failure,
		ExitCode:    e.ExitCode,
		Elevated:    e.Elevated,
		Stdout:      string(e.Stdout),
		Stderr:      string(e.Stderr),
	}
}
