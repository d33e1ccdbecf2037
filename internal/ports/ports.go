// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// The application core depends only on these contracts; concrete adapters
// (OS process spawning, SQLite/JSONL stores, YAML config, CLI) live in the
// infrastructure layer.
package ports

import (
	"context"
	"time"

	"github.com/doeshing/deskrun/internal/domain"
)

// RunSpec describes one command for a ProcessRunner.
type RunSpec struct {
	// Command is passed verbatim to the platform's command interpreter.
	Command string
	// Elevated requests OS-level privilege escalation. A refused escalation
	// must surface as a Failed outcome, never as a silent unelevated run.
	Elevated bool
	// OnOutput, when set, receives each output line as the child produces
	// it. It may be called concurrently for the two streams. Buffered
	// capture in the outcome is unaffected.
	OnOutput func(stream, line string)
}

// ProcessRunner runs exactly one external command to completion or
// cancellation. Run blocks on the calling goroutine — the execution's
// dedicated worker — and honors ctx cancellation by terminating the child.
// started is invoked exactly once, iff the process actually spawned.
type ProcessRunner interface {
	Run(ctx context.Context, spec RunSpec, started func(time.Time)) domain.RunOutcome
}

// ExecutionStore persists terminal execution records to a line/row oriented
// sink. Implementations must be safe for concurrent use.
type ExecutionStore interface {
	Save(record domain.ExecutionRecord) error
	Records(limit int, search string) ([]domain.ExecutionRecord, error)
	Clear() error
	ExportJSON(dest string) error
	Path() string
}

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.deskrun/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// Logger provides structured logging abstraction for the application layer.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
