// Package executor spawns external commands through the host shell and
// supervises them to exit or cancellation.
package executor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/doeshing/deskrun/internal/domain"
	"github.com/doeshing/deskrun/internal/ports"
)

var errElevationUnsupported = errors.New("elevated execution is not supported on this platform")

// LocalRunner runs commands on the host shell. Each Run call blocks its
// calling goroutine; the dispatcher gives every execution its own worker.
type LocalRunner struct {
	shell  string
	logger ports.Logger
}

// New builds a runner, shell defaults to $SHELL then the platform default.
func New(shell string, logger ports.Logger) *LocalRunner {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = defaultShell
	}
	return &LocalRunner{shell: shell, logger: logger}
}

// Run implements ports.ProcessRunner. The child gets its own process group
// so cancellation signals the whole tree. Both streams are captured in
// full; whatever was written before a cancel is retained in the outcome.
func (r *LocalRunner) Run(ctx context.Context, spec ports.RunSpec, started func(time.Time)) domain.RunOutcome {
	if spec.Elevated && !elevationSupported {
		return domain.RunOutcome{
			State:   domain.StateFailed,
			Failure: domain.FailureElevation,
			Stderr:  []byte(errElevationUnsupported.Error() + "\n"),
			Err:     errElevationUnsupported,
		}
	}

	cmd := r.command(spec)
	var stdout, stderr bytes.Buffer
	var tees []*lineWriter
	if spec.OnOutput != nil {
		outTee := newLineWriter("stdout", spec.OnOutput)
		errTee := newLineWriter("stderr", spec.OnOutput)
		tees = append(tees, outTee, errTee)
		cmd.Stdout = io.MultiWriter(&stdout, outTee)
		cmd.Stderr = io.MultiWriter(&stderr, errTee)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	if err := cmd.Start(); err != nil {
		return domain.RunOutcome{
			State:   domain.StateFailed,
			Failure: domain.FailureSpawn,
			Stderr:  []byte(err.Error() + "\n"),
			Err:     err,
		}
	}
	started(time.Now())
	r.logger.Debug("process started", map[string]interface{}{
		"pid":      cmd.Process.Pid,
		"elevated": spec.Elevated,
	})

	// Watch for cancellation while the child runs. signalled resolves the
	// cancel/exit race: only a child we actually signalled counts as
	// cancelled, a child that exited first keeps its natural outcome.
	var signalled atomic.Bool
	waitDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			signalled.Store(true)
			r.terminate(cmd)
		case <-waitDone:
		}
	}()

	err := cmd.Wait()
	close(waitDone)
	for _, tee := range tees {
		tee.flush()
	}

	outcome := domain.RunOutcome{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	switch {
	case err == nil:
		code := 0
		outcome.State = domain.StateCompleted
		outcome.ExitCode = &code
	case signalled.Load():
		outcome.State = domain.StateCancelled
	default:
		outcome.State = domain.StateFailed
		outcome.Failure = domain.FailureRuntime
		outcome.Err = err
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			outcome.ExitCode = &code
			if spec.Elevated && elevationDenied(code, stderr.Bytes()) {
				outcome.Failure = domain.FailureElevation
			}
		}
	}
	return outcome
}

var _ ports.ProcessRunner = (*LocalRunner)(nil)
