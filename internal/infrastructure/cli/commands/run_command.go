package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/deskrun/internal/app"
	"github.com/doeshing/deskrun/internal/domain"
)

// NewRunCommand creates the run command: submit one command and wait for it.
func NewRunCommand(container *app.Container) *cobra.Command {
	var (
		elevated bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run [command...]",
		Short: "Run a command and wait for its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dispatcher := container.Dispatcher

			handle, err := dispatcher.Submit(cmd.Context(), strings.Join(args, " "), elevated)
			if err != nil {
				return err
			}
			if timeout > 0 {
				// timeout is cancellation scheduled after a deadline
				timer := time.AfterFunc(timeout, func() { dispatcher.Cancel(handle.ID) })
				defer timer.Stop()
			}

			exec, err := handle.Wait(cmd.Context())
			if err != nil {
				dispatcher.Cancel(handle.ID)
				return err
			}

			// both streams are shown regardless of exit status
			if len(exec.Stdout) > 0 {
				fmt.Fprint(cmd.OutOrStdout(), string(exec.Stdout))
			}
			if len(exec.Stderr) > 0 {
				fmt.Fprint(cmd.ErrOrStderr(), string(exec.Stderr))
			}

			switch exec.State {
			case domain.StateCompleted:
				return nil
			case domain.StateCancelled:
				return fmt.Errorf("execution %s cancelled", shortID(exec.ID))
			default:
				if exec.Failure == domain.FailureElevation {
					return fmt.Errorf("elevation denied for execution %s", shortID(exec.ID))
				}
				if exec.ExitCode != nil {
					return fmt.Errorf("command exited with code %d", *exec.ExitCode)
				}
				return fmt.Errorf("command failed: %s", exec.Failure)
			}
		},
	}

	cmd.Flags().BoolVarP(&elevated, "elevated", "e", false, "Run through the OS privilege-escalation mechanism")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Cancel the command after this duration")
	return cmd
}

// shortID abbreviates an execution id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
