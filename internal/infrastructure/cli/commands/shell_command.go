package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/doeshing/deskrun/internal/app"
	"github.com/doeshing/deskrun/internal/domain"
)

const elevatedPrefix = "sudo! "

// NewShellCommand creates the interactive shell: commands run concurrently
// while builtins inspect and cancel them.
func NewShellCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with concurrent executions",
		Long: `Reads commands from stdin and runs each on its own worker.
Builtins: :ps, :cancel <id>, :history, :alias name=command, :unalias name, :quit.
Prefix a line with "sudo! " to request elevated execution.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), container, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runShell(ctx context.Context, container *app.Container, in io.Reader, out io.Writer) error {
	dispatcher := container.Dispatcher

	var mu sync.Mutex
	emit := func(format string, args ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	// stream child output lines as they appear
	dispatcher.OnOutput = func(id, stream, line string) {
		emit("[%s %s] %s\n", shortID(id), stream, line)
	}

	emit("deskrun shell — :quit to exit\n")
	scanner := bufio.NewScanner(in)
	for {
		emit("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == ":quit" || line == ":exit":
			dispatcher.WaitIdle()
			return scanner.Err()
		case line == ":ps":
			printRunning(emit, dispatcher.Running())
		case line == ":history":
			for i, entry := range dispatcher.HistoryEntries() {
				emit("%3d  %s\n", i+1, entry.Raw)
			}
		case strings.HasPrefix(line, ":cancel"):
			cancelByPrefix(emit, container, strings.TrimSpace(strings.TrimPrefix(line, ":cancel")))
		case strings.HasPrefix(line, ":alias "):
			alias, err := domain.ParseAliasDefinition(strings.TrimPrefix(line, ":alias "))
			if err != nil {
				emit("error: %v\n", err)
				continue
			}
			dispatcher.Aliases.Set(alias.Name, alias.Command)
			emit("alias %s = %s\n", alias.Name, alias.Command)
		case strings.HasPrefix(line, ":unalias "):
			dispatcher.Aliases.Remove(strings.TrimSpace(strings.TrimPrefix(line, ":unalias ")))
		default:
			elevated := false
			if strings.HasPrefix(line, elevatedPrefix) {
				elevated = true
				line = strings.TrimPrefix(line, elevatedPrefix)
			}
			handle, err := dispatcher.Submit(ctx, line, elevated)
			if err != nil {
				emit("error: %v\n", err)
				continue
			}
			emit("started %s\n", shortID(handle.ID))
			go func() {
				exec := <-handle.Done()
				summary := string(exec.State)
				if exec.ExitCode != nil {
					summary = fmt.Sprintf("%s (exit %d)", exec.State, *exec.ExitCode)
				}
				emit("finished %s: %s\n", shortID(exec.ID), summary)
			}()
		}
	}
	dispatcher.WaitIdle()
	return scanner.Err()
}

func printRunning(emit func(string, ...interface{}), running []domain.Execution) {
	if len(running) == 0 {
		emit("nothing running\n")
		return
	}
	for _, exec := range running {
		since := ""
		if exec.StartedAt != nil {
			since = humanize.Time(*exec.StartedAt)
		}
		emit("%s  %s  started %s\n", shortID(exec.ID), exec.Request.Resolved, since)
	}
}

func cancelByPrefix(emit func(string, ...interface{}), container *app.Container, prefix string) {
	if prefix == "" {
		emit("usage: :cancel <id>\n")
		return
	}
	for _, exec := range container.Dispatcher.Executions() {
		if strings.HasPrefix(exec.ID, prefix) {
			if container.Dispatcher.Cancel(exec.ID) {
				emit("cancel requested for %s\n", shortID(exec.ID))
			} else {
				emit("%s already finished\n", shortID(exec.ID))
			}
			return
		}
	}
	emit("no execution matching %q\n", prefix)
}
