// Package cli defines the runrag command tree.
package cli

import (
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"runrag/internal/service"
)

// Runtime is the wired application a command runs against.
type Runtime struct {
	Service *service.Service
	// Close releases stores and flushes logs.
	Close func() error
}

// Opener builds the runtime from the --config flag value, empty meaning the
// default location.
type Opener func(configPath string) (*Runtime, error)

// App carries what the commands need from the process.
type App struct {
	Open Opener
	// IsInteractive reports whether stdin is a terminal.
	IsInteractive func() bool
	// RunProgram runs a Bubble Tea program; replaced in tests.
	RunProgram func(tea.Model) error
}

type globals struct {
	configPath string
	user       string
}

// NewRootCmd creates the top-level "runrag" command and registers all
// subcommands against app.
func NewRootCmd(app *App) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "runrag",
		Short:         "Ask questions about your runs",
		Long:          "runrag stores your running activities per user and answers natural-language questions with the matching runs.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to YAML config (default ./runrag.yaml, then ~/.config/runrag/config.yaml)")
	root.PersistentFlags().StringVarP(&g.user, "user", "u", "default", "user whose runs are used")

	root.AddCommand(
		newIngestCmd(app, g),
		newAskCmd(app, g),
		newNamesCmd(app, g),
		newLatestCmd(app, g),
		newResetCmd(app, g),
		newTUICmd(app, g),
	)
	return root
}

// withRuntime opens the runtime, runs fn and closes the runtime.
func withRuntime(app *App, g *globals, fn func(*Runtime) error) (err error) {
	rt, err := app.Open(g.configPath)
	if err != nil {
		return err
	}
	defer func() {
		if rt.Close != nil {
			err = errors.Join(err, rt.Close())
		}
	}()
	return fn(rt)
}

func runProgram(app *App, m tea.Model) error {
	if app.RunProgram != nil {
		return app.RunProgram(m)
	}
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
