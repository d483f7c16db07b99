// Package cli is the cardsnap command-line interface.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/cardsnap/internal/config"
	"github.com/kirillkom/cardsnap/internal/core/domain"
	"github.com/kirillkom/cardsnap/internal/core/ports"
)

// Lifecycle is the controller surface the CLI drives.
type Lifecycle interface {
	ports.CardLifecycle
	Wait()
}

// Cards is the read side the CLI lists and shows from.
type Cards interface {
	ports.CardReader
	List(ctx context.Context) ([]domain.Card, error)
}

type NoticeSource interface {
	Subscribe() (<-chan domain.Notice, func())
}

// Runtime is a fully wired application for one command invocation.
type Runtime struct {
	Lifecycle  Lifecycle
	Cards      Cards
	Credential ports.CredentialService
	Notices    NoticeSource
	Serve      func(ctx context.Context) error
	Close      func()
}

// Opener builds the runtime from the resolved configuration.
type Opener func(ctx context.Context, cfg config.Config, logLevel string) (*Runtime, error)

type rootState struct {
	open       Opener
	configPath string
	logLevel   string
	runtime    *Runtime
}

func newRootCommand(open Opener) (*cobra.Command, *rootState) {
	state := &rootState{open: open}

	root := &cobra.Command{
		Use:   "cardsnap",
		Short: "Capture and manage business cards",
		Long: `cardsnap captures photos of business cards, extracts the contact
details with Gemini and keeps the collection on this machine.

It provides commands to capture, list, show and delete cards, to manage
the Gemini API key, to export the collection to a workbook and to run
the HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := config.LoadFrom(state.configPath)
			if err != nil {
				return err
			}
			runtime, err := state.open(cmd.Context(), cfg, state.logLevel)
			if err != nil {
				return err
			}
			state.runtime = runtime
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&state.configPath, "config", "c", os.Getenv(config.ConfigFileEnv), "path to a YAML config file")
	root.PersistentFlags().StringVar(&state.logLevel, "log-level", "warn", "log level written to stderr (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(state),
		newCaptureCommand(state),
		newListCommand(state),
		newShowCommand(state),
		newDeleteCommand(state),
		newKeyCommand(state),
		newExportCommand(state),
	)
	return root, state
}

// Execute runs the command named by args and returns the process exit code.
// The runtime opened for the command is closed before Execute returns.
func Execute(ctx context.Context, open Opener, args []string, stdout, stderr io.Writer) int {
	root, state := newRootCommand(open)
	defer state.close()

	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func (s *rootState) close() {
	if s.runtime != nil && s.runtime.Close != nil {
		s.runtime.Close()
	}
	s.runtime = nil
}
