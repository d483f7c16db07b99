package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newServeCommand(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until interrupted. The port and backends come from
the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if state.runtime.Serve == nil {
				return errors.New("serving is not available")
			}
			return state.runtime.Serve(cmd.Context())
		},
	}
}
