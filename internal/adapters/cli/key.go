package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newKeyCommand(state *rootState) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the Gemini API key",
		Long: `Manage the Gemini API key used for card extraction.

Examples:
  cardsnap key set AIza...
  cardsnap key show
  cardsnap key validate`,
	}

	setCmd := &cobra.Command{
		Use:   "set <api-key>",
		Short: "Store the API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := state.runtime.Credential.SetCredential(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API Key saved")
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored API key, masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, ok, err := state.runtime.Credential.GetCredential(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No API key configured.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), mask(value))
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate [api-key]",
		Short: "Check an API key against Gemini",
		Long: `Check an API key against Gemini. Without an argument the stored key
is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidate := ""
			if len(args) == 1 {
				candidate = args[0]
			} else {
				stored, _, err := state.runtime.Credential.GetCredential(cmd.Context())
				if err != nil {
					return err
				}
				candidate = stored
			}
			if !state.runtime.Credential.ValidateCredential(cmd.Context(), candidate) {
				return errors.New("API key is not valid")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key is valid")
			return nil
		},
	}

	keyCmd.AddCommand(setCmd, showCmd, validateCmd)
	return keyCmd
}

func mask(value string) string {
	value = strings.TrimSpace(value)
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
