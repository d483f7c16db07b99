package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

func newCaptureCommand(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "capture <image-file>",
		Short: "Capture a card from an image file",
		Long: `Capture a business card from a JPEG, PNG or WebP photo.

The card is stored immediately as pending. The command waits for the
extraction to finish and prints the resulting card.

Examples:
  cardsnap capture ./card.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open image: %w", err)
			}
			defer file.Close()

			notices, release := state.runtime.Notices.Subscribe()
			printed := make(chan struct{})
			go func() {
				defer close(printed)
				printNotices(cmd.ErrOrStderr(), notices)
			}()

			pending, err := state.runtime.Lifecycle.Capture(cmd.Context(), file)
			if err != nil {
				release()
				<-printed
				return err
			}
			state.runtime.Lifecycle.Wait()
			release()
			<-printed

			card, err := state.runtime.Cards.Get(cmd.Context(), pending.ID)
			if err != nil {
				return err
			}
			return writeCard(cmd.OutOrStdout(), card)
		},
	}
}

func newListCommand(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "list [query]",
		Short: "List cards grouped by initial",
		Long: `List cards grouped by the first letter of the name. A query filters by
name, company or tag, ignoring case.

Examples:
  cardsnap list
  cardsnap list acme`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			groups, err := state.runtime.Cards.View(cmd.Context(), query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintln(out, "No cards found.")
				return nil
			}
			for _, group := range groups {
				fmt.Fprintln(out, group.Key)
				for _, card := range group.Cards {
					fmt.Fprintf(out, "  %s  %s", card.ID, card.DisplayName())
					if company := domain.Deref(card.Company); company != "" {
						fmt.Fprintf(out, " (%s)", company)
					}
					if card.Phase != domain.PhaseProcessed {
						fmt.Fprintf(out, " [%s]", card.Phase)
					}
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}
}

func newShowCommand(state *rootState) *cobra.Command {
	var share bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one card",
		Long: `Show one card as JSON, or as share text with --share.

Examples:
  cardsnap show 3f2c9a1e-...
  cardsnap show 3f2c9a1e-... --share`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			card, err := state.runtime.Cards.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if share {
				fmt.Fprintln(cmd.OutOrStdout(), domain.ShareText(card))
				return nil
			}
			return writeCard(cmd.OutOrStdout(), card)
		},
	}
	cmd.Flags().BoolVar(&share, "share", false, "print the share text instead of JSON")
	return cmd
}

func newDeleteCommand(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a card",
		Long: `Delete a card from the collection.

Undo is only offered by the long-running API, since the undo window
closes when this command exits.

Examples:
  cardsnap delete 3f2c9a1e-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := state.runtime.Lifecycle.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func writeCard(w io.Writer, card domain.Card) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(card)
}

func printNotices(w io.Writer, notices <-chan domain.Notice) {
	for notice := range notices {
		prefix := "-"
		if notice.IsError() {
			prefix = "!"
		}
		fmt.Fprintf(w, "%s %s\n", prefix, strings.TrimSpace(notice.Message))
	}
}
