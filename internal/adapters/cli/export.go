package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/cardsnap/internal/infrastructure/mirror/sheet"
)

func newExportCommand(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "export <workbook.xlsx>",
		Short: "Export all cards to a workbook",
		Long: `Write every card into a sheet of an Excel workbook, one row per card.
Rows of cards already in the workbook are updated in place.

Examples:
  cardsnap export ./cards.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cards, err := state.runtime.Cards.List(cmd.Context())
			if err != nil {
				return err
			}
			workbook, err := sheet.New(args[0])
			if err != nil {
				return err
			}
			for _, card := range cards {
				if err := workbook.Mirror(cmd.Context(), card); err != nil {
					return fmt.Errorf("export card %s: %w", card.ID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d cards to %s\n", len(cards), args[0])
			return nil
		},
	}
}
