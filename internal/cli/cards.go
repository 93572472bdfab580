package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flashdeck-backend-go/internal/models"
)

// NewCardsCommand creates the cards command group.
func NewCardsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Card maintenance",
	}
	cmd.AddCommand(newCardsRenumberCommand(opts))
	return cmd
}

func newCardsRenumberCommand(opts *RootOptions) *cobra.Command {
	var deckID string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "renumber",
		Short: "Rewrite a deck's card order as 0..n-1",
		Long: `Renumber closes gaps and resolves duplicate orderIndex values left by
older clients. The current display order is kept.`,
		Example: `  flashctl cards renumber --deck d1
  flashctl cards renumber --deck d1 --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutputFormatter(opts.Format, cmd.OutOrStdout())
			return withBackend(cmd, opts, func(ctx context.Context, b *Backend) error {
				cards, err := b.Cards.ListByDeck(ctx, deckID)
				if err != nil {
					return fmt.Errorf("list cards of deck %s: %w", deckID, err)
				}
				ids := models.CardIDs(cards)

				assignments := make(map[string]int, len(cards))
				changed := 0
				for i, card := range cards {
					assignments[card.ID] = i
					if card.OrderIndex != i {
						changed++
					}
				}
				if changed == 0 {
					return out.Order(deckID, ids, fmt.Sprintf("Deck %s is already contiguous (%d cards)", deckID, len(cards)))
				}
				if dryRun {
					return out.Order(deckID, ids, fmt.Sprintf("Would renumber %d of %d cards in deck %s", changed, len(cards), deckID))
				}

				if err := b.Services.Engine.Reorder(ctx, deckID, assignments); err != nil {
					return fmt.Errorf("renumber deck %s: %w", deckID, err)
				}
				b.Logger.Info("Renumbered deck", zap.String("deck_id", deckID), zap.Int("changed", changed))
				return out.Order(deckID, ids, fmt.Sprintf("Renumbered %d of %d cards in deck %s", changed, len(cards), deckID))
			})
		},
	}

	cmd.Flags().StringVar(&deckID, "deck", "", "deck to renumber")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	_ = cmd.MarkFlagRequired("deck")

	return cmd
}
