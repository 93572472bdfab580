package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flashdeck-backend-go/internal/core"
	"flashdeck-backend-go/internal/models"
)

// NewSnapshotsCommand creates the snapshots command group.
func NewSnapshotsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshots",
		Aliases: []string{"snap"},
		Short:   "Inspect and apply saved card orders",
	}
	cmd.AddCommand(newSnapshotsListCommand(opts))
	cmd.AddCommand(newSnapshotsApplyCommand(opts))
	return cmd
}

func newSnapshotsListCommand(opts *RootOptions) *cobra.Command {
	var deckID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a deck's saved orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutputFormatter(opts.Format, cmd.OutOrStdout())
			return withBackend(cmd, opts, func(ctx context.Context, b *Backend) error {
				var snapshots []*models.OrderSnapshot
				for snapshot, err := range b.Snapshots.List(ctx, deckID) {
					if err != nil {
						return fmt.Errorf("list snapshots of deck %s: %w", deckID, err)
					}
					snapshots = append(snapshots, snapshot)
				}
				sort.SliceStable(snapshots, func(i, j int) bool {
					return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
				})
				return out.Snapshots(snapshots)
			})
		},
	}

	cmd.Flags().StringVar(&deckID, "deck", "", "deck whose snapshots to list")
	_ = cmd.MarkFlagRequired("deck")

	return cmd
}

func newSnapshotsApplyCommand(opts *RootOptions) *cobra.Command {
	var deckID, snapshotID string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reorder a deck's cards to match a saved order",
		Long: `Apply puts the cards named by the snapshot first, in snapshot order.
Cards created after the snapshot follow in their current order and cards
deleted since are skipped.`,
		Example: `  flashctl snapshots apply --deck d1 --snapshot s1
  flashctl snapshots apply --deck d1 --snapshot s1 --dry-run --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutputFormatter(opts.Format, cmd.OutOrStdout())
			return withBackend(cmd, opts, func(ctx context.Context, b *Backend) error {
				snapshot, err := b.Snapshots.Get(ctx, deckID, snapshotID)
				if err != nil {
					return fmt.Errorf("get snapshot %s of deck %s: %w", snapshotID, deckID, err)
				}
				cards, err := b.Cards.ListByDeck(ctx, deckID)
				if err != nil {
					return fmt.Errorf("list cards of deck %s: %w", deckID, err)
				}

				assignments := core.ApplySnapshot(snapshot, cards)
				ids := core.OrderedIDs(assignments)
				if dryRun {
					return out.Order(deckID, ids, fmt.Sprintf("Snapshot %q would order %d cards", snapshot.Name, len(ids)))
				}
				if len(ids) == 0 {
					return out.Order(deckID, ids, fmt.Sprintf("Deck %s has no cards", deckID))
				}

				if err := b.Services.Engine.Reorder(ctx, deckID, assignments); err != nil {
					return fmt.Errorf("apply snapshot %s: %w", snapshotID, err)
				}
				b.Logger.Info("Applied snapshot",
					zap.String("deck_id", deckID),
					zap.String("snapshot_id", snapshotID),
					zap.Int("cards", len(ids)))
				return out.Order(deckID, ids, fmt.Sprintf("Applied snapshot %q to %d cards", snapshot.Name, len(ids)))
			})
		},
	}

	cmd.Flags().StringVar(&deckID, "deck", "", "deck to reorder")
	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "snapshot to apply")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the resulting order without writing")
	_ = cmd.MarkFlagRequired("deck")
	_ = cmd.MarkFlagRequired("snapshot")

	return cmd
}
