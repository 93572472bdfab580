package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"flashdeck-backend-go/internal/core"
)

// NewDecksCommand creates the decks command.
func NewDecksCommand(opts *RootOptions) *cobra.Command {
	var user string
	var watch bool

	cmd := &cobra.Command{
		Use:   "decks",
		Short: "List the decks a user can access",
		Long: `List every deck the user owns or collaborates on, newest update first.

With --watch the list is printed again on every change until interrupted.`,
		Example: `  flashctl decks --user u1
  flashctl decks --user u1 --watch --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutputFormatter(opts.Format, cmd.OutOrStdout())
			return withBackend(cmd, opts, func(ctx context.Context, b *Backend) error {
				if !watch {
					view, err := b.Services.Decks.ListAccessible(ctx, user)
					if err != nil {
						return fmt.Errorf("list decks for %s: %w", user, err)
					}
					return out.Decks(*view)
				}
				return watchDecks(ctx, b, user, out)
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "identity whose decks to list")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep printing the list as it changes")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func watchDecks(ctx context.Context, b *Backend, user string, out *OutputFormatter) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	views := make(chan core.AccessibleDecksView, 1)
	unsubscribe := b.Services.Decks.WatchAccessible(ctx, user, func(view core.AccessibleDecksView) {
		if view.Loading {
			return
		}
		// Keep only the newest view.
		select {
		case <-views:
		default:
		}
		views <- view
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case view := <-views:
			if err := out.Decks(view); err != nil {
				return err
			}
			if view.Err != nil {
				return fmt.Errorf("watch decks for %s: %w", user, view.Err)
			}
		}
	}
}
