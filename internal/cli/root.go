package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flashdeck-backend-go/internal/config"
	"flashdeck-backend-go/internal/core"
	"flashdeck-backend-go/internal/db"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	EnvFile string

	// open connects to the configured store. Tests swap it for a memory store.
	open func(ctx context.Context, opts *RootOptions) (*Backend, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Backend is what commands operate on. Operator commands bypass per-user
// access checks and go to the engine and repositories directly.
type Backend struct {
	Services  *core.Services
	Cards     db.CardRepository
	Snapshots core.SnapshotStore
	Logger    *zap.Logger

	closers []func() error
}

// NewBackend wires services and repositories over store.
func NewBackend(store db.DocumentStore, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		Services:  core.NewServices(store, logger),
		Cards:     db.NewCardRepository(store, logger),
		Snapshots: core.NewSnapshotStore(store, db.NewSnapshotRepository(store, logger), logger),
		Logger:    logger,
	}
}

// Close releases the store connection and flushes the logger.
func (b *Backend) Close() error {
	var first error
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	_ = b.Logger.Sync()
	return first
}

func openBackend(ctx context.Context, opts *RootOptions) (*Backend, error) {
	var envFiles []string
	if opts.EnvFile != "" {
		envFiles = append(envFiles, opts.EnvFile)
	}
	cfg, err := config.LoadConfig(envFiles...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	store, _, err := db.OpenStore(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	b := NewBackend(store, logger)
	b.closers = append(b.closers, store.Close)
	return b, nil
}

// NewRootCommand creates the root command for flashctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{open: openBackend})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flashctl",
		Short: "flashctl - flashcard deck operations",
		Long:  "Operator tooling for flashcard decks: inspect accessible decks, repair card order and apply saved orders.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "load environment from this file")

	cmd.AddCommand(NewDecksCommand(opts))
	cmd.AddCommand(NewCardsCommand(opts))
	cmd.AddCommand(NewSnapshotsCommand(opts))

	return cmd
}

// withBackend opens the backend for the duration of fn.
func withBackend(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, b *Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := opts.open(ctx, opts)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}
