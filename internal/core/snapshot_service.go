package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"flashdeck-backend-go/internal/db"
	"flashdeck-backend-go/internal/models"
)

type snapshotService struct {
	snapshots SnapshotStore
	cards     db.CardRepository
	engine    OrderEngine
	guard     accessGuard
	logger    *zap.Logger
}

// NewSnapshotService creates a new SnapshotService instance.
func NewSnapshotService(snapshots SnapshotStore, cards db.CardRepository, decks db.DeckRepository, engine OrderEngine, logger *zap.Logger) SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &snapshotService{
		snapshots: snapshots,
		cards:     cards,
		engine:    engine,
		guard:     accessGuard{decks: decks},
		logger:    logger,
	}
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: snapshot name cannot be empty", ErrInvalidInput)
	}
	return name, nil
}

// SaveSnapshot stores req.CardOrder, or the deck's persisted order when the
// request carries none.
func (s *snapshotService) SaveSnapshot(ctx context.Context, uid, deckID string, req models.SaveSnapshotRequest) (*models.OrderSnapshot, error) {
	name, err := cleanName(req.Name)
	if err != nil {
		return nil, err
	}
	if dup := firstDuplicate(req.CardOrder); dup != "" {
		return nil, fmt.Errorf("%w: card '%s' appears twice", ErrInvalidInput, dup)
	}
	if _, err := s.guard.requireWrite(ctx, uid, deckID); err != nil {
		return nil, err
	}

	order := req.CardOrder
	if len(order) == 0 {
		cards, err := s.cards.ListByDeck(ctx, deckID)
		if err != nil {
			return nil, err
		}
		order = models.CardIDs(cards)
	}
	return s.snapshots.Save(ctx, deckID, name, order)
}

func (s *snapshotService) ListSnapshots(ctx context.Context, uid, deckID string) ([]*models.OrderSnapshot, error) {
	if _, _, err := s.guard.requireRead(ctx, uid, deckID); err != nil {
		return nil, err
	}
	var out []*models.OrderSnapshot
	for snapshot, err := range s.snapshots.List(ctx, deckID) {
		if err != nil {
			return nil, err
		}
		out = append(out, snapshot)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *snapshotService) RenameSnapshot(ctx context.Context, uid, deckID, snapshotID string, req models.RenameSnapshotRequest) (*models.OrderSnapshot, error) {
	name, err := cleanName(req.Name)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.requireWrite(ctx, uid, deckID); err != nil {
		return nil, err
	}
	if err := s.snapshots.Rename(ctx, deckID, snapshotID, name); err != nil {
		return nil, err
	}
	return s.snapshots.Get(ctx, deckID, snapshotID)
}

func (s *snapshotService) DeleteSnapshot(ctx context.Context, uid, deckID, snapshotID string) error {
	if _, err := s.guard.requireWrite(ctx, uid, deckID); err != nil {
		return err
	}
	return s.snapshots.Delete(ctx, deckID, snapshotID)
}

func (s *snapshotService) PreviewSnapshot(ctx context.Context, uid, deckID, snapshotID string) ([]*models.Card, error) {
	if _, _, err := s.guard.requireRead(ctx, uid, deckID); err != nil {
		return nil, err
	}
	_, preview, err := s.plan(ctx, deckID, snapshotID)
	return preview, err
}

// ApplySnapshot persists the snapshot's order through Reorder. A card added
// or removed between planning and commit surfaces as ErrInvalidOrder.
func (s *snapshotService) ApplySnapshot(ctx context.Context, uid, deckID, snapshotID string) ([]*models.Card, error) {
	if _, err := s.guard.requireWrite(ctx, uid, deckID); err != nil {
		return nil, err
	}
	assignments, _, err := s.plan(ctx, deckID, snapshotID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Reorder(ctx, deckID, assignments); err != nil {
		return nil, err
	}
	s.logger.Debug("Snapshot applied", zap.String("deck_id", deckID), zap.String("snapshot_id", snapshotID))
	return s.cards.ListByDeck(ctx, deckID)
}

// plan computes the assignment for snapshotID and the cards it would produce.
func (s *snapshotService) plan(ctx context.Context, deckID, snapshotID string) (map[string]int, []*models.Card, error) {
	snapshot, err := s.snapshots.Get(ctx, deckID, snapshotID)
	if err != nil {
		return nil, nil, err
	}
	current, err := s.cards.ListByDeck(ctx, deckID)
	if err != nil {
		return nil, nil, err
	}

	assignments := ApplySnapshot(snapshot, current)
	preview := make([]*models.Card, 0, len(current))
	for _, c := range current {
		card := *c
		card.OrderIndex = assignments[c.ID]
		preview = append(preview, &card)
	}
	db.SortCards(preview)
	return assignments, preview, nil
}
