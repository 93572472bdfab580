package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"flashdeck-backend-go/internal/db"
	"flashdeck-backend-go/internal/models"
)

// cardOrderEngine implements OrderEngine. Every mutation that changes order
// or membership rewrites orderIndex 0..n-1 for the whole deck and bumps the
// deck's updatedAt in the same batch. Commit failures are returned as is;
// nothing is retried.
type cardOrderEngine struct {
	store  db.DocumentStore
	cards  db.CardRepository
	decks  db.DeckRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewOrderEngine creates an OrderEngine writing through store.
func NewOrderEngine(store db.DocumentStore, cards db.CardRepository, decks db.DeckRepository, logger *zap.Logger) OrderEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cardOrderEngine{
		store:  store,
		cards:  cards,
		decks:  decks,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (e *cardOrderEngine) MoveUp(ctx context.Context, deckID, cardID string, current []*models.Card) error {
	return e.move(ctx, deckID, cardID, current, -1)
}

func (e *cardOrderEngine) MoveDown(ctx context.Context, deckID, cardID string, current []*models.Card) error {
	return e.move(ctx, deckID, cardID, current, +1)
}

// move swaps cardID with its neighbour in current, which is taken as the
// display order, and persists the full renumbered sequence.
func (e *cardOrderEngine) move(ctx context.Context, deckID, cardID string, current []*models.Card, delta int) error {
	ids := models.CardIDs(current)
	if dup := firstDuplicate(ids); dup != "" {
		return fmt.Errorf("%w: card '%s' appears twice in the supplied order", ErrInvalidMove, dup)
	}

	pos := indexOf(ids, cardID)
	if pos < 0 {
		return fmt.Errorf("%w: card '%s' is not in deck '%s'", ErrInvalidMove, cardID, deckID)
	}
	target := pos + delta
	if target < 0 || target >= len(ids) {
		return fmt.Errorf("%w: card '%s' is already at the boundary", ErrInvalidMove, cardID)
	}

	ids[pos], ids[target] = ids[target], ids[pos]
	if err := e.commitOrder(ctx, deckID, ids, nil); err != nil {
		return fmt.Errorf("failed to move card '%s' in deck '%s': %w", cardID, deckID, err)
	}
	return nil
}

func (e *cardOrderEngine) Reorder(ctx context.Context, deckID string, assignments map[string]int) error {
	current, err := e.cards.ListByDeck(ctx, deckID)
	if err != nil {
		return err
	}
	ids, err := orderFromAssignments(current, assignments)
	if err != nil {
		return err
	}
	if err := e.commitOrder(ctx, deckID, ids, nil); err != nil {
		return fmt.Errorf("failed to reorder deck '%s': %w", deckID, err)
	}
	return nil
}

// orderFromAssignments validates that assignments is a permutation of
// 0..n-1 over exactly the ids in current and returns ids in that order.
func orderFromAssignments(current []*models.Card, assignments map[string]int) ([]string, error) {
	if len(assignments) != len(current) {
		return nil, fmt.Errorf("%w: got %d assignments for %d cards", ErrInvalidOrder, len(assignments), len(current))
	}
	ids := make([]string, len(current))
	for _, card := range current {
		idx, ok := assignments[card.ID]
		if !ok {
			return nil, fmt.Errorf("%w: card '%s' has no assignment", ErrInvalidOrder, card.ID)
		}
		if idx < 0 || idx >= len(ids) {
			return nil, fmt.Errorf("%w: index %d out of range for card '%s'", ErrInvalidOrder, idx, card.ID)
		}
		if ids[idx] != "" {
			return nil, fmt.Errorf("%w: index %d assigned to both '%s' and '%s'", ErrInvalidOrder, idx, ids[idx], card.ID)
		}
		ids[idx] = card.ID
	}
	return ids, nil
}

// DuplicateAdjacent pre-generates the copy's id so creation and renumbering
// commit together.
func (e *cardOrderEngine) DuplicateAdjacent(ctx context.Context, deckID string, source *models.Card, current []*models.Card) (*models.Card, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: no source card", ErrInvalidInput)
	}
	ids := models.CardIDs(current)
	pos := indexOf(ids, source.ID)
	if pos < 0 {
		return nil, fmt.Errorf("%w: card '%s' is not in deck '%s'", ErrCardNotFound, source.ID, deckID)
	}

	now := e.now()
	dup := &models.Card{
		ID:        e.cards.NewID(deckID),
		DeckID:    deckID,
		Title:     source.Title + " (Copy)",
		Body:      source.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	order := make([]string, 0, len(ids)+1)
	order = append(order, ids[:pos+1]...)
	order = append(order, dup.ID)
	order = append(order, ids[pos+1:]...)
	dup.OrderIndex = pos + 1

	if err := e.commitOrder(ctx, deckID, order, dup); err != nil {
		return nil, fmt.Errorf("failed to duplicate card '%s' in deck '%s': %w", source.ID, deckID, err)
	}
	return dup, nil
}

// commitOrder writes orderIndex = position for every id plus the deck bump.
// When created is non-nil it is inserted instead of updated.
func (e *cardOrderEngine) commitOrder(ctx context.Context, deckID string, ids []string, created *models.Card) error {
	if err := checkRenumberSize(deckID, len(ids)); err != nil {
		return err
	}
	now := e.now()
	batch := e.store.Batch()
	for i, id := range ids {
		if created != nil && id == created.ID {
			created.OrderIndex = i
			e.cards.StageCreate(batch, created)
			continue
		}
		e.cards.StageOrderIndex(batch, deckID, id, i, now)
	}
	e.decks.StageTouch(batch, deckID, now)
	return e.commit(ctx, deckID, batch)
}

func (e *cardOrderEngine) commit(ctx context.Context, deckID string, batch db.WriteBatch) error {
	writes := batch.Len()
	if err := batch.Commit(ctx); err != nil {
		e.logger.Debug("Batch commit failed", zap.String("deck_id", deckID), zap.Int("writes", writes), zap.Error(err))
		return err
	}
	e.logger.Debug("Batch committed", zap.String("deck_id", deckID), zap.Int("writes", writes))
	return nil
}

func (e *cardOrderEngine) ToggleFavorite(ctx context.Context, card *models.Card) (bool, error) {
	next := !card.Favorite
	if err := e.setFlag(ctx, card, db.CardFlagFavorite, next); err != nil {
		return card.Favorite, err
	}
	return next, nil
}

func (e *cardOrderEngine) Archive(ctx context.Context, card *models.Card) error {
	return e.setFlag(ctx, card, db.CardFlagArchived, true)
}

func (e *cardOrderEngine) Unarchive(ctx context.Context, card *models.Card) error {
	return e.setFlag(ctx, card, db.CardFlagArchived, false)
}

// setFlag is a single-document update; orderIndex is left alone.
func (e *cardOrderEngine) setFlag(ctx context.Context, card *models.Card, flag db.CardFlag, value bool) error {
	if card == nil || card.ID == "" || card.DeckID == "" {
		return fmt.Errorf("%w: card must carry id and deckId", ErrInvalidInput)
	}
	batch := e.store.Batch()
	e.cards.StageFlag(batch, card.DeckID, card.ID, flag, value, e.now())
	if err := e.commit(ctx, card.DeckID, batch); err != nil {
		return fmt.Errorf("failed to set %s on card '%s': %w", flag, card.ID, notFoundAs(err, ErrCardNotFound))
	}
	return nil
}

func checkRenumberSize(deckID string, cards int) error {
	if cards > maxDeckCards {
		return fmt.Errorf("%w: deck '%s' would hold %d cards, at most %d can be renumbered atomically",
			ErrDeckTooLarge, deckID, cards, maxDeckCards)
	}
	return nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func firstDuplicate(ids []string) string {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id
		}
		seen[id] = struct{}{}
	}
	return ""
}
