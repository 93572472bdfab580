package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"flashdeck-backend-go/internal/db"
	"flashdeck-backend-go/internal/models"
)

// cardService implements CardService. Order-changing calls load the deck's
// persisted cards and hand them to the OrderEngine as the current order.
type cardService struct {
	store  db.DocumentStore
	cards  db.CardRepository
	decks  db.DeckRepository
	engine OrderEngine
	guard  accessGuard
	logger *zap.Logger
	now    func() time.Time
}

// NewCardService creates a new CardService instance.
func NewCardService(store db.DocumentStore, cards db.CardRepository, decks db.DeckRepository, engine OrderEngine, logger *zap.Logger) CardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cardService{
		store:  store,
		cards:  cards,
		decks:  decks,
		engine: engine,
		guard:  accessGuard{decks: decks},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateCard appends the card at orderIndex n and bumps the deck in one batch.
func (s *cardService) CreateCard(ctx context.Context, uid, deckID string, req models.CreateCardRequest) (*models.Card, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	}
	if _, err := s.guard.requireWrite(ctx, uid, deckID); err != nil {
		return nil, err
	}
	current, err := s.cards.ListByDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if err := checkRenumberSize(deckID, len(current)+1); err != nil {
		return nil, err
	}

	now := s.now()
	card := &models.Card{
		ID:         s.cards.NewID(deckID),
		DeckID:     deckID,
		Title:      title,
		Body:       req.Body,
		OrderIndex: len(current),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	batch := s.store.Batch()
	s.cards.StageCreate(batch, card)
	s.decks.StageTouch(batch, deckID, now)
	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to create card in deck '%s': %w", deckID, notFoundAs(err, ErrDeckNotFound))
	}
	return card, nil
}

func (s *cardService) GetCard(ctx context.Context, uid, deckID, cardID string) (*models.Card, error) {
	if _, _, err := s.guard.requireRead(ctx, uid, deckID); err != nil {
		return nil, err
	}
	return s.getCard(ctx, deckID, cardID)
}

func (s *cardService) getCard(ctx context.Context, deckID, cardID string) (*models.Card, error) {
	card, err := s.cards.GetByID(ctx, deckID, cardID)
	if err != nil {
		return nil, notFoundAs(err, ErrCardNotFound)
	}
	return card, nil
}

// UpdateCard edits title and/or body and bumps the deck in the same batch.
func (s *cardService) UpdateCard(ctx context.Context, uid, deckID, cardID string, req models.UpdateCardRequest) (*models.Card, error) {
	if req.Title == nil && req.Body == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		req.Title = &title
	}
	if _, err := s.guard.requireWrite(ctx, uid, deckID); err != nil {
		return nil, err
	}

	now := s.now()
	batch := s.store.Batch()
	s.cards.StageContent(batch, deckID, cardID, req.Title, req.Body, now)
	s.decks.StageTouch(batch, deckID, now)
	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to update card '%s': %w", cardID, notFoundAs(err, ErrCardNotFound))
	}
	return s.getCard(ctx, deckID, cardID)
}

// DeleteCard removes the card and closes the gap it leaves, in one batch.
func (s *cardService) DeleteCard(ctx context.Context, uid, deckID, cardID string) error {
	if _, err := s.guard.requireWrite(ctx, uid, deckID); err != nil {
		return err
	}
	current, err := s.cards.ListByDeck(ctx, deckID)
	if err != nil {
		return err
	}
	if indexOf(models.CardIDs(current), cardID) < 0 {
		return fmt.Errorf("%w: '%s' in deck '%s'", ErrCardNotFound, cardID, deckID)
	}

	now := s.now()
	batch := s.store.Batch()
	s.cards.StageDelete(batch, deckID, cardID)
	next := 0
	for _, c := range current {
		if c.ID == cardID {
			continue
		}
		if c.OrderIndex != next {
			s.cards.StageOrderIndex(batch, deckID, c.ID, next, now)
		}
		next++
	}
	s.decks.StageTouch(batch, deckID, now)
	if batch.Len() > maxBatchWrites {
		return fmt.Errorf("%w: deleting card '%s' would renumber %d cards of deck '%s' at once",
			ErrDeckTooLarge, cardID, batch.Len()-2, deckID)
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to delete card '%s': %w", cardID, err)
	}
	s.logger.Debug("Card deleted", zap.String("deck_id", deckID), zap.String("card_id", cardID))
	return nil
}

// ListCards returns cards in display order. Archived cards keep their
// orderIndex slot and are filtered out unless includeArchived is set.
func (s *cardService) ListCards(ctx context.Context, uid, deckID string, includeArchived bool) ([]*models.Card, error) {
	if _, _, err := s.guard.requireRead(ctx, uid, deckID); err != nil {
		return nil, err
	}
	cards, err := s.cards.ListByDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if includeArchived {
		return cards, nil
	}
	visible := cards[:0]
	for _, c := range cards {
		if !c.Archived {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

func (s *cardService) MoveUp(ctx context.Context, uid, deckID, cardID string) ([]*models.Card, error) {
	return s.withCurrent(ctx, uid, deckID, func(current []*models.Card) error {
		return s.engine.MoveUp(ctx, deckID, cardID, current)
	})
}

func (s *cardService) MoveDown(ctx context.Context, uid, deckID, cardID string) ([]*models.Card, error) {
	return s.withCurrent(ctx, uid, deckID, func(current []*models.Card) error {
		return s.engine.MoveDown(ctx, deckID, cardID, current)
	})
}

func (s *cardService) Reorder(ctx context.Context, uid, deckID string, assignments map[string]int) ([]*models.Card, error) {
	if _, err := s.guard.requireWrite(ctx, uid, deckID); err != nil {
		return nil, err
	}
	if err := s.engine.Reorder(ctx, deckID, assignments); err != nil {
		return nil, err
	}
	return s.cards.ListByDeck(ctx, deckID)
}

func (s *cardService) Renumber(ctx context.Context, uid, deckID string) ([]*models.Card, error) {
	return s.withCurrent(ctx, uid, deckID, func(current []*models.Card) error {
		assignments := make(map[string]int, len(current))
		for i, c := range current {
			assignments[c.ID] = i
		}
		return s.engine.Reorder(ctx, deckID, assignments)
	})
}

func (s *cardService) Duplicate(ctx context.Context, uid, deckID, cardID string) (*models.Card, error) {
	var dup *models.Card
	_, err := s.withCurrent(ctx, uid, deckID, func(current []*models.Card) error {
		pos := indexOf(models.CardIDs(current), cardID)
		if pos < 0 {
			return fmt.Errorf("%w: '%s' in deck '%s'", ErrCardNotFound, cardID, deckID)
		}
		var err error
		dup, err = s.engine.DuplicateAdjacent(ctx, deckID, current[pos], current)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dup, nil
}

func (s *cardService) ToggleFavorite(ctx context.Context, uid, deckID, cardID string) (*models.Card, error) {
	card, err := s.writableCard(ctx, uid, deckID, cardID)
	if err != nil {
		return nil, err
	}
	favorite, err := s.engine.ToggleFavorite(ctx, card)
	if err != nil {
		return nil, err
	}
	card.Favorite = favorite
	return card, nil
}

func (s *cardService) SetArchived(ctx context.Context, uid, deckID, cardID string, archived bool) (*models.Card, error) {
	card, err := s.writableCard(ctx, uid, deckID, cardID)
	if err != nil {
		return nil, err
	}
	if archived {
		err = s.engine.Archive(ctx, card)
	} else {
		err = s.engine.Unarchive(ctx, card)
	}
	if err != nil {
		return nil, err
	}
	card.Archived = archived
	return card, nil
}

func (s *cardService) writableCard(ctx context.Context, uid, deckID, cardID string) (*models.Card, error) {
	if _, err := s.guard.requireWrite(ctx, uid, deckID); err != nil {
		return nil, err
	}
	return s.getCard(ctx, deckID, cardID)
}

// withCurrent checks write access, runs op against the persisted order and
// returns the order after it.
func (s *cardService) withCurrent(ctx context.Context, uid, deckID string, op func(current []*models.Card) error) ([]*models.Card, error) {
	if _, err := s.guard.requireWrite(ctx, uid, deckID); err != nil {
		return nil, err
	}
	current, err := s.cards.ListByDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if err := op(current); err != nil {
		return nil, err
	}
	return s.cards.ListByDeck(ctx, deckID)
}
