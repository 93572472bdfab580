package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flashdeck-backend-go/internal/db"
	"flashdeck-backend-go/internal/models"
)

// maxBatchWrites stays under Firestore's per-commit write limit.
const maxBatchWrites = 450

// maxDeckCards is the largest deck whose full renumber (every card plus the
// deck bump) still fits in one batch.
const maxDeckCards = maxBatchWrites - 1

// deckService implements the DeckService interface.
type deckService struct {
	store     db.DocumentStore
	decks     db.DeckRepository
	cards     db.CardRepository
	snapshots db.SnapshotRepository
	guard     accessGuard
	logger    *zap.Logger
	now       func() time.Time
}

// NewDeckService creates a new DeckService instance.
func NewDeckService(
	store db.DocumentStore,
	decks db.DeckRepository,
	cards db.CardRepository,
	snapshots db.SnapshotRepository,
	logger *zap.Logger,
) DeckService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &deckService{
		store:     store,
		decks:     decks,
		cards:     cards,
		snapshots: snapshots,
		guard:     accessGuard{decks: decks},
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	}
	return title, nil
}

// CreateDeck creates a deck owned by uid with no collaborators.
func (s *deckService) CreateDeck(ctx context.Context, uid string, req models.CreateDeckRequest) (*models.Deck, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: no identity", ErrPermissionDenied)
	}
	title, err := cleanTitle(req.Title)
	if err != nil {
		return nil, err
	}

	now := s.now()
	deck := &models.Deck{
		ID:        s.decks.NewID(),
		Title:     title,
		OwnerID:   uid,
		Roles:     make(map[string]models.Role),
		CreatedAt: now,
		UpdatedAt: now,
	}
	batch := s.store.Batch()
	s.decks.StageCreate(batch, deck)
	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to create deck: %w", err)
	}
	s.logger.Info("Deck created", zap.String("deck_id", deck.ID), zap.String("owner_id", uid))
	return deck, nil
}

// GetDeck returns the deck annotated with uid's role.
func (s *deckService) GetDeck(ctx context.Context, uid, deckID string) (*models.AccessibleDeck, error) {
	deck, role, err := s.guard.requireRead(ctx, uid, deckID)
	if err != nil {
		return nil, err
	}
	return &models.AccessibleDeck{Deck: *deck, EffectiveRole: role}, nil
}

func (s *deckService) RenameDeck(ctx context.Context, uid, deckID string, req models.UpdateDeckRequest) (*models.Deck, error) {
	if req.Title == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	title, err := cleanTitle(*req.Title)
	if err != nil {
		return nil, err
	}
	deck, err := s.guard.requireWrite(ctx, uid, deckID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	batch := s.store.Batch()
	s.decks.StageRename(batch, deckID, title, now)
	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to rename deck '%s': %w", deckID, notFoundAs(err, ErrDeckNotFound))
	}
	deck.Title = title
	deck.UpdatedAt = now
	return deck, nil
}

// DeleteDeck deletes cards and snapshots in chunks and the deck itself last,
// so an interrupted delete leaves a deck the owner can delete again.
func (s *deckService) DeleteDeck(ctx context.Context, uid, deckID string) error {
	if _, err := s.guard.requireOwner(ctx, uid, deckID); err != nil {
		return err
	}

	cards, err := s.cards.ListByDeck(ctx, deckID)
	if err != nil {
		return fmt.Errorf("failed to list cards of deck '%s' for deletion: %w", deckID, err)
	}
	var deletes []func(db.WriteBatch)
	for _, c := range cards {
		cardID := c.ID
		deletes = append(deletes, func(b db.WriteBatch) { s.cards.StageDelete(b, deckID, cardID) })
	}
	for snap, err := range s.snapshots.List(ctx, deckID) {
		if err != nil {
			return fmt.Errorf("failed to list snapshots of deck '%s' for deletion: %w", deckID, err)
		}
		snapshotID := snap.ID
		deletes = append(deletes, func(b db.WriteBatch) { s.snapshots.StageDelete(b, deckID, snapshotID) })
	}

	for start := 0; start < len(deletes); start += maxBatchWrites {
		end := min(start+maxBatchWrites, len(deletes))
		batch := s.store.Batch()
		for _, stage := range deletes[start:end] {
			stage(batch)
		}
		if err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("failed to delete contents of deck '%s': %w", deckID, err)
		}
	}

	batch := s.store.Batch()
	s.decks.StageDelete(batch, deckID)
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to delete deck '%s': %w", deckID, err)
	}
	s.logger.Info("Deck deleted", zap.String("deck_id", deckID), zap.Int("children", len(deletes)))
	return nil
}

// ShareDeck grants targetUID an editor or viewer role. Owner only.
func (s *deckService) ShareDeck(ctx context.Context, ownerID, deckID, targetUID string, role models.Role) error {
	if !role.IsCollaborator() {
		return fmt.Errorf("%w: '%s'", ErrInvalidRole, role)
	}
	if strings.TrimSpace(targetUID) == "" {
		return fmt.Errorf("%w: target user id cannot be empty", ErrInvalidInput)
	}
	deck, err := s.guard.requireOwner(ctx, ownerID, deckID)
	if err != nil {
		return err
	}
	if targetUID == deck.OwnerID {
		return ErrCannotShareWithSelf
	}

	batch := s.store.Batch()
	s.decks.StageSetRole(batch, deckID, targetUID, role, s.now())
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to share deck '%s': %w", deckID, notFoundAs(err, ErrDeckNotFound))
	}
	s.logger.Info("Deck shared", zap.String("deck_id", deckID), zap.String("target_id", targetUID), zap.String("role", string(role)))
	return nil
}

func (s *deckService) RemoveCollaborator(ctx context.Context, ownerID, deckID, targetUID string) error {
	deck, err := s.guard.requireOwner(ctx, ownerID, deckID)
	if err != nil {
		return err
	}
	if _, ok := deck.Roles[targetUID]; !ok {
		return fmt.Errorf("%w: user '%s' on deck '%s'", ErrCollaboratorNotFound, targetUID, deckID)
	}

	batch := s.store.Batch()
	s.decks.StageRemoveRole(batch, deckID, targetUID, s.now())
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to remove collaborator from deck '%s': %w", deckID, notFoundAs(err, ErrDeckNotFound))
	}
	return nil
}

// ListAccessible runs both queries concurrently. A failing collaborative
// query degrades the result instead of failing it.
func (s *deckService) ListAccessible(ctx context.Context, uid string) (*AccessibleDecksView, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: no identity", ErrPermissionDenied)
	}

	var (
		g         errgroup.Group
		owned     []*models.Deck
		collab    []*models.Deck
		collabErr error
	)
	g.Go(func() error {
		var err error
		owned, err = s.decks.ListOwned(ctx, uid)
		return err
	})
	g.Go(func() error {
		collab, collabErr = s.decks.ListCollaborative(ctx, uid)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if collabErr != nil {
		if errors.Is(collabErr, context.Canceled) {
			return nil, collabErr
		}
		s.logger.Warn("Collaborative decks query failed, serving owned decks only",
			zap.String("identity", uid), zap.Error(collabErr))
	}

	return &AccessibleDecksView{
		Identity:  uid,
		Decks:     MergeAccessibleDecks(uid, owned, collab),
		CollabErr: collabErr,
	}, nil
}

func (s *deckService) WatchAccessible(ctx context.Context, uid string, onChange func(AccessibleDecksView)) func() {
	agg := NewAccessibleDecksAggregator(ctx, s.decks, s.logger, onChange)
	agg.SetIdentity(uid)
	return agg.Close
}
