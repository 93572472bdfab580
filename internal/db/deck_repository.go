package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"flashdeck-backend-go/internal/models"
)

const (
	deckFieldTitle     = "title"
	deckFieldOwnerID   = "ownerId"
	deckFieldRoles     = "roles"
	deckFieldCreatedAt = "createdAt"
	deckFieldUpdatedAt = "updatedAt"
)

// storeDeckRepository implements DeckRepository on a DocumentStore.
type storeDeckRepository struct {
	store  DocumentStore
	logger *zap.Logger
}

// NewDeckRepository creates a DeckRepository backed by store.
func NewDeckRepository(store DocumentStore, logger *zap.Logger) DeckRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &storeDeckRepository{store: store, logger: logger}
}

func ownedDecksQuery(ownerID string) Query {
	return Query{Collection: DecksCollection}.
		Where(deckFieldOwnerID, OpEqual, ownerID).
		Order(deckFieldUpdatedAt, true)
}

// collaborativeDecksQuery matches decks whose roles map grants uid a
// collaborator role.
func collaborativeDecksQuery(uid string) Query {
	roles := make([]string, len(models.CollaboratorRoles))
	for i, r := range models.CollaboratorRoles {
		roles[i] = string(r)
	}
	return Query{Collection: DecksCollection}.
		Where(deckFieldRoles+"."+uid, OpIn, roles).
		Order(deckFieldUpdatedAt, true)
}

// IsCollaborativeDecksQuery reports whether q is the collaborative decks query.
// Tests use it to target fault injection.
func IsCollaborativeDecksQuery(q Query) bool {
	return q.Collection == DecksCollection && len(q.Filters) == 1 && q.Filters[0].Op == OpIn
}

// IsOwnedDecksQuery reports whether q is the owned decks query.
func IsOwnedDecksQuery(q Query) bool {
	return q.Collection == DecksCollection && len(q.Filters) == 1 &&
		q.Filters[0].Path == deckFieldOwnerID && q.Filters[0].Op == OpEqual
}

func decodeDeck(doc Document) (*models.Deck, error) {
	var deck models.Deck
	if err := doc.DataTo(&deck); err != nil {
		return nil, fmt.Errorf("failed to decode deck data for ID '%s': %w", doc.Ref().ID, err)
	}
	deck.ID = doc.Ref().ID
	return &deck, nil
}

// decodeDecks skips documents that fail to decode so one malformed deck does
// not hide the rest of a listing.
func (r *storeDeckRepository) decodeDecks(docs []Document) []*models.Deck {
	decks := make([]*models.Deck, 0, len(docs))
	for _, doc := range docs {
		deck, err := decodeDeck(doc)
		if err != nil {
			r.logger.Warn("Skipping undecodable deck", zap.String("deck_id", doc.Ref().ID), zap.Error(err))
			continue
		}
		decks = append(decks, deck)
	}
	return decks
}

func (r *storeDeckRepository) GetByID(ctx context.Context, deckID string) (*models.Deck, error) {
	if deckID == "" {
		return nil, errors.New("deckID cannot be empty for GetByID operation")
	}
	doc, err := r.store.Get(ctx, DeckRef(deckID))
	if err != nil {
		return nil, fmt.Errorf("failed to get deck with ID '%s': %w", deckID, err)
	}
	return decodeDeck(doc)
}

func (r *storeDeckRepository) ListOwned(ctx context.Context, ownerID string) ([]*models.Deck, error) {
	docs, err := r.store.Query(ctx, ownedDecksQuery(ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list decks owned by '%s': %w", ownerID, err)
	}
	return r.decodeDecks(docs), nil
}

func (r *storeDeckRepository) ListCollaborative(ctx context.Context, uid string) ([]*models.Deck, error) {
	docs, err := r.store.Query(ctx, collaborativeDecksQuery(uid))
	if err != nil {
		return nil, fmt.Errorf("failed to list decks shared with '%s': %w", uid, err)
	}
	return r.decodeDecks(docs), nil
}

func (r *storeDeckRepository) SubscribeOwned(ctx context.Context, ownerID string, onNext func([]*models.Deck), onError func(error)) func() {
	return r.store.Subscribe(ctx, ownedDecksQuery(ownerID),
		func(docs []Document) { onNext(r.decodeDecks(docs)) },
		onError)
}

func (r *storeDeckRepository) SubscribeCollaborative(ctx context.Context, uid string, onNext func([]*models.Deck), onError func(error)) func() {
	return r.store.Subscribe(ctx, collaborativeDecksQuery(uid),
		func(docs []Document) { onNext(r.decodeDecks(docs)) },
		onError)
}

func (r *storeDeckRepository) NewID() string {
	return r.store.NewID(DecksCollection)
}

func (r *storeDeckRepository) StageCreate(b WriteBatch, deck *models.Deck) {
	roles := make(map[string]any, len(deck.Roles))
	for uid, role := range deck.Roles {
		roles[uid] = string(role)
	}
	b.Create(DeckRef(deck.ID), map[string]any{
		deckFieldTitle:     deck.Title,
		deckFieldOwnerID:   deck.OwnerID,
		deckFieldRoles:     roles,
		deckFieldCreatedAt: deck.CreatedAt,
		deckFieldUpdatedAt: deck.UpdatedAt,
	})
}

func (r *storeDeckRepository) StageRename(b WriteBatch, deckID, title string, at time.Time) {
	b.Update(DeckRef(deckID), map[string]any{
		deckFieldTitle:     title,
		deckFieldUpdatedAt: at,
	})
}

func (r *storeDeckRepository) StageSetRole(b WriteBatch, deckID, uid string, role models.Role, at time.Time) {
	b.Update(DeckRef(deckID), map[string]any{
		deckFieldRoles + "." + uid: string(role),
		deckFieldUpdatedAt:         at,
	})
}

func (r *storeDeckRepository) StageRemoveRole(b WriteBatch, deckID, uid string, at time.Time) {
	b.Update(DeckRef(deckID), map[string]any{
		deckFieldRoles + "." + uid: DeleteField,
		deckFieldUpdatedAt:         at,
	})
}

func (r *storeDeckRepository) StageTouch(b WriteBatch, deckID string, at time.Time) {
	b.Update(DeckRef(deckID), map[string]any{deckFieldUpdatedAt: at})
}

func (r *storeDeckRepository) StageDelete(b WriteBatch, deckID string) {
	b.Delete(DeckRef(deckID))
}
