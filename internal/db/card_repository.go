package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"flashdeck-backend-go/internal/models"
)

// CardFlag names a boolean card field that toggles without touching order.
type CardFlag string

const (
	CardFlagFavorite CardFlag = "favorite"
	CardFlagArchived CardFlag = "archived"
)

const (
	cardFieldDeckID     = "deckId"
	cardFieldTitle      = "title"
	cardFieldBody       = "body"
	cardFieldOrderIndex = "orderIndex"
	cardFieldCreatedAt  = "createdAt"
	cardFieldUpdatedAt  = "updatedAt"
)

type storeCardRepository struct {
	store  DocumentStore
	logger *zap.Logger
}

// NewCardRepository creates a CardRepository backed by store.
func NewCardRepository(store DocumentStore, logger *zap.Logger) CardRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &storeCardRepository{store: store, logger: logger}
}

// decodeCard builds a Card from a raw document read under deckID.
//
// Legacy card documents were written without a deckId field. The deck the
// document was read under is substituted instead of rejecting the record;
// this is the only normalization applied to stored data.
func decodeCard(doc Document, deckID string) (*models.Card, error) {
	var card models.Card
	if err := doc.DataTo(&card); err != nil {
		return nil, fmt.Errorf("failed to decode card data for ID '%s': %w", doc.Ref().ID, err)
	}
	card.ID = doc.Ref().ID
	if card.DeckID == "" {
		card.DeckID = deckID
	}
	return &card, nil
}

// SortCards orders cards for display: orderIndex, then createdAt, then id.
func SortCards(cards []*models.Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		a, b := cards[i], cards[j]
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func (r *storeCardRepository) GetByID(ctx context.Context, deckID, cardID string) (*models.Card, error) {
	if deckID == "" || cardID == "" {
		return nil, errors.New("deckID and cardID cannot be empty for GetByID operation")
	}
	doc, err := r.store.Get(ctx, CardRef(deckID, cardID))
	if err != nil {
		return nil, fmt.Errorf("failed to get card '%s' in deck '%s': %w", cardID, deckID, err)
	}
	return decodeCard(doc, deckID)
}

// ListByDeck sorts client-side; ordering in the query would drop documents
// that lack an orderIndex.
func (r *storeCardRepository) ListByDeck(ctx context.Context, deckID string) ([]*models.Card, error) {
	var cards []*models.Card
	for doc, err := range r.store.Documents(ctx, Query{Collection: CardsCollection(deckID)}) {
		if err != nil {
			return nil, fmt.Errorf("failed to iterate cards for deck '%s': %w", deckID, err)
		}
		card, err := decodeCard(doc, deckID)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	SortCards(cards)
	return cards, nil
}

func (r *storeCardRepository) NewID(deckID string) string {
	return r.store.NewID(CardsCollection(deckID))
}

func (r *storeCardRepository) StageCreate(b WriteBatch, card *models.Card) {
	fields := map[string]any{
		cardFieldDeckID:     card.DeckID,
		cardFieldTitle:      card.Title,
		cardFieldBody:       card.Body,
		cardFieldOrderIndex: card.OrderIndex,
		cardFieldCreatedAt:  card.CreatedAt,
		cardFieldUpdatedAt:  card.UpdatedAt,
	}
	if card.Favorite {
		fields[string(CardFlagFavorite)] = true
	}
	if card.Archived {
		fields[string(CardFlagArchived)] = true
	}
	b.Create(CardRef(card.DeckID, card.ID), fields)
}

func (r *storeCardRepository) StageContent(b WriteBatch, deckID, cardID string, title, body *string, at time.Time) {
	fields := map[string]any{cardFieldUpdatedAt: at}
	if title != nil {
		fields[cardFieldTitle] = *title
	}
	if body != nil {
		fields[cardFieldBody] = *body
	}
	b.Update(CardRef(deckID, cardID), fields)
}

func (r *storeCardRepository) StageOrderIndex(b WriteBatch, deckID, cardID string, orderIndex int, at time.Time) {
	b.Update(CardRef(deckID, cardID), map[string]any{
		cardFieldOrderIndex: orderIndex,
		cardFieldUpdatedAt:  at,
	})
}

func (r *storeCardRepository) StageFlag(b WriteBatch, deckID, cardID string, flag CardFlag, value bool, at time.Time) {
	b.Update(CardRef(deckID, cardID), map[string]any{
		string(flag):       value,
		cardFieldUpdatedAt: at,
	})
}

func (r *storeCardRepository) StageDelete(b WriteBatch, deckID, cardID string) {
	b.Delete(CardRef(deckID, cardID))
}
