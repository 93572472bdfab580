package core

import (
	"context"
	"iter"

	"flashdeck-backend-go/internal/models"
)

// OrderEngine maintains the dense orderIndex sequence of a deck's cards.
// It does not check roles; callers go through CardService for that.
type OrderEngine interface {
	// MoveUp and MoveDown treat current as the display order.
	MoveUp(ctx context.Context, deckID, cardID string, current []*models.Card) error
	MoveDown(ctx context.Context, deckID, cardID string, current []*models.Card) error
	// Reorder applies a complete cardId -> orderIndex permutation.
	Reorder(ctx context.Context, deckID string, assignments map[string]int) error
	DuplicateAdjacent(ctx context.Context, deckID string, source *models.Card, current []*models.Card) (*models.Card, error)
	// ToggleFavorite returns the new favorite value.
	ToggleFavorite(ctx context.Context, card *models.Card) (bool, error)
	Archive(ctx context.Context, card *models.Card) error
	Unarchive(ctx context.Context, card *models.Card) error
}

// SnapshotStore persists named card orderings per deck.
type SnapshotStore interface {
	Save(ctx context.Context, deckID, name string, cardOrder []string) (*models.OrderSnapshot, error)
	List(ctx context.Context, deckID string) iter.Seq2[*models.OrderSnapshot, error]
	Get(ctx context.Context, deckID, snapshotID string) (*models.OrderSnapshot, error)
	Rename(ctx context.Context, deckID, snapshotID, name string) error
	Delete(ctx context.Context, deckID, snapshotID string) error
}

// DeckService defines deck operations performed on behalf of an identity.
type DeckService interface {
	CreateDeck(ctx context.Context, uid string, req models.CreateDeckRequest) (*models.Deck, error)
	GetDeck(ctx context.Context, uid, deckID string) (*models.AccessibleDeck, error)
	RenameDeck(ctx context.Context, uid, deckID string, req models.UpdateDeckRequest) (*models.Deck, error)
	// DeleteDeck removes the deck with its cards and snapshots. Owner only.
	DeleteDeck(ctx context.Context, uid, deckID string) error
	ShareDeck(ctx context.Context, ownerID, deckID, targetUID string, role models.Role) error
	RemoveCollaborator(ctx context.Context, ownerID, deckID, targetUID string) error
	// ListAccessible is the one-shot form of the accessible decks view.
	ListAccessible(ctx context.Context, uid string) (*AccessibleDecksView, error)
	// WatchAccessible streams the live accessible decks view until stop is called.
	WatchAccessible(ctx context.Context, uid string, onChange func(AccessibleDecksView)) (stop func())
}

// CardService defines card operations performed on behalf of an identity.
type CardService interface {
	CreateCard(ctx context.Context, uid, deckID string, req models.CreateCardRequest) (*models.Card, error)
	GetCard(ctx context.Context, uid, deckID, cardID string) (*models.Card, error)
	UpdateCard(ctx context.Context, uid, deckID, cardID string, req models.UpdateCardRequest) (*models.Card, error)
	DeleteCard(ctx context.Context, uid, deckID, cardID string) error
	ListCards(ctx context.Context, uid, deckID string, includeArchived bool) ([]*models.Card, error)

	MoveUp(ctx context.Context, uid, deckID, cardID string) ([]*models.Card, error)
	MoveDown(ctx context.Context, uid, deckID, cardID string) ([]*models.Card, error)
	Reorder(ctx context.Context, uid, deckID string, assignments map[string]int) ([]*models.Card, error)
	// Renumber rewrites 0..n-1 in the current display order.
	Renumber(ctx context.Context, uid, deckID string) ([]*models.Card, error)
	Duplicate(ctx context.Context, uid, deckID, cardID string) (*models.Card, error)
	ToggleFavorite(ctx context.Context, uid, deckID, cardID string) (*models.Card, error)
	SetArchived(ctx context.Context, uid, deckID, cardID string, archived bool) (*models.Card, error)
}

// SnapshotService defines order snapshot operations performed on behalf of an identity.
type SnapshotService interface {
	SaveSnapshot(ctx context.Context, uid, deckID string, req models.SaveSnapshotRequest) (*models.OrderSnapshot, error)
	// ListSnapshots returns snapshots newest first.
	ListSnapshots(ctx context.Context, uid, deckID string) ([]*models.OrderSnapshot, error)
	RenameSnapshot(ctx context.Context, uid, deckID, snapshotID string, req models.RenameSnapshotRequest) (*models.OrderSnapshot, error)
	DeleteSnapshot(ctx context.Context, uid, deckID, snapshotID string) error
	// PreviewSnapshot returns the cards in the order ApplySnapshot would persist.
	PreviewSnapshot(ctx context.Context, uid, deckID, snapshotID string) ([]*models.Card, error)
	ApplySnapshot(ctx context.Context, uid, deckID, snapshotID string) ([]*models.Card, error)
}
