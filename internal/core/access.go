package core

import (
	"context"
	"fmt"

	"flashdeck-backend-go/internal/db"
	"flashdeck-backend-go/internal/models"
)

// accessGuard enforces deck roles on the server. The Admin SDK bypasses
// Firestore security rules, so the facades check them here:
// owner and editor write, viewer reads, only the owner manages roles and
// deletes the deck.
type accessGuard struct {
	decks db.DeckRepository
}

func (g accessGuard) load(ctx context.Context, uid, deckID string) (*models.Deck, models.Role, error) {
	if uid == "" {
		return nil, "", fmt.Errorf("%w: no identity", ErrPermissionDenied)
	}
	deck, err := g.decks.GetByID(ctx, deckID)
	if err != nil {
		return nil, "", notFoundAs(err, ErrDeckNotFound)
	}
	role, ok := deck.RoleOf(uid)
	if !ok {
		return nil, "", fmt.Errorf("%w: user '%s' has no access to deck '%s'", ErrPermissionDenied, uid, deckID)
	}
	return deck, role, nil
}

func (g accessGuard) requireRead(ctx context.Context, uid, deckID string) (*models.Deck, models.Role, error) {
	return g.load(ctx, uid, deckID)
}

func (g accessGuard) requireWrite(ctx context.Context, uid, deckID string) (*models.Deck, error) {
	deck, role, err := g.load(ctx, uid, deckID)
	if err != nil {
		return nil, err
	}
	if !role.CanWrite() {
		return nil, fmt.Errorf("%w: role '%s' cannot modify deck '%s'", ErrPermissionDenied, role, deckID)
	}
	return deck, nil
}

func (g accessGuard) requireOwner(ctx context.Context, uid, deckID string) (*models.Deck, error) {
	deck, role, err := g.load(ctx, uid, deckID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleOwner {
		return nil, fmt.Errorf("%w: only the owner may do this on deck '%s'", ErrPermissionDenied, deckID)
	}
	return deck, nil
}
