package core

import (
	"errors"
	"fmt"

	"flashdeck-backend-go/internal/db"
)

var (
	// ErrInvalidMove is returned when a card cannot move in the requested
	// direction or is missing from the supplied ordering. Usually the caller
	// holds a stale copy of the deck.
	ErrInvalidMove = errors.New("invalid move")
	// ErrInvalidOrder is returned when a reorder assignment is not a
	// permutation of 0..n-1 over the deck's current cards.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrDeckTooLarge is returned when renumbering a deck would exceed the
	// writes one atomic batch can carry.
	ErrDeckTooLarge = errors.New("deck too large")

	// Store-level errors surface unchanged so callers can match either package.
	ErrPermissionDenied = db.ErrPermissionDenied
	ErrNotFound         = db.ErrNotFound
	ErrStoreUnavailable = db.ErrStoreUnavailable

	ErrDeckNotFound         = fmt.Errorf("deck %w", ErrNotFound)
	ErrCardNotFound         = fmt.Errorf("card %w", ErrNotFound)
	ErrSnapshotNotFound     = fmt.Errorf("snapshot %w", ErrNotFound)
	ErrCollaboratorNotFound = fmt.Errorf("collaborator %w", ErrNotFound)

	ErrInvalidRole         = errors.New("invalid collaborator role")
	ErrCannotShareWithSelf = errors.New("cannot share deck with its owner")
	ErrInvalidInput        = errors.New("invalid input")
)

// notFoundAs rewrites a store not-found error into the entity-specific one,
// keeping the original chain.
func notFoundAs(err, sentinel error) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
