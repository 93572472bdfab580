package core

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"flashdeck-backend-go/internal/db"
	"flashdeck-backend-go/internal/models"
)

type orderSnapshotStore struct {
	store     db.DocumentStore
	snapshots db.SnapshotRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewSnapshotStore creates a SnapshotStore writing through store.
func NewSnapshotStore(store db.DocumentStore, snapshots db.SnapshotRepository, logger *zap.Logger) SnapshotStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &orderSnapshotStore{
		store:     store,
		snapshots: snapshots,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Save persists cardOrder as given. Names need not be unique.
func (s *orderSnapshotStore) Save(ctx context.Context, deckID, name string, cardOrder []string) (*models.OrderSnapshot, error) {
	snapshot := &models.OrderSnapshot{
		ID:        s.snapshots.NewID(deckID),
		DeckID:    deckID,
		Name:      name,
		CardOrder: append([]string(nil), cardOrder...),
		CreatedAt: s.now(),
	}
	batch := s.store.Batch()
	s.snapshots.StageCreate(batch, snapshot)
	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to save snapshot '%s' for deck '%s': %w", name, deckID, err)
	}
	s.logger.Debug("Snapshot saved", zap.String("deck_id", deckID), zap.String("snapshot_id", snapshot.ID))
	return snapshot, nil
}

func (s *orderSnapshotStore) List(ctx context.Context, deckID string) iter.Seq2[*models.OrderSnapshot, error] {
	return s.snapshots.List(ctx, deckID)
}

func (s *orderSnapshotStore) Get(ctx context.Context, deckID, snapshotID string) (*models.OrderSnapshot, error) {
	snapshot, err := s.snapshots.GetByID(ctx, deckID, snapshotID)
	if err != nil {
		return nil, notFoundAs(err, ErrSnapshotNotFound)
	}
	return snapshot, nil
}

func (s *orderSnapshotStore) Rename(ctx context.Context, deckID, snapshotID, name string) error {
	batch := s.store.Batch()
	s.snapshots.StageRename(batch, deckID, snapshotID, name)
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to rename snapshot '%s': %w", snapshotID, notFoundAs(err, ErrSnapshotNotFound))
	}
	return nil
}

// Delete checks existence first; the store treats deleting a missing
// document as success.
func (s *orderSnapshotStore) Delete(ctx context.Context, deckID, snapshotID string) error {
	if _, err := s.Get(ctx, deckID, snapshotID); err != nil {
		return err
	}
	batch := s.store.Batch()
	s.snapshots.StageDelete(batch, deckID, snapshotID)
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to delete snapshot '%s': %w", snapshotID, notFoundAs(err, ErrSnapshotNotFound))
	}
	return nil
}

// ApplySnapshot derives an orderIndex assignment for current from snapshot.
// Cards named by the snapshot come first in snapshot order; the rest follow
// in their existing display order. Ids the snapshot names that are no longer
// in current are ignored. It never writes.
func ApplySnapshot(snapshot *models.OrderSnapshot, current []*models.Card) map[string]int {
	sorted := append([]*models.Card(nil), current...)
	db.SortCards(sorted)

	present := make(map[string]bool, len(sorted))
	for _, card := range sorted {
		present[card.ID] = true
	}

	assignments := make(map[string]int, len(sorted))
	next := 0
	if snapshot != nil {
		for _, id := range snapshot.CardOrder {
			if !present[id] {
				continue
			}
			if _, placed := assignments[id]; placed {
				continue
			}
			assignments[id] = next
			next++
		}
	}
	for _, card := range sorted {
		if _, placed := assignments[card.ID]; placed {
			continue
		}
		assignments[card.ID] = next
		next++
	}
	return assignments
}

// OrderedIDs inverts an assignment produced by ApplySnapshot.
func OrderedIDs(assignments map[string]int) []string {
	ids := make([]string, len(assignments))
	for id, idx := range assignments {
		if idx >= 0 && idx < len(ids) {
			ids[idx] = id
		}
	}
	return ids
}
