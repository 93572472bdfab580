package db

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"flashdeck-backend-go/internal/models"
)

type storeSnapshotRepository struct {
	store  DocumentStore
	logger *zap.Logger
}

// NewSnapshotRepository creates a SnapshotRepository backed by store.
func NewSnapshotRepository(store DocumentStore, logger *zap.Logger) SnapshotRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &storeSnapshotRepository{store: store, logger: logger}
}

func decodeSnapshot(doc Document, deckID string) (*models.OrderSnapshot, error) {
	var snapshot models.OrderSnapshot
	if err := doc.DataTo(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot data for ID '%s': %w", doc.Ref().ID, err)
	}
	snapshot.ID = doc.Ref().ID
	if snapshot.DeckID == "" {
		snapshot.DeckID = deckID
	}
	return &snapshot, nil
}

func (r *storeSnapshotRepository) GetByID(ctx context.Context, deckID, snapshotID string) (*models.OrderSnapshot, error) {
	doc, err := r.store.Get(ctx, SnapshotRef(deckID, snapshotID))
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot '%s' in deck '%s': %w", snapshotID, deckID, err)
	}
	return decodeSnapshot(doc, deckID)
}

func (r *storeSnapshotRepository) List(ctx context.Context, deckID string) iter.Seq2[*models.OrderSnapshot, error] {
	return func(yield func(*models.OrderSnapshot, error) bool) {
		for doc, err := range r.store.Documents(ctx, Query{Collection: SnapshotsCollection(deckID)}) {
			if err != nil {
				yield(nil, fmt.Errorf("failed to iterate snapshots for deck '%s': %w", deckID, err))
				return
			}
			snapshot, err := decodeSnapshot(doc, deckID)
			if err != nil {
				r.logger.Warn("Skipping undecodable snapshot", zap.String("snapshot_id", doc.Ref().ID), zap.Error(err))
				continue
			}
			if !yield(snapshot, nil) {
				return
			}
		}
	}
}

func (r *storeSnapshotRepository) NewID(deckID string) string {
	return r.store.NewID(SnapshotsCollection(deckID))
}

func (r *storeSnapshotRepository) StageCreate(b WriteBatch, snapshot *models.OrderSnapshot) {
	order := make([]string, len(snapshot.CardOrder))
	copy(order, snapshot.CardOrder)
	b.Create(SnapshotRef(snapshot.DeckID, snapshot.ID), map[string]any{
		"deckId":    snapshot.DeckID,
		"name":      snapshot.Name,
		"cardOrder": order,
		"createdAt": snapshot.CreatedAt,
	})
}

func (r *storeSnapshotRepository) StageRename(b WriteBatch, deckID, snapshotID, name string) {
	b.Update(SnapshotRef(deckID, snapshotID), map[string]any{"name": name})
}

func (r *storeSnapshotRepository) StageDelete(b WriteBatch, deckID, snapshotID string) {
	b.Delete(SnapshotRef(deckID, snapshotID))
}
