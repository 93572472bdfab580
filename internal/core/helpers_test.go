package core

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flashdeck-backend-go/internal/db"
	"flashdeck-backend-go/internal/models"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	t     *testing.T
	ctx   context.Context
	store *db.MemoryStore
	decks db.DeckRepository
	cards db.CardRepository
	snaps db.SnapshotRepository
	svc   *Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := db.NewMemoryStore(nil)
	return &testEnv{
		t:     t,
		ctx:   context.Background(),
		store: store,
		decks: db.NewDeckRepository(store, nil),
		cards: db.NewCardRepository(store, nil),
		snaps: db.NewSnapshotRepository(store, nil),
		svc:   NewServices(store, nil),
	}
}

func (e *testEnv) seedDeck(id, owner string, roles map[string]models.Role, updatedAt time.Time) {
	r := make(map[string]any, len(roles))
	for uid, role := range roles {
		r[uid] = string(role)
	}
	e.store.Seed(db.DeckRef(id), map[string]any{
		"title":     "Deck " + id,
		"ownerId":   owner,
		"roles":     r,
		"createdAt": baseTime,
		"updatedAt": updatedAt,
	})
}

// seedCards stores cards with orderIndex equal to their argument position.
func (e *testEnv) seedCards(deckID string, ids ...string) {
	for i, id := range ids {
		e.store.Seed(db.CardRef(deckID, id), map[string]any{
			"deckId":     deckID,
			"title":      id,
			"body":       "body " + id,
			"orderIndex": i,
			"createdAt":  baseTime.Add(time.Duration(i) * time.Second),
			"updatedAt":  baseTime,
		})
	}
}

func (e *testEnv) current(deckID string) []*models.Card {
	e.t.Helper()
	cards, err := e.cards.ListByDeck(e.ctx, deckID)
	require.NoError(e.t, err)
	return cards
}

func (e *testEnv) order(deckID string) []string {
	return models.CardIDs(e.current(deckID))
}

func (e *testEnv) card(deckID, id string) *models.Card {
	e.t.Helper()
	card, err := e.cards.GetByID(e.ctx, deckID, id)
	require.NoError(e.t, err)
	return card
}

func (e *testEnv) engine() OrderEngine {
	return e.svc.Engine
}

// requireContiguous asserts orderIndex values are exactly 0..n-1.
func requireContiguous(t *testing.T, cards []*models.Card) {
	t.Helper()
	idx := make([]int, len(cards))
	for i, c := range cards {
		idx[i] = c.OrderIndex
	}
	sort.Ints(idx)
	for i, v := range idx {
		require.Equalf(t, i, v, "orderIndex values not contiguous: %v", idx)
	}
}
