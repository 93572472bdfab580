package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashdeck-backend-go/internal/db"
	"flashdeck-backend-go/internal/models"
)

func TestCardService_CreateCardAppends(t *testing.T) {
	env := newTestEnv(t)
	env.seedDeck("D", "owner", map[string]models.Role{"ed": models.RoleEditor}, baseTime)
	env.seedCards("D", "A", "B")

	card, err := env.svc.Cards.CreateCard(env.ctx, "ed", "D", models.CreateCardRequest{Title: " hola ", Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hola", card.Title)
	assert.Equal(t, 2, card.OrderIndex)
	assert.Equal(t, []string{"A", "B", card.ID}, env.order("D"))
	assert.Equal(t, 1, env.store.Commits())
	assert.Equal(t, 2, env.store.Writes(), "card create and deck bump")

	deck, err := env.decks.GetByID(env.ctx, "D")
	require.NoError(t, err)
	assert.True(t, deck.UpdatedAt.After(baseTime))

	_, err = env.svc.Cards.CreateCard(env.ctx, "ed", "D", models.CreateCardRequest{Title: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCardService_ViewerIsReadOnly(t *testing.T) {
	env := newTestEnv(t)
	env.seedDeck("D", "owner", map[string]models.Role{"vw": models.RoleViewer}, baseTime)
	env.seedCards("D", "A", "B")

	cards, err := env.svc.Cards.ListCards(env.ctx, "vw", "D", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, models.CardIDs(cards))
	_, err = env.svc.Cards.GetCard(env.ctx, "vw", "D", "A")
	require.NoError(t, err)

	denied := []func() error{
		func() error {
			_, err := env.svc.Cards.CreateCard(env.ctx, "vw", "D", models.CreateCardRequest{Title: "x"})
			return err
		},
		func() error {
			_, err := env.svc.Cards.UpdateCard(env.ctx, "vw", "D", "A", models.UpdateCardRequest{Body: strPtr("x")})
			return err
		},
		func() error { return env.svc.Cards.DeleteCard(env.ctx, "vw", "D", "A") },
		func() error { _, err := env.svc.Cards.MoveDown(env.ctx, "vw", "D", "A"); return err },
		func() error { _, err := env.svc.Cards.MoveUp(env.ctx, "vw", "D", "B"); return err },
		func() error {
			_, err := env.svc.Cards.Reorder(env.ctx, "vw", "D", map[string]int{"A": 1, "B": 0})
			return err
		},
		func() error { _, err := env.svc.Cards.Renumber(env.ctx, "vw", "D"); return err },
		func() error { _, err := env.svc.Cards.Duplicate(env.ctx, "vw", "D", "A"); return err },
		func() error { _, err := env.svc.Cards.ToggleFavorite(env.ctx, "vw", "D", "A"); return err },
		func() error { _, err := env.svc.Cards.SetArchived(env.ctx, "vw", "D", "A", true); return err },
	}
	for i, op := range denied {
		assert.ErrorIsf(t, op(), ErrPermissionDenied, "operation %d", i)
	}
	assert.Equal(t, 0, env.store.Writes())

	_, err = env.svc.Cards.ListCards(env.ctx, "stranger", "D", false)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCardService_UpdateCard(t *testing.T) {
	env := newTestEnv(t)
	env.seedDeck("D", "owner", nil, baseTime)
	env.seedCards("D", "A")

	card, err := env.svc.Cards.UpdateCard(env.ctx, "owner", "D", "A", models.UpdateCardRequest{Title: strPtr(" uno ")})
	require.NoError(t, err)
	assert.Equal(t, "uno", card.Title)
	assert.Equal(t, "body A", card.Body)
	assert.Equal(t, 0, card.OrderIndex)
	assert.Equal(t, 1, env.store.Commits())
	assert.Equal(t, 2, env.store.Writes(), "card plus deck bump")
	deck, err := env.decks.GetByID(env.ctx, "D")
	require.NoError(t, err)
	assert.True(t, deck.UpdatedAt.After(baseTime), "editing a card bumps the deck")

	card, err = env.svc.Cards.UpdateCard(env.ctx, "owner", "D", "A", models.UpdateCardRequest{Body: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, "uno", card.Title)
	assert.Empty(t, card.Body)

	_, err = env.svc.Cards.UpdateCard(env.ctx, "owner", "D", "A", models.UpdateCardRequest{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.svc.Cards.UpdateCard(env.ctx, "owner", "D", "A", models.UpdateCardRequest{Title: strPtr("  ")})
	assert.ErrorIs(t, err, ErrInvalidInput)
	writes := env.store.Writes()
	_, err = env.svc.Cards.UpdateCard(env.ctx, "owner", "D", "Z", models.UpdateCardRequest{Title: strPtr("x")})
	assert.ErrorIs(t, err, ErrCardNotFound)
	assert.Equal(t, writes, env.store.Writes(), "failed edit leaves the deck untouched")
}

func TestCardService_DeleteCardRenumbers(t *testing.T) {
	env := newTestEnv(t)
	env.seedDeck("D", "owner", nil, baseTime)
	env.seedCards("D", "A", "B", "C", "D")

	require.NoError(t, env.svc.Cards.DeleteCard(env.ctx, "owner", "D", "B"))
	cards := env.current("D")
	assert.Equal(t, []string{"A", "C", "D"}, models.CardIDs(cards))
	requireContiguous(t, cards)
	assert.Equal(t, 1, env.store.Commits())

	err := env.svc.Cards.DeleteCard(env.ctx, "owner", "D", "B")
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestCardService_ArchivedCardsKeepTheirSlot(t *testing.T) {
	env := newTestEnv(t)
	env.seedDeck("D", "owner", nil, baseTime)
	env.seedCards("D", "A", "B", "C")

	card, err := env.svc.Cards.SetArchived(env.ctx, "owner", "D", "B", true)
	require.NoError(t, err)
	assert.True(t, card.Archived)

	visible, err := env.svc.Cards.ListCards(env.ctx, "owner", "D", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, models.CardIDs(visible))

	all, err := env.svc.Cards.ListCards(env.ctx, "owner", "D", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, models.CardIDs(all))
	requireContiguous(t, all)

	card, err = env.svc.Cards.SetArchived(env.ctx, "owner", "D", "B", false)
	require.NoError(t, err)
	assert.False(t, card.Archived)
	assert.Equal(t, 1, env.card("D", "B").OrderIndex)
}

func TestCardService_OrderOperations(t *testing.T) {
	env := newTestEnv(t)
	env.seedDeck("D", "owner", map[string]models.Role{"ed": models.RoleEditor}, baseTime)
	env.seedCards("D", "A", "B", "C")

	cards, err := env.svc.Cards.MoveUp(env.ctx, "ed", "D", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "B"}, models.CardIDs(cards))

	_, err = env.svc.Cards.MoveUp(env.ctx, "ed", "D", "A")
	assert.ErrorIs(t, err, ErrInvalidMove)

	cards, err = env.svc.Cards.MoveDown(env.ctx, "ed", "D", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, models.CardIDs(cards))

	cards, err = env.svc.Cards.Reorder(env.ctx, "ed", "D", map[string]int{"A": 0, "B": 1, "C": 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, models.CardIDs(cards))

	_, err = env.svc.Cards.Reorder(env.ctx, "ed", "D", map[string]int{"A": 0})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	dup, err := env.svc.Cards.Duplicate(env.ctx, "ed", "D", "A")
	require.NoError(t, err)
	assert.Equal(t, "A (Copy)", dup.Title)
	assert.Equal(t, []string{"A", dup.ID, "B", "C"}, env.order("D"))

	_, err = env.svc.Cards.Duplicate(env.ctx, "ed", "D", "Z")
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestCardService_RenumberClosesGaps(t *testing.T) {
	env := newTestEnv(t)
	env.seedDeck("D", "owner", nil, baseTime)
	env.store.Seed(db.CardRef("D", "A"), map[string]any{"deckId": "D", "title": "A", "orderIndex": 3})
	env.store.Seed(db.CardRef("D", "B"), map[string]any{"deckId": "D", "title": "B", "orderIndex": 7})
	// Legacy card without deckId.
	env.store.Seed(db.CardRef("D", "C"), map[string]any{"title": "C", "orderIndex": 11})

	cards, err := env.svc.Cards.Renumber(env.ctx, "owner", "D")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, models.CardIDs(cards))
	requireContiguous(t, cards)
	assert.Equal(t, "D", cards[2].DeckID)
}

func TestCardService_ToggleFavorite(t *testing.T) {
	env := newTestEnv(t)
	env.seedDeck("D", "owner", nil, baseTime)
	env.seedCards("D", "A")

	card, err := env.svc.Cards.ToggleFavorite(env.ctx, "owner", "D", "A")
	require.NoError(t, err)
	assert.True(t, card.Favorite)
	assert.True(t, env.card("D", "A").Favorite)

	_, err = env.svc.Cards.ToggleFavorite(env.ctx, "owner", "D", "Z")
	assert.ErrorIs(t, err, ErrCardNotFound)
}
