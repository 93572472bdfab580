package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flashdeck-backend-go/internal/db"
	"flashdeck-backend-go/internal/models"
)

var seedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type cliEnv struct {
	t     *testing.T
	store *db.MemoryStore
}

func newCLIEnv(t *testing.T) *cliEnv {
	return &cliEnv{t: t, store: db.NewMemoryStore(nil)}
}

// run executes a fresh root command against the env's store.
func (e *cliEnv) run(ctx context.Context, args ...string) (string, error) {
	e.t.Helper()
	opts := &RootOptions{
		open: func(context.Context, *RootOptions) (*Backend, error) {
			return NewBackend(e.store, zap.NewNop()), nil
		},
	}
	cmd := newRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func (e *cliEnv) seedDeck(id, owner string, roles map[string]string, updatedAt time.Time) {
	r := make(map[string]any, len(roles))
	for uid, role := range roles {
		r[uid] = role
	}
	e.store.Seed(db.DeckRef(id), map[string]any{
		"title":     "Deck " + id,
		"ownerId":   owner,
		"roles":     r,
		"createdAt": seedTime,
		"updatedAt": updatedAt,
	})
}

func (e *cliEnv) seedCard(deckID, id string, orderIndex int, createdAt time.Time) {
	e.store.Seed(db.CardRef(deckID, id), map[string]any{
		"deckId":     deckID,
		"title":      id,
		"orderIndex": orderIndex,
		"createdAt":  createdAt,
		"updatedAt":  createdAt,
	})
}

func (e *cliEnv) cards(deckID string) []*models.Card {
	e.t.Helper()
	cards, err := db.NewCardRepository(e.store, nil).ListByDeck(context.Background(), deckID)
	require.NoError(e.t, err)
	return cards
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "flashctl", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"decks"},
		{"cards"},
		{"cards", "renumber"},
		{"snapshots"},
		{"snapshots", "list"},
		{"snapshots", "apply"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("env-file"))
}

func TestRequiredFlags(t *testing.T) {
	tests := []struct {
		args []string
		flag string
	}{
		{[]string{"decks"}, "user"},
		{[]string{"cards", "renumber"}, "deck"},
		{[]string{"snapshots", "list"}, "deck"},
		{[]string{"snapshots", "apply", "--deck", "d1"}, "snapshot"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			env := newCLIEnv(t)
			_, err := env.run(context.Background(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), `"`+tt.flag+`"`)
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(context.Background(), "decks", "--user", "u1", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestDecksCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.seedDeck("d1", "u1", nil, seedTime.Add(2*time.Hour))
	env.seedDeck("d2", "u2", map[string]string{"u1": "editor"}, seedTime.Add(time.Hour))
	env.seedDeck("d3", "u3", nil, seedTime.Add(3*time.Hour))

	t.Run("text", func(t *testing.T) {
		out, err := env.run(context.Background(), "decks", "--user", "u1")
		require.NoError(t, err)
		assert.Contains(t, out, "ID")
		assert.Contains(t, out, "Deck d1")
		assert.Contains(t, out, "editor")
		assert.NotContains(t, out, "Deck d3")
		assert.Less(t, strings.Index(out, "Deck d1"), strings.Index(out, "Deck d2"))
	})

	t.Run("json", func(t *testing.T) {
		out, err := env.run(context.Background(), "decks", "--user", "u1", "--format", "json")
		require.NoError(t, err)

		var got decksOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "u1", got.Identity)
		require.Len(t, got.Decks, 2)
		assert.Equal(t, "d1", got.Decks[0].ID)
		assert.Equal(t, models.RoleOwner, got.Decks[0].Role)
		assert.Equal(t, models.RoleEditor, got.Decks[1].Role)
		assert.False(t, got.Degraded)
	})

	t.Run("degraded", func(t *testing.T) {
		env.store.SetQueryFault(func(q db.Query) error {
			if db.IsCollaborativeDecksQuery(q) {
				return db.ErrStoreUnavailable
			}
			return nil
		})
		defer env.store.SetQueryFault(nil)

		out, err := env.run(context.Background(), "decks", "--user", "u1")
		require.NoError(t, err)
		assert.Contains(t, out, "warning: shared decks unavailable")
		assert.Contains(t, out, "Deck d1")
		assert.NotContains(t, out, "Deck d2")
	})
}

func TestDecksWatch(t *testing.T) {
	env := newCLIEnv(t)
	env.seedDeck("d1", "u1", nil, seedTime)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out, err := env.run(ctx, "decks", "--user", "u1", "--watch")
	require.NoError(t, err)
	assert.Contains(t, out, "Deck d1")
	assert.Equal(t, 0, env.store.ActiveSubscriptions())
}

func TestCardsRenumber(t *testing.T) {
	env := newCLIEnv(t)
	env.seedDeck("d1", "u1", nil, seedTime)
	env.seedCard("d1", "a", 0, seedTime)
	env.seedCard("d1", "b", 5, seedTime)
	env.seedCard("d1", "c", 5, seedTime.Add(time.Second))
	env.seedCard("d1", "d", 9, seedTime)

	t.Run("dry run writes nothing", func(t *testing.T) {
		out, err := env.run(context.Background(), "cards", "renumber", "--deck", "d1", "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, "Would renumber 3 of 4 cards")
		assert.Equal(t, 0, env.store.Commits())
	})

	t.Run("renumber", func(t *testing.T) {
		out, err := env.run(context.Background(), "cards", "renumber", "--deck", "d1")
		require.NoError(t, err)
		assert.Contains(t, out, "Renumbered 3 of 4 cards in deck d1")
		assert.Contains(t, out, "a b c d")
		assert.Equal(t, 1, env.store.Commits())

		for i, card := range env.cards("d1") {
			assert.Equal(t, i, card.OrderIndex, card.ID)
		}
	})

	t.Run("already contiguous", func(t *testing.T) {
		out, err := env.run(context.Background(), "cards", "renumber", "--deck", "d1")
		require.NoError(t, err)
		assert.Contains(t, out, "already contiguous")
		assert.Equal(t, 1, env.store.Commits())
	})
}

func TestSnapshotsList(t *testing.T) {
	env := newCLIEnv(t)
	env.seedDeck("d1", "u1", nil, seedTime)
	env.store.Seed(db.SnapshotRef("d1", "s1"), map[string]any{
		"deckId": "d1", "name": "older", "cardOrder": []string{"a"}, "createdAt": seedTime,
	})
	env.store.Seed(db.SnapshotRef("d1", "s2"), map[string]any{
		"deckId": "d1", "name": "newer", "cardOrder": []string{"a", "b"}, "createdAt": seedTime.Add(time.Hour),
	})

	out, err := env.run(context.Background(), "snapshots", "list", "--deck", "d1")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "newer"), strings.Index(out, "older"))

	out, err = env.run(context.Background(), "snap", "list", "--deck", "d1", "--format", "json")
	require.NoError(t, err)
	var got []*models.OrderSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].Name)
	assert.Equal(t, []string{"a", "b"}, got[0].CardOrder)
}

func TestSnapshotsApply(t *testing.T) {
	env := newCLIEnv(t)
	env.seedDeck("d1", "u1", nil, seedTime)
	env.seedCard("d1", "a", 0, seedTime)
	env.seedCard("d1", "b", 1, seedTime)
	env.seedCard("d1", "c", 2, seedTime)
	// "gone" was deleted after the snapshot was taken.
	env.store.Seed(db.SnapshotRef("d1", "s1"), map[string]any{
		"deckId": "d1", "name": "reversed", "cardOrder": []string{"c", "gone", "a"}, "createdAt": seedTime,
	})

	t.Run("dry run", func(t *testing.T) {
		out, err := env.run(context.Background(), "snapshots", "apply", "--deck", "d1", "--snapshot", "s1", "--dry-run", "--format", "json")
		require.NoError(t, err)

		var got struct {
			CardOrder []string `json:"cardOrder"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, []string{"c", "a", "b"}, got.CardOrder)
		assert.Equal(t, 0, env.store.Commits())
	})

	t.Run("apply", func(t *testing.T) {
		out, err := env.run(context.Background(), "snapshots", "apply", "--deck", "d1", "--snapshot", "s1")
		require.NoError(t, err)
		assert.Contains(t, out, `Applied snapshot "reversed" to 3 cards`)
		assert.Equal(t, []string{"c", "a", "b"}, models.CardIDs(env.cards("d1")))
	})

	t.Run("missing snapshot", func(t *testing.T) {
		_, err := env.run(context.Background(), "snapshots", "apply", "--deck", "d1", "--snapshot", "nope")
		require.Error(t, err)
		assert.ErrorIs(t, err, db.ErrNotFound)
	})
}

func TestOpenFailureIsReturned(t *testing.T) {
	opts := &RootOptions{
		open: func(context.Context, *RootOptions) (*Backend, error) {
			return nil, assert.AnError
		},
	}
	cmd := newRootCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"decks", "--user", "u1"})
	err := cmd.Execute()
	assert.ErrorIs(t, err, assert.AnError)
}
