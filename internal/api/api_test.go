package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flashdeck-backend-go/internal/core"
	"flashdeck-backend-go/internal/db"
	"flashdeck-backend-go/internal/middleware"
	"flashdeck-backend-go/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiEnv struct {
	t      *testing.T
	store  *db.MemoryStore
	router *gin.Engine
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	store := db.NewMemoryStore(nil)
	router := gin.New()
	SetupRoutes(router, zap.NewNop(), middleware.TrustHeader(), core.NewServices(store, nil))
	return &apiEnv{t: t, store: store, router: router}
}

func (e *apiEnv) do(method, path, uid string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set(middleware.UserIDHeader, uid)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *apiEnv) createDeck(uid, title string) *models.Deck {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/v1/decks", uid, models.CreateDeckRequest{Title: title})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[*models.Deck](e.t, w)
}

func (e *apiEnv) createCard(uid, deckID, title string) *models.Card {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/v1/decks/"+deckID+"/cards", uid, models.CreateCardRequest{Title: title})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[*models.Card](e.t, w)
}

func cardTitles(cards []*models.Card) []string {
	titles := make([]string, len(cards))
	for i, c := range cards {
		titles[i] = c.Title
	}
	return titles
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)
	w := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"UP"`)
}

func TestRequiresIdentity(t *testing.T) {
	env := newAPIEnv(t)
	w := env.do(http.MethodGet, "/api/v1/decks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeckLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	deck := env.createDeck("alice", "Spanish")

	w := env.do(http.MethodPost, "/api/v1/decks", "alice", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPut, "/api/v1/decks/"+deck.ID+"/roles/bob", "alice", models.ShareDeckRequest{Role: models.RoleViewer})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(http.MethodPut, "/api/v1/decks/"+deck.ID+"/roles/alice", "alice", models.ShareDeckRequest{Role: models.RoleViewer})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPut, "/api/v1/decks/"+deck.ID+"/roles/carol", "alice", models.ShareDeckRequest{Role: models.RoleOwner})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/decks", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[AccessibleDecksResponse](t, w)
	require.Len(t, list.Decks, 1)
	assert.Equal(t, models.RoleViewer, list.Decks[0].EffectiveRole)
	assert.False(t, list.Degraded)

	title := "Verbs"
	w = env.do(http.MethodPatch, "/api/v1/decks/"+deck.ID, "bob", models.UpdateDeckRequest{Title: &title})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(http.MethodPatch, "/api/v1/decks/"+deck.ID, "alice", models.UpdateDeckRequest{Title: &title})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Verbs", decode[*models.Deck](t, w).Title)

	w = env.do(http.MethodDelete, "/api/v1/decks/"+deck.ID+"/roles/bob", "alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(http.MethodDelete, "/api/v1/decks/"+deck.ID+"/roles/bob", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(http.MethodGet, "/api/v1/decks/"+deck.ID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/decks/"+deck.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(http.MethodGet, "/api/v1/decks/"+deck.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCardOrdering(t *testing.T) {
	env := newAPIEnv(t)
	deck := env.createDeck("alice", "Spanish")
	a := env.createCard("alice", deck.ID, "A")
	env.createCard("alice", deck.ID, "B")
	c := env.createCard("alice", deck.ID, "C")
	base := "/api/v1/decks/" + deck.ID + "/cards/"

	w := env.do(http.MethodPost, base+c.ID+"/move-up", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"A", "C", "B"}, cardTitles(decode[CardsResponse](t, w).Cards))

	w = env.do(http.MethodPost, base+a.ID+"/move-up", "alice", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, base+a.ID+"/duplicate", "alice", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "A (Copy)", decode[*models.Card](t, w).Title)

	w = env.do(http.MethodPost, base+a.ID+"/archive", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodGet, "/api/v1/decks/"+deck.ID+"/cards", "alice", nil)
	assert.Equal(t, []string{"A (Copy)", "C", "B"}, cardTitles(decode[CardsResponse](t, w).Cards))
	w = env.do(http.MethodGet, "/api/v1/decks/"+deck.ID+"/cards?includeArchived=true", "alice", nil)
	assert.Equal(t, []string{"A", "A (Copy)", "C", "B"}, cardTitles(decode[CardsResponse](t, w).Cards))
	w = env.do(http.MethodGet, "/api/v1/decks/"+deck.ID+"/cards?includeArchived=maybe", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPut, base+"order", "alice", models.ReorderRequest{Assignments: map[string]int{a.ID: 0}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodGet, base+"missing", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCardEditing(t *testing.T) {
	env := newAPIEnv(t)
	deck := env.createDeck("alice", "Spanish")
	card := env.createCard("alice", deck.ID, "hola")
	path := "/api/v1/decks/" + deck.ID + "/cards/" + card.ID

	body := "hello"
	w := env.do(http.MethodPatch, path, "alice", models.UpdateCardRequest{Body: &body})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[*models.Card](t, w)
	assert.Equal(t, "hola", got.Title)
	assert.Equal(t, "hello", got.Body)

	w = env.do(http.MethodPost, path+"/favorite", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[*models.Card](t, w).Favorite)

	w = env.do(http.MethodDelete, path, "alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(http.MethodGet, path, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSnapshotEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	deck := env.createDeck("alice", "Spanish")
	env.createCard("alice", deck.ID, "A")
	b := env.createCard("alice", deck.ID, "B")
	base := "/api/v1/decks/" + deck.ID + "/snapshots"

	w := env.do(http.MethodPost, base, "alice", models.SaveSnapshotRequest{Name: "Start"})
	require.Equal(t, http.StatusCreated, w.Code)
	snap := decode[*models.OrderSnapshot](t, w)

	w = env.do(http.MethodPost, "/api/v1/decks/"+deck.ID+"/cards/"+b.ID+"/move-up", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, base+"/"+snap.ID+"/preview", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"A", "B"}, cardTitles(decode[CardsResponse](t, w).Cards))

	w = env.do(http.MethodPost, base+"/"+snap.ID+"/apply", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"A", "B"}, cardTitles(decode[CardsResponse](t, w).Cards))

	w = env.do(http.MethodPatch, base+"/"+snap.ID, "alice", models.RenameSnapshotRequest{Name: "Renamed"})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodGet, base, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[SnapshotsResponse](t, w)
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, "Renamed", list.Snapshots[0].Name)

	w = env.do(http.MethodDelete, base+"/"+snap.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(http.MethodDelete, base+"/"+snap.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStoreUnavailableMapsTo503(t *testing.T) {
	env := newAPIEnv(t)
	deck := env.createDeck("alice", "Spanish")
	env.store.FailNextCommit(db.ErrStoreUnavailable)

	w := env.do(http.MethodPost, "/api/v1/decks/"+deck.ID+"/cards", "alice", models.CreateCardRequest{Title: "A"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListDecksDegraded(t *testing.T) {
	env := newAPIEnv(t)
	env.createDeck("alice", "Mine")
	env.store.SetQueryFault(func(q db.Query) error {
		if db.IsCollaborativeDecksQuery(q) {
			return db.ErrStoreUnavailable
		}
		return nil
	})

	w := env.do(http.MethodGet, "/api/v1/decks", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[AccessibleDecksResponse](t, w)
	assert.True(t, list.Degraded)
	assert.NotEmpty(t, list.Warning)
	assert.Len(t, list.Decks, 1)
}

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrInvalidMove, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", core.ErrInvalidOrder), http.StatusConflict},
		{fmt.Errorf("wrapped: %w", core.ErrDeckTooLarge), http.StatusUnprocessableEntity},
		{core.ErrPermissionDenied, http.StatusForbidden},
		{core.ErrDeckNotFound, http.StatusNotFound},
		{core.ErrCollaboratorNotFound, http.StatusNotFound},
		{core.ErrInvalidInput, http.StatusBadRequest},
		{core.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			mapErrorToStatus(c, zap.NewNop(), tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestStreamDecks(t *testing.T) {
	env := newAPIEnv(t)
	env.createDeck("alice", "First")
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/decks/stream", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.UserIDHeader, "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := make(chan AccessibleDecksResponse, 8)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var view AccessibleDecksResponse
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &view) == nil {
				events <- view
			}
		}
	}()

	waitFor := func(n int) {
		t.Helper()
		for {
			select {
			case view, ok := <-events:
				require.True(t, ok, "stream ended early")
				if !view.Loading && len(view.Decks) == n {
					return
				}
			case <-ctx.Done():
				t.Fatalf("no view with %d decks", n)
			}
		}
	}
	waitFor(1)
	env.createDeck("alice", "Second")
	waitFor(2)

	cancel()
	require.Eventually(t, func() bool { return env.store.ActiveSubscriptions() == 0 }, 2*time.Second, 10*time.Millisecond)
}
