package api

import (
	"flashdeck-backend-go/internal/core"
	"flashdeck-backend-go/internal/models"
)

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`             // A high-level error message
	Details string `json:"details,omitempty"` // More specific details, if available
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// AccessibleDecksResponse is the body of GET /decks and each SSE event of
// GET /decks/stream.
type AccessibleDecksResponse struct {
	Decks   []*models.AccessibleDeck `json:"decks"`
	Loading bool                     `json:"loading,omitempty"`
	// Degraded is set when collaborative decks could not be loaded and only
	// owned decks (plus any previously received shared ones) are listed.
	Degraded bool   `json:"degraded,omitempty"`
	Warning  string `json:"warning,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newAccessibleDecksResponse(view core.AccessibleDecksView) AccessibleDecksResponse {
	resp := AccessibleDecksResponse{
		Decks:   view.Decks,
		Loading: view.Loading,
	}
	if resp.Decks == nil {
		resp.Decks = []*models.AccessibleDeck{}
	}
	if view.CollabErr != nil {
		resp.Degraded = true
		resp.Warning = "shared decks are temporarily unavailable"
	}
	if view.Err != nil {
		resp.Error = "decks could not be loaded"
	}
	return resp
}

// CardsResponse wraps an ordered card list.
type CardsResponse struct {
	Cards []*models.Card `json:"cards"`
}

func newCardsResponse(cards []*models.Card) CardsResponse {
	if cards == nil {
		cards = []*models.Card{}
	}
	return CardsResponse{Cards: cards}
}

// SnapshotsResponse wraps a snapshot list, newest first.
type SnapshotsResponse struct {
	Snapshots []*models.OrderSnapshot `json:"snapshots"`
}
