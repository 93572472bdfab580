package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flashdeck-backend-go/internal/core"
	"flashdeck-backend-go/internal/models"
)

// DeckHandler handles API endpoints related to decks and their collaborators.
type DeckHandler struct {
	deckService core.DeckService
	logger      *zap.Logger
}

// NewDeckHandler creates a new DeckHandler.
func NewDeckHandler(ds core.DeckService, logger *zap.Logger) *DeckHandler {
	return &DeckHandler{deckService: ds, logger: logger}
}

// CreateDeck handles POST /decks
func (h *DeckHandler) CreateDeck(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.CreateDeckRequest
	if !bindJSON(c, &req) {
		return
	}

	deck, err := h.deckService.CreateDeck(c.Request.Context(), userID, req)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, deck)
}

// ListDecks handles GET /decks
func (h *DeckHandler) ListDecks(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	view, err := h.deckService.ListAccessible(c.Request.Context(), userID)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newAccessibleDecksResponse(*view))
}

// StreamDecks handles GET /decks/stream. Each change to the caller's
// accessible decks is sent as a "decks" server-sent event until the client
// disconnects.
func (h *DeckHandler) StreamDecks(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// Only the newest view matters; a slow client skips intermediate ones.
	views := make(chan core.AccessibleDecksView, 1)
	stop := h.deckService.WatchAccessible(ctx, userID, func(view core.AccessibleDecksView) {
		select {
		case views <- view:
		default:
			select {
			case <-views:
			default:
			}
			views <- view
		}
	})
	defer stop()

	h.logger.Debug("Deck stream opened", zap.String("user_id", userID))
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case view := <-views:
			c.SSEvent("decks", newAccessibleDecksResponse(view))
			return true
		}
	})
	h.logger.Debug("Deck stream closed", zap.String("user_id", userID))
}

// GetDeck handles GET /decks/:deckId
func (h *DeckHandler) GetDeck(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	deck, err := h.deckService.GetDeck(c.Request.Context(), userID, c.Param("deckId"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, deck)
}

// RenameDeck handles PATCH /decks/:deckId
func (h *DeckHandler) RenameDeck(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.UpdateDeckRequest
	if !bindJSON(c, &req) {
		return
	}

	deck, err := h.deckService.RenameDeck(c.Request.Context(), userID, c.Param("deckId"), req)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, deck)
}

// DeleteDeck handles DELETE /decks/:deckId
func (h *DeckHandler) DeleteDeck(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.deckService.DeleteDeck(c.Request.Context(), userID, c.Param("deckId")); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ShareDeck handles PUT /decks/:deckId/roles/:userId
func (h *DeckHandler) ShareDeck(c *gin.Context) {
	ownerID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.ShareDeckRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.deckService.ShareDeck(c.Request.Context(), ownerID, c.Param("deckId"), c.Param("userId"), req.Role)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Deck shared successfully"})
}

// RemoveCollaborator handles DELETE /decks/:deckId/roles/:userId
func (h *DeckHandler) RemoveCollaborator(c *gin.Context) {
	ownerID, ok := requireUser(c)
	if !ok {
		return
	}

	err := h.deckService.RemoveCollaborator(c.Request.Context(), ownerID, c.Param("deckId"), c.Param("userId"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
