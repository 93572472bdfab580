package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flashdeck-backend-go/internal/core"
	"flashdeck-backend-go/internal/models"
)

// CardHandler handles API endpoints for cards and their ordering.
type CardHandler struct {
	cardService core.CardService
	logger      *zap.Logger
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(cs core.CardService, logger *zap.Logger) *CardHandler {
	return &CardHandler{cardService: cs, logger: logger}
}

// CreateCard handles POST /decks/:deckId/cards
func (h *CardHandler) CreateCard(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.CreateCardRequest
	if !bindJSON(c, &req) {
		return
	}

	card, err := h.cardService.CreateCard(c.Request.Context(), userID, c.Param("deckId"), req)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

// ListCards handles GET /decks/:deckId/cards?includeArchived=true
func (h *CardHandler) ListCards(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	includeArchived := false
	if raw := c.Query("includeArchived"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "includeArchived must be a boolean"})
			return
		}
		includeArchived = v
	}

	cards, err := h.cardService.ListCards(c.Request.Context(), userID, c.Param("deckId"), includeArchived)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCardsResponse(cards))
}

// ReorderCards handles PUT /decks/:deckId/cards/order
func (h *CardHandler) ReorderCards(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.ReorderRequest
	if !bindJSON(c, &req) {
		return
	}

	cards, err := h.cardService.Reorder(c.Request.Context(), userID, c.Param("deckId"), req.Assignments)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCardsResponse(cards))
}

// GetCard handles GET /decks/:deckId/cards/:cardId
func (h *CardHandler) GetCard(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	card, err := h.cardService.GetCard(c.Request.Context(), userID, c.Param("deckId"), c.Param("cardId"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// UpdateCard handles PATCH /decks/:deckId/cards/:cardId
func (h *CardHandler) UpdateCard(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.UpdateCardRequest
	if !bindJSON(c, &req) {
		return
	}

	card, err := h.cardService.UpdateCard(c.Request.Context(), userID, c.Param("deckId"), c.Param("cardId"), req)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// DeleteCard handles DELETE /decks/:deckId/cards/:cardId
func (h *CardHandler) DeleteCard(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.cardService.DeleteCard(c.Request.Context(), userID, c.Param("deckId"), c.Param("cardId")); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MoveUp handles POST /decks/:deckId/cards/:cardId/move-up
func (h *CardHandler) MoveUp(c *gin.Context) {
	h.reorderAction(c, h.cardService.MoveUp)
}

// MoveDown handles POST /decks/:deckId/cards/:cardId/move-down
func (h *CardHandler) MoveDown(c *gin.Context) {
	h.reorderAction(c, h.cardService.MoveDown)
}

func (h *CardHandler) reorderAction(c *gin.Context, move func(ctx context.Context, uid, deckID, cardID string) ([]*models.Card, error)) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	cards, err := move(c.Request.Context(), userID, c.Param("deckId"), c.Param("cardId"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCardsResponse(cards))
}

// Duplicate handles POST /decks/:deckId/cards/:cardId/duplicate
func (h *CardHandler) Duplicate(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	card, err := h.cardService.Duplicate(c.Request.Context(), userID, c.Param("deckId"), c.Param("cardId"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

// ToggleFavorite handles POST /decks/:deckId/cards/:cardId/favorite
func (h *CardHandler) ToggleFavorite(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	card, err := h.cardService.ToggleFavorite(c.Request.Context(), userID, c.Param("deckId"), c.Param("cardId"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// Archive handles POST /decks/:deckId/cards/:cardId/archive
func (h *CardHandler) Archive(c *gin.Context) {
	h.setArchived(c, true)
}

// Unarchive handles POST /decks/:deckId/cards/:cardId/unarchive
func (h *CardHandler) Unarchive(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *CardHandler) setArchived(c *gin.Context, archived bool) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	card, err := h.cardService.SetArchived(c.Request.Context(), userID, c.Param("deckId"), c.Param("cardId"), archived)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, card)
}
