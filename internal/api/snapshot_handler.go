package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flashdeck-backend-go/internal/core"
	"flashdeck-backend-go/internal/models"
)

// SnapshotHandler handles API endpoints for saved card orders.
type SnapshotHandler struct {
	snapshotService core.SnapshotService
	logger          *zap.Logger
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(ss core.SnapshotService, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{snapshotService: ss, logger: logger}
}

// SaveSnapshot handles POST /decks/:deckId/snapshots
func (h *SnapshotHandler) SaveSnapshot(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.SaveSnapshotRequest
	if !bindJSON(c, &req) {
		return
	}

	snapshot, err := h.snapshotService.SaveSnapshot(c.Request.Context(), userID, c.Param("deckId"), req)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, snapshot)
}

// ListSnapshots handles GET /decks/:deckId/snapshots
func (h *SnapshotHandler) ListSnapshots(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	snapshots, err := h.snapshotService.ListSnapshots(c.Request.Context(), userID, c.Param("deckId"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	if snapshots == nil {
		snapshots = []*models.OrderSnapshot{}
	}
	c.JSON(http.StatusOK, SnapshotsResponse{Snapshots: snapshots})
}

// RenameSnapshot handles PATCH /decks/:deckId/snapshots/:snapshotId
func (h *SnapshotHandler) RenameSnapshot(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.RenameSnapshotRequest
	if !bindJSON(c, &req) {
		return
	}

	snapshot, err := h.snapshotService.RenameSnapshot(c.Request.Context(), userID, c.Param("deckId"), c.Param("snapshotId"), req)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// DeleteSnapshot handles DELETE /decks/:deckId/snapshots/:snapshotId
func (h *SnapshotHandler) DeleteSnapshot(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.snapshotService.DeleteSnapshot(c.Request.Context(), userID, c.Param("deckId"), c.Param("snapshotId")); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PreviewSnapshot handles GET /decks/:deckId/snapshots/:snapshotId/preview
func (h *SnapshotHandler) PreviewSnapshot(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	cards, err := h.snapshotService.PreviewSnapshot(c.Request.Context(), userID, c.Param("deckId"), c.Param("snapshotId"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCardsResponse(cards))
}

// ApplySnapshot handles POST /decks/:deckId/snapshots/:snapshotId/apply
func (h *SnapshotHandler) ApplySnapshot(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	cards, err := h.snapshotService.ApplySnapshot(c.Request.Context(), userID, c.Param("deckId"), c.Param("snapshotId"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCardsResponse(cards))
}
