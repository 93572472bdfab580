package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flashdeck-backend-go/internal/core"
	"flashdeck-backend-go/internal/middleware"
)

// mapErrorToStatus writes the status and ErrorResponse for a service error.
func mapErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrInvalidMove), errors.Is(err, core.ErrInvalidOrder):
		// The client's copy of the deck is stale; it should reload and retry.
		statusCode = http.StatusConflict
		errResponse = ErrorResponse{Error: "Card order has changed", Details: err.Error()}
	case errors.Is(err, core.ErrDeckTooLarge):
		statusCode = http.StatusUnprocessableEntity
		errResponse = ErrorResponse{Error: "Deck has too many cards for this operation", Details: err.Error()}
	case errors.Is(err, core.ErrPermissionDenied):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: "Permission denied"}
	case errors.Is(err, core.ErrDeckNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrDeckNotFound.Error()}
	case errors.Is(err, core.ErrCardNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrCardNotFound.Error()}
	case errors.Is(err, core.ErrSnapshotNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrSnapshotNotFound.Error()}
	case errors.Is(err, core.ErrNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "Not found", Details: err.Error()}
	case errors.Is(err, core.ErrInvalidRole):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: core.ErrInvalidRole.Error()}
	case errors.Is(err, core.ErrCannotShareWithSelf):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: core.ErrCannotShareWithSelf.Error()}
	case errors.Is(err, core.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Invalid request", Details: err.Error()}
	case errors.Is(err, core.ErrStoreUnavailable):
		logger.Warn("Store unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		statusCode = http.StatusServiceUnavailable
		errResponse = ErrorResponse{Error: "Service temporarily unavailable"}
	default:
		logger.Error("Internal Server Error", zap.String("path", c.FullPath()), zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// requireUser returns the authenticated uid or writes a 401.
func requireUser(c *gin.Context) (string, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
	}
	return uid, ok
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return false
	}
	return true
}
