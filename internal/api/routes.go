package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flashdeck-backend-go/internal/core"
)

// SetupRoutes registers the /api/v1 routes and /health on router. Global
// middleware (logging, recovery, CORS) is expected to be applied already.
// authMW resolves the caller's uid for every /api/v1 route.
func SetupRoutes(router *gin.Engine, logger *zap.Logger, authMW gin.HandlerFunc, services *core.Services) {
	deckHandler := NewDeckHandler(services.Decks, logger)
	cardHandler := NewCardHandler(services.Cards, logger)
	snapshotHandler := NewSnapshotHandler(services.Snapshots, logger)

	apiV1 := router.Group("/api/v1", authMW)
	{
		decks := apiV1.Group("/decks")
		{
			decks.POST("", deckHandler.CreateDeck)
			decks.GET("", deckHandler.ListDecks)
			decks.GET("/stream", deckHandler.StreamDecks)
			decks.GET("/:deckId", deckHandler.GetDeck)
			decks.PATCH("/:deckId", deckHandler.RenameDeck)
			decks.DELETE("/:deckId", deckHandler.DeleteDeck)

			decks.PUT("/:deckId/roles/:userId", deckHandler.ShareDeck)
			decks.DELETE("/:deckId/roles/:userId", deckHandler.RemoveCollaborator)
		}

		cards := apiV1.Group("/decks/:deckId/cards")
		{
			cards.POST("", cardHandler.CreateCard)
			cards.GET("", cardHandler.ListCards)
			cards.PUT("/order", cardHandler.ReorderCards)
			cards.GET("/:cardId", cardHandler.GetCard)
			cards.PATCH("/:cardId", cardHandler.UpdateCard)
			cards.DELETE("/:cardId", cardHandler.DeleteCard)
			cards.POST("/:cardId/move-up", cardHandler.MoveUp)
			cards.POST("/:cardId/move-down", cardHandler.MoveDown)
			cards.POST("/:cardId/duplicate", cardHandler.Duplicate)
			cards.POST("/:cardId/favorite", cardHandler.ToggleFavorite)
			cards.POST("/:cardId/archive", cardHandler.Archive)
			cards.POST("/:cardId/unarchive", cardHandler.Unarchive)
		}

		snapshots := apiV1.Group("/decks/:deckId/snapshots")
		{
			snapshots.POST("", snapshotHandler.SaveSnapshot)
			snapshots.GET("", snapshotHandler.ListSnapshots)
			snapshots.PATCH("/:snapshotId", snapshotHandler.RenameSnapshot)
			snapshots.DELETE("/:snapshotId", snapshotHandler.DeleteSnapshot)
			snapshots.GET("/:snapshotId/preview", snapshotHandler.PreviewSnapshot)
			snapshots.POST("/:snapshotId/apply", snapshotHandler.ApplySnapshot)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Flashdeck backend is healthy."})
	})

	logger.Info("API routes configured successfully under /api/v1 and /health.")
}
