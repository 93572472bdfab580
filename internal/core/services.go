package core

import (
	"go.uber.org/zap"

	"flashdeck-backend-go/internal/db"
)

// Services wires every service over one DocumentStore.
type Services struct {
	Decks     DeckService
	Cards     CardService
	Snapshots SnapshotService
	Engine    OrderEngine
}

// NewServices builds the repositories and services for store.
func NewServices(store db.DocumentStore, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	decks := db.NewDeckRepository(store, logger)
	cards := db.NewCardRepository(store, logger)
	snapshots := db.NewSnapshotRepository(store, logger)

	engine := NewOrderEngine(store, cards, decks, logger.Named("order"))
	return &Services{
		Decks:     NewDeckService(store, decks, cards, snapshots, logger.Named("decks")),
		Cards:     NewCardService(store, cards, decks, engine, logger.Named("cards")),
		Snapshots: NewSnapshotService(NewSnapshotStore(store, snapshots, logger), cards, decks, engine, logger.Named("snapshots")),
		Engine:    engine,
	}
}
