package db

const (
	DecksCollection     = "decks"
	cardsSubcollection  = "cards"
	snapshotsCollection = "orderSnapshots"
)

// DeckRef addresses a deck document.
func DeckRef(deckID string) DocRef {
	return DocRef{Collection: DecksCollection, ID: deckID}
}

// CardsCollection is the card subcollection of a deck.
func CardsCollection(deckID string) string {
	return DecksCollection + "/" + deckID + "/" + cardsSubcollection
}

// CardRef addresses a card inside a deck.
func CardRef(deckID, cardID string) DocRef {
	return DocRef{Collection: CardsCollection(deckID), ID: cardID}
}

// SnapshotsCollection is the order-snapshot subcollection of a deck.
func SnapshotsCollection(deckID string) string {
	return DecksCollection + "/" + deckID + "/" + snapshotsCollection
}

// SnapshotRef addresses an order snapshot inside a deck.
func SnapshotRef(deckID, snapshotID string) DocRef {
	return DocRef{Collection: SnapshotsCollection(deckID), ID: snapshotID}
}
