package models

import "time"

// Card is an ordered content unit belonging to exactly one deck.
// Archived cards keep their orderIndex slot.
type Card struct {
	ID         string    `json:"id" firestore:"-"`
	DeckID     string    `json:"deckId" firestore:"deckId,omitempty"` // may be absent on legacy documents
	Title      string    `json:"title" firestore:"title"`
	Body       string    `json:"body" firestore:"body"`
	OrderIndex int       `json:"orderIndex" firestore:"orderIndex"`
	Favorite   bool      `json:"favorite,omitempty" firestore:"favorite,omitempty"`
	Archived   bool      `json:"archived,omitempty" firestore:"archived,omitempty"`
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// CardIDs returns the ids of cards in slice order.
func CardIDs(cards []*Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}
