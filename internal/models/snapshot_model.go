package models

import "time"

// OrderSnapshot is a named capture of a deck's card order. CardOrder need not
// match the deck's current card set.
type OrderSnapshot struct {
	ID        string    `json:"id" firestore:"-"`
	DeckID    string    `json:"deckId" firestore:"deckId"`
	Name      string    `json:"name" firestore:"name"`
	CardOrder []string  `json:"cardOrder" firestore:"cardOrder"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}
