package models

// CreateDeckRequest represents the request body for creating a new deck.
type CreateDeckRequest struct {
	Title string `json:"title" binding:"required"`
}

// UpdateDeckRequest represents the request body for renaming a deck.
type UpdateDeckRequest struct {
	Title *string `json:"title,omitempty"`
}

// ShareDeckRequest grants a collaborator role on a deck.
type ShareDeckRequest struct {
	Role Role `json:"role" binding:"required"` // "editor" or "viewer"
}

// CreateCardRequest represents the request body for appending a card to a deck.
type CreateCardRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body"`
}

// UpdateCardRequest carries a partial card update.
// Pointers distinguish "clear" from "not provided".
type UpdateCardRequest struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
}

// ReorderRequest carries a complete cardId -> orderIndex assignment.
type ReorderRequest struct {
	Assignments map[string]int `json:"assignments" binding:"required"`
}

// SaveSnapshotRequest captures the current display order under a name.
// When CardOrder is empty the server captures the deck's persisted order.
type SaveSnapshotRequest struct {
	Name      string   `json:"name" binding:"required"`
	CardOrder []string `json:"cardOrder,omitempty"`
}

// RenameSnapshotRequest renames an existing snapshot.
type RenameSnapshotRequest struct {
	Name string `json:"name" binding:"required"`
}
