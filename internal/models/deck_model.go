package models

import "time"

// Deck is a named collection of cards with one owner and zero or more collaborators.
type Deck struct {
	ID        string          `json:"id" firestore:"-"` // Document ID, auto-generated
	Title     string          `json:"title" firestore:"title"`
	OwnerID   string          `json:"ownerId" firestore:"ownerId"`                 // Firebase Auth UID, immutable
	Roles     map[string]Role `json:"roles,omitempty" firestore:"roles,omitempty"` // collaborator UID -> editor|viewer
	CreatedAt time.Time       `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt" firestore:"updatedAt"`
}

// RoleOf resolves the role identity holds on the deck. The second result is
// false when identity has no access at all.
func (d *Deck) RoleOf(identity string) (Role, bool) {
	if identity == "" {
		return "", false
	}
	if d.OwnerID == identity {
		return RoleOwner, true
	}
	role, ok := d.Roles[identity]
	if !ok || !role.IsCollaborator() {
		return "", false
	}
	return role, true
}

// AccessibleIdentities returns ownerId followed by every collaborator UID.
func (d *Deck) AccessibleIdentities() []string {
	ids := make([]string, 0, len(d.Roles)+1)
	ids = append(ids, d.OwnerID)
	for uid := range d.Roles {
		if uid != d.OwnerID {
			ids = append(ids, uid)
		}
	}
	return ids
}

// AccessibleDeck is a deck annotated with the role resolved for the requesting identity.
// It is derived from live query results and never persisted.
type AccessibleDeck struct {
	Deck
	EffectiveRole Role `json:"effectiveRole"`
}
