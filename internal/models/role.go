package models

// Role governs what an identity may do with a deck and its cards.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// CollaboratorRoles are the roles that may appear in a deck's roles map.
var CollaboratorRoles = []Role{RoleEditor, RoleViewer}

// IsCollaborator reports whether r may be granted through the roles map.
// The owner role is implied by ownerId and is never stored there.
func (r Role) IsCollaborator() bool {
	return r == RoleEditor || r == RoleViewer
}

// CanWrite reports whether r may write cards and snapshots.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleEditor
}
