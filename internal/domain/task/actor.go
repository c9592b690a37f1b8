package task

// Actor is the authenticated identity performing a command. Identity and
// role resolution happen outside the core; the calling layer supplies the
// already-verified actor.
type Actor struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
}

// Role constants
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// Elevated reports whether the actor may mutate time entries owned by
// other actors
func (a Actor) Elevated() bool {
	return a.Role == RoleAdmin || a.Role == RoleManager
}
