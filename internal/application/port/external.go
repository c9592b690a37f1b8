package port

import "context"

// Directory resolves department membership and client capability for
// assignment validation. Backed by the identity provider in production.
type Directory interface {
	// IsMemberOfDepartment reports whether the user belongs to the
	// department
	IsMemberOfDepartment(ctx context.Context, userID, departmentID string) (bool, error)

	// HasClientCapability reports whether the identity may be referenced
	// as a task's client
	HasClientCapability(ctx context.Context, id string) (bool, error)
}
