package directory

import "context"

// Store is the persistence boundary for users.
type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// ListByAdmin returns every user whose AssignedAdmins contains adminID.
	ListByAdmin(ctx context.Context, adminID string) ([]User, error)
	// ListByIDs returns the users matching the given ids; unknown ids are
	// skipped silently.
	ListByIDs(ctx context.Context, ids []string) ([]User, error)
	// UpdateAssignments replaces a user's admin set only when the stored
	// version still matches expectedVersion; otherwise ErrVersionConflict.
	UpdateAssignments(ctx context.Context, userID string, admins []string, expectedVersion int64) (User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}
