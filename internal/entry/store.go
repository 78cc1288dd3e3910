package entry

import (
	"context"
	"time"

	"fieldpulse.org/internal/page"
	"fieldpulse.org/internal/scope"
)

// Filter narrows a scoped entry listing.
type Filter struct {
	Status         Status
	SelectedUserID string
	From           time.Time
	To             time.Time
}

// Store is the persistence boundary for entries. List applies the scope at
// the persistence layer: an entry is visible when its creator or any
// assignee falls inside the scope.
type Store interface {
	Create(ctx context.Context, e Entry) (Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	// Update persists the entry only when the stored version still matches
	// expectedVersion; otherwise ErrVersionConflict.
	Update(ctx context.Context, e Entry, expectedVersion int64) (Entry, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, sc scope.Scope, f Filter, pr page.Request) ([]Entry, int, error)
}
