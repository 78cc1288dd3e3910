package attendance

import (
	"context"
	"time"

	"fieldpulse.org/internal/page"
	"fieldpulse.org/internal/scope"
)

// Filter narrows an attendance listing. Zero values mean "no constraint".
type Filter struct {
	SelectedUserID string
	Status         Status
	From           time.Time
	To             time.Time
}

// Store is the persistence contract for attendance records. The (user, day)
// pair is unique; Create must report a second record for the same pair as
// ErrAlreadyCheckedIn.
type Store interface {
	Create(ctx context.Context, r Record) (Record, error)
	GetByUserDay(ctx context.Context, userID string, day time.Time) (Record, error)
	Update(ctx context.Context, r Record) (Record, error)
	List(ctx context.Context, sc scope.Scope, f Filter, pr page.Request) ([]Record, int, error)
}
