package attendance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fieldpulse.org/internal/directory"
	"fieldpulse.org/internal/geo"
	"fieldpulse.org/internal/page"
	"fieldpulse.org/internal/scope"
)

// Service applies attendance policy on top of a Store.
type Service struct {
	store      Store
	scopes     *scope.Resolver
	lateCutoff int // minutes after UTC midnight
	now        func() time.Time
}

// NewService builds a Service. lateAfter is a "HH:MM" UTC wall-clock cutoff;
// check-ins after it are recorded as Late.
func NewService(store Store, scopes *scope.Resolver, lateAfter string) (*Service, error) {
	cutoff, err := parseCutoff(lateAfter)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:      store,
		scopes:     scopes,
		lateCutoff: cutoff,
		now:        time.Now,
	}, nil
}

func parseCutoff(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: cutoff %q is not HH:MM", ErrInvalidInput, s)
	}
	h, errH := strconv.Atoi(hh)
	m, errM := strconv.Atoi(mm)
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: cutoff %q is not HH:MM", ErrInvalidInput, s)
	}
	return h*60 + m, nil
}

// CheckIn opens today's record for the actor, recording where it happened
// when the client reported coordinates. A second check-in on the same UTC
// day is a conflict, as is checking in over a leave mark.
func (s *Service) CheckIn(ctx context.Context, actor directory.User, loc *geo.Point) (Record, error) {
	loc, err := validLocation(loc)
	if err != nil {
		return Record{}, err
	}
	at := s.now().UTC()
	day := DayOf(at)

	if existing, err := s.store.GetByUserDay(ctx, actor.ID, day); err == nil {
		if existing.Status == StatusLeave {
			return Record{}, ErrOnLeave
		}
		return Record{}, ErrAlreadyCheckedIn
	} else if !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}

	status := StatusPresent
	if at.Hour()*60+at.Minute() > s.lateCutoff {
		status = StatusLate
	}
	return s.store.Create(ctx, Record{
		UserID:          actor.ID,
		Day:             day,
		Status:          status,
		CheckInAt:       &at,
		CheckInLocation: loc,
		CreatedAt:       at,
		UpdatedAt:       at,
	})
}

// CheckOut closes today's record. Checking out without a check-in, twice, or
// over a leave mark is a conflict.
func (s *Service) CheckOut(ctx context.Context, actor directory.User, loc *geo.Point) (Record, error) {
	loc, err := validLocation(loc)
	if err != nil {
		return Record{}, err
	}
	at := s.now().UTC()
	rec, err := s.store.GetByUserDay(ctx, actor.ID, DayOf(at))
	if errors.Is(err, ErrNotFound) {
		return Record{}, ErrNotCheckedIn
	}
	if err != nil {
		return Record{}, err
	}
	if rec.Status == StatusLeave {
		return Record{}, ErrOnLeave
	}
	if rec.CheckOutAt != nil {
		return Record{}, ErrAlreadyCheckedOut
	}
	rec.CheckOutAt = &at
	rec.CheckOutLocation = loc
	rec.UpdatedAt = at
	return s.store.Update(ctx, rec)
}

// validLocation validates an optional coordinate pair and copies it so the
// stored record never aliases caller memory.
func validLocation(loc *geo.Point) (*geo.Point, error) {
	if loc == nil {
		return nil, nil
	}
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	cp := *loc
	return &cp, nil
}

// MarkLeave records a leave day for userID, or for the actor when userID is
// empty. Marking someone outside the actor's scope is an authorization
// failure; a day that already has a check-in is a conflict.
func (s *Service) MarkLeave(ctx context.Context, actor directory.User, userID string, day time.Time) (Record, error) {
	if userID == "" {
		userID = actor.ID
	}
	if userID != actor.ID {
		sc, err := s.scopes.Resolve(ctx, actor)
		if err != nil {
			return Record{}, err
		}
		if !sc.AllowsUser(userID) {
			return Record{}, scope.ErrOutOfScope
		}
	}

	at := s.now().UTC()
	if day.IsZero() {
		day = at
	}
	day = DayOf(day)

	if _, err := s.store.GetByUserDay(ctx, userID, day); err == nil {
		return Record{}, ErrAlreadyCheckedIn
	} else if !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}
	return s.store.Create(ctx, Record{
		UserID:    userID,
		Day:       day,
		Status:    StatusLeave,
		CreatedAt: at,
		UpdatedAt: at,
	})
}

// List returns attendance records visible to the actor.
func (s *Service) List(ctx context.Context, actor directory.User, f Filter, pr page.Request) ([]Record, page.Info, error) {
	sc, err := s.scopes.Resolve(ctx, actor)
	if err != nil {
		return nil, page.Info{}, err
	}
	if err := s.scopes.VerifySelected(sc, f.SelectedUserID); err != nil {
		return nil, page.Info{}, err
	}
	pr = pr.Normalize()
	recs, total, err := s.store.List(ctx, sc, f, pr)
	if err != nil {
		return nil, page.Info{}, err
	}
	return recs, page.InfoFor(pr, total), nil
}
