package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fieldpulse.org/internal/ids"
	"fieldpulse.org/internal/page"
	"fieldpulse.org/internal/scope"
)

// InMemory is a mutex-guarded Store used in tests and when no database is
// configured.
type InMemory struct {
	mu   sync.RWMutex
	recs map[string]Record // keyed by userID + day
}

func NewInMemory() *InMemory {
	return &InMemory{recs: make(map[string]Record)}
}

func recKey(userID string, day time.Time) string {
	return fmt.Sprintf("%s|%s", userID, day.Format("2006-01-02"))
}

func (s *InMemory) Create(ctx context.Context, r Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recKey(r.UserID, r.Day)
	if _, ok := s.recs[key]; ok {
		return Record{}, ErrAlreadyCheckedIn
	}
	if r.ID == "" {
		r.ID = ids.New()
	}
	s.recs[key] = r
	return r, nil
}

func (s *InMemory) GetByUserDay(ctx context.Context, userID string, day time.Time) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recs[recKey(userID, day)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (s *InMemory) Update(ctx context.Context, r Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recKey(r.UserID, r.Day)
	if _, ok := s.recs[key]; !ok {
		return Record{}, ErrNotFound
	}
	s.recs[key] = r
	return r, nil
}

func (s *InMemory) List(ctx context.Context, sc scope.Scope, f Filter, pr page.Request) ([]Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Record
	for _, r := range s.recs {
		if !sc.AllowsUser(r.UserID) {
			continue
		}
		if f.SelectedUserID != "" && r.UserID != f.SelectedUserID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && r.Day.Before(DayOf(f.From)) {
			continue
		}
		if !f.To.IsZero() && r.Day.After(DayOf(f.To)) {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Day.Equal(matched[j].Day) {
			return matched[i].Day.After(matched[j].Day)
		}
		return matched[i].UserID < matched[j].UserID
	})

	total := len(matched)
	start := pr.Offset()
	if start >= total {
		return nil, total, nil
	}
	end := start + pr.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}
