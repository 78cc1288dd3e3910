package entry

import (
	"context"
	"sort"
	"sync"
	"time"

	"fieldpulse.org/internal/ids"
	"fieldpulse.org/internal/page"
	"fieldpulse.org/internal/scope"
)

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty entry store.
func NewInMemory() *InMemory {
	return &InMemory{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

func (s *InMemory) Create(ctx context.Context, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = ids.New()
	}
	now := s.now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.Version = 1
	cp := copyEntry(&e)
	s.entries[e.ID] = &cp
	return e, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return copyEntry(e), nil
}

func (s *InMemory) Update(ctx context.Context, e Entry, expectedVersion int64) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[e.ID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if cur.Version != expectedVersion {
		return Entry{}, ErrVersionConflict
	}
	e.CreatedAt = cur.CreatedAt
	e.CreatedBy = cur.CreatedBy
	e.Version = cur.Version + 1
	e.UpdatedAt = s.now().UTC()
	cp := copyEntry(&e)
	s.entries[e.ID] = &cp
	return e, nil
}

func (s *InMemory) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *InMemory) List(ctx context.Context, sc scope.Scope, f Filter, pr page.Request) ([]Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []Entry
	for _, e := range s.entries {
		if !visible(e, sc) {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.SelectedUserID != "" && e.CreatedBy != f.SelectedUserID && !e.IsAssigned(f.SelectedUserID) {
			continue
		}
		if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.CreatedAt.After(f.To) {
			continue
		}
		matched = append(matched, copyEntry(e))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
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

func visible(e *Entry, sc scope.Scope) bool {
	if sc.AllowsUser(e.CreatedBy) {
		return true
	}
	return sc.AllowsAny(e.AssignedTo)
}

func copyEntry(e *Entry) Entry {
	out := *e
	out.AssignedTo = append([]string(nil), e.AssignedTo...)
	out.Products = append([]Product(nil), e.Products...)
	out.History = append([]HistoryRecord(nil), e.History...)
	return out
}
