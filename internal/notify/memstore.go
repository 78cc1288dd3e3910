package notify

import (
	"context"
	"sort"
	"sync"

	"fieldpulse.org/internal/page"
)

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu    sync.RWMutex
	notes map[string][]Notification // userID -> newest last
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty notification store.
func NewInMemory() *InMemory {
	return &InMemory{notes: make(map[string][]Notification)}
}

func (s *InMemory) Insert(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.UserID] = append(s.notes[n.UserID], n)
	return nil
}

func (s *InMemory) List(ctx context.Context, userID string, unreadOnly bool, pr page.Request) ([]Notification, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []Notification
	for _, n := range s.notes[userID] {
		if unreadOnly && n.Read {
			continue
		}
		matched = append(matched, n)
	}
	// Newest first.
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	start := pr.Offset()
	if start >= total {
		return nil, total, nil
	}
	end := start + pr.Limit
	if end > total {
		end = total
	}
	out := make([]Notification, end-start)
	copy(out, matched[start:end])
	return out, total, nil
}

// MarkRead flips read flags on the given ids; an empty id list marks every
// unread notification.
func (s *InMemory) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	list := s.notes[userID]
	for i := range list {
		if list[i].Read {
			continue
		}
		if _, ok := wanted[list[i].ID]; !ok && len(wanted) > 0 {
			continue
		}
		list[i].Read = true
		updated++
	}
	return updated, nil
}

func (s *InMemory) Clear(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := len(s.notes[userID])
	delete(s.notes, userID)
	return removed, nil
}
