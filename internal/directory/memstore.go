package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fieldpulse.org/internal/ids"
)

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu    sync.RWMutex
	users map[string]*User
	now   func() time.Time
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty user store.
func NewInMemory() *InMemory {
	return &InMemory{
		users: make(map[string]*User),
		now:   time.Now,
	}
}

func (s *InMemory) CreateUser(ctx context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	for _, existing := range s.users {
		if strings.ToLower(existing.Email) == email {
			return User{}, ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := s.now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Version = 1
	cp := u
	cp.AssignedAdmins = append([]string(nil), u.AssignedAdmins...)
	s.users[u.ID] = &cp
	return u, nil
}

func (s *InMemory) GetUser(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return copyUser(u), nil
}

func (s *InMemory) GetUserByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			return copyUser(u), nil
		}
	}
	return User{}, ErrNotFound
}

func (s *InMemory) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) ListByAdmin(ctx context.Context, adminID string) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []User
	for _, u := range s.users {
		if u.HasAdmin(adminID) {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) ListByIDs(ctx context.Context, userIDs []string) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(userIDs))
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) UpdateAssignments(ctx context.Context, userID string, admins []string, expectedVersion int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	if u.Version != expectedVersion {
		return User{}, ErrVersionConflict
	}
	u.AssignedAdmins = append([]string(nil), admins...)
	u.Version++
	u.UpdatedAt = s.now().UTC()
	return copyUser(u), nil
}

func (s *InMemory) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now().UTC()
	return nil
}

func copyUser(u *User) User {
	out := *u
	out.AssignedAdmins = append([]string(nil), u.AssignedAdmins...)
	return out
}
