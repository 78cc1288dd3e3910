// Package scope computes the set of records an actor may see or mutate,
// derived from its role and position in the delegation graph.
package scope

import (
	"context"
	"errors"
	"sort"

	"fieldpulse.org/internal/directory"
)

// ErrOutOfScope indicates a filter or target outside the actor's visibility.
var ErrOutOfScope = errors.New("scope: target outside actor scope")

// Scope is the resolved visibility of one actor over users and the records
// they own. A Scope is either unrestricted or an explicit id set; it is
// handed to the persistence layer so filtering happens there, never in
// memory after a full fetch.
type Scope struct {
	all bool
	ids map[string]struct{}
}

// Unrestricted returns the superadmin scope.
func Unrestricted() Scope {
	return Scope{all: true}
}

// ForUsers returns a scope restricted to the given user ids.
func ForUsers(ids ...string) Scope {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Scope{ids: set}
}

// Unrestricted reports whether the scope covers everything.
func (s Scope) Unrestricted() bool { return s.all }

// AllowsUser reports whether records owned by or assigned to id are visible.
func (s Scope) AllowsUser(id string) bool {
	if s.all {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// AllowsAny reports whether any of the ids falls inside the scope.
func (s Scope) AllowsAny(ids []string) bool {
	if s.all {
		return true
	}
	for _, id := range ids {
		if _, ok := s.ids[id]; ok {
			return true
		}
	}
	return false
}

// UserIDs returns the sorted visible id set. Empty for unrestricted scopes.
func (s Scope) UserIDs() []string {
	if s.all {
		return nil
	}
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// UserSource is the slice of the user store the resolver consumes.
type UserSource interface {
	GetUser(ctx context.Context, id string) (directory.User, error)
	ListByAdmin(ctx context.Context, adminID string) ([]directory.User, error)
}

// Resolver computes scopes against live graph state. Resolution is
// deterministic for fixed graph state and performed once per request.
type Resolver struct {
	users UserSource
}

// NewResolver wires the resolver to its user source.
func NewResolver(users UserSource) *Resolver {
	return &Resolver{users: users}
}

// Resolve computes the actor's scope.
//
// Admin visibility is bounded at two hops: the admin's direct team, plus the
// teams of any admins inside that first hop. Deeper delegation chains stay
// invisible; the id set is deduplicated, so cycles in the graph cannot make
// resolution loop.
func (r *Resolver) Resolve(ctx context.Context, actor directory.User) (Scope, error) {
	switch actor.Role {
	case directory.RoleSuperadmin:
		return Unrestricted(), nil
	case directory.RoleOthers:
		return ForUsers(actor.ID), nil
	}

	set := map[string]struct{}{actor.ID: {}}
	firstHop, err := r.users.ListByAdmin(ctx, actor.ID)
	if err != nil {
		return Scope{}, err
	}
	for _, member := range firstHop {
		set[member.ID] = struct{}{}
	}
	for _, member := range firstHop {
		if member.Role != directory.RoleAdmin {
			continue
		}
		secondHop, err := r.users.ListByAdmin(ctx, member.ID)
		if err != nil {
			return Scope{}, err
		}
		for _, sub := range secondHop {
			set[sub.ID] = struct{}{}
		}
	}
	return Scope{ids: set}, nil
}

// VerifySelected rejects cross-scope selectedUserId filters explicitly
// instead of letting them produce silently empty results.
func (r *Resolver) VerifySelected(sc Scope, selectedUserID string) error {
	if selectedUserID == "" {
		return nil
	}
	if !sc.AllowsUser(selectedUserID) {
		return ErrOutOfScope
	}
	return nil
}
