package team

import (
	"context"

	"fieldpulse.org/internal/directory"
	"fieldpulse.org/internal/scope"
)

// Roster answers the scoped listing queries over users and teams.
type Roster struct {
	users  directory.Store
	scopes *scope.Resolver
}

// NewRoster wires the roster to its user store and scope resolver.
func NewRoster(users directory.Store, scopes *scope.Resolver) *Roster {
	return &Roster{users: users, scopes: scopes}
}

// ListUsers returns every user inside the actor's scope.
func (r *Roster) ListUsers(ctx context.Context, actor directory.User) ([]directory.User, error) {
	sc, err := r.scopes.Resolve(ctx, actor)
	if err != nil {
		return nil, err
	}
	if sc.Unrestricted() {
		return r.users.ListUsers(ctx)
	}
	return r.users.ListByIDs(ctx, sc.UserIDs())
}

// ListTeam returns the actor's immediate team. For managing roles that is
// the set of users reporting to the actor; for everyone else it is the set
// of admins the actor reports to.
func (r *Roster) ListTeam(ctx context.Context, actor directory.User) ([]directory.User, error) {
	if actor.Role.CanManage() {
		return r.users.ListByAdmin(ctx, actor.ID)
	}
	return r.users.ListByIDs(ctx, actor.AssignedAdmins)
}
