package team

import (
	"context"
	"errors"
	"fmt"

	"fieldpulse.org/internal/directory"
	"fieldpulse.org/internal/notify"
	"fieldpulse.org/internal/obs"
)

// casAttempts bounds the optimistic-concurrency retry loop on a single
// user's admin set.
const casAttempts = 5

// errNoChange signals a cascade member whose set already matches the
// desired state; the member is skipped without failing the operation.
var errNoChange = errors.New("team: no change")

// Graph mutates the delegation relation. Every read-modify-write of a
// user's admin set goes through a version-checked swap so concurrent
// mutations against the same user never lose an update.
type Graph struct {
	users    directory.Store
	notifier *notify.Dispatcher
}

// NewGraph wires the graph to the user store and the dispatcher.
func NewGraph(users directory.Store, notifier *notify.Dispatcher) *Graph {
	return &Graph{users: users, notifier: notifier}
}

// Assign adds the actor to the target's admin set. If the target is itself
// an admin, the actor is also added to every member of the target's direct
// team (one hop only), each addition notifying the affected user.
func (g *Graph) Assign(ctx context.Context, actor directory.User, targetID string) (directory.User, error) {
	if !actor.Role.CanManage() {
		return directory.User{}, ErrForbidden
	}
	target, err := g.users.GetUser(ctx, targetID)
	if err != nil {
		return directory.User{}, err
	}
	if target.Role == directory.RoleSuperadmin || target.ID == actor.ID {
		return directory.User{}, ErrInvalidTarget
	}

	updated, err := g.swapAdmins(ctx, target.ID, func(u directory.User) ([]string, error) {
		if u.HasAdmin(actor.ID) {
			return nil, ErrAlreadyAssigned
		}
		return append(append([]string(nil), u.AssignedAdmins...), actor.ID), nil
	})
	if err != nil {
		return directory.User{}, err
	}

	targets := []notify.Target{{
		UserID:  target.ID,
		Message: fmt.Sprintf("You now report to %s", actor.Username),
	}}

	if target.Role == directory.RoleAdmin {
		members, err := g.users.ListByAdmin(ctx, target.ID)
		if err != nil {
			return directory.User{}, err
		}
		for _, member := range members {
			if member.ID == actor.ID {
				continue
			}
			_, err := g.swapAdmins(ctx, member.ID, func(u directory.User) ([]string, error) {
				if u.HasAdmin(actor.ID) {
					return nil, errNoChange
				}
				return append(append([]string(nil), u.AssignedAdmins...), actor.ID), nil
			})
			if errors.Is(err, errNoChange) {
				continue
			}
			if err != nil {
				return directory.User{}, fmt.Errorf("cascade assign %s: %w", member.ID, err)
			}
			obs.IncCascadeUpdate("assign")
			targets = append(targets, notify.Target{
				UserID:  member.ID,
				Message: fmt.Sprintf("Your team now also reports to %s", actor.Username),
			})
		}
	}

	g.fanout(ctx, targets)
	return updated, nil
}

// Unassign removes the actor from the target's admin set.
//
// A superadmin actor that is not itself one of the target's admins performs
// a force-unassign, clearing the target's whole set. An admin actor may not
// touch a target that is assigned to a superadmin unless the admin is in the
// target's set already. Cascades mirror Assign over the target's direct
// team: force-unassign removes the target's id from each member, otherwise
// each member loses the actor's id.
func (g *Graph) Unassign(ctx context.Context, actor directory.User, targetID string) (directory.User, error) {
	if !actor.Role.CanManage() {
		return directory.User{}, ErrForbidden
	}
	target, err := g.users.GetUser(ctx, targetID)
	if err != nil {
		return directory.User{}, err
	}
	if target.Role == directory.RoleSuperadmin {
		return directory.User{}, ErrInvalidTarget
	}
	if len(target.AssignedAdmins) == 0 {
		return directory.User{}, ErrNothingToUnassign
	}

	if actor.Role == directory.RoleAdmin && !target.HasAdmin(actor.ID) {
		protected, err := g.hasSuperadminParent(ctx, target)
		if err != nil {
			return directory.User{}, err
		}
		if protected {
			return directory.User{}, ErrSuperadminProtected
		}
		return directory.User{}, ErrNothingToUnassign
	}

	force := actor.Role == directory.RoleSuperadmin && !target.HasAdmin(actor.ID)

	updated, err := g.swapAdmins(ctx, target.ID, func(u directory.User) ([]string, error) {
		if len(u.AssignedAdmins) == 0 {
			return nil, ErrNothingToUnassign
		}
		if force {
			return nil, nil
		}
		if !u.HasAdmin(actor.ID) {
			return nil, ErrNothingToUnassign
		}
		return removeID(u.AssignedAdmins, actor.ID), nil
	})
	if err != nil {
		return directory.User{}, err
	}

	targets := []notify.Target{{
		UserID:  target.ID,
		Message: unassignMessage(force, actor.Username),
	}}

	if target.Role == directory.RoleAdmin {
		removed := actor.ID
		if force {
			removed = target.ID
		}
		members, err := g.users.ListByAdmin(ctx, target.ID)
		if err != nil {
			return directory.User{}, err
		}
		for _, member := range members {
			if member.ID == target.ID {
				continue
			}
			_, err := g.swapAdmins(ctx, member.ID, func(u directory.User) ([]string, error) {
				if !u.HasAdmin(removed) {
					return nil, errNoChange
				}
				return removeID(u.AssignedAdmins, removed), nil
			})
			if errors.Is(err, errNoChange) {
				continue
			}
			if err != nil {
				return directory.User{}, fmt.Errorf("cascade unassign %s: %w", member.ID, err)
			}
			obs.IncCascadeUpdate("unassign")
			targets = append(targets, notify.Target{
				UserID:  member.ID,
				Message: "Your reporting line has changed",
			})
		}
	}

	g.fanout(ctx, targets)
	return updated, nil
}

// swapAdmins retries a version-checked rewrite of one user's admin set.
func (g *Graph) swapAdmins(ctx context.Context, userID string, mutate func(directory.User) ([]string, error)) (directory.User, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		u, err := g.users.GetUser(ctx, userID)
		if err != nil {
			return directory.User{}, err
		}
		admins, err := mutate(u)
		if err != nil {
			return directory.User{}, err
		}
		updated, err := g.users.UpdateAssignments(ctx, userID, admins, u.Version)
		if errors.Is(err, directory.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return directory.User{}, err
		}
		return updated, nil
	}
	return directory.User{}, ErrContention
}

func (g *Graph) hasSuperadminParent(ctx context.Context, target directory.User) (bool, error) {
	for _, adminID := range target.AssignedAdmins {
		admin, err := g.users.GetUser(ctx, adminID)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				continue
			}
			return false, err
		}
		if admin.Role == directory.RoleSuperadmin {
			return true, nil
		}
	}
	return false, nil
}

// fanout delivers the cascade notifications; failures are collected and
// logged, never propagated, and never roll back the graph mutation.
func (g *Graph) fanout(ctx context.Context, targets []notify.Target) {
	if err := g.notifier.Fanout(ctx, targets); err != nil {
		obs.LogEvent(map[string]any{
			"level": "warn",
			"msg":   "assignment notification fan-out incomplete",
			"error": err.Error(),
		})
	}
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func unassignMessage(force bool, actorName string) string {
	if force {
		return "All of your admin assignments were cleared"
	}
	return fmt.Sprintf("You no longer report to %s", actorName)
}
