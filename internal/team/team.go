// Package team maintains the delegation graph: the multi-parent relation
// from each user to the admins it reports to, with the cascading effects of
// assigning or unassigning an admin who has a team of its own.
package team

import "errors"

var (
	// ErrForbidden rejects graph mutations from non-managing roles.
	ErrForbidden = errors.New("team: role may not mutate assignments")
	// ErrInvalidTarget rejects superadmin and self targets.
	ErrInvalidTarget = errors.New("team: invalid assignment target")
	// ErrAlreadyAssigned rejects duplicate assignments.
	ErrAlreadyAssigned = errors.New("team: actor already assigned to target")
	// ErrNothingToUnassign rejects no-op unassignments.
	ErrNothingToUnassign = errors.New("team: nothing to unassign")
	// ErrSuperadminProtected rejects an admin stripping a superadmin's
	// delegation from a user outside the admin's own team.
	ErrSuperadminProtected = errors.New("team: target is assigned to a superadmin")
	// ErrContention reports a mutation that kept losing the version race.
	ErrContention = errors.New("team: assignment contention, retry")
)
