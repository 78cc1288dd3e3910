package team

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"testing"

	"fieldpulse.org/internal/directory"
	"fieldpulse.org/internal/ids"
	"fieldpulse.org/internal/notify"
	"fieldpulse.org/internal/page"
)

type fixture struct {
	users    *directory.InMemory
	notes    *notify.InMemory
	graph    *Graph
	idsByKey map[string]string
}

// seed builds the shared delegation chain: superadmin root, admin m1
// with team {u1, u2}, admin m2 (assigned to m1) with team {u3}, and an
// unrelated user z1.
func seed(t *testing.T, keys ...string) *fixture {
	t.Helper()
	users := directory.NewInMemory()
	notes := notify.NewInMemory()
	dispatcher := notify.NewDispatcher(notes, notify.NewHub())

	f := &fixture{
		users:    users,
		notes:    notes,
		graph:    NewGraph(users, dispatcher),
		idsByKey: make(map[string]string),
	}

	ctx := context.Background()
	add := func(key string, role directory.Role, adminKeys ...string) {
		var admins []string
		for _, ak := range adminKeys {
			admins = append(admins, f.idsByKey[ak])
		}
		u, err := users.CreateUser(ctx, directory.User{
			ID:             ids.New(),
			Username:       key,
			Email:          key + "@x.io",
			Role:           role,
			AssignedAdmins: admins,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
		f.idsByKey[key] = u.ID
	}

	add("root", directory.RoleSuperadmin)
	add("m1", directory.RoleAdmin)
	add("u1", directory.RoleOthers, "m1")
	add("u2", directory.RoleOthers, "m1")
	add("m2", directory.RoleAdmin, "m1")
	add("u3", directory.RoleOthers, "m2")
	add("z1", directory.RoleOthers)
	return f
}

func (f *fixture) get(t *testing.T, key string) directory.User {
	t.Helper()
	u, err := f.users.GetUser(context.Background(), f.idsByKey[key])
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return u
}

func (f *fixture) admins(t *testing.T, key string) []string {
	t.Helper()
	u := f.get(t, key)
	out := append([]string(nil), u.AssignedAdmins...)
	sort.Strings(out)
	return out
}

func TestAssignRejectsInvalidTargets(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	m1 := f.get(t, "m1")

	if _, err := f.graph.Assign(ctx, m1, f.idsByKey["root"]); err != ErrInvalidTarget {
		t.Fatalf("superadmin target: expected ErrInvalidTarget, got %v", err)
	}
	if _, err := f.graph.Assign(ctx, m1, m1.ID); err != ErrInvalidTarget {
		t.Fatalf("self target: expected ErrInvalidTarget, got %v", err)
	}
	if _, err := f.graph.Assign(ctx, f.get(t, "u1"), f.idsByKey["u2"]); err != ErrForbidden {
		t.Fatalf("others actor: expected ErrForbidden, got %v", err)
	}
}

func TestAssignRejectsDuplicate(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	m1 := f.get(t, "m1")
	if _, err := f.graph.Assign(ctx, m1, f.idsByKey["u1"]); err != ErrAlreadyAssigned {
		t.Fatalf("expected ErrAlreadyAssigned, got %v", err)
	}
}

func TestAssignCascadesOneHop(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	root := f.get(t, "root")

	// Superadmin assigns itself to admin m1: m1's direct team {u1, u2, m2}
	// gains root too, but m2's team {u3} does not (single-level cascade).
	if _, err := f.graph.Assign(ctx, root, f.idsByKey["m1"]); err != nil {
		t.Fatalf("assign: %v", err)
	}

	for _, key := range []string{"m1", "u1", "u2", "m2"} {
		if !f.get(t, key).HasAdmin(root.ID) {
			t.Fatalf("%s must have gained root", key)
		}
	}
	if f.get(t, "u3").HasAdmin(root.ID) {
		t.Fatal("cascade must stop at the direct team")
	}

	// Every affected team member got a notification.
	for _, key := range []string{"m1", "u1", "u2", "m2"} {
		notes, _, err := f.notes.List(ctx, f.idsByKey[key], false, page.Request{Page: 1, Limit: 10})
		if err != nil {
			t.Fatal(err)
		}
		if len(notes) == 0 {
			t.Fatalf("%s should have been notified", key)
		}
	}
}

func TestAssignThenUnassignRestoresState(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	m1 := f.get(t, "m1")
	before := f.admins(t, "z1")

	if _, err := f.graph.Assign(ctx, m1, f.idsByKey["z1"]); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.graph.Unassign(ctx, m1, f.idsByKey["z1"]); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if after := f.admins(t, "z1"); !reflect.DeepEqual(before, after) {
		t.Fatalf("assign+unassign must restore state: before=%v after=%v", before, after)
	}
}

func TestUnassignEmptySetConflicts(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	if _, err := f.graph.Unassign(ctx, f.get(t, "m1"), f.idsByKey["z1"]); err != ErrNothingToUnassign {
		t.Fatalf("expected ErrNothingToUnassign, got %v", err)
	}
}

func TestUnassignSuperadminProtection(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	root := f.get(t, "root")
	m1 := f.get(t, "m1")

	// root delegates z1 to itself; m1 (not one of z1's admins) may not
	// strip that delegation.
	if _, err := f.graph.Assign(ctx, root, f.idsByKey["z1"]); err != nil {
		t.Fatal(err)
	}
	if _, err := f.graph.Unassign(ctx, m1, f.idsByKey["z1"]); err != ErrSuperadminProtected {
		t.Fatalf("expected ErrSuperadminProtected, got %v", err)
	}

	// Once m1 is in z1's set it may remove itself even though root stays.
	if _, err := f.graph.Assign(ctx, m1, f.idsByKey["z1"]); err != nil {
		t.Fatal(err)
	}
	if _, err := f.graph.Unassign(ctx, m1, f.idsByKey["z1"]); err != nil {
		t.Fatalf("self-removal should pass: %v", err)
	}
	z1 := f.get(t, "z1")
	if !z1.HasAdmin(root.ID) || z1.HasAdmin(m1.ID) {
		t.Fatalf("only m1 should have been removed, got %v", z1.AssignedAdmins)
	}
}

func TestSuperadminForceUnassignClearsSet(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	root := f.get(t, "root")

	// root is not one of m2's admins, so unassign clears m2 entirely and
	// the cascade removes m2 from its own team member u3.
	if _, err := f.graph.Unassign(ctx, root, f.idsByKey["m2"]); err != nil {
		t.Fatalf("force unassign: %v", err)
	}
	if got := f.admins(t, "m2"); len(got) != 0 {
		t.Fatalf("force unassign must clear the set, got %v", got)
	}
	if f.get(t, "u3").HasAdmin(f.idsByKey["m2"]) {
		t.Fatal("cascade must remove the target from its team members")
	}
}

func TestAssignScenarioFromDelegationChain(t *testing.T) {
	// Admin m1 has team u1, u2; superadmin assigns itself to admin m2
	// whose team is {u3}: u3 must gain the superadmin id and be notified.
	f := seed(t)
	ctx := context.Background()
	root := f.get(t, "root")

	if _, err := f.graph.Assign(ctx, root, f.idsByKey["m2"]); err != nil {
		t.Fatal(err)
	}
	if !f.get(t, "u3").HasAdmin(root.ID) {
		t.Fatal("u3 must contain the superadmin id after the cascade")
	}
	notes, _, err := f.notes.List(ctx, f.idsByKey["u3"], false, page.Request{Page: 1, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) == 0 {
		t.Fatal("u3 must have been notified")
	}
}

func TestConcurrentAssignsBothLand(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	root := f.get(t, "root")
	m1 := f.get(t, "m1")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	actors := []directory.User{root, m1}
	for i, actor := range actors {
		wg.Add(1)
		go func(i int, actor directory.User) {
			defer wg.Done()
			_, errs[i] = f.graph.Assign(ctx, actor, f.idsByKey["z1"])
		}(i, actor)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("assign %d failed: %v", i, err)
		}
	}
	z1 := f.get(t, "z1")
	if !z1.HasAdmin(root.ID) || !z1.HasAdmin(m1.ID) {
		t.Fatalf("lost update: %v", z1.AssignedAdmins)
	}
}

func TestNoSelfAssignmentEver(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	m2 := f.get(t, "m2")

	// m2 assigns itself to m1; the cascade over m1's team reaches m2's own
	// entry in that team and must not add m2 to itself.
	if _, err := f.graph.Assign(ctx, m2, f.idsByKey["m1"]); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"root", "m1", "u1", "u2", "m2", "u3", "z1"} {
		u := f.get(t, key)
		if u.HasAdmin(u.ID) {
			t.Fatalf("%s ended up in its own admin set", key)
		}
	}
}
