package scope

import (
	"context"
	"testing"

	"fieldpulse.org/internal/directory"
)

func seedGraph(t *testing.T) *directory.InMemory {
	t.Helper()
	store := directory.NewInMemory()
	ctx := context.Background()
	users := []directory.User{
		{ID: "root", Username: "root", Email: "root@x.io", Role: directory.RoleSuperadmin},
		{ID: "m1", Username: "m1", Email: "m1@x.io", Role: directory.RoleAdmin},
		{ID: "u1", Username: "u1", Email: "u1@x.io", Role: directory.RoleOthers, AssignedAdmins: []string{"m1"}},
		{ID: "u2", Username: "u2", Email: "u2@x.io", Role: directory.RoleOthers, AssignedAdmins: []string{"m1"}},
		{ID: "m2", Username: "m2", Email: "m2@x.io", Role: directory.RoleAdmin, AssignedAdmins: []string{"m1"}},
		{ID: "u3", Username: "u3", Email: "u3@x.io", Role: directory.RoleOthers, AssignedAdmins: []string{"m2"}},
		{ID: "m3", Username: "m3", Email: "m3@x.io", Role: directory.RoleAdmin, AssignedAdmins: []string{"m2"}},
		{ID: "u4", Username: "u4", Email: "u4@x.io", Role: directory.RoleOthers, AssignedAdmins: []string{"m3"}},
		{ID: "z1", Username: "z1", Email: "z1@x.io", Role: directory.RoleOthers},
	}
	for _, u := range users {
		if _, err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("seed %s: %v", u.ID, err)
		}
	}
	return store
}

func TestSuperadminUnrestricted(t *testing.T) {
	store := seedGraph(t)
	r := NewResolver(store)
	sc, err := r.Resolve(context.Background(), mustGet(t, store, "root"))
	if err != nil {
		t.Fatal(err)
	}
	if !sc.Unrestricted() {
		t.Fatal("superadmin scope must be unrestricted")
	}
	if !sc.AllowsUser("anything") {
		t.Fatal("unrestricted scope must allow any id")
	}
}

func TestAdminTwoHopBound(t *testing.T) {
	store := seedGraph(t)
	r := NewResolver(store)
	sc, err := r.Resolve(context.Background(), mustGet(t, store, "m1"))
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"m1", "u1", "u2", "m2", "u3", "m3"} {
		if !sc.AllowsUser(id) {
			t.Fatalf("expected %s inside m1 scope", id)
		}
	}
	// u4 reports to m3, which is two delegation hops below m1: out of scope.
	if sc.AllowsUser("u4") {
		t.Fatal("u4 must be outside the two-hop bound")
	}
	if sc.AllowsUser("z1") {
		t.Fatal("unrelated user must be out of scope")
	}
}

func TestOthersSelfOnly(t *testing.T) {
	store := seedGraph(t)
	r := NewResolver(store)
	sc, err := r.Resolve(context.Background(), mustGet(t, store, "u1"))
	if err != nil {
		t.Fatal(err)
	}
	if !sc.AllowsUser("u1") || sc.AllowsUser("u2") || sc.AllowsUser("m1") {
		t.Fatalf("others scope must be self only, got %v", sc.UserIDs())
	}
}

func TestVerifySelected(t *testing.T) {
	store := seedGraph(t)
	r := NewResolver(store)
	sc, err := r.Resolve(context.Background(), mustGet(t, store, "m1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.VerifySelected(sc, "u1"); err != nil {
		t.Fatalf("in-scope selection rejected: %v", err)
	}
	if err := r.VerifySelected(sc, "z1"); err != ErrOutOfScope {
		t.Fatalf("expected ErrOutOfScope, got %v", err)
	}
	if err := r.VerifySelected(sc, ""); err != nil {
		t.Fatalf("empty selection must pass: %v", err)
	}
}

func TestCyclicGraphTerminates(t *testing.T) {
	store := directory.NewInMemory()
	ctx := context.Background()
	// a and b are admins assigned to each other.
	for _, u := range []directory.User{
		{ID: "a", Username: "a", Email: "a@x.io", Role: directory.RoleAdmin, AssignedAdmins: []string{"b"}},
		{ID: "b", Username: "b", Email: "b@x.io", Role: directory.RoleAdmin, AssignedAdmins: []string{"a"}},
	} {
		if _, err := store.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	r := NewResolver(store)
	sc, err := r.Resolve(ctx, mustGet(t, store, "a"))
	if err != nil {
		t.Fatal(err)
	}
	if !sc.AllowsUser("a") || !sc.AllowsUser("b") {
		t.Fatalf("cycle members must be mutually visible, got %v", sc.UserIDs())
	}
}

func mustGet(t *testing.T, store *directory.InMemory, id string) directory.User {
	t.Helper()
	u, err := store.GetUser(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return u
}
