package presence

import (
	"errors"
	"testing"

	"github.com/relaywire/chat-broker/internal/model"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry(nil)

	view, err := r.Register("conn-1", "alice")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if view.Username != "alice" {
		t.Errorf("Username = %q, want %q", view.Username, "alice")
	}

	got, ok := r.Lookup("conn-1")
	if !ok {
		t.Fatal("user not found")
	}
	if got.ConnID != "conn-1" {
		t.Errorf("ConnID = %q, want %q", got.ConnID, "conn-1")
	}
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	r := NewRegistry(nil)

	if _, err := r.Register("conn-1", "alice"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := r.Register("conn-1", "alice-again")
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("err = %v, want ErrAlreadyRegistered", err)
	}

	// The original registration is untouched.
	got, _ := r.Lookup("conn-1")
	if got.Username != "alice" {
		t.Errorf("Username = %q, want %q", got.Username, "alice")
	}
}

func TestRegistry_Unregister_Idempotent(t *testing.T) {
	r := NewRegistry(nil)

	r.Register("conn-1", "alice")

	view, ok := r.Unregister("conn-1")
	if !ok {
		t.Fatal("first unregister should find the user")
	}
	if view.Username != "alice" {
		t.Errorf("Username = %q, want %q", view.Username, "alice")
	}

	// Second call is a silent no-op.
	if _, ok := r.Unregister("conn-1"); ok {
		t.Error("second unregister should report not found")
	}
	if r.Count() != 0 {
		t.Errorf("Count = %d, want 0", r.Count())
	}
}

func TestRegistry_Lookup_NotFound(t *testing.T) {
	r := NewRegistry(nil)

	if _, ok := r.Lookup("nonexistent"); ok {
		t.Error("expected user not found")
	}
}

func TestRegistry_ListAll_Sorted(t *testing.T) {
	r := NewRegistry(nil)

	r.Register("conn-c", "carol")
	r.Register("conn-a", "alice")
	r.Register("conn-b", "bob")

	users := r.ListAll()
	if len(users) != 3 {
		t.Fatalf("len(users) = %d, want 3", len(users))
	}

	want := []string{"alice", "bob", "carol"}
	for i, u := range users {
		if u.Username != want[i] {
			t.Errorf("users[%d].Username = %q, want %q", i, u.Username, want[i])
		}
	}
}

func TestRegistry_RoomCache(t *testing.T) {
	r := NewRegistry(nil)

	r.Register("conn-1", "alice")

	if !r.AddRoom("conn-1", "dev") {
		t.Error("AddRoom should succeed for a registered connection")
	}
	if !r.AddRoom("conn-1", "general") {
		t.Error("AddRoom should succeed for a registered connection")
	}

	rooms := r.Rooms("conn-1")
	if len(rooms) != 2 || rooms[0] != "dev" || rooms[1] != "general" {
		t.Errorf("Rooms = %v, want [dev general]", rooms)
	}

	r.RemoveRoom("conn-1", "dev")
	rooms = r.Rooms("conn-1")
	if len(rooms) != 1 || rooms[0] != "general" {
		t.Errorf("Rooms = %v, want [general]", rooms)
	}

	// Unregistered connections are ignored.
	if r.AddRoom("nonexistent", "dev") {
		t.Error("AddRoom should fail for an unknown connection")
	}
}

func TestRegistry_ViewIsSnapshot(t *testing.T) {
	r := NewRegistry(nil)

	r.Register("conn-1", "alice")
	r.AddRoom("conn-1", "dev")

	view, _ := r.Lookup("conn-1")
	view.Rooms[0] = "mutated"

	got := r.Rooms(model.ConnID("conn-1"))
	if got[0] != "dev" {
		t.Errorf("Rooms[0] = %q, want %q (views must not alias internal state)", got[0], "dev")
	}
}
