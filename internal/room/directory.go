// Package room maintains the directory of named broadcast groups.
//
// The directory is authoritative for membership. The user's cached room set
// (held by the Connection Registry) is written through the UserRooms
// interface so both sides stay consistent: a connection appears in a room's
// member set iff the room appears in that connection's cached set.
package room

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/relaywire/chat-broker/internal/model"
)

// ErrInvalidRoomName is returned when a room name is empty or whitespace.
var ErrInvalidRoomName = errors.New("invalid room name")

// UserRooms is the cached-membership side of the invariant, implemented by
// the Connection Registry.
type UserRooms interface {
	AddRoom(conn model.ConnID, room string) bool
	RemoveRoom(conn model.ConnID, room string) bool
}

// Directory is a mutex-guarded store of rooms and their member sets.
// Rooms are created lazily and never destroyed; an empty room stays
// registered.
type Directory struct {
	mu     sync.RWMutex
	rooms  map[string]map[model.ConnID]struct{}
	cache  UserRooms
	logger *slog.Logger
}

// NewDirectory creates an empty Directory writing membership through cache.
func NewDirectory(cache UserRooms, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		rooms:  make(map[string]map[model.ConnID]struct{}),
		cache:  cache,
		logger: logger,
	}
}

// EnsureRoom creates an empty room if absent. Idempotent.
func (d *Directory) EnsureRoom(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidRoomName
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.rooms[name]; !ok {
		d.rooms[name] = make(map[model.ConnID]struct{})
		d.logger.Info("room created", "room", name)
	}
	return nil
}

// Join adds the connection to the room and to the user's cached room set.
// Re-joining is a no-op beyond re-affirming membership.
func (d *Directory) Join(conn model.ConnID, name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidRoomName
	}

	d.mu.Lock()
	members, ok := d.rooms[name]
	if !ok {
		members = make(map[model.ConnID]struct{})
		d.rooms[name] = members
	}
	members[conn] = struct{}{}
	d.mu.Unlock()

	d.cache.AddRoom(conn, name)
	return nil
}

// Leave removes the connection from the room and the cached set.
// No-op if the room is unknown or the connection is not a member.
func (d *Directory) Leave(conn model.ConnID, name string) {
	d.mu.Lock()
	if members, ok := d.rooms[name]; ok {
		delete(members, conn)
	}
	d.mu.Unlock()

	d.cache.RemoveRoom(conn, name)
}

// Exists reports whether the room is registered.
func (d *Directory) Exists(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.rooms[name]
	return ok
}

// Members returns a snapshot of the room's member set. An unknown room
// yields an empty set, not an error.
func (d *Directory) Members(name string) []model.ConnID {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members, ok := d.rooms[name]
	if !ok {
		return nil
	}
	out := make([]model.ConnID, 0, len(members))
	for conn := range members {
		out = append(out, conn)
	}
	return out
}

// MemberCount returns the size of the room's member set.
func (d *Directory) MemberCount(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms[name])
}

// RoomNames returns a sorted snapshot of all registered room names.
func (d *Directory) RoomNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.rooms))
	for name := range d.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveEverywhere removes the connection from every room it belonged to
// in one step, used on disconnect. Returns the rooms it was removed from.
func (d *Directory) RemoveEverywhere(conn model.ConnID) []string {
	d.mu.Lock()
	var left []string
	for name, members := range d.rooms {
		if _, ok := members[conn]; ok {
			delete(members, conn)
			left = append(left, name)
		}
	}
	d.mu.Unlock()

	for _, name := range left {
		d.cache.RemoveRoom(conn, name)
	}
	sort.Strings(left)
	return left
}
