// Package presence tracks connected users. The Registry is the sole source
// of truth for who is online; each connection appears at most once.
package presence

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/relaywire/chat-broker/internal/model"
)

// ErrAlreadyRegistered is returned when a connection registers twice.
// Correct transport semantics make this a caller error, not a normal path.
var ErrAlreadyRegistered = errors.New("connection already registered")

// Registry is a mutex-guarded store of connected users.
type Registry struct {
	mu     sync.RWMutex
	users  map[model.ConnID]*model.User
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		users:  make(map[model.ConnID]*model.User),
		logger: logger,
	}
}

// Register adds a user for the given connection.
// Fails with ErrAlreadyRegistered if the connection is already present.
func (r *Registry) Register(conn model.ConnID, username string) (model.UserView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[conn]; exists {
		return model.UserView{}, ErrAlreadyRegistered
	}

	u := &model.User{
		ConnID:   conn,
		Username: username,
		Rooms:    make(map[string]struct{}),
		JoinedAt: time.Now(),
	}
	r.users[conn] = u

	r.logger.Info("user registered", "conn_id", conn, "username", username, "online", len(r.users))
	return u.View(), nil
}

// Unregister removes the user for the given connection. The second return
// is false if the connection was not registered; disconnects are idempotent.
func (r *Registry) Unregister(conn model.ConnID) (model.UserView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[conn]
	if !ok {
		return model.UserView{}, false
	}
	delete(r.users, conn)

	r.logger.Info("user unregistered", "conn_id", conn, "username", u.Username, "online", len(r.users))
	return u.View(), true
}

// Lookup returns a snapshot of the user for the given connection.
func (r *Registry) Lookup(conn model.ConnID) (model.UserView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[conn]
	if !ok {
		return model.UserView{}, false
	}
	return u.View(), true
}

// ListAll returns a snapshot of all connected users, sorted by username so
// a single call is internally stable.
func (r *Registry) ListAll() []model.UserView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]model.UserView, 0, len(r.users))
	for _, u := range r.users {
		views = append(views, u.View())
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Username != views[j].Username {
			return views[i].Username < views[j].Username
		}
		return views[i].ConnID < views[j].ConnID
	})
	return views
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// AddRoom records room membership on the user's cached room set.
// Returns false if the connection is not registered.
func (r *Registry) AddRoom(conn model.ConnID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[conn]
	if !ok {
		return false
	}
	u.Rooms[room] = struct{}{}
	return true
}

// RemoveRoom drops a room from the user's cached room set.
func (r *Registry) RemoveRoom(conn model.ConnID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[conn]
	if !ok {
		return false
	}
	delete(u.Rooms, room)
	return true
}

// Rooms returns the user's cached room set, sorted.
func (r *Registry) Rooms(conn model.ConnID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[conn]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(u.Rooms))
	for name := range u.Rooms {
		rooms = append(rooms, name)
	}
	sort.Strings(rooms)
	return rooms
}
