// Package typing tracks which connections are currently typing.
// State here is ephemeral: it is dropped on typing-stop and on disconnect
// and never persisted.
package typing

import (
	"sort"
	"sync"

	"github.com/relaywire/chat-broker/internal/model"
)

// Tracker is a mutex-guarded map of actively typing connections.
type Tracker struct {
	mu     sync.RWMutex
	active map[model.ConnID]string
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{active: make(map[model.ConnID]string)}
}

// Set inserts or removes the typing entry for a connection.
func (t *Tracker) Set(conn model.ConnID, username string, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if isTyping {
		t.active[conn] = username
	} else {
		delete(t.active, conn)
	}
}

// Clear removes the entry for a connection, used on disconnect.
func (t *Tracker) Clear(conn model.ConnID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, conn)
}

// Active returns a sorted snapshot of usernames currently typing.
func (t *Tracker) Active() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.active))
	for _, username := range t.active {
		names = append(names, username)
	}
	sort.Strings(names)
	return names
}
