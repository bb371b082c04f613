package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// ConnID identifies a single live connection for its lifetime.
type ConnID string

// NewConnID mints a fresh connection identifier.
func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

// User is the internal presence record for a connected user.
// Owned exclusively by the Connection Registry. Rooms is a cached view of
// Room Directory membership; the directory is authoritative.
type User struct {
	ConnID   ConnID
	Username string
	Rooms    map[string]struct{} // Cached room membership
	JoinedAt time.Time
}

// View returns an external snapshot of the user.
func (u *User) View() UserView {
	rooms := make([]string, 0, len(u.Rooms))
	for name := range u.Rooms {
		rooms = append(rooms, name)
	}
	sort.Strings(rooms)

	return UserView{
		ConnID:   u.ConnID,
		Username: u.Username,
		Rooms:    rooms,
	}
}

// UserView is the external projection of a User.
type UserView struct {
	ConnID   ConnID   `json:"conn_id"`
	Username string   `json:"username"`
	Rooms    []string `json:"rooms"`
}

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

// Message is a chat message. Owned exclusively by the Message Log once
// appended; DeliveredTo and ReadBy only grow until the message is evicted.
type Message struct {
	ID          int64
	Sender      string
	SenderConn  ConnID
	Body        string
	Timestamp   time.Time
	Room        string // Empty for private messages
	Private     bool
	DeliveredTo map[ConnID]struct{}
	ReadBy      map[ConnID]struct{}
}

// View returns the external projection with delivery tracking omitted.
func (m *Message) View() MessageView {
	return MessageView{
		ID:        m.ID,
		Sender:    m.Sender,
		SenderID:  m.SenderConn,
		Body:      m.Body,
		Timestamp: m.Timestamp.Format(time.RFC3339),
		Room:      m.Room,
		Private:   m.Private,
	}
}

// MessageView is the external projection of a Message. DeliveredTo and
// ReadBy are omitted by policy; they exist only inside the Message Log.
type MessageView struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	SenderID  ConnID `json:"sender_id"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
	Room      string `json:"room,omitempty"`
	Private   bool   `json:"private,omitempty"`
}
