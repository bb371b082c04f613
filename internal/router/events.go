package router

import (
	"time"

	"github.com/relaywire/chat-broker/internal/model"
)

// Inbound frame types.
const (
	frameJoin           = "join"
	frameSend           = "send"
	frameTyping         = "typing"
	frameJoinRoom       = "join_room"
	frameLeaveRoom      = "leave_room"
	framePrivateMessage = "private_message"
	frameMessageRead    = "message_read"
)

// Error codes reported to the originating connection only.
const (
	CodeValidation        = "validation"
	CodeAlreadyRegistered = "already_registered"
	CodeNotRegistered     = "not_registered"
	CodeBadFrame          = "bad_frame"
)

// frameEnvelope is used for fast type extraction.
type frameEnvelope struct {
	Type string `json:"type"`
}

// Inbound wire types. Optional fields default per the routing rules, not
// via runtime presence checks.

type joinFrame struct {
	Username string `json:"username"`
}

type sendFrame struct {
	Body string `json:"body"`
	Room string `json:"room,omitempty"` // Empty means the default room
}

type typingFrame struct {
	IsTyping bool `json:"is_typing"`
}

type joinRoomFrame struct {
	Name string `json:"name"`
}

type leaveRoomFrame struct {
	Name string `json:"name"`
}

type privateMessageFrame struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type messageReadFrame struct {
	MessageID int64 `json:"message_id"`
}

// Outbound wire types. Every event carries a "type" discriminator so
// clients can merge the stream without positional knowledge.

// AckEvent acknowledges a send to its originator with the assigned id.
type AckEvent struct {
	Type string `json:"type"` // "ack"
	ID   int64  `json:"id"`
}

// ErrorEvent reports a rejected frame to its originator.
type ErrorEvent struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UserListEvent carries the full user list after a presence change.
type UserListEvent struct {
	Type  string           `json:"type"` // "user_list"
	Users []model.UserView `json:"users"`
}

// UserJoinedEvent announces a newly registered user.
type UserJoinedEvent struct {
	Type     string       `json:"type"` // "user_joined"
	Username string       `json:"username"`
	ConnID   model.ConnID `json:"conn_id"`
}

// UserLeftEvent announces a disconnected user.
type UserLeftEvent struct {
	Type     string       `json:"type"` // "user_left"
	Username string       `json:"username"`
	ConnID   model.ConnID `json:"conn_id"`
}

// MessageEvent delivers a chat message. Delivery tracking is omitted from
// the embedded view by construction.
type MessageEvent struct {
	Type string `json:"type"` // "message"
	model.MessageView
}

// TypingUsersEvent carries the current active-typing username list.
type TypingUsersEvent struct {
	Type      string   `json:"type"` // "typing_users"
	Usernames []string `json:"usernames"`
}

// RoomNotificationEvent is a transient system notice scoped to one room.
type RoomNotificationEvent struct {
	Type      string `json:"type"` // "room_notification"
	Room      string `json:"room"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// PrivateMessageEvent delivers a one-to-one message to the target and
// echoes it to the sender. Private messages are never stored.
type PrivateMessageEvent struct {
	Type       string       `json:"type"` // "private_message"
	ID         int64        `json:"id"`
	From       string       `json:"from"`
	FromConnID model.ConnID `json:"from_conn_id"`
	To         model.ConnID `json:"to"`
	Body       string       `json:"body"`
	Timestamp  string       `json:"timestamp"`
}

// MessageReadEvent notifies a message's sender of a read receipt.
type MessageReadEvent struct {
	Type      string       `json:"type"` // "message_read"
	MessageID int64        `json:"message_id"`
	ReaderID  model.ConnID `json:"reader_id"`
	Reader    string       `json:"reader"`
}

func wireTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
