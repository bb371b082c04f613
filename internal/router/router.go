// Package router interprets inbound client frames, sequences the state
// stores, and fans resulting events out to the affected connections.
package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/relaywire/chat-broker/internal/history"
	"github.com/relaywire/chat-broker/internal/model"
	"github.com/relaywire/chat-broker/internal/presence"
	"github.com/relaywire/chat-broker/internal/room"
	"github.com/relaywire/chat-broker/internal/typing"
)

// Sink is the outbound side of one connection. Send must not block; it
// returns false when the event was dropped or the connection is gone, and
// a failing sink never aborts delivery to the others.
type Sink interface {
	Send(v any) bool
}

// Config holds routing settings.
type Config struct {
	DefaultRoom string
}

// Stats contains runtime routing statistics.
type Stats struct {
	FramesReceived int64 `json:"frames_received"`
	FramesRouted   int64 `json:"frames_routed"`
	ParseErrors    int64 `json:"parse_errors"`
	UnknownFrames  int64 `json:"unknown_frames"`
	Deliveries     int64 `json:"deliveries"`
	Drops          int64 `json:"drops"`
}

// Router sequences calls across the presence registry, room directory,
// message log, and typing tracker per inbound frame. It keeps no domain
// state of its own beyond the per-connection sinks.
type Router struct {
	cfg      Config
	logger   *slog.Logger
	presence *presence.Registry
	rooms    *room.Directory
	history  *history.Log
	typing   *typing.Tracker

	mu    sync.RWMutex
	sinks map[model.ConnID]Sink

	statsMu sync.Mutex
	stats   Stats
}

// New creates a Router over the given stores and ensures the default room
// exists.
func New(cfg Config, reg *presence.Registry, dir *room.Directory, log *history.Log, track *typing.Tracker, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.DefaultRoom) == "" {
		cfg.DefaultRoom = "general"
	}

	r := &Router{
		cfg:      cfg,
		logger:   logger,
		presence: reg,
		rooms:    dir,
		history:  log,
		typing:   track,
		sinks:    make(map[model.ConnID]Sink),
	}
	if err := dir.EnsureRoom(cfg.DefaultRoom); err != nil {
		logger.Error("failed to create default room", "room", cfg.DefaultRoom, "error", err)
	}
	return r
}

// Attach binds a connection's outbound sink. Must be called before any
// frame from that connection is handled.
func (r *Router) Attach(conn model.ConnID, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[conn] = sink
}

// Stats returns a snapshot of routing statistics.
func (r *Router) Stats() Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

// HandleFrame parses and dispatches one inbound frame from a connection.
func (r *Router) HandleFrame(conn model.ConnID, data []byte) {
	r.count(func(s *Stats) { s.FramesReceived++ })

	var envelope frameEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		r.logger.Warn("failed to parse frame", "conn_id", conn, "error", err)
		r.count(func(s *Stats) { s.ParseErrors++ })
		r.sendTo(conn, ErrorEvent{Type: "error", Code: CodeBadFrame, Message: "unparseable frame"})
		return
	}

	switch envelope.Type {
	case frameJoin:
		var f joinFrame
		if !r.parse(conn, data, &f) {
			return
		}
		r.handleJoin(conn, f)

	case frameSend:
		var f sendFrame
		if !r.parse(conn, data, &f) {
			return
		}
		r.handleSend(conn, f)

	case frameTyping:
		var f typingFrame
		if !r.parse(conn, data, &f) {
			return
		}
		r.handleTyping(conn, f)

	case frameJoinRoom:
		var f joinRoomFrame
		if !r.parse(conn, data, &f) {
			return
		}
		r.handleJoinRoom(conn, f)

	case frameLeaveRoom:
		var f leaveRoomFrame
		if !r.parse(conn, data, &f) {
			return
		}
		r.handleLeaveRoom(conn, f)

	case framePrivateMessage:
		var f privateMessageFrame
		if !r.parse(conn, data, &f) {
			return
		}
		r.handlePrivateMessage(conn, f)

	case frameMessageRead:
		var f messageReadFrame
		if !r.parse(conn, data, &f) {
			return
		}
		r.handleMessageRead(conn, f)

	default:
		r.logger.Debug("skipping frame type", "type", envelope.Type, "conn_id", conn)
		r.count(func(s *Stats) { s.UnknownFrames++ })
		r.sendTo(conn, ErrorEvent{Type: "error", Code: CodeBadFrame, Message: "unknown frame type"})
		return
	}

	r.count(func(s *Stats) { s.FramesRouted++ })
}

// Disconnect tears down all state for a connection. Safe to call more than
// once; the second call is a no-op.
func (r *Router) Disconnect(conn model.ConnID) {
	r.mu.Lock()
	delete(r.sinks, conn)
	r.mu.Unlock()

	user, ok := r.presence.Unregister(conn)
	r.rooms.RemoveEverywhere(conn)
	r.typing.Clear(conn)
	if !ok {
		return
	}

	r.broadcastAll(UserLeftEvent{Type: "user_left", Username: user.Username, ConnID: conn})
	r.broadcastAll(UserListEvent{Type: "user_list", Users: r.presence.ListAll()})
	r.broadcastAll(TypingUsersEvent{Type: "typing_users", Usernames: r.typing.Active()})
}

// -----------------------------------------------------------------------------
// Frame handlers
// -----------------------------------------------------------------------------

func (r *Router) handleJoin(conn model.ConnID, f joinFrame) {
	username := strings.TrimSpace(f.Username)
	if username == "" {
		r.sendTo(conn, ErrorEvent{Type: "error", Code: CodeValidation, Message: "username must not be blank"})
		return
	}

	if _, err := r.presence.Register(conn, username); err != nil {
		if errors.Is(err, presence.ErrAlreadyRegistered) {
			// Caller error; reported to the originator only, never broadcast.
			r.sendTo(conn, ErrorEvent{Type: "error", Code: CodeAlreadyRegistered, Message: "connection already joined"})
			return
		}
		r.logger.Error("register failed", "conn_id", conn, "error", err)
		return
	}

	if err := r.rooms.Join(conn, r.cfg.DefaultRoom); err != nil {
		r.logger.Error("default room join failed", "conn_id", conn, "error", err)
	}

	r.broadcastAll(UserJoinedEvent{Type: "user_joined", Username: username, ConnID: conn})
	r.broadcastAll(UserListEvent{Type: "user_list", Users: r.presence.ListAll()})
}

func (r *Router) handleSend(conn model.ConnID, f sendFrame) {
	sender, ok := r.presence.Lookup(conn)
	if !ok {
		r.sendTo(conn, ErrorEvent{Type: "error", Code: CodeNotRegistered, Message: "join before sending"})
		return
	}
	if strings.TrimSpace(f.Body) == "" {
		r.sendTo(conn, ErrorEvent{Type: "error", Code: CodeValidation, Message: "message body must not be blank"})
		return
	}

	// An absent or unknown room targets the default room. A send to an
	// unknown room additionally falls back to a global broadcast so the
	// message is never silently lost.
	target := f.Room
	global := false
	if target == "" {
		target = r.cfg.DefaultRoom
	} else if !r.rooms.Exists(target) {
		r.logger.Warn("send to unknown room, broadcasting globally", "room", target, "conn_id", conn)
		target = r.cfg.DefaultRoom
		global = true
	}

	msg := &model.Message{
		Sender:     sender.Username,
		SenderConn: conn,
		Body:       f.Body,
		Timestamp:  time.Now(),
		Room:       target,
	}
	id := r.history.Append(msg)

	r.sendTo(conn, AckEvent{Type: "ack", ID: id})

	ev := MessageEvent{Type: "message", MessageView: msg.View()}
	var recipients []model.ConnID
	if global {
		recipients = r.allConns()
	} else {
		recipients = r.rooms.Members(target)
	}
	for _, rc := range recipients {
		if r.sendTo(rc, ev) {
			r.history.MarkDelivered(id, rc)
		}
	}
}

func (r *Router) handleTyping(conn model.ConnID, f typingFrame) {
	// Unregistered connections are ignored, not errored.
	user, ok := r.presence.Lookup(conn)
	if !ok {
		return
	}

	r.typing.Set(conn, user.Username, f.IsTyping)
	r.broadcastAll(TypingUsersEvent{Type: "typing_users", Usernames: r.typing.Active()})
}

func (r *Router) handleJoinRoom(conn model.ConnID, f joinRoomFrame) {
	user, ok := r.presence.Lookup(conn)
	if !ok {
		r.sendTo(conn, ErrorEvent{Type: "error", Code: CodeNotRegistered, Message: "join before joining rooms"})
		return
	}

	if err := r.rooms.Join(conn, f.Name); err != nil {
		r.sendTo(conn, ErrorEvent{Type: "error", Code: CodeValidation, Message: "room name must not be blank"})
		return
	}

	r.broadcastRoom(f.Name, RoomNotificationEvent{
		Type:      "room_notification",
		Room:      f.Name,
		Message:   user.Username + " joined " + f.Name,
		Timestamp: wireTime(time.Now()),
	})
}

func (r *Router) handleLeaveRoom(conn model.ConnID, f leaveRoomFrame) {
	user, ok := r.presence.Lookup(conn)
	if !ok {
		r.sendTo(conn, ErrorEvent{Type: "error", Code: CodeNotRegistered, Message: "join before leaving rooms"})
		return
	}
	if !r.rooms.Exists(f.Name) {
		return
	}

	r.rooms.Leave(conn, f.Name)

	// Notify the remaining members only.
	r.broadcastRoom(f.Name, RoomNotificationEvent{
		Type:      "room_notification",
		Room:      f.Name,
		Message:   user.Username + " left " + f.Name,
		Timestamp: wireTime(time.Now()),
	})
}

func (r *Router) handlePrivateMessage(conn model.ConnID, f privateMessageFrame) {
	sender, ok := r.presence.Lookup(conn)
	if !ok {
		r.sendTo(conn, ErrorEvent{Type: "error", Code: CodeNotRegistered, Message: "join before sending"})
		return
	}
	if strings.TrimSpace(f.Body) == "" {
		r.sendTo(conn, ErrorEvent{Type: "error", Code: CodeValidation, Message: "message body must not be blank"})
		return
	}

	// Private messages share the id sequence but are never stored.
	id := r.history.NextID()
	r.sendTo(conn, AckEvent{Type: "ack", ID: id})

	target := model.ConnID(f.To)
	ev := PrivateMessageEvent{
		Type:       "private_message",
		ID:         id,
		From:       sender.Username,
		FromConnID: conn,
		To:         target,
		Body:       f.Body,
		Timestamp:  wireTime(time.Now()),
	}

	// An unknown recipient is a benign no-op, not a failure.
	if _, ok := r.presence.Lookup(target); ok {
		r.sendTo(target, ev)
	} else {
		r.logger.Debug("private message to unknown recipient", "to", f.To, "conn_id", conn)
	}
	r.sendTo(conn, ev)
}

func (r *Router) handleMessageRead(conn model.ConnID, f messageReadFrame) {
	receipt, ok := r.history.MarkRead(f.MessageID, conn)
	if !ok {
		// Evicted or never existed; expected once old messages scroll out.
		return
	}
	if !receipt.First {
		// The sender learns about each reader exactly once.
		return
	}

	reader := ""
	if user, ok := r.presence.Lookup(conn); ok {
		reader = user.Username
	}

	r.sendTo(receipt.SenderConn, MessageReadEvent{
		Type:      "message_read",
		MessageID: f.MessageID,
		ReaderID:  conn,
		Reader:    reader,
	})
}

// -----------------------------------------------------------------------------
// Fan-out
// -----------------------------------------------------------------------------

// sendTo pushes one event to one connection. Failures are isolated and
// counted; they never affect other recipients.
func (r *Router) sendTo(conn model.ConnID, ev any) bool {
	r.mu.RLock()
	sink, ok := r.sinks[conn]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if !sink.Send(ev) {
		r.count(func(s *Stats) { s.Drops++ })
		r.logger.Warn("dropped outbound event", "conn_id", conn)
		return false
	}
	r.count(func(s *Stats) { s.Deliveries++ })
	return true
}

// broadcastAll delivers an event to every attached connection.
func (r *Router) broadcastAll(ev any) {
	for _, conn := range r.allConns() {
		r.sendTo(conn, ev)
	}
}

// broadcastRoom delivers an event to every member of a room.
func (r *Router) broadcastRoom(name string, ev any) {
	for _, conn := range r.rooms.Members(name) {
		r.sendTo(conn, ev)
	}
}

// allConns returns a snapshot of attached connections.
func (r *Router) allConns() []model.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]model.ConnID, 0, len(r.sinks))
	for conn := range r.sinks {
		conns = append(conns, conn)
	}
	return conns
}

// parse unmarshals a typed frame, reporting a parse failure to the
// originator.
func (r *Router) parse(conn model.ConnID, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		r.logger.Warn("failed to parse frame payload", "conn_id", conn, "error", err)
		r.count(func(s *Stats) { s.ParseErrors++ })
		r.sendTo(conn, ErrorEvent{Type: "error", Code: CodeBadFrame, Message: "unparseable frame"})
		return false
	}
	return true
}

func (r *Router) count(fn func(*Stats)) {
	r.statsMu.Lock()
	fn(&r.stats)
	r.statsMu.Unlock()
}
