// Package history holds the bounded log of recent room and global messages.
package history

import (
	"log/slog"
	"sync"
	"time"

	"github.com/relaywire/chat-broker/internal/model"
)

// Log is an append-only, capacity-bounded message buffer with strict FIFO
// eviction. Append is the single serialization point for id assignment, so
// concurrent senders still get unique, totally ordered ids.
type Log struct {
	mu       sync.RWMutex
	entries  []*model.Message
	capacity int
	lastID   int64
	evicted  int64
	logger   *slog.Logger
}

// NewLog creates a Log retaining at most capacity messages.
func NewLog(capacity int, logger *slog.Logger) *Log {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		entries:  make([]*model.Message, 0, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

// Append assigns a strictly increasing id, appends the message, and evicts
// the oldest entry if the capacity is exceeded. Returns the assigned id.
func (l *Log) Append(msg *model.Message) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Ids are derived from wall-clock milliseconds but bumped past the last
	// assigned id when the clock repeats or regresses.
	id := time.Now().UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id
	msg.ID = id

	if msg.DeliveredTo == nil {
		msg.DeliveredTo = make(map[model.ConnID]struct{})
	}
	if msg.ReadBy == nil {
		msg.ReadBy = make(map[model.ConnID]struct{})
	}

	l.entries = append(l.entries, msg)
	if len(l.entries) > l.capacity {
		evict := len(l.entries) - l.capacity
		l.entries = append(l.entries[:0:0], l.entries[evict:]...)
		l.evicted += int64(evict)
	}

	return id
}

// NextID assigns an id without retaining a message, used for private
// messages that share the id sequence but are never stored.
func (l *Log) NextID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := time.Now().UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id
	return id
}

// MarkDelivered records that the message reached the given connection.
// No-op if the message has been evicted.
func (l *Log) MarkDelivered(id int64, conn model.ConnID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if msg := l.find(id); msg != nil {
		msg.DeliveredTo[conn] = struct{}{}
	}
}

// ReadReceipt identifies the sender to notify after a read marking.
type ReadReceipt struct {
	SenderConn model.ConnID
	Sender     string
	First      bool // False when this reader had already marked the message
}

// MarkRead records a read receipt. The second return is false when the
// message has been evicted or never existed; old messages scrolling out
// makes this an expected path. Marking is idempotent: a repeat reader is
// reported with First=false and changes nothing.
func (l *Log) MarkRead(id int64, reader model.ConnID) (ReadReceipt, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := l.find(id)
	if msg == nil {
		return ReadReceipt{}, false
	}

	_, already := msg.ReadBy[reader]
	msg.ReadBy[reader] = struct{}{}

	return ReadReceipt{
		SenderConn: msg.SenderConn,
		Sender:     msg.Sender,
		First:      !already,
	}, true
}

// Snapshot returns views of all retained messages in insertion order.
// Delivery tracking fields are omitted from the view by policy.
func (l *Log) Snapshot() []model.MessageView {
	l.mu.RLock()
	defer l.mu.RUnlock()

	views := make([]model.MessageView, 0, len(l.entries))
	for _, msg := range l.entries {
		views = append(views, msg.View())
	}
	return views
}

// DeliveredTo returns a snapshot of the connections the message reached.
func (l *Log) DeliveredTo(id int64) []model.ConnID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	msg := l.find(id)
	if msg == nil {
		return nil
	}
	out := make([]model.ConnID, 0, len(msg.DeliveredTo))
	for conn := range msg.DeliveredTo {
		out = append(out, conn)
	}
	return out
}

// ReadBy returns a snapshot of the connections that read the message.
func (l *Log) ReadBy(id int64) []model.ConnID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	msg := l.find(id)
	if msg == nil {
		return nil
	}
	out := make([]model.ConnID, 0, len(msg.ReadBy))
	for conn := range msg.ReadBy {
		out = append(out, conn)
	}
	return out
}

// Len returns the number of retained messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Stats returns log statistics.
func (l *Log) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		Retained: len(l.entries),
		Capacity: l.capacity,
		Evicted:  l.evicted,
		LastID:   l.lastID,
	}
}

// Stats contains Message Log statistics.
type Stats struct {
	Retained int   `json:"retained"`
	Capacity int   `json:"capacity"`
	Evicted  int64 `json:"evicted"`
	LastID   int64 `json:"last_id"`
}

// find locates a retained message by id. Must be called with the lock held.
// Entries are id-ordered, so scan from the newest end; receipts almost
// always target recent messages.
func (l *Log) find(id int64) *model.Message {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].ID == id {
			return l.entries[i]
		}
		if l.entries[i].ID < id {
			return nil
		}
	}
	return nil
}
