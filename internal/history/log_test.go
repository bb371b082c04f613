package history

import (
	"sync"
	"testing"
	"time"

	"github.com/relaywire/chat-broker/internal/model"
)

func newMessage(body string) *model.Message {
	return &model.Message{
		Sender:     "alice",
		SenderConn: "conn-1",
		Body:       body,
		Timestamp:  time.Now(),
		Room:       "general",
	}
}

func TestLog_Append_AssignsIncreasingIDs(t *testing.T) {
	l := NewLog(100, nil)

	var last int64
	for i := 0; i < 50; i++ {
		id := l.Append(newMessage("hi"))
		if id <= last {
			t.Fatalf("id %d not greater than previous %d", id, last)
		}
		last = id
	}
}

func TestLog_Append_ConcurrentSendersUniqueIDs(t *testing.T) {
	l := NewLog(1000, nil)

	const workers = 8
	const perWorker = 100

	ids := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- l.Append(newMessage("hi"))
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != workers*perWorker {
		t.Errorf("unique ids = %d, want %d", len(seen), workers*perWorker)
	}
}

func TestLog_CapacityEviction(t *testing.T) {
	l := NewLog(100, nil)

	var firstID int64
	for i := 0; i < 101; i++ {
		id := l.Append(newMessage("hi"))
		if i == 0 {
			firstID = id
		}
	}

	if l.Len() != 100 {
		t.Errorf("Len = %d, want 100", l.Len())
	}

	// The earliest message is no longer retrievable.
	views := l.Snapshot()
	if len(views) != 100 {
		t.Fatalf("len(Snapshot) = %d, want 100", len(views))
	}
	if views[0].ID == firstID {
		t.Error("oldest message should have been evicted")
	}
	if _, ok := l.MarkRead(firstID, "conn-2"); ok {
		t.Error("MarkRead on evicted message should report not found")
	}

	// Order is insertion order.
	for i := 1; i < len(views); i++ {
		if views[i].ID <= views[i-1].ID {
			t.Fatalf("snapshot out of order at %d: %d <= %d", i, views[i].ID, views[i-1].ID)
		}
	}
}

func TestLog_MarkRead(t *testing.T) {
	l := NewLog(100, nil)
	id := l.Append(newMessage("hi"))

	receipt, ok := l.MarkRead(id, "conn-2")
	if !ok {
		t.Fatal("MarkRead should find the message")
	}
	if receipt.SenderConn != "conn-1" {
		t.Errorf("SenderConn = %q, want %q", receipt.SenderConn, "conn-1")
	}
	if receipt.Sender != "alice" {
		t.Errorf("Sender = %q, want %q", receipt.Sender, "alice")
	}
	if !receipt.First {
		t.Error("first marking should report First")
	}

	// Marking twice is idempotent.
	receipt, ok = l.MarkRead(id, "conn-2")
	if !ok || receipt.First {
		t.Errorf("repeat marking = (%+v, %v), want found with First=false", receipt, ok)
	}
	readers := l.ReadBy(id)
	if len(readers) != 1 || readers[0] != "conn-2" {
		t.Errorf("ReadBy = %v, want [conn-2]", readers)
	}
}

func TestLog_MarkRead_UnknownID(t *testing.T) {
	l := NewLog(100, nil)
	l.Append(newMessage("hi"))

	before := l.Stats()
	if _, ok := l.MarkRead(99999999999999, "conn-2"); ok {
		t.Error("MarkRead on unknown id should report not found")
	}
	after := l.Stats()
	if before != after {
		t.Errorf("stats changed on unknown-id MarkRead: %+v -> %+v", before, after)
	}
}

func TestLog_Snapshot_OmitsTracking(t *testing.T) {
	l := NewLog(100, nil)
	id := l.Append(newMessage("hi"))
	l.MarkDelivered(id, "conn-2")
	l.MarkRead(id, "conn-2")

	views := l.Snapshot()
	if len(views) != 1 {
		t.Fatalf("len(Snapshot) = %d, want 1", len(views))
	}
	if views[0].Body != "hi" || views[0].Sender != "alice" {
		t.Errorf("view = %+v", views[0])
	}
	// The view type has no tracking fields; the internal sets survive.
	if readers := l.ReadBy(id); len(readers) != 1 {
		t.Errorf("ReadBy = %v, want one reader", readers)
	}
}

func TestLog_NextID_SharesSequence(t *testing.T) {
	l := NewLog(100, nil)

	a := l.Append(newMessage("stored"))
	b := l.NextID()
	c := l.Append(newMessage("stored again"))

	if !(a < b && b < c) {
		t.Errorf("ids not strictly increasing: %d, %d, %d", a, b, c)
	}
	if l.Len() != 2 {
		t.Errorf("Len = %d, want 2 (NextID must not retain)", l.Len())
	}
}
