package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaywire/chat-broker/internal/config"
	"github.com/relaywire/chat-broker/internal/history"
	"github.com/relaywire/chat-broker/internal/model"
	"github.com/relaywire/chat-broker/internal/presence"
	"github.com/relaywire/chat-broker/internal/room"
	"github.com/relaywire/chat-broker/internal/router"
	"github.com/relaywire/chat-broker/internal/typing"
)

func newTestHandler(t *testing.T) (*Handler, *presence.Registry, *history.Log) {
	t.Helper()

	cfg := config.BrokerConfig{Instance: config.InstanceConfig{ID: "test"}}
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Chat.DefaultRoom = "general"
	cfg.Chat.HistoryCapacity = 100
	cfg.Client.SendBuffer = 64
	cfg.Client.MaxMessageSize = 4096
	cfg.Client.PingInterval = time.Minute
	cfg.Client.PongTimeout = time.Minute
	cfg.Client.WriteTimeout = time.Second
	cfg.Client.RateLimit = config.RateLimitConfig{Burst: 100, RefillInterval: time.Second}

	reg := presence.NewRegistry(nil)
	dir := room.NewDirectory(reg, nil)
	log := history.NewLog(cfg.Chat.HistoryCapacity, nil)
	track := typing.NewTracker()
	r := router.New(router.Config{DefaultRoom: cfg.Chat.DefaultRoom}, reg, dir, log, track, nil)

	return NewHandler(cfg, r, reg, log, nil), reg, log
}

func TestHandler_Health(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status   string `json:"status"`
		Instance string `json:"instance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q, want %q", body.Status, "healthy")
	}
	if body.Instance != "test" {
		t.Errorf("instance = %q, want %q", body.Instance, "test")
	}
}

func TestHandler_OnlineUsers(t *testing.T) {
	h, reg, _ := newTestHandler(t)
	reg.Register("conn-1", "alice")

	rec := httptest.NewRecorder()
	h.OnlineUsers(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	var users []model.UserView
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" {
		t.Errorf("users = %+v, want one alice", users)
	}
}

func TestHandler_RecentMessages(t *testing.T) {
	h, _, log := newTestHandler(t)
	log.Append(&model.Message{Sender: "alice", SenderConn: "conn-1", Body: "hi", Timestamp: time.Now(), Room: "general"})

	rec := httptest.NewRecorder()
	h.RecentMessages(rec, httptest.NewRequest(http.MethodGet, "/api/messages", nil))

	var views []model.MessageView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(views) != 1 || views[0].Body != "hi" {
		t.Errorf("messages = %+v, want one", views)
	}
	if strings.Contains(rec.Body.String(), "delivered") {
		t.Errorf("catch-up response leaked tracking fields: %s", rec.Body.String())
	}
}

func TestHandler_WebSocket_RejectsPost(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.WebSocket(rec, httptest.NewRequest(http.MethodPost, "/ws", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

// TestHandler_WebSocket_EndToEnd runs a real client through join and send.
func TestHandler_WebSocket_EndToEnd(t *testing.T) {
	h, reg, _ := newTestHandler(t)

	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readEvent := func() map[string]any {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var ev map[string]any
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		return ev
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","username":"alice"}`)); err != nil {
		t.Fatalf("write join: %v", err)
	}

	if ev := readEvent(); ev["type"] != "user_joined" {
		t.Fatalf("first event = %v, want user_joined", ev)
	}
	if ev := readEvent(); ev["type"] != "user_list" {
		t.Fatalf("second event = %v, want user_list", ev)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"send","body":"hello"}`)); err != nil {
		t.Fatalf("write send: %v", err)
	}

	ack := readEvent()
	if ack["type"] != "ack" || ack["id"] == nil {
		t.Fatalf("event = %v, want ack with id", ack)
	}
	msg := readEvent()
	if msg["type"] != "message" || msg["body"] != "hello" {
		t.Fatalf("event = %v, want the delivered message", msg)
	}

	// Disconnect tears presence down.
	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for reg.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("presence not cleaned up after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
