package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/relaywire/chat-broker/internal/config"
	"github.com/relaywire/chat-broker/internal/history"
	"github.com/relaywire/chat-broker/internal/model"
	"github.com/relaywire/chat-broker/internal/presence"
	"github.com/relaywire/chat-broker/internal/router"
	"github.com/relaywire/chat-broker/internal/version"
)

// Handler serves the WebSocket endpoint and the pull-based query boundary.
type Handler struct {
	cfg      config.BrokerConfig
	router   *router.Router
	presence *presence.Registry
	history  *history.Log
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler wires the transport to the router and stores.
func NewHandler(cfg config.BrokerConfig, r *router.Router, reg *presence.Registry, log *history.Log, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	oc := newOriginChecker(cfg.Server.AllowedOrigins, logger)
	return &Handler{
		cfg:      cfg,
		router:   r,
		presence: reg,
		history:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     oc.check,
		},
		logger: logger,
	}
}

// WebSocket upgrades the request and runs the connection's pumps. The
// connection id is minted here and lives until the read pump exits.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "websocket endpoint only accepts GET", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := model.NewConnID()
	client := NewClient(id, conn, h.router, h.cfg.Client, h.logger)
	h.router.Attach(id, client)

	h.logger.Info("connection established", "conn_id", id, "remote", r.RemoteAddr)
	go client.Run()
}

// RecentMessages serves the catch-up query: all retained messages in
// insertion order, delivery tracking omitted.
func (h *Handler) RecentMessages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.history.Snapshot())
}

// OnlineUsers serves the presence query.
func (h *Handler) OnlineUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.presence.ListAll())
}

// Health reports broker status and component statistics.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"version":  version.Version,
		"instance": h.cfg.Instance.ID,
		"components": map[string]any{
			"presence": map[string]any{"online": h.presence.Count()},
			"history":  h.history.Stats(),
			"router":   h.router.Stats(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
