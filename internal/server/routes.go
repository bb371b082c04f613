package server

import "net/http"

// Routes returns a ServeMux with the WebSocket endpoint, the query
// boundary, and the health check.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.WebSocket)
	mux.HandleFunc("/api/messages", h.RecentMessages)
	mux.HandleFunc("/api/users", h.OnlineUsers)
	mux.HandleFunc("/health", h.Health)
	return mux
}
