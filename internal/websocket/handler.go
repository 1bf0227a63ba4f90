package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the connection and runs it as a hub client for
// the browser identified by clientID. Requests without a client id are refused.
func HandleWebSocket(hub *Hub, clientID func(*http.Request) string, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := clientID(r)
		if id == "" {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, id)
		client.Run(r.Context())
	}
}
