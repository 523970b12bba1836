package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/calebwray/tock/internal/auth"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients for the authenticated user.
// onConnect, if non-nil, is invoked with the user id when a connection
// opens; the function it returns runs when the connection closes. The
// server uses this pair to start and stop the user's overdue watcher.
func HandleWebSocket(hub *Hub, logger *slog.Logger, onConnect func(userID int64) (onDisconnect func())) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == 0 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // same-host app, cookie auth already ran
		})
		if err != nil {
			logger.Error("websocket: accept", "error", err)
			return
		}

		if onConnect != nil {
			onDisconnect := onConnect(userID)
			if onDisconnect != nil {
				defer onDisconnect()
			}
		}

		client := NewClient(hub, conn, userID)
		client.Run(r.Context())
	}
}
