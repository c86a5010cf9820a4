package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/bench-track/bench-track/tracker/types"
)

// wsHub fans regression alerts out to connected websocket clients as they
// fire, so dashboards see regressions without polling.
type wsHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

func newWSHub(log logrus.FieldLogger) *wsHub {
	return &wsHub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.WithField("component", "ws-hub"),
	}
}

// HandleWS upgrades the connection and registers the client. The read loop
// only exists to notice disconnects; clients never send payloads.
func (h *wsHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.log.WithField("remote", conn.RemoteAddr().String()).Debug("Websocket client connected")

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// BroadcastAlerts pushes fired alerts to every connected client. Broken
// connections are dropped.
func (h *wsHub) BroadcastAlerts(alerts []*types.RegressionAlert) {
	if len(alerts) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"type":   "regression_alerts",
		"alerts": alerts,
	})
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal alert broadcast")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *wsHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.Close()
	delete(h.clients, conn)
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
