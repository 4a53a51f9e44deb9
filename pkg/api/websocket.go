package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/docflow/pkg/eventbus"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsHandler upgrades the real-time channel named in spec.md §6 and
// relays a document's event-bus subscription onto the connection.
type wsHandler struct {
	bus *eventbus.Bus
	log *logrus.Logger
}

type clientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

func (h *wsHandler) serve(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe(documentID)
	defer h.bus.Unsubscribe(sub)

	done := make(chan struct{})
	go h.readLoop(conn, documentID, done)
	h.writeLoop(conn, sub, done)
}

// readLoop drains client->server messages (ping, subscribe_workflow,
// client_message); connection close is non-fatal to the workflow.
func (h *wsHandler) readLoop(conn *websocket.Conn, documentID string, done chan struct{}) {
	defer close(done)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			h.bus.Publish(documentID, eventbus.KindPong, nil)
		}
	}
}

// writeLoop forwards the subscription's events to the connection in
// publish order and sends a periodic ping to detect dead peers.
func (h *wsHandler) writeLoop(conn *websocket.Conn, sub *eventbus.Subscription, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, encodeEvent(event)); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
