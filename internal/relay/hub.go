// Package relay is the publish/subscribe transport: a websocket hub that
// groups connections into session rooms and republishes every frame to every
// member of the room. Frames go back to their own sender as well; peers are
// expected to recognize and absorb their own echoes.
package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The relay does not arbitrate anything; origin policy is left to the
	// deployment in front of it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub coordinates session rooms. All room membership changes and publishes
// run on the single goroutine inside Run.
type Hub struct {
	logger *zap.Logger

	register   chan *member
	unregister chan *member
	publish    chan inbound

	// done is closed when Run returns; pump goroutines select on it so they
	// never block on the membership channels after shutdown.
	done chan struct{}

	rooms map[string]map[*member]bool
}

type inbound struct {
	room string
	data []byte
}

type member struct {
	hub  *Hub
	room string
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger,
		register:   make(chan *member),
		unregister: make(chan *member),
		publish:    make(chan inbound, 64),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*member]bool),
	}
}

// Run owns the room state until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for room, members := range h.rooms {
				for m := range members {
					close(m.send)
					m.conn.Close()
				}
				delete(h.rooms, room)
			}
			return

		case m := <-h.register:
			if h.rooms[m.room] == nil {
				h.rooms[m.room] = make(map[*member]bool)
			}
			h.rooms[m.room][m] = true
			h.logger.Info("peer joined room",
				zap.String("room", m.room), zap.Int("size", len(h.rooms[m.room])))

		case m := <-h.unregister:
			if members, ok := h.rooms[m.room]; ok {
				if members[m] {
					delete(members, m)
					close(m.send)
				}
				if len(members) == 0 {
					delete(h.rooms, m.room)
				}
			}
			h.logger.Info("peer left room", zap.String("room", m.room))

		case msg := <-h.publish:
			// Every member gets the frame, the original sender included.
			for m := range h.rooms[msg.room] {
				select {
				case m.send <- msg.data:
				default:
					h.logger.Warn("dropping slow peer", zap.String("room", msg.room))
					delete(h.rooms[msg.room], m)
					close(m.send)
				}
			}
		}
	}
}

// ServeWS upgrades an HTTP request into a room membership. The session room
// comes from the "session" query parameter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("session")
	if room == "" {
		http.Error(w, "missing session parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	m := &member{hub: h, room: room, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- m:
	case <-h.done:
		conn.Close()
		return
	}

	go m.writePump()
	go m.readPump()
}

func (m *member) readPump() {
	defer func() {
		select {
		case m.hub.unregister <- m:
		case <-m.hub.done:
		}
		m.conn.Close()
	}()
	m.conn.SetReadLimit(maxMessageSize)
	m.conn.SetReadDeadline(time.Now().Add(pongWait))
	m.conn.SetPongHandler(func(string) error {
		m.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := m.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.hub.logger.Warn("peer read failed", zap.String("room", m.room), zap.Error(err))
			}
			return
		}
		select {
		case m.hub.publish <- inbound{room: m.room, data: data}:
		case <-m.hub.done:
			return
		}
	}
}

func (m *member) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		m.conn.Close()
	}()

	for {
		select {
		case data, ok := <-m.send:
			m.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				m.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			m.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := m.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
