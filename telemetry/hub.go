package telemetry

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/sensorgate/internal"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4 * 1024
)

// Hub fans updates out to websocket viewers grouped by reading kind. A viewer
// whose queue is full misses the update rather than stalling the broadcast.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*viewer]struct{}
	closed   bool
	upgrader websocket.Upgrader
	buffer   int
	dropped  atomic.Uint64
	log      logrus.FieldLogger
}

type viewer struct {
	hub      *Hub
	conn     *websocket.Conn
	kind     string
	send     chan []byte
	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a hub with the given per-viewer queue size.
func NewHub(buffer int, log logrus.FieldLogger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		clients: make(map[*viewer]struct{}),
		buffer:  buffer,
		log:     internal.LoggerOrDiscard(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request and streams updates of kind until the viewer
// disconnects. The upgrader has already replied when an error is returned.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, kind string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	v := &viewer{
		hub:  h,
		conn: conn,
		kind: kind,
		send: make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return nil
	}
	h.clients[v] = struct{}{}
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{
		"channel": ViewerChannel(kind),
		"remote":  r.RemoteAddr,
	}).Info("viewer connected")

	go v.writePump()
	go v.readPump()
	return nil
}

// Broadcast queues u for every viewer of its kind.
func (h *Hub) Broadcast(u Update) {
	data, err := json.Marshal(u)
	if err != nil {
		h.log.WithError(err).WithField("kind", u.Kind).Error("encode telemetry update")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for v := range h.clients {
		if v.kind != u.Kind {
			continue
		}
		select {
		case <-v.done:
		case v.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

// ViewerCount reports the number of connected viewers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped reports updates discarded because a viewer queue was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close disconnects every viewer and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	viewers := make([]*viewer, 0, len(h.clients))
	for v := range h.clients {
		viewers = append(viewers, v)
	}
	h.mu.Unlock()

	for _, v := range viewers {
		v.stop()
	}
}

func (h *Hub) remove(v *viewer) {
	h.mu.Lock()
	delete(h.clients, v)
	h.mu.Unlock()
}

func (v *viewer) stop() {
	v.doneOnce.Do(func() { close(v.done) })
}

func (v *viewer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case <-v.done:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			v.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				v.hub.log.WithError(err).Debug("viewer write failed")
				v.stop()
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				v.stop()
				return
			}
		}
	}
}

// readPump only watches for disconnects; viewers never send data.
func (v *viewer) readPump() {
	defer func() {
		v.hub.remove(v)
		v.stop()
		v.hub.log.WithField("channel", ViewerChannel(v.kind)).Info("viewer disconnected")
	}()

	v.conn.SetReadLimit(maxMessageSize)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				v.hub.log.WithError(err).Debug("viewer read failed")
			}
			return
		}
	}
}
