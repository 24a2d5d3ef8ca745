package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wudi/pdfocr/observability"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Progress is one export progress message.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

func newProgress(done, total int) Progress {
	p := Progress{Current: done, Total: total}
	if total > 0 {
		p.Percent = done * 100 / total
	}
	return p
}

// writeWait bounds each progress write. Exports run under the server lock, so
// a stalled client must not hold up the page loop.
const writeWait = 5 * time.Second

// progressHub fans export progress out to every connected websocket. A
// client whose write fails or times out is dropped.
type progressHub struct {
	logger    observability.Logger
	writeWait time.Duration

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
}

func newProgressHub(logger observability.Logger) *progressHub {
	return &progressHub{logger: logger, writeWait: writeWait, clients: make(map[*websocket.Conn]*sync.Mutex)}
}

func (h *progressHub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", observability.Error("error", err))
		return
	}
	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Clients never send anything; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket error", observability.Error("error", err))
			}
			return
		}
	}
}

func (h *progressHub) broadcast(p Progress) {
	data, err := json.Marshal(p)
	if err != nil {
		h.logger.Error("marshal progress", observability.Error("error", err))
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn, m := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, m)
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutexes[i].Lock()
		err := conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err == nil {
			err = conn.WriteMessage(websocket.TextMessage, data)
		}
		mutexes[i].Unlock()
		if err != nil {
			h.logger.Debug("progress send failed", observability.Error("error", err))
			h.drop(conn)
		}
	}
}

func (h *progressHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

func (h *progressHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *progressHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
}
