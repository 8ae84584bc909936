package relay

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/DDME36/PurrDrop/internal/signal"
)

// conn is one live WebSocket: a single connection handle, owned by exactly
// one peer once it has joined. Writes are serialized by a mutex; the read
// loop is the only reader.
type conn struct {
	handle string
	origin string
	peerID string // set by the read loop on join

	mu sync.Mutex
	ws *websocket.Conn
}

// send encodes and writes one message, guarded by the write mutex.
func (c *conn) send(m signal.Message) error {
	data, err := signal.Marshal(m)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.Close()
}
