// Package relay implements the signaling server: it upgrades WebSocket
// connections, feeds every inbound frame through the closed signal message
// set, mutates the peer registry, and forwards negotiation and file-intent
// messages between peers. File bytes never pass through here.
package relay

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/DDME36/PurrDrop/internal/registry"
	"github.com/DDME36/PurrDrop/internal/signal"
)

// Server owns the registry and the live connection table.
type Server struct {
	reg *registry.Registry
	log *logrus.Logger

	upgrader websocket.Upgrader
	listener net.Listener

	mu    sync.Mutex
	conns map[string]*conn // connection handle → conn
}

// New creates a relay server around a fresh registry.
func New(log *logrus.Logger) *Server {
	return &Server{
		reg: registry.New(),
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
	}
}

// Registry exposes the peer table, mainly for tests and diagnostics.
func (s *Server) Registry() *registry.Registry { return s.reg }

// Handler returns the HTTP handler serving the /ws signaling endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start listens on addr and serves signaling connections in the
// background. Returns the bound address (useful with ":0").
func (s *Server) Start(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start signaling server: %w", err)
	}
	s.listener = listener

	go func() {
		_ = http.Serve(listener, s.Handler())
	}()

	return listener.Addr().String(), nil
}

// Close shuts down the listener and every live connection.
func (s *Server) Close() error {
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &conn{
		handle: uuid.NewString(),
		origin: registry.NormalizeOrigin(r.RemoteAddr, r.Header.Get("X-Forwarded-For")),
		ws:     ws,
	}

	s.mu.Lock()
	s.conns[c.handle] = c
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"handle": c.handle, "origin": c.origin}).
		Info("Client connected")

	go s.serve(c)
}

// serve is the per-connection read loop. A malformed frame is logged and
// skipped, never a disconnect; one peer's bad input must not cost it (or
// anyone else) the session.
func (s *Server) serve(c *conn) {
	defer s.disconnect(c)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		msg, err := signal.Unmarshal(data)
		if err != nil {
			s.log.WithField("handle", c.handle).WithError(err).
				Warn("Rejected malformed message")
			continue
		}

		s.dispatch(c, msg)
	}
}

// disconnect removes the handle; the peer itself only leaves the registry
// when its last handle is gone.
func (s *Server) disconnect(c *conn) {
	c.close()

	s.mu.Lock()
	delete(s.conns, c.handle)
	s.mu.Unlock()

	self, gone, deltas, found := s.reg.RemoveHandle(c.handle)
	if !found {
		return
	}

	if gone {
		s.log.WithFields(logrus.Fields{"peer": self.ID, "name": self.Name}).
			Info("Peer left")
		s.emitDeltas(deltas, "")
	}
}
