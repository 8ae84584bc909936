// Package client is the local endpoint: it joins a signaling server,
// tracks visible peers, negotiates transport sessions and moves files. The
// CLI consumes it through the event feed and the command methods; nothing
// here prints.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/DDME36/PurrDrop/internal/history"
	"github.com/DDME36/PurrDrop/internal/identity"
	"github.com/DDME36/PurrDrop/internal/rtc"
	"github.com/DDME36/PurrDrop/internal/signal"
	"github.com/DDME36/PurrDrop/internal/transfer"
	"github.com/DDME36/PurrDrop/internal/util"
	"github.com/DDME36/PurrDrop/internal/wakelock"
)

// Config carries everything a client needs to come up.
type Config struct {
	// ServerURL is the signaling endpoint, e.g. ws://host:port/ws.
	ServerURL string

	// Profile is the persistent local identity to announce.
	Profile identity.Profile

	// Sinks creates disk sinks for large incoming files. Nil means
	// everything is buffered in memory, subject to the memory cap.
	Sinks transfer.SinkFactory

	// History, when set, records completed transfers.
	History *history.Store

	Log *logrus.Logger
}

// outbound is one offered file waiting for (or undergoing) transfer.
type outbound struct {
	fileID string
	peerID string
	meta   signal.FileMeta
	data   []byte
}

// Client is a connected peer.
type Client struct {
	cfg Config
	log *logrus.Logger

	id   string
	self signal.PeerInfo

	ws  *websocket.Conn
	wmu sync.Mutex

	neg    *rtc.Negotiator
	sender fileSender
	wake   *wakelock.Lock

	mu         sync.Mutex
	peers      map[string]signal.PeerInfo
	mode       signal.ModeInfo
	pendingOut map[string]*outbound       // fileID -> offered, not yet accepted
	pendingIn  map[string]signal.FileOffer // fileID -> offer awaiting local decision
	cancelSend context.CancelFunc          // active outbound transfer, if any

	sendQueue chan *outbound
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the signaling server, announces the profile and starts
// the read and transfer loops.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.ServerURL, err)
	}

	id := cfg.Profile.PeerID
	if id == "" {
		id = uuid.NewString()
	}

	c := &Client{
		cfg:        cfg,
		log:        cfg.Log,
		id:         id,
		ws:         ws,
		wake:       wakelock.New(cfg.Log),
		peers:      make(map[string]signal.PeerInfo),
		pendingOut: make(map[string]*outbound),
		pendingIn:  make(map[string]signal.FileOffer),
		sendQueue:  make(chan *outbound, 16),
		events:     make(chan Event, 128),
		done:       make(chan struct{}),
	}
	c.self = cfg.Profile.PeerInfo(c.id)
	c.neg = rtc.NewNegotiator(cfg.Log, c.send)
	c.sender = transfer.NewSender(laneDialer{neg: c.neg}, cfg.Log)

	if err := c.send(signal.Join{Peer: c.self}); err != nil {
		ws.Close()
		return nil, fmt.Errorf("announce identity: %w", err)
	}

	go c.readLoop()
	go c.transferLoop()
	return c, nil
}

// ID returns the announced peer id. It comes from the persisted profile,
// so the same device keeps the same id across reconnects; a profile
// without one gets a fresh id for this connection only.
func (c *Client) ID() string { return c.id }

// Self returns the announced identity.
func (c *Client) Self() signal.PeerInfo { return c.self }

// Events returns the feed. DisconnectedEvent is the final event when the
// feed has room for it; consumers should also watch Done. The channel
// itself stays open so late emitters can never panic.
func (c *Client) Events() <-chan Event { return c.events }

// Done is closed when the client has shut down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Peers returns the currently visible peers.
func (c *Client) Peers() []signal.PeerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]signal.PeerInfo, 0, len(c.peers))
	for _, p := range c.peers {
		out = append(out, p)
	}
	return out
}

// Mode returns the last mode confirmation from the server.
func (c *Client) Mode() signal.ModeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode requests a discovery-mode change. The outcome arrives as a
// ModeEvent, preceded by a RoomErrorEvent when a private join fails.
func (c *Client) SetMode(mode signal.Mode, roomCode, password string) error {
	return c.send(signal.SetMode{Mode: mode, RoomCode: roomCode, Password: password})
}

// Rename changes the local display name for this connection.
func (c *Client) Rename(name string) error {
	if err := (signal.UpdateName{Name: name}).Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.self.Name = name
	c.mu.Unlock()
	return c.send(signal.UpdateName{Name: name})
}

// ChangeAvatar changes the local avatar emoji for this connection.
func (c *Client) ChangeAvatar(emoji string) error {
	if err := (signal.UpdateEmoji{Emoji: emoji}).Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.self.Avatar.Emoji = emoji
	c.mu.Unlock()
	return c.send(signal.UpdateEmoji{Emoji: emoji})
}

// SendFile offers a file to a peer and returns the offer's file id. The
// transfer itself starts when the peer accepts; completion arrives as a
// SentEvent.
func (c *Client) SendFile(peerID, name, mimeType string, data []byte) (string, error) {
	c.mu.Lock()
	_, visible := c.peers[peerID]
	c.mu.Unlock()
	if !visible {
		return "", fmt.Errorf("peer %s is not visible", peerID)
	}

	out := &outbound{
		fileID: uuid.NewString(),
		peerID: peerID,
		meta:   signal.FileMeta{Name: name, Size: int64(len(data)), Type: mimeType},
		data:   data,
	}

	offer := signal.FileOffer{To: peerID, File: out.meta, FileID: out.fileID}
	if err := c.send(offer); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.pendingOut[out.fileID] = out
	c.mu.Unlock()
	return out.fileID, nil
}

// AcceptOffer tells the sender to start a pending incoming transfer. An
// offer that could never be stored is rejected here, before the transport
// is negotiated or any chunk flows: with no streaming sink configured, a
// file over the memory cap has nowhere to go.
func (c *Client) AcceptOffer(fileID string) error {
	c.mu.Lock()
	offer, ok := c.pendingIn[fileID]
	delete(c.pendingIn, fileID)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending offer %s", fileID)
	}

	if c.cfg.Sinks == nil && offer.File.Size > transfer.MemoryCap {
		c.send(signal.FileReject{To: offer.From.ID})
		return fmt.Errorf("%s (%s): %w", offer.File.Name, util.FormatBytes(offer.File.Size), transfer.ErrFileTooLarge)
	}
	return c.send(signal.FileAccept{To: offer.From.ID, FileID: fileID})
}

// RejectOffer declines a pending incoming transfer. The sender drops every
// offer it has pending toward this peer.
func (c *Client) RejectOffer(fileID string) error {
	c.mu.Lock()
	offer, ok := c.pendingIn[fileID]
	delete(c.pendingIn, fileID)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending offer %s", fileID)
	}
	return c.send(signal.FileReject{To: offer.From.ID})
}

// CancelActive aborts the outbound transfer currently in flight, if any.
func (c *Client) CancelActive() {
	c.mu.Lock()
	cancel := c.cancelSend
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close disconnects and tears everything down.
func (c *Client) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.CancelActive()
		c.neg.CloseAll()
		c.ws.Close()
		c.wake.Release()
		// Best effort: a consumer that stopped draining must not be able
		// to block Close. Done() closing below is the hard signal.
		select {
		case c.events <- DisconnectedEvent{Err: err}:
		default:
		}
		close(c.done)
	})
}

// send marshals and writes one signaling message. Safe for concurrent use.
func (c *Client) send(m signal.Message) error {
	data, err := signal.Marshal(m)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// emit delivers an event, blocking until the consumer takes it or the
// client shuts down. Progress events go through emitDroppable instead.
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// emitDroppable delivers an event unless the feed is full. Progress updates
// are frequent and disposable; stalling a transfer on a slow consumer is
// worse than skipping a tick.
func (c *Client) emitDroppable(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}
