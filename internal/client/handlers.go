package client

import (
	"github.com/DDME36/PurrDrop/internal/signal"
)

// readLoop pumps the signaling socket until it breaks, dispatching every
// decoded message. Malformed frames are logged and skipped; only a broken
// socket ends the loop.
func (c *Client) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}

		msg, err := signal.Unmarshal(data)
		if err != nil {
			c.log.WithError(err).Debug("Dropping malformed signaling message")
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg signal.Message) {
	switch m := msg.(type) {
	case signal.ModeInfo:
		c.mu.Lock()
		c.mode = m
		c.mu.Unlock()
		c.emit(ModeEvent{Info: m})

	case signal.RoomError:
		c.emit(RoomErrorEvent{Kind: m.Kind, Message: m.Message})

	case signal.Peers:
		c.mu.Lock()
		c.peers = make(map[string]signal.PeerInfo, len(m.Peers))
		for _, p := range m.Peers {
			c.peers[p.ID] = p
		}
		c.mu.Unlock()
		c.emit(PeersEvent{Peers: m.Peers})

	case signal.PeerJoined:
		c.mu.Lock()
		c.peers[m.Peer.ID] = m.Peer
		c.mu.Unlock()
		c.emit(PeerJoinedEvent{Peer: m.Peer})

	case signal.PeerLeft:
		c.handlePeerLeft(m.PeerID)

	case signal.PeerUpdated:
		c.mu.Lock()
		c.peers[m.Peer.ID] = m.Peer
		c.mu.Unlock()
		c.emit(PeerUpdatedEvent{Peer: m.Peer})

	case signal.FileOffer:
		c.mu.Lock()
		c.pendingIn[m.FileID] = m
		c.mu.Unlock()
		c.emit(OfferEvent{From: m.From, File: m.File, FileID: m.FileID})

	case signal.FileAccept:
		c.handleAccept(m)

	case signal.FileReject:
		c.handleReject(m.From)

	case signal.RTCOffer:
		c.handleRTCOffer(m)

	case signal.RTCAnswer:
		if err := c.neg.HandleAnswer(m.From, m.Answer); err != nil {
			c.log.WithError(err).WithField("peer", m.From).Warn("Bad transport answer")
		}

	case signal.RTCICE:
		if err := c.neg.HandleCandidate(m.From, m.Candidate); err != nil {
			c.log.WithError(err).WithField("peer", m.From).Debug("Bad transport candidate")
		}
	}
}

// handlePeerLeft forgets the peer and everything pending with it.
func (c *Client) handlePeerLeft(peerID string) {
	c.mu.Lock()
	delete(c.peers, peerID)
	for id, out := range c.pendingOut {
		if out.peerID == peerID {
			delete(c.pendingOut, id)
		}
	}
	for id, offer := range c.pendingIn {
		if offer.From.ID == peerID {
			delete(c.pendingIn, id)
		}
	}
	c.mu.Unlock()

	c.neg.Drop(peerID)
	c.emit(PeerLeftEvent{PeerID: peerID})
}

// handleAccept moves an offered file into the transfer queue. Transfers
// run one at a time in offer-acceptance order.
func (c *Client) handleAccept(m signal.FileAccept) {
	c.mu.Lock()
	out, ok := c.pendingOut[m.FileID]
	delete(c.pendingOut, m.FileID)
	c.mu.Unlock()

	if !ok || out.peerID != m.From {
		c.log.WithField("fileId", m.FileID).Debug("Accept for unknown offer")
		return
	}

	select {
	case c.sendQueue <- out:
	default:
		c.emit(SentEvent{FileID: out.fileID, PeerID: out.peerID, Name: out.meta.Name, Err: errQueueFull})
	}
}

// handleReject clears every pending offer toward the rejecting peer: the
// reject carries no file id.
func (c *Client) handleReject(peerID string) {
	c.mu.Lock()
	for id, out := range c.pendingOut {
		if out.peerID == peerID {
			delete(c.pendingOut, id)
		}
	}
	c.mu.Unlock()
	c.emit(OfferRejectedEvent{PeerID: peerID})
}

// handleRTCOffer answers an incoming transport offer and stands up a
// receiver on the resulting lane.
func (c *Client) handleRTCOffer(m signal.RTCOffer) {
	session, err := c.neg.HandleOffer(m.From, m.Offer)
	if err != nil {
		c.log.WithError(err).WithField("peer", m.From).Warn("Could not answer transport offer")
		return
	}
	go c.receive(session)
}
