package relay

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/DDME36/PurrDrop/internal/registry"
	"github.com/DDME36/PurrDrop/internal/signal"
)

// dispatch routes one validated inbound message. Everything except join
// requires the connection to have joined already; early messages are
// dropped with a log line.
func (s *Server) dispatch(c *conn, msg signal.Message) {
	if join, ok := msg.(signal.Join); ok {
		s.handleJoin(c, join)
		return
	}

	if c.peerID == "" {
		s.log.WithFields(logrus.Fields{"handle": c.handle, "type": msg.Type()}).
			Warn("Dropped message from connection that has not joined")
		return
	}

	switch m := msg.(type) {
	case signal.SetMode:
		s.handleSetMode(c, m)
	case signal.UpdateName:
		s.handleUpdateName(c, m)
	case signal.UpdateEmoji:
		s.handleUpdateEmoji(c, m)
	case signal.FileOffer:
		s.handleFileOffer(c, m)
	case signal.FileAccept:
		s.handleFileAccept(c, m)
	case signal.FileReject:
		s.handleFileReject(c, m)
	case signal.RTCOffer:
		s.relayToPrimary(c, m.To, func(from string) signal.Message {
			return signal.RTCOffer{From: from, Offer: m.Offer}
		})
	case signal.RTCAnswer:
		s.relayToPrimary(c, m.To, func(from string) signal.Message {
			return signal.RTCAnswer{From: from, Answer: m.Answer}
		})
	case signal.RTCICE:
		s.relayToPrimary(c, m.To, func(from string) signal.Message {
			return signal.RTCICE{From: from, Candidate: m.Candidate}
		})
	default:
		s.log.WithField("type", msg.Type()).Warn("Unhandled message type")
	}
}

// ---------------------------------------------------------------------------
// Presence
// ---------------------------------------------------------------------------

func (s *Server) handleJoin(c *conn, m signal.Join) {
	self, merged, deltas := s.reg.Register(m.Peer, c.origin, c.handle)
	c.peerID = self.ID

	s.log.WithFields(logrus.Fields{
		"peer":   self.ID,
		"name":   self.Name,
		"origin": self.Origin,
		"merged": merged,
	}).Info("Peer joined")

	// The joining peer gets its resolved mode and a full snapshot; every
	// tab of that peer stays in sync.
	s.sendToPeer(self, signal.ModeInfo{
		Mode:         self.Mode,
		RoomCode:     self.RoomCode,
		RoomPassword: self.RoomPassword,
	})
	s.sendFullPeers(self)

	if merged {
		// Same user, new tab: mutable fields were refreshed, tell viewers.
		s.notifyViewers(self)
	}
	s.emitDeltas(deltas, self.ID)
}

func (s *Server) handleSetMode(c *conn, m signal.SetMode) {
	self, deltas, err := s.reg.SetMode(c.peerID, m.Mode, m.RoomCode, m.Password)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownPeer) {
			return
		}
		s.log.WithFields(logrus.Fields{"peer": c.peerID, "room": m.RoomCode}).
			WithError(err).Info("Room join refused")
		s.sendToPeer(self, roomError(err))
	} else {
		s.log.WithFields(logrus.Fields{
			"peer": self.ID,
			"mode": self.Mode,
			"room": self.RoomCode,
		}).Info("Mode changed")
	}

	// A mode change (including a refused join reverted to public) replaces
	// the visible set wholesale: confirm the resolved state and resend the
	// full list.
	s.sendToPeer(self, signal.ModeInfo{
		Mode:         self.Mode,
		RoomCode:     self.RoomCode,
		RoomPassword: self.RoomPassword,
	})
	s.sendFullPeers(self)
	s.emitDeltas(deltas, self.ID)
}

func roomError(err error) signal.RoomError {
	if errors.Is(err, registry.ErrWrongPassword) {
		return signal.RoomError{Kind: signal.RoomErrorWrongPassword, Message: "wrong room password"}
	}
	return signal.RoomError{Kind: signal.RoomErrorNotFound, Message: "room not found"}
}

func (s *Server) handleUpdateName(c *conn, m signal.UpdateName) {
	self, ok := s.reg.UpdateName(c.peerID, m.Name)
	if !ok {
		return
	}
	s.notifyViewers(self)
}

func (s *Server) handleUpdateEmoji(c *conn, m signal.UpdateEmoji) {
	self, ok := s.reg.UpdateEmoji(c.peerID, m.Emoji)
	if !ok {
		return
	}
	s.notifyViewers(self)
}

// ---------------------------------------------------------------------------
// Relay
// ---------------------------------------------------------------------------

func (s *Server) handleFileOffer(c *conn, m signal.FileOffer) {
	sender, ok := s.reg.Lookup(c.peerID)
	if !ok {
		return
	}
	target, ok := s.reg.Lookup(m.To)
	if !ok {
		s.log.WithFields(logrus.Fields{"peer": c.peerID, "to": m.To}).
			Warn("File offer for unknown peer")
		return
	}

	s.log.WithFields(logrus.Fields{
		"from":   sender.ID,
		"to":     target.ID,
		"file":   m.File.Name,
		"fileId": m.FileID,
	}).Info("Forwarding file offer")

	s.sendToPeer(target, signal.FileOffer{
		From:   sender.Info(),
		File:   m.File,
		FileID: m.FileID,
	})
}

func (s *Server) handleFileAccept(c *conn, m signal.FileAccept) {
	target, ok := s.reg.Lookup(m.To)
	if !ok {
		return
	}
	s.sendToPeer(target, signal.FileAccept{From: c.peerID, FileID: m.FileID})
}

func (s *Server) handleFileReject(c *conn, m signal.FileReject) {
	target, ok := s.reg.Lookup(m.To)
	if !ok {
		return
	}
	s.sendToPeer(target, signal.FileReject{From: c.peerID})
}

// relayToPrimary forwards an opaque negotiation message to the target's
// primary handle only.
func (s *Server) relayToPrimary(c *conn, to string, build func(from string) signal.Message) {
	target, ok := s.reg.Lookup(to)
	if !ok {
		return
	}
	s.sendToHandle(target.Primary(), build(c.peerID))
}

// ---------------------------------------------------------------------------
// Delivery
// ---------------------------------------------------------------------------

// sendToHandle writes to one live connection handle, if it still exists.
func (s *Server) sendToHandle(handle string, m signal.Message) {
	if handle == "" {
		return
	}

	s.mu.Lock()
	c := s.conns[handle]
	s.mu.Unlock()

	if c == nil {
		return
	}
	if err := c.send(m); err != nil {
		s.log.WithField("handle", handle).WithError(err).Debug("Send failed")
	}
}

// sendToPeer fans a message out to every live handle of a peer.
func (s *Server) sendToPeer(p registry.Peer, m signal.Message) {
	for _, handle := range p.Handles {
		s.sendToHandle(handle, m)
	}
}

// sendToPeerID is sendToPeer with a registry lookup.
func (s *Server) sendToPeerID(id string, m signal.Message) {
	p, ok := s.reg.Lookup(id)
	if !ok {
		return
	}
	s.sendToPeer(p, m)
}

// sendFullPeers sends the peer its complete visible set.
func (s *Server) sendFullPeers(p registry.Peer) {
	visible := s.reg.VisibleTo(p.ID)
	infos := make([]signal.PeerInfo, 0, len(visible))
	for _, v := range visible {
		infos = append(infos, v.Info())
	}
	s.sendToPeer(p, signal.Peers{Peers: infos})
}

// notifyViewers sends peer-updated to everyone who currently sees p.
func (s *Server) notifyViewers(p registry.Peer) {
	for _, viewerID := range s.reg.Viewers(p.ID) {
		s.sendToPeerID(viewerID, signal.PeerUpdated{Peer: p.Info()})
	}
}

// emitDeltas forwards incremental visibility changes. skipViewer is the
// mutated peer itself when it has just received a full resend instead.
func (s *Server) emitDeltas(deltas []registry.Delta, skipViewer string) {
	for _, d := range deltas {
		if d.ViewerID == skipViewer {
			continue
		}
		for _, appeared := range d.Appeared {
			s.sendToPeerID(d.ViewerID, signal.PeerJoined{Peer: appeared.Info()})
		}
		for _, vanishedID := range d.Vanished {
			s.sendToPeerID(d.ViewerID, signal.PeerLeft{PeerID: vanishedID})
		}
	}
}
