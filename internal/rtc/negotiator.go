package rtc

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/DDME36/PurrDrop/internal/signal"
)

// SignalSender relays a negotiation message to the remote peer through the
// signaling channel.
type SignalSender func(msg signal.Message) error

// Negotiator tracks one Session per remote peer and plumbs the
// offer/answer/candidate exchange through the signaling relay. Retry is
// not its concern: the transfer engine asks for a fresh session per
// attempt.
type Negotiator struct {
	log  *logrus.Logger
	send SignalSender
	cfg  webrtc.Configuration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewNegotiator creates a negotiator using the default STUN configuration.
func NewNegotiator(log *logrus.Logger, send SignalSender) *Negotiator {
	return &Negotiator{
		log:      log,
		send:     send,
		cfg:      defaultConfiguration(),
		sessions: make(map[string]*Session),
	}
}

// Dial opens a fresh initiating session toward peerID, replacing (and
// closing) any existing one, and relays the offer.
func (n *Negotiator) Dial(peerID string) (*Session, error) {
	entry := n.log.WithField("peer", peerID)

	s, err := newSession(peerID, n.cfg, entry, true)
	if err != nil {
		return nil, err
	}
	n.track(peerID, s)

	s.OnCandidate(func(c json.RawMessage) {
		if err := n.send(signal.RTCICE{To: peerID, Candidate: c}); err != nil {
			entry.WithError(err).Debug("Candidate relay failed")
		}
	})

	offer, err := s.Offer()
	if err != nil {
		n.Drop(peerID)
		return nil, err
	}
	if err := n.send(signal.RTCOffer{To: peerID, Offer: offer}); err != nil {
		n.Drop(peerID)
		return nil, err
	}
	return s, nil
}

// HandleOffer answers an incoming offer with a fresh responding session.
func (n *Negotiator) HandleOffer(from string, offer json.RawMessage) (*Session, error) {
	entry := n.log.WithField("peer", from)

	s, err := newSession(from, n.cfg, entry, false)
	if err != nil {
		return nil, err
	}
	n.track(from, s)

	s.OnCandidate(func(c json.RawMessage) {
		if err := n.send(signal.RTCICE{To: from, Candidate: c}); err != nil {
			entry.WithError(err).Debug("Candidate relay failed")
		}
	})

	answer, err := s.Answer(offer)
	if err != nil {
		n.Drop(from)
		return nil, err
	}
	if err := n.send(signal.RTCAnswer{To: from, Answer: answer}); err != nil {
		n.Drop(from)
		return nil, err
	}
	return s, nil
}

// HandleAnswer applies a remote answer to the session dialed toward from.
func (n *Negotiator) HandleAnswer(from string, answer json.RawMessage) error {
	s, ok := n.Session(from)
	if !ok {
		n.log.WithField("peer", from).Debug("Answer for unknown session")
		return nil
	}
	return s.HandleAnswer(answer)
}

// HandleCandidate feeds a relayed candidate into the matching session.
// Candidates may arrive out of order or late; unknown sessions are ignored.
func (n *Negotiator) HandleCandidate(from string, candidate json.RawMessage) error {
	s, ok := n.Session(from)
	if !ok {
		return nil
	}
	return s.AddCandidate(candidate)
}

// Session returns the tracked session for a peer.
func (n *Negotiator) Session(peerID string) (*Session, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.sessions[peerID]
	return s, ok
}

// Drop closes and forgets the session for a peer. Called on explicit
// cancellation, on the peer leaving, and when the lane reports failure.
func (n *Negotiator) Drop(peerID string) {
	n.mu.Lock()
	s := n.sessions[peerID]
	delete(n.sessions, peerID)
	n.mu.Unlock()

	if s != nil {
		_ = s.Close()
	}
}

// CloseAll tears down every tracked session.
func (n *Negotiator) CloseAll() {
	n.mu.Lock()
	sessions := n.sessions
	n.sessions = make(map[string]*Session)
	n.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}

func (n *Negotiator) track(peerID string, s *Session) {
	n.mu.Lock()
	old := n.sessions[peerID]
	n.sessions[peerID] = s
	n.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}
