// Package rtc drives the direct-transport handshake: one Session per
// remote peer, an ordered data lane per session, and classification of the
// network path the connection ended up taking.
package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// Path classifies the active network path of a connected session. The
// classification is informational only and never changes protocol behavior.
type Path string

const (
	PathDirect    Path = "direct"    // both ends reachable without traversal help
	PathReflexive Path = "reflexive" // assisted by public address discovery
	PathRelayed   Path = "relayed"   // forced through a relay
	PathUnknown   Path = "unknown"
)

// Session is one direct-transport handshake with a single remote peer.
// The initiator creates the data lane; the responder receives it.
type Session struct {
	peerID string
	pc     *webrtc.PeerConnection
	log    *logrus.Entry

	laneCh chan *DataLane

	mu          sync.Mutex
	lane        *DataLane
	remoteSet   bool
	pending     []webrtc.ICECandidateInit
	onCandidate func(json.RawMessage)

	closeOnce sync.Once
}

// newSession builds the PeerConnection. When initiator is true the data
// lane exists immediately; otherwise it arrives with the remote channel.
func newSession(peerID string, cfg webrtc.Configuration, log *logrus.Entry, initiator bool) (*Session, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	s := &Session{
		peerID: peerID,
		pc:     pc,
		log:    log,
		laneCh: make(chan *DataLane, 1),
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.WithField("state", state.String()).Debug("Peer connection state")
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // end of gathering
		}
		s.mu.Lock()
		fn := s.onCandidate
		s.mu.Unlock()
		if fn == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		fn(data)
	})

	if initiator {
		dc, err := newDataChannel(pc)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("create data channel: %w", err)
		}
		s.setLane(newDataLane(dc))
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			s.setLane(newDataLane(dc))
		})
	}

	return s, nil
}

func (s *Session) setLane(l *DataLane) {
	s.mu.Lock()
	s.lane = l
	s.mu.Unlock()
	select {
	case s.laneCh <- l:
	default:
	}
}

// PeerID returns the remote peer this session belongs to.
func (s *Session) PeerID() string { return s.peerID }

// Lane waits for the session's data lane. Immediate for the initiator;
// the responder blocks until the remote channel arrives or ctx expires.
func (s *Session) Lane(ctx context.Context) (*DataLane, error) {
	s.mu.Lock()
	l := s.lane
	s.mu.Unlock()
	if l != nil {
		return l, nil
	}

	select {
	case l := <-s.laneCh:
		return l, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ---------------------------------------------------------------------------
// Handshake
// ---------------------------------------------------------------------------

// OnCandidate registers the callback that relays gathered candidates.
func (s *Session) OnCandidate(fn func(json.RawMessage)) {
	s.mu.Lock()
	s.onCandidate = fn
	s.mu.Unlock()
}

// Offer produces the local session description for the initiating side.
func (s *Session) Offer() (json.RawMessage, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return json.Marshal(offer)
}

// Answer consumes a remote offer and produces the answering description.
func (s *Session) Answer(raw json.RawMessage) (json.RawMessage, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &offer); err != nil {
		return nil, fmt.Errorf("decode offer: %w", err)
	}
	if err := s.setRemote(offer); err != nil {
		return nil, err
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return json.Marshal(answer)
}

// HandleAnswer applies the remote answer on the initiating side.
func (s *Session) HandleAnswer(raw json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &answer); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	return s.setRemote(answer)
}

func (s *Session) setRemote(desc webrtc.SessionDescription) error {
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	// Flush candidates that arrived ahead of the description; arrival
	// order over the relay is not guaranteed.
	s.mu.Lock()
	s.remoteSet = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, c := range pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			s.log.WithError(err).Debug("Buffered candidate rejected")
		}
	}
	return nil
}

// AddCandidate feeds one remote network-path candidate into the session,
// buffering it if the remote description has not arrived yet.
func (s *Session) AddCandidate(raw json.RawMessage) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &init); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}

	s.mu.Lock()
	if !s.remoteSet {
		s.pending = append(s.pending, init)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.pc.AddICECandidate(init)
}

// ---------------------------------------------------------------------------
// Path classification
// ---------------------------------------------------------------------------

// ActivePath inspects the selected candidate pair of a connected session.
func (s *Session) ActivePath() Path {
	sctp := s.pc.SCTP()
	if sctp == nil {
		return PathUnknown
	}
	dtls := sctp.Transport()
	if dtls == nil {
		return PathUnknown
	}
	ice := dtls.ICETransport()
	if ice == nil {
		return PathUnknown
	}
	pair, err := ice.GetSelectedCandidatePair()
	if err != nil || pair == nil {
		return PathUnknown
	}
	return ClassifyPair(pair.Local.Typ, pair.Remote.Typ)
}

// ClassifyPair maps the selected pair's candidate types onto a path kind.
// Any relay candidate means the traffic is relayed; two host candidates
// mean a direct path; everything else needed address discovery.
func ClassifyPair(local, remote webrtc.ICECandidateType) Path {
	if local == webrtc.ICECandidateTypeRelay || remote == webrtc.ICECandidateTypeRelay {
		return PathRelayed
	}
	if local == webrtc.ICECandidateTypeHost && remote == webrtc.ICECandidateTypeHost {
		return PathDirect
	}
	return PathReflexive
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		lane := s.lane
		s.mu.Unlock()
		if lane != nil {
			lane.shutdown(nil)
		}
		err = s.pc.Close()
	})
	return err
}
