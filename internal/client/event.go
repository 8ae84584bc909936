package client

import (
	"github.com/DDME36/PurrDrop/internal/signal"
	"github.com/DDME36/PurrDrop/internal/transfer"
)

// Event is delivered on the client's event feed. Consumers type-switch on
// the concrete kinds below.
type Event interface{ event() }

// PeersEvent replaces the consumer's peer list with a full snapshot. Sent
// after the local join and after every mode change.
type PeersEvent struct {
	Peers []signal.PeerInfo
}

// PeerJoinedEvent reports one peer becoming visible.
type PeerJoinedEvent struct {
	Peer signal.PeerInfo
}

// PeerLeftEvent reports one peer dropping out of view.
type PeerLeftEvent struct {
	PeerID string
}

// PeerUpdatedEvent reports a visible peer changing its name or avatar.
type PeerUpdatedEvent struct {
	Peer signal.PeerInfo
}

// ModeEvent confirms the resolved discovery mode.
type ModeEvent struct {
	Info signal.ModeInfo
}

// RoomErrorEvent reports a failed private-room join. The server has already
// reverted this peer to public mode.
type RoomErrorEvent struct {
	Kind    signal.RoomErrorKind
	Message string
}

// OfferEvent is an incoming file offer awaiting Accept or Reject.
type OfferEvent struct {
	From   signal.PeerInfo
	File   signal.FileMeta
	FileID string
}

// OfferRejectedEvent tells the sender its pending offers to a peer were
// declined.
type OfferRejectedEvent struct {
	PeerID string
}

// ProgressEvent reports transfer progress in either direction. These are
// dropped rather than queued when the consumer lags.
type ProgressEvent struct {
	FileID      string
	Name        string
	Direction   string
	Transferred int64
	Total       int64
}

// SentEvent reports the outcome of one outbound transfer.
type SentEvent struct {
	FileID string
	PeerID string
	Name   string
	Size   int64
	Err    error
}

// ReceivedEvent reports one completed incoming file.
type ReceivedEvent struct {
	Result transfer.Result
}

// ReceiveErrorEvent reports a failed incoming transfer.
type ReceiveErrorEvent struct {
	PeerID string
	FileID string
	Err    error
}

// DisconnectedEvent is the last event before the feed closes.
type DisconnectedEvent struct {
	Err error
}

func (PeersEvent) event()         {}
func (PeerJoinedEvent) event()    {}
func (PeerLeftEvent) event()      {}
func (PeerUpdatedEvent) event()   {}
func (ModeEvent) event()          {}
func (RoomErrorEvent) event()     {}
func (OfferEvent) event()         {}
func (OfferRejectedEvent) event() {}
func (ProgressEvent) event()      {}
func (SentEvent) event()          {}
func (ReceivedEvent) event()      {}
func (ReceiveErrorEvent) event()  {}
func (DisconnectedEvent) event()  {}
