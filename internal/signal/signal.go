// Package signal defines the wire messages exchanged over the signaling
// WebSocket. Every message is a closed, tagged variant: unknown types and
// missing required fields are rejected at decode time, before any of them
// reach the registry or the relay.
package signal

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type identifies the kind of signaling message.
type Type string

const (
	// Client → server.
	TypeJoin        Type = "join"
	TypeSetMode     Type = "set-mode"
	TypeUpdateName  Type = "update-name"
	TypeUpdateEmoji Type = "update-emoji"

	// Server → client.
	TypeModeInfo    Type = "mode-info"
	TypeRoomError   Type = "room-error"
	TypePeers       Type = "peers"
	TypePeerJoined  Type = "peer-joined"
	TypePeerLeft    Type = "peer-left"
	TypePeerUpdated Type = "peer-updated"

	// Relayed peer-to-peer (file intent, fan-out to every tab).
	TypeFileOffer  Type = "file-offer"
	TypeFileAccept Type = "file-accept"
	TypeFileReject Type = "file-reject"

	// Relayed peer-to-peer (transport negotiation, primary tab only).
	TypeRTCOffer  Type = "rtc-offer"
	TypeRTCAnswer Type = "rtc-answer"
	TypeRTCICE    Type = "rtc-ice"
)

// Mode is a peer's discovery mode.
type Mode string

const (
	ModePublic  Mode = "public"
	ModeNetwork Mode = "network"
	ModePrivate Mode = "private"
)

// Valid reports whether m is one of the three known modes.
func (m Mode) Valid() bool {
	return m == ModePublic || m == ModeNetwork || m == ModePrivate
}

// MaxNameLength bounds display names; longer names are invalid input.
const MaxNameLength = 64

// Avatar is the presentational identity of a peer. The core never
// interprets it beyond carrying it on the wire.
type Avatar struct {
	Kind  string `json:"type"`
	Color string `json:"color"`
	Emoji string `json:"emoji"`
	OS    string `json:"os"`
}

// PeerInfo is the public view of a peer as sent to other clients.
type PeerInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Device string `json:"device"`
	Avatar Avatar `json:"critter"`
}

// FileMeta describes an offered file.
type FileMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// RoomErrorKind distinguishes the two join failures.
type RoomErrorKind string

const (
	RoomErrorWrongPassword RoomErrorKind = "wrong-password"
	RoomErrorNotFound      RoomErrorKind = "room-not-found"
)

// Message is implemented by every signaling payload. Validate is called
// once at the decode boundary; business logic may assume it passed.
type Message interface {
	Type() Type
	Validate() error
}

// ---------------------------------------------------------------------------
// Client → server
// ---------------------------------------------------------------------------

// Join announces the local identity. Idempotent on ID: a second join with
// the same ID merges as another tab of the same peer.
type Join struct {
	Peer PeerInfo `json:"peer"`
}

func (Join) Type() Type { return TypeJoin }

func (m Join) Validate() error {
	if m.Peer.ID == "" || m.Peer.Name == "" {
		return errors.New("join: missing peer id or name")
	}
	if len(m.Peer.Name) > MaxNameLength {
		return errors.New("join: name too long")
	}
	return nil
}

// SetMode requests a discovery-mode change. RoomCode and Password are only
// meaningful when Mode is private.
type SetMode struct {
	Mode     Mode   `json:"mode"`
	RoomCode string `json:"roomCode,omitempty"`
	Password string `json:"password,omitempty"`
}

func (SetMode) Type() Type { return TypeSetMode }

func (m SetMode) Validate() error {
	if !m.Mode.Valid() {
		return fmt.Errorf("set-mode: invalid mode %q", m.Mode)
	}
	return nil
}

// UpdateName renames the local peer.
type UpdateName struct {
	Name string `json:"name"`
}

func (UpdateName) Type() Type { return TypeUpdateName }

func (m UpdateName) Validate() error {
	if m.Name == "" {
		return errors.New("update-name: empty name")
	}
	if len(m.Name) > MaxNameLength {
		return errors.New("update-name: name too long")
	}
	return nil
}

// UpdateEmoji changes the local peer's avatar emoji.
type UpdateEmoji struct {
	Emoji string `json:"emoji"`
}

func (UpdateEmoji) Type() Type { return TypeUpdateEmoji }

func (m UpdateEmoji) Validate() error {
	if m.Emoji == "" {
		return errors.New("update-emoji: empty emoji")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Server → client
// ---------------------------------------------------------------------------

// ModeInfo confirms the peer's resolved mode, room and room password.
type ModeInfo struct {
	Mode         Mode   `json:"mode"`
	RoomCode     string `json:"roomCode,omitempty"`
	RoomPassword string `json:"roomPassword,omitempty"`
}

func (ModeInfo) Type() Type { return TypeModeInfo }

func (m ModeInfo) Validate() error {
	if !m.Mode.Valid() {
		return fmt.Errorf("mode-info: invalid mode %q", m.Mode)
	}
	return nil
}

// RoomError reports a failed private-room join. The peer has already been
// reverted to public mode when this arrives.
type RoomError struct {
	Kind    RoomErrorKind `json:"error"`
	Message string        `json:"message"`
}

func (RoomError) Type() Type { return TypeRoomError }

func (m RoomError) Validate() error {
	if m.Kind != RoomErrorWrongPassword && m.Kind != RoomErrorNotFound {
		return fmt.Errorf("room-error: unknown kind %q", m.Kind)
	}
	return nil
}

// Peers is the full visible-peer snapshot, sent on the peer's own join and
// after a mode change.
type Peers struct {
	Peers []PeerInfo `json:"peers"`
}

func (Peers) Type() Type { return TypePeers }

func (Peers) Validate() error { return nil }

// PeerJoined is the incremental newly-visible delta.
type PeerJoined struct {
	Peer PeerInfo `json:"peer"`
}

func (PeerJoined) Type() Type { return TypePeerJoined }

func (m PeerJoined) Validate() error {
	if m.Peer.ID == "" {
		return errors.New("peer-joined: missing peer id")
	}
	return nil
}

// PeerLeft is the incremental newly-hidden delta.
type PeerLeft struct {
	PeerID string `json:"peerId"`
}

func (PeerLeft) Type() Type { return TypePeerLeft }

func (m PeerLeft) Validate() error {
	if m.PeerID == "" {
		return errors.New("peer-left: missing peer id")
	}
	return nil
}

// PeerUpdated notifies current viewers that a visible peer changed its
// presentational fields.
type PeerUpdated struct {
	Peer PeerInfo `json:"peer"`
}

func (PeerUpdated) Type() Type { return TypePeerUpdated }

func (m PeerUpdated) Validate() error {
	if m.Peer.ID == "" {
		return errors.New("peer-updated: missing peer id")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Relayed messages
// ---------------------------------------------------------------------------

// FileOffer announces intent to send a file. The server fills From before
// forwarding and never inspects File beyond validation.
type FileOffer struct {
	To     string   `json:"to,omitempty"`
	From   PeerInfo `json:"from"`
	File   FileMeta `json:"file"`
	FileID string   `json:"fileId"`
}

func (FileOffer) Type() Type { return TypeFileOffer }

func (m FileOffer) Validate() error {
	if m.FileID == "" {
		return errors.New("file-offer: missing file id")
	}
	if m.File.Name == "" || m.File.Size < 0 {
		return errors.New("file-offer: invalid file metadata")
	}
	return nil
}

// FileAccept tells the sender to start the transfer.
type FileAccept struct {
	To     string `json:"to,omitempty"`
	From   string `json:"from,omitempty"`
	FileID string `json:"fileId"`
}

func (FileAccept) Type() Type { return TypeFileAccept }

func (m FileAccept) Validate() error {
	if m.FileID == "" {
		return errors.New("file-accept: missing file id")
	}
	return nil
}

// FileReject declines a pending offer. Carries no file id on the wire; the
// sender clears every pending offer for the rejecting peer.
type FileReject struct {
	To   string `json:"to,omitempty"`
	From string `json:"from,omitempty"`
}

func (FileReject) Type() Type { return TypeFileReject }

func (FileReject) Validate() error { return nil }

// RTCOffer carries an opaque session description. Delivered to the target's
// primary connection handle only: a transport session joins two endpoints,
// not every tab of a peer.
type RTCOffer struct {
	To    string          `json:"to,omitempty"`
	From  string          `json:"from,omitempty"`
	Offer json.RawMessage `json:"offer"`
}

func (RTCOffer) Type() Type { return TypeRTCOffer }

func (m RTCOffer) Validate() error {
	if len(m.Offer) == 0 {
		return errors.New("rtc-offer: missing offer")
	}
	return nil
}

// RTCAnswer carries the opaque answering session description.
type RTCAnswer struct {
	To     string          `json:"to,omitempty"`
	From   string          `json:"from,omitempty"`
	Answer json.RawMessage `json:"answer"`
}

func (RTCAnswer) Type() Type { return TypeRTCAnswer }

func (m RTCAnswer) Validate() error {
	if len(m.Answer) == 0 {
		return errors.New("rtc-answer: missing answer")
	}
	return nil
}

// RTCICE carries one opaque network-path candidate.
type RTCICE struct {
	To        string          `json:"to,omitempty"`
	From      string          `json:"from,omitempty"`
	Candidate json.RawMessage `json:"candidate"`
}

func (RTCICE) Type() Type { return TypeRTCICE }

func (m RTCICE) Validate() error {
	if len(m.Candidate) == 0 {
		return errors.New("rtc-ice: missing candidate")
	}
	return nil
}
