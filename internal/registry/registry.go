// Package registry holds the server's in-memory peer and room tables and
// the visibility rules between peers. A Registry is an explicit value owned
// by the relay server, never ambient state; every mutation runs under one
// lock so visibility recomputation always reads a consistent snapshot.
package registry

import (
	"errors"
	"sync"

	"github.com/DDME36/PurrDrop/internal/signal"
)

var (
	// ErrUnknownPeer is returned when the target peer id is not registered.
	ErrUnknownPeer = errors.New("unknown peer")
	// ErrRoomNotFound is returned when joining a room code that has no
	// occupied room (including malformed codes, which can name no room).
	ErrRoomNotFound = errors.New("room not found")
	// ErrWrongPassword is returned when the supplied room password does not
	// match. Plain comparison, checked at join time only.
	ErrWrongPassword = errors.New("wrong room password")
)

// Peer is a snapshot of one registered peer. Handles are ordered by
// connection time; the first is the primary handle used for point-to-point
// transport negotiation messages.
type Peer struct {
	ID           string
	Name         string
	Device       string
	Avatar       signal.Avatar
	Origin       string
	Mode         signal.Mode
	RoomCode     string
	RoomPassword string
	Handles      []string
}

// Primary returns the peer's primary connection handle, or "" if none.
func (p Peer) Primary() string {
	if len(p.Handles) == 0 {
		return ""
	}
	return p.Handles[0]
}

// Info converts the snapshot to its public wire form.
func (p Peer) Info() signal.PeerInfo {
	return signal.PeerInfo{ID: p.ID, Name: p.Name, Device: p.Device, Avatar: p.Avatar}
}

type room struct {
	code     string
	password string
	members  map[string]struct{}
}

// Delta lists, for one viewer, the peers that just became visible and the
// peer ids that just became hidden.
type Delta struct {
	ViewerID string
	Appeared []Peer
	Vanished []string
}

// Registry is the peer and room table. The zero value is not usable; call
// New.
type Registry struct {
	mu    sync.Mutex
	peers map[string]*Peer
	rooms map[string]*room
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		peers: make(map[string]*Peer),
		rooms: make(map[string]*room),
	}
}

// ---------------------------------------------------------------------------
// Peer lifecycle
// ---------------------------------------------------------------------------

// Register adds a peer or, if the id already exists, merges the new
// connection handle into the existing peer and refreshes its mutable
// presentational fields. New peers start in public mode.
func (r *Registry) Register(info signal.PeerInfo, origin, handle string) (self Peer, merged bool, deltas []Delta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.visibilityLocked()

	p, ok := r.peers[info.ID]
	if ok {
		if !containsHandle(p.Handles, handle) {
			p.Handles = append(p.Handles, handle)
		}
		p.Name = info.Name
		p.Avatar = info.Avatar
		merged = true
	} else {
		p = &Peer{
			ID:      info.ID,
			Name:    info.Name,
			Device:  info.Device,
			Avatar:  info.Avatar,
			Origin:  origin,
			Mode:    signal.ModePublic,
			Handles: []string{handle},
		}
		r.peers[info.ID] = p
	}

	return snapshot(p), merged, r.diffLocked(before)
}

// RemoveHandle drops one connection handle. The peer is removed from the
// registry (and its room, if any) only when its last handle goes; removal
// and the concurrent merge of a new handle are serialized by the registry
// lock.
func (r *Registry) RemoveHandle(handle string) (self Peer, gone bool, deltas []Delta, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.byHandleLocked(handle)
	if p == nil {
		return Peer{}, false, nil, false
	}

	before := r.visibilityLocked()

	p.Handles = removeHandle(p.Handles, handle)
	if len(p.Handles) > 0 {
		return snapshot(p), false, nil, true
	}

	r.leaveRoomLocked(p)
	delete(r.peers, p.ID)

	return snapshot(p), true, r.diffLocked(before), true
}

// Lookup returns a snapshot of the peer with the given id.
func (r *Registry) Lookup(id string) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[id]
	if !ok {
		return Peer{}, false
	}
	return snapshot(p), true
}

// LookupByHandle returns the peer owning the given connection handle.
func (r *Registry) LookupByHandle(handle string) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byHandleLocked(handle)
	if p == nil {
		return Peer{}, false
	}
	return snapshot(p), true
}

// ---------------------------------------------------------------------------
// Mutable fields
// ---------------------------------------------------------------------------

// UpdateName renames a peer.
func (r *Registry) UpdateName(id, name string) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[id]
	if !ok {
		return Peer{}, false
	}
	p.Name = name
	return snapshot(p), true
}

// UpdateEmoji changes a peer's avatar emoji.
func (r *Registry) UpdateEmoji(id, emoji string) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[id]
	if !ok {
		return Peer{}, false
	}
	p.Avatar.Emoji = emoji
	return snapshot(p), true
}

// ---------------------------------------------------------------------------
// Modes and rooms
// ---------------------------------------------------------------------------

// SetMode applies the discovery-mode state machine. On a failed private
// join the peer has already been reverted to public mode when the error is
// returned; the returned snapshot and deltas reflect that final state.
func (r *Registry) SetMode(id string, mode signal.Mode, roomCode, password string) (self Peer, deltas []Delta, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[id]
	if !ok {
		return Peer{}, nil, ErrUnknownPeer
	}

	before := r.visibilityLocked()

	r.leaveRoomLocked(p)
	p.Mode = mode
	p.RoomCode = ""
	p.RoomPassword = ""

	if mode == signal.ModePrivate {
		if roomCode == "" {
			code := r.generateCodeLocked()
			r.rooms[code] = &room{
				code:     code,
				password: password,
				members:  map[string]struct{}{p.ID: {}},
			}
			p.RoomCode = code
			p.RoomPassword = password
		} else {
			err = r.joinRoomLocked(p, roomCode, password)
			if err != nil {
				p.Mode = signal.ModePublic
			}
		}
	}

	return snapshot(p), r.diffLocked(before), err
}

// joinRoomLocked validates and joins an existing room.
func (r *Registry) joinRoomLocked(p *Peer, code, password string) error {
	if !validRoomCode(code) {
		return ErrRoomNotFound
	}
	rm, ok := r.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}
	if rm.password != "" && password != rm.password {
		return ErrWrongPassword
	}
	rm.members[p.ID] = struct{}{}
	p.RoomCode = code
	p.RoomPassword = rm.password
	return nil
}

// leaveRoomLocked removes the peer from its current room and deletes the
// room the moment it empties, freeing its code for reuse.
func (r *Registry) leaveRoomLocked(p *Peer) {
	if p.RoomCode == "" {
		return
	}
	rm, ok := r.rooms[p.RoomCode]
	if ok {
		delete(rm.members, p.ID)
		if len(rm.members) == 0 {
			delete(r.rooms, rm.code)
		}
	}
	p.RoomCode = ""
	p.RoomPassword = ""
}

// RoomCodes returns the codes of all currently occupied rooms.
func (r *Registry) RoomCodes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	return codes
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

func (r *Registry) byHandleLocked(handle string) *Peer {
	for _, p := range r.peers {
		if containsHandle(p.Handles, handle) {
			return p
		}
	}
	return nil
}

func snapshot(p *Peer) Peer {
	cp := *p
	cp.Handles = append([]string(nil), p.Handles...)
	return cp
}

func containsHandle(handles []string, h string) bool {
	for _, v := range handles {
		if v == h {
			return true
		}
	}
	return false
}

func removeHandle(handles []string, h string) []string {
	out := handles[:0]
	for _, v := range handles {
		if v != h {
			out = append(out, v)
		}
	}
	return out
}
