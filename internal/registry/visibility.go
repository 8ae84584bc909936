package registry

import "github.com/DDME36/PurrDrop/internal/signal"

// CanSee reports whether viewer may see candidate under the viewer's
// discovery mode. Pure: callable for full snapshots and for incremental
// delta computation alike. A peer never sees itself.
//
//	public  — candidate is public
//	network — candidate is network and shares the viewer's origin address
//	private — candidate is private and shares the viewer's room code
func CanSee(viewer, candidate Peer) bool {
	if viewer.ID == candidate.ID {
		return false
	}
	switch viewer.Mode {
	case signal.ModePublic:
		return candidate.Mode == signal.ModePublic
	case signal.ModeNetwork:
		return candidate.Mode == signal.ModeNetwork && candidate.Origin == viewer.Origin
	case signal.ModePrivate:
		return candidate.Mode == signal.ModePrivate &&
			viewer.RoomCode != "" &&
			candidate.RoomCode == viewer.RoomCode
	default:
		return false
	}
}

// VisibleTo returns snapshots of every peer the given peer may see.
func (r *Registry) VisibleTo(id string) []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	viewer, ok := r.peers[id]
	if !ok {
		return nil
	}

	var visible []Peer
	for _, other := range r.peers {
		if CanSee(*viewer, *other) {
			visible = append(visible, snapshot(other))
		}
	}
	return visible
}

// Viewers returns the ids of every peer that currently sees the given
// peer. Used to target peer-updated notifications.
func (r *Registry) Viewers(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	subject, ok := r.peers[id]
	if !ok {
		return nil
	}

	var viewers []string
	for _, other := range r.peers {
		if CanSee(*other, *subject) {
			viewers = append(viewers, other.ID)
		}
	}
	return viewers
}

// visibilityLocked captures who sees whom right now: viewer id → set of
// visible peer ids.
func (r *Registry) visibilityLocked() map[string]map[string]struct{} {
	vis := make(map[string]map[string]struct{}, len(r.peers))
	for _, viewer := range r.peers {
		set := make(map[string]struct{})
		for _, other := range r.peers {
			if CanSee(*viewer, *other) {
				set[other.ID] = struct{}{}
			}
		}
		vis[viewer.ID] = set
	}
	return vis
}

// diffLocked compares a pre-mutation visibility capture against the current
// state and returns one Delta per viewer whose visible set changed. Viewers
// that no longer exist produce no delta; peers that appeared are returned
// as full snapshots so the relay can forward them directly.
func (r *Registry) diffLocked(before map[string]map[string]struct{}) []Delta {
	var deltas []Delta

	for viewerID := range r.peers {
		prev := before[viewerID] // nil for brand-new viewers
		cur := make(map[string]struct{})
		for _, other := range r.peers {
			if CanSee(*r.peers[viewerID], *other) {
				cur[other.ID] = struct{}{}
			}
		}

		var d Delta
		d.ViewerID = viewerID
		for id := range cur {
			if _, ok := prev[id]; !ok {
				d.Appeared = append(d.Appeared, snapshot(r.peers[id]))
			}
		}
		for id := range prev {
			if _, ok := cur[id]; !ok {
				d.Vanished = append(d.Vanished, id)
			}
		}

		if len(d.Appeared) > 0 || len(d.Vanished) > 0 {
			deltas = append(deltas, d)
		}
	}

	return deltas
}
