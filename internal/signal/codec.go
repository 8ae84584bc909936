package signal

import (
	"encoding/json"
	"fmt"
)

// envelope is the outer JSON frame: a type tag and the payload.
type envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Marshal encodes a message into its wire envelope.
func Marshal(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", m.Type(), err)
	}
	return json.Marshal(envelope{Type: m.Type(), Payload: payload})
}

// Unmarshal decodes a wire frame into its concrete message type and
// validates it. Unknown types are an error: the set of valid messages is
// closed.
func Unmarshal(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	msg, err := newMessage(env.Type)
	if err != nil {
		return nil, err
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}

	concrete := deref(msg)
	if err := concrete.Validate(); err != nil {
		return nil, err
	}
	return concrete, nil
}

// newMessage returns a pointer to the zero value for the given type tag.
func newMessage(t Type) (Message, error) {
	switch t {
	case TypeJoin:
		return &Join{}, nil
	case TypeSetMode:
		return &SetMode{}, nil
	case TypeUpdateName:
		return &UpdateName{}, nil
	case TypeUpdateEmoji:
		return &UpdateEmoji{}, nil
	case TypeModeInfo:
		return &ModeInfo{}, nil
	case TypeRoomError:
		return &RoomError{}, nil
	case TypePeers:
		return &Peers{}, nil
	case TypePeerJoined:
		return &PeerJoined{}, nil
	case TypePeerLeft:
		return &PeerLeft{}, nil
	case TypePeerUpdated:
		return &PeerUpdated{}, nil
	case TypeFileOffer:
		return &FileOffer{}, nil
	case TypeFileAccept:
		return &FileAccept{}, nil
	case TypeFileReject:
		return &FileReject{}, nil
	case TypeRTCOffer:
		return &RTCOffer{}, nil
	case TypeRTCAnswer:
		return &RTCAnswer{}, nil
	case TypeRTCICE:
		return &RTCICE{}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", t)
	}
}

// deref converts the decoded pointer back to the value form the rest of the
// code switches on.
func deref(m Message) Message {
	switch v := m.(type) {
	case *Join:
		return *v
	case *SetMode:
		return *v
	case *UpdateName:
		return *v
	case *UpdateEmoji:
		return *v
	case *ModeInfo:
		return *v
	case *RoomError:
		return *v
	case *Peers:
		return *v
	case *PeerJoined:
		return *v
	case *PeerLeft:
		return *v
	case *PeerUpdated:
		return *v
	case *FileOffer:
		return *v
	case *FileAccept:
		return *v
	case *FileReject:
		return *v
	case *RTCOffer:
		return *v
	case *RTCAnswer:
		return *v
	case *RTCICE:
		return *v
	default:
		return m
	}
}
