// Package transfer implements the chunked file transfer engine that runs
// over an established data lane: the control-frame protocol, the sending
// loop with backpressure and whole-file retry, and the receiving side with
// its disk-streaming and memory-buffered sinks.
//
// The lane carries two frame kinds: JSON control frames (file-start,
// file-end, ping, pong) and raw binary chunk frames with no envelope.
package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Control frame types.
const (
	ControlFileStart = "file-start"
	ControlFileEnd   = "file-end"
	ControlPing      = "ping"
	ControlPong      = "pong"
)

// Control is one JSON control frame. Fields beyond Type are populated per
// frame kind.
type Control struct {
	Type     string `json:"type"`
	FileID   string `json:"fileId,omitempty"`
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// EncodeControl serializes a control frame for the lane.
func EncodeControl(c Control) []byte {
	data, _ := json.Marshal(c)
	return data
}

// DecodeControl parses and validates a control frame. Malformed frames are
// rejected here, before they can touch transfer state.
func DecodeControl(data []byte) (Control, error) {
	var c Control
	if err := json.Unmarshal(data, &c); err != nil {
		return Control{}, fmt.Errorf("decode control frame: %w", err)
	}

	switch c.Type {
	case ControlFileStart:
		if c.FileID == "" || c.Name == "" {
			return Control{}, errors.New("file-start: missing file id or name")
		}
		if c.Size < 0 {
			return Control{}, errors.New("file-start: negative size")
		}
	case ControlFileEnd:
		if c.FileID == "" {
			return Control{}, errors.New("file-end: missing file id")
		}
	case ControlPing, ControlPong:
		// No payload.
	default:
		return Control{}, fmt.Errorf("unknown control frame type %q", c.Type)
	}

	return c, nil
}
