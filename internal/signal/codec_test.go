package signal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		msg  Message
	}{
		{
			name: "join",
			msg: Join{Peer: PeerInfo{
				ID:     "p1",
				Name:   "Sleepy Tabby",
				Device: "linux (fern)",
				Avatar: Avatar{Kind: "cat", Color: "#61afef", Emoji: "🐱", OS: "linux"},
			}},
		},
		{
			name: "set-mode private",
			msg:  SetMode{Mode: ModePrivate, RoomCode: "12345", Password: "sesame"},
		},
		{
			name: "mode-info",
			msg:  ModeInfo{Mode: ModePrivate, RoomCode: "12345", RoomPassword: "sesame"},
		},
		{
			name: "room-error",
			msg:  RoomError{Kind: RoomErrorNotFound, Message: "no such room"},
		},
		{
			name: "file-offer",
			msg: FileOffer{
				To:     "p2",
				From:   PeerInfo{ID: "p1", Name: "a"},
				File:   FileMeta{Name: "cat.png", Size: 1024, Type: "image/png"},
				FileID: "f1",
			},
		},
		{
			name: "rtc-offer",
			msg:  RTCOffer{To: "p2", Offer: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)},
		},
		{
			name: "peer-left",
			msg:  PeerLeft{PeerID: "p9"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Marshal(tc.msg)
			require.NoError(t, err)

			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, tc.msg, got)
		})
	}
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{name: "not json", data: `this is not json`},
		{name: "unknown type", data: `{"type":"teleport","payload":{}}`},
		{name: "missing type", data: `{"payload":{}}`},
		{name: "join without id", data: `{"type":"join","payload":{"peer":{"name":"x"}}}`},
		{name: "set-mode bad mode", data: `{"type":"set-mode","payload":{"mode":"stealth"}}`},
		{name: "file-offer without file id", data: `{"type":"file-offer","payload":{"file":{"name":"a","size":1}}}`},
		{name: "rtc-ice without candidate", data: `{"type":"rtc-ice","payload":{}}`},
		{name: "peer-left without id", data: `{"type":"peer-left","payload":{}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestNameLengthBound(t *testing.T) {
	long := make([]byte, MaxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}

	assert.Error(t, UpdateName{Name: string(long)}.Validate())
	assert.NoError(t, UpdateName{Name: string(long[:MaxNameLength])}.Validate())
}
