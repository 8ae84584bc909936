package relay_test

import (
	"io"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DDME36/PurrDrop/internal/relay"
	"github.com/DDME36/PurrDrop/internal/signal"
)

func startServer(t *testing.T) string {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	srv := relay.New(log)
	addr, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	return "ws://" + addr + "/ws"
}

// wsClient is a bare signaling client for driving the server directly.
type wsClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func dialWS(t *testing.T, url string) *wsClient {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return &wsClient{t: t, ws: ws}
}

func (c *wsClient) send(m signal.Message) {
	c.t.Helper()
	data, err := signal.Marshal(m)
	require.NoError(c.t, err)
	require.NoError(c.t, c.ws.WriteMessage(websocket.TextMessage, data))
}

func (c *wsClient) next() signal.Message {
	c.t.Helper()
	c.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ws.ReadMessage()
	require.NoError(c.t, err)
	msg, err := signal.Unmarshal(data)
	require.NoError(c.t, err)
	return msg
}

func (c *wsClient) join(id, name string) {
	c.t.Helper()
	c.send(signal.Join{Peer: signal.PeerInfo{ID: id, Name: name, Device: "test"}})
}

// expectJoined drains the mode-info and peers frames every join produces
// and returns the peer snapshot.
func (c *wsClient) expectJoined(mode signal.Mode) []signal.PeerInfo {
	c.t.Helper()
	mi, ok := c.next().(signal.ModeInfo)
	require.True(c.t, ok, "expected mode-info first")
	require.Equal(c.t, mode, mi.Mode)

	peers, ok := c.next().(signal.Peers)
	require.True(c.t, ok, "expected peers snapshot")
	return peers.Peers
}

func TestPublicDiscovery(t *testing.T) {
	url := startServer(t)

	a := dialWS(t, url)
	a.join("a", "Alice")
	assert.Empty(t, a.expectJoined(signal.ModePublic))

	b := dialWS(t, url)
	b.join("b", "Bob")
	snapshot := b.expectJoined(signal.ModePublic)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "a", snapshot[0].ID)

	joined, ok := a.next().(signal.PeerJoined)
	require.True(t, ok)
	assert.Equal(t, "b", joined.Peer.ID)

	// Bob disconnecting surfaces as peer-left on Alice's feed.
	b.ws.Close()
	left, ok := a.next().(signal.PeerLeft)
	require.True(t, ok)
	assert.Equal(t, "b", left.PeerID)
}

func TestPrivateRoomFlow(t *testing.T) {
	url := startServer(t)

	a := dialWS(t, url)
	a.join("a", "Alice")
	a.expectJoined(signal.ModePublic)

	b := dialWS(t, url)
	b.join("b", "Bob")
	b.expectJoined(signal.ModePublic)
	a.next() // peer-joined b

	// Alice opens a room; Bob watches her vanish from public.
	a.send(signal.SetMode{Mode: signal.ModePrivate, Password: "sesame"})
	mi, ok := a.next().(signal.ModeInfo)
	require.True(t, ok)
	require.Equal(t, signal.ModePrivate, mi.Mode)
	require.Regexp(t, `^\d{5}$`, mi.RoomCode)
	code := mi.RoomCode
	a.next() // her new (empty) snapshot

	left, ok := b.next().(signal.PeerLeft)
	require.True(t, ok)
	assert.Equal(t, "a", left.PeerID)

	// Wrong password: room-error first, then a revert to public.
	b.send(signal.SetMode{Mode: signal.ModePrivate, RoomCode: code, Password: "wrong"})
	re, ok := b.next().(signal.RoomError)
	require.True(t, ok)
	assert.Equal(t, signal.RoomErrorWrongPassword, re.Kind)
	mi, ok = b.next().(signal.ModeInfo)
	require.True(t, ok)
	assert.Equal(t, signal.ModePublic, mi.Mode)
	b.next() // snapshot

	// Malformed code reads as a missing room.
	b.send(signal.SetMode{Mode: signal.ModePrivate, RoomCode: "abcde", Password: "x"})
	re, ok = b.next().(signal.RoomError)
	require.True(t, ok)
	assert.Equal(t, signal.RoomErrorNotFound, re.Kind)
	b.next() // mode-info
	b.next() // snapshot

	// The right password joins the room and both peers see each other.
	b.send(signal.SetMode{Mode: signal.ModePrivate, RoomCode: code, Password: "sesame"})
	mi, ok = b.next().(signal.ModeInfo)
	require.True(t, ok)
	assert.Equal(t, code, mi.RoomCode)
	snapshot, ok := b.next().(signal.Peers)
	require.True(t, ok)
	require.Len(t, snapshot.Peers, 1)
	assert.Equal(t, "a", snapshot.Peers[0].ID)

	joined, ok := a.next().(signal.PeerJoined)
	require.True(t, ok)
	assert.Equal(t, "b", joined.Peer.ID)
}

func TestRelayedMessages(t *testing.T) {
	url := startServer(t)

	a := dialWS(t, url)
	a.join("a", "Alice")
	a.expectJoined(signal.ModePublic)

	b := dialWS(t, url)
	b.join("b", "Bob")
	b.expectJoined(signal.ModePublic)
	a.next() // peer-joined b

	// File intent is forwarded with the sender's identity filled in.
	a.send(signal.FileOffer{
		To:     "b",
		File:   signal.FileMeta{Name: "cat.png", Size: 9, Type: "image/png"},
		FileID: "f1",
	})
	offer, ok := b.next().(signal.FileOffer)
	require.True(t, ok)
	assert.Equal(t, "a", offer.From.ID)
	assert.Equal(t, "Alice", offer.From.Name)
	assert.Equal(t, "f1", offer.FileID)

	b.send(signal.FileAccept{To: "a", FileID: "f1"})
	accept, ok := a.next().(signal.FileAccept)
	require.True(t, ok)
	assert.Equal(t, "b", accept.From)
	assert.Equal(t, "f1", accept.FileID)

	// Transport negotiation frames pass through opaquely.
	a.send(signal.RTCOffer{To: "b", Offer: []byte(`{"sdp":"v=0"}`)})
	rtcOffer, ok := b.next().(signal.RTCOffer)
	require.True(t, ok)
	assert.Equal(t, "a", rtcOffer.From)
	assert.JSONEq(t, `{"sdp":"v=0"}`, string(rtcOffer.Offer))

	// Renames reach current viewers.
	a.send(signal.UpdateName{Name: "Alicia"})
	updated, ok := b.next().(signal.PeerUpdated)
	require.True(t, ok)
	assert.Equal(t, "Alicia", updated.Peer.Name)
}

func TestMessagesBeforeJoinAreDropped(t *testing.T) {
	url := startServer(t)

	a := dialWS(t, url)
	a.send(signal.SetMode{Mode: signal.ModePrivate})

	// The connection stays usable: a join afterwards works normally.
	a.join("a", "Alice")
	assert.Empty(t, a.expectJoined(signal.ModePublic))
}
