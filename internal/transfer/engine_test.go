package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DDME36/PurrDrop/internal/rtc"
	"github.com/DDME36/PurrDrop/internal/signal"
)

// Compile-time interface check.
var _ Lane = (*mockLane)(nil)

// mockLane implements Lane for in-process testing. Two linked lanes
// simulate an open data channel: frames sent on one side are delivered to
// the other side's handler in order.
type mockLane struct {
	mu      sync.Mutex
	handler func(rtc.LaneMessage)
	peer    *mockLane

	open  chan struct{}
	done  chan struct{}
	drain chan struct{}
	once  sync.Once

	queue    chan rtc.LaneMessage
	buffered atomic.Uint64
}

// mockLanes returns a linked, already-open lane pair.
func mockLanes() (*mockLane, *mockLane) {
	a := newMockLane()
	b := newMockLane()
	a.peer, b.peer = b, a
	go a.pump()
	go b.pump()
	return a, b
}

func newMockLane() *mockLane {
	l := &mockLane{
		open:  make(chan struct{}),
		done:  make(chan struct{}),
		drain: make(chan struct{}, 1),
		queue: make(chan rtc.LaneMessage, 4096),
	}
	close(l.open)
	return l
}

// pump delivers queued frames to the handler, preserving order.
func (m *mockLane) pump() {
	for {
		select {
		case msg := <-m.queue:
			m.mu.Lock()
			fn := m.handler
			m.mu.Unlock()
			if fn != nil {
				fn(msg)
			}
		case <-m.done:
			return
		}
	}
}

func (m *mockLane) Open() <-chan struct{} { return m.open }
func (m *mockLane) Done() <-chan struct{} { return m.done }
func (m *mockLane) Err() error            { return nil }

func (m *mockLane) OnMessage(fn func(rtc.LaneMessage)) {
	m.mu.Lock()
	m.handler = fn
	m.mu.Unlock()
}

func (m *mockLane) Send(msg rtc.LaneMessage) error {
	select {
	case <-m.done:
		return rtc.ErrLaneClosed
	default:
	}
	m.peer.queue <- msg
	return nil
}

func (m *mockLane) BufferedAmount() uint64   { return m.buffered.Load() }
func (m *mockLane) Drained() <-chan struct{} { return m.drain }

func (m *mockLane) signalDrain() {
	select {
	case m.drain <- struct{}{}:
	default:
	}
}

func (m *mockLane) Close() error {
	m.once.Do(func() { close(m.done) })
	m.peer.once.Do(func() { close(m.peer.done) })
	return nil
}

// laneDialer hands out pre-linked lanes, failing the first failures calls.
type laneDialer struct {
	mu       sync.Mutex
	failures int
	dials    int
	make     func() Lane
}

func (d *laneDialer) Dial(ctx context.Context, peerID string) (Lane, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failures {
		return nil, errors.New("no route to peer")
	}
	return d.make(), nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func randomPayload(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(rand.Intn(256))
	}
	return data
}

func TestSendReceiveRoundTrip(t *testing.T) {
	local, remote := mockLanes()

	results := make(chan Result, 1)
	recv := NewReceiver(remote, "peer-a", nil, testLogger())
	recv.OnComplete(func(res Result) { results <- res })
	recv.OnError(func(fileID, name string, err error) { t.Errorf("unexpected receive error: %v", err) })
	recv.Start()

	payload := randomPayload(10 << 20)
	dialer := &laneDialer{make: func() Lane { return local }}
	sender := NewSender(dialer, testLogger())

	var lastTransferred int64
	sender.OnProgress(func(transferred, total int64) {
		assert.LessOrEqual(t, transferred, total)
		lastTransferred = transferred
	})

	meta := signal.FileMeta{Name: "blob.bin", Size: int64(len(payload)), Type: "application/octet-stream"}
	require.NoError(t, sender.Send(context.Background(), "peer-a", "f1", meta, payload))
	assert.Equal(t, int64(len(payload)), lastTransferred)

	select {
	case res := <-results:
		assert.Equal(t, "f1", res.FileID)
		assert.Equal(t, "peer-a", res.PeerID)
		assert.Equal(t, "blob.bin", res.Name)
		assert.Equal(t, int64(len(payload)), res.Size)
		assert.True(t, bytes.Equal(payload, res.Data), "payload corrupted in transit")
	case <-time.After(10 * time.Second):
		t.Fatal("transfer did not complete")
	}
}

func TestSenderRetriesAndSucceeds(t *testing.T) {
	results := make(chan Result, 1)
	dialer := &laneDialer{
		failures: 2,
		make: func() Lane {
			local, remote := mockLanes()
			recv := NewReceiver(remote, "peer-a", nil, testLogger())
			recv.OnComplete(func(res Result) { results <- res })
			recv.Start()
			return local
		},
	}

	payload := randomPayload(64 << 10)
	sender := NewSender(dialer, testLogger())
	sender.delay = 10 * time.Millisecond

	meta := signal.FileMeta{Name: "a.bin", Size: int64(len(payload))}
	require.NoError(t, sender.Send(context.Background(), "peer-a", "f1", meta, payload))
	assert.Equal(t, 3, dialer.dials)

	select {
	case res := <-results:
		assert.True(t, bytes.Equal(payload, res.Data))
	case <-time.After(5 * time.Second):
		t.Fatal("transfer did not complete")
	}
}

func TestSenderGivesUpAfterAttemptBudget(t *testing.T) {
	dialer := &laneDialer{failures: 100, make: func() Lane { return nil }}
	sender := NewSender(dialer, testLogger())
	sender.delay = time.Millisecond

	err := sender.Send(context.Background(), "peer-a", "f1", signal.FileMeta{Name: "a"}, []byte("x"))
	require.Error(t, err)
	assert.Equal(t, RetryAttempts, dialer.dials)
}

func TestSenderHonorsBackpressure(t *testing.T) {
	local, remote := mockLanes()

	var received atomic.Int64
	recv := NewReceiver(remote, "peer-a", nil, testLogger())
	recv.OnProgress(func(name string, got, total int64) { received.Store(got) })
	recv.Start()

	// Pin the reported buffer above the high-water mark: the sender must
	// stall before the first chunk.
	local.buffered.Store(rtc.HighWaterMark + 1)

	payload := randomPayload(4 * DefaultChunkSize)
	dialer := &laneDialer{make: func() Lane { return local }}
	sender := NewSender(dialer, testLogger())

	done := make(chan error, 1)
	go func() {
		done <- sender.Send(context.Background(), "peer-a", "f1",
			signal.FileMeta{Name: "a.bin", Size: int64(len(payload))}, payload)
	}()

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, received.Load(), "chunks flowed past a full buffer")

	// Drop below the mark and wake the sender.
	local.buffered.Store(0)
	local.signalDrain()

	require.NoError(t, <-done)
	require.Eventually(t, func() bool {
		return received.Load() == int64(len(payload))
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReceiverRejectsConcurrentTransfer(t *testing.T) {
	local, remote := mockLanes()

	errs := make(chan error, 1)
	recv := NewReceiver(remote, "peer-a", nil, testLogger())
	recv.OnError(func(fileID, name string, err error) { errs <- err })
	recv.Start()

	start := func(id string) {
		require.NoError(t, local.Send(rtc.LaneMessage{Data: EncodeControl(Control{
			Type: ControlFileStart, FileID: id, Name: id + ".bin", Size: 10,
		})}))
	}
	start("f1")
	start("f2")

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrTransferBusy)
	case <-time.After(2 * time.Second):
		t.Fatal("second transfer was not rejected")
	}
}

func TestReceiverRejectsOversizedFile(t *testing.T) {
	local, remote := mockLanes()

	errs := make(chan error, 1)
	recv := NewReceiver(remote, "peer-a", nil, testLogger())
	recv.OnError(func(fileID, name string, err error) { errs <- err })
	recv.Start()

	require.NoError(t, local.Send(rtc.LaneMessage{Data: EncodeControl(Control{
		Type: ControlFileStart, FileID: "f1", Name: "huge.bin", Size: MemoryCap + 1,
	})}))

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrFileTooLarge)
	case <-time.After(2 * time.Second):
		t.Fatal("oversized file was not rejected")
	}
}

func TestReceiverAnswersPings(t *testing.T) {
	local, remote := mockLanes()

	pongs := make(chan struct{}, 1)
	local.OnMessage(func(msg rtc.LaneMessage) {
		if c, err := DecodeControl(msg.Data); err == nil && c.Type == ControlPong {
			pongs <- struct{}{}
		}
	})

	recv := NewReceiver(remote, "peer-a", nil, testLogger())
	recv.Start()

	require.NoError(t, local.Send(rtc.LaneMessage{Data: EncodeControl(Control{Type: ControlPing})}))

	select {
	case <-pongs:
	case <-time.After(2 * time.Second):
		t.Fatal("ping went unanswered")
	}
}
