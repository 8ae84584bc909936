package rtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
)

const (
	// HighWaterMark pauses sending when the lane's buffered amount exceeds it.
	HighWaterMark = 1 << 20
	// LowWaterMark resumes sending once the buffered amount drains below it.
	LowWaterMark = 256 << 10
)

// ErrLaneClosed is returned when sending on a lane that has shut down.
var ErrLaneClosed = errors.New("data lane closed")

// LaneMessage is one frame on the lane: a JSON control frame (text) or a
// raw binary chunk.
type LaneMessage struct {
	Data   []byte
	Binary bool
}

// DataLane wraps a single DataChannel with an open gate, a done gate, and
// event-driven backpressure. It is the only surface the transfer engine
// sees, so tests can substitute an in-process pair.
type DataLane struct {
	dc *webrtc.DataChannel

	openSignal chan struct{}
	done       chan struct{}
	drain      chan struct{}

	openOnce sync.Once
	doneOnce sync.Once

	mu      sync.Mutex
	err     error
	handler func(LaneMessage)
}

// newDataLane wires lifecycle and backpressure callbacks on dc.
func newDataLane(dc *webrtc.DataChannel) *DataLane {
	l := &DataLane{
		dc:         dc,
		openSignal: make(chan struct{}),
		done:       make(chan struct{}),
		drain:      make(chan struct{}, 1),
	}

	dc.OnOpen(func() {
		l.openOnce.Do(func() { close(l.openSignal) })
	})
	dc.OnClose(func() {
		l.shutdown(nil)
	})
	dc.OnError(func(err error) {
		l.shutdown(err)
	})

	dc.SetBufferedAmountLowThreshold(uint64(LowWaterMark))
	dc.OnBufferedAmountLow(func() {
		select {
		case l.drain <- struct{}{}:
		default:
		}
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		l.mu.Lock()
		fn := l.handler
		l.mu.Unlock()
		if fn != nil {
			fn(LaneMessage{Data: msg.Data, Binary: !msg.IsString})
		}
	})

	return l
}

func (l *DataLane) shutdown(err error) {
	l.doneOnce.Do(func() {
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		close(l.done)
	})
}

// Open returns a channel closed once the lane is ready to carry frames.
func (l *DataLane) Open() <-chan struct{} { return l.openSignal }

// Done returns a channel closed when the lane has failed or closed.
func (l *DataLane) Done() <-chan struct{} { return l.done }

// Err returns the failure that shut the lane down, if any.
func (l *DataLane) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// OnMessage registers the single inbound frame handler.
func (l *DataLane) OnMessage(fn func(LaneMessage)) {
	l.mu.Lock()
	l.handler = fn
	l.mu.Unlock()
}

// Send writes one frame: text for control messages, binary for chunks.
func (l *DataLane) Send(msg LaneMessage) error {
	select {
	case <-l.done:
		return ErrLaneClosed
	default:
	}

	if msg.Binary {
		return l.dc.Send(msg.Data)
	}
	return l.dc.SendText(string(msg.Data))
}

// BufferedAmount reports the bytes queued but not yet handed to the
// network.
func (l *DataLane) BufferedAmount() uint64 {
	return l.dc.BufferedAmount()
}

// Drained fires when the buffered amount has dropped below the low-water
// mark. Event-driven: senders block on this instead of polling.
func (l *DataLane) Drained() <-chan struct{} { return l.drain }

// Close shuts the underlying channel down.
func (l *DataLane) Close() error {
	l.shutdown(nil)
	return l.dc.Close()
}
