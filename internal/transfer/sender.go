package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DDME36/PurrDrop/internal/rtc"
	"github.com/DDME36/PurrDrop/internal/signal"
)

const (
	// OpenTimeout bounds how long a send attempt waits for the lane to
	// open before giving up on it.
	OpenTimeout = 15 * time.Second

	// RetryAttempts is the total number of whole-file attempts, each over
	// a freshly dialed lane.
	RetryAttempts = 3

	// RetryDelay separates consecutive attempts.
	RetryDelay = 2 * time.Second

	// HeartbeatInterval spaces the ping frames sent while a transfer is
	// in flight. Pongs are informational and never gate progress.
	HeartbeatInterval = 5 * time.Second
)

// ErrLaneNotOpen is reported when the lane does not open within OpenTimeout.
var ErrLaneNotOpen = errors.New("data lane did not open in time")

// Dialer establishes a fresh lane to a peer. Each send attempt dials its
// own lane so a retry never reuses a broken transport.
type Dialer interface {
	Dial(ctx context.Context, peerID string) (Lane, error)
}

// Progress reports transferred bytes against the file total.
type Progress func(transferred, total int64)

// Sender pushes whole files to remote peers with backpressure and a
// bounded whole-file retry.
type Sender struct {
	dialer    Dialer
	log       *logrus.Logger
	chunkSize int
	attempts  int
	delay     time.Duration
	progress  Progress
	lastPong  atomic.Int64
}

// NewSender returns a sender using the default chunking and retry policy.
func NewSender(dialer Dialer, log *logrus.Logger) *Sender {
	return &Sender{
		dialer:    dialer,
		log:       log,
		chunkSize: DefaultChunkSize,
		attempts:  RetryAttempts,
		delay:     RetryDelay,
	}
}

// OnProgress installs the progress callback. Must be set before Send.
func (s *Sender) OnProgress(fn Progress) { s.progress = fn }

// LastPong reports when the far side last answered a heartbeat, or the zero
// time if it never has.
func (s *Sender) LastPong() time.Time {
	n := s.lastPong.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Send transfers one file to peerID. On failure the whole file is retried
// from the first byte over a fresh lane, up to the attempt budget. The
// returned error wraps the last attempt's failure.
func (s *Sender) Send(ctx context.Context, peerID, fileID string, meta signal.FileMeta, data []byte) error {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err := s.attempt(ctx, peerID, fileID, meta, data)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.log.WithFields(logrus.Fields{
			"peer":    peerID,
			"file":    meta.Name,
			"attempt": attempt,
		}).WithError(err).Warn("Send attempt failed")

		if attempt < s.attempts {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("transfer failed after %d attempts: %w", s.attempts, lastErr)
}

func (s *Sender) attempt(ctx context.Context, peerID, fileID string, meta signal.FileMeta, data []byte) error {
	lane, err := s.dialer.Dial(ctx, peerID)
	if err != nil {
		return fmt.Errorf("dial %s: %w", peerID, err)
	}

	if err := s.run(ctx, lane, fileID, meta, data); err != nil {
		lane.Close()
		return err
	}
	return nil
}

func (s *Sender) run(ctx context.Context, lane Lane, fileID string, meta signal.FileMeta, data []byte) error {
	select {
	case <-lane.Open():
	case <-lane.Done():
		if err := lane.Err(); err != nil {
			return err
		}
		return rtc.ErrLaneClosed
	case <-time.After(OpenTimeout):
		return ErrLaneNotOpen
	case <-ctx.Done():
		return ctx.Err()
	}

	lane.OnMessage(func(msg rtc.LaneMessage) { s.handleControl(lane, msg) })

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go s.heartbeat(hbCtx, lane)

	start := Control{
		Type:     ControlFileStart,
		FileID:   fileID,
		Name:     meta.Name,
		Size:     meta.Size,
		MimeType: meta.Type,
	}
	if err := lane.Send(rtc.LaneMessage{Data: EncodeControl(start)}); err != nil {
		return err
	}

	total := int64(len(data))
	var sent int64
	chunker := NewChunker(data, s.chunkSize)
	for {
		chunk, ok := chunker.Next()
		if !ok {
			break
		}

		// Suspend above the high-water mark and wake on the buffered
		// amount dropping below low water, never by polling.
		if lane.BufferedAmount() > rtc.HighWaterMark {
			select {
			case <-lane.Drained():
			case <-lane.Done():
				if err := lane.Err(); err != nil {
					return err
				}
				return rtc.ErrLaneClosed
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := lane.Send(rtc.LaneMessage{Data: chunk, Binary: true}); err != nil {
			return err
		}
		sent += int64(len(chunk))
		if s.progress != nil {
			s.progress(sent, total)
		}
	}

	if err := lane.Send(rtc.LaneMessage{Data: EncodeControl(Control{Type: ControlFileEnd, FileID: fileID})}); err != nil {
		return err
	}
	return s.flush(ctx, lane)
}

// flush waits for the lane's userspace buffer to empty so the final chunks
// are actually on the wire before the attempt is declared done. This is a
// completion barrier, not steady-state backpressure, so a poll is fine.
func (s *Sender) flush(ctx context.Context, lane Lane) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	deadline := time.NewTimer(OpenTimeout)
	defer deadline.Stop()

	for lane.BufferedAmount() > 0 {
		select {
		case <-ticker.C:
		case <-lane.Done():
			if err := lane.Err(); err != nil {
				return err
			}
			return rtc.ErrLaneClosed
		case <-deadline.C:
			return errors.New("timed out draining send buffer")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Sender) heartbeat(ctx context.Context, lane Lane) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	ping := EncodeControl(Control{Type: ControlPing})
	for {
		select {
		case <-ticker.C:
			if err := lane.Send(rtc.LaneMessage{Data: ping}); err != nil {
				return
			}
		case <-lane.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) handleControl(lane Lane, msg rtc.LaneMessage) {
	if msg.Binary {
		return
	}
	c, err := DecodeControl(msg.Data)
	if err != nil {
		return
	}
	switch c.Type {
	case ControlPing:
		lane.Send(rtc.LaneMessage{Data: EncodeControl(Control{Type: ControlPong})})
	case ControlPong:
		s.lastPong.Store(time.Now().UnixNano())
	}
}
