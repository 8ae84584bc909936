package transfer

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/DDME36/PurrDrop/internal/rtc"
)

// ErrTransferBusy is reported when a file-start arrives while another
// transfer is already in flight on the same lane.
var ErrTransferBusy = errors.New("a transfer is already in progress on this lane")

// Result describes one completed incoming file. Exactly one of Path and
// Data is set.
type Result struct {
	FileID   string
	PeerID   string
	Name     string
	Size     int64
	MimeType string
	Path     string
	Data     []byte
}

// Receiver consumes one lane's frames and assembles at most one incoming
// file at a time.
type Receiver struct {
	lane    Lane
	peerID  string
	factory SinkFactory
	log     *logrus.Entry

	onProgress func(name string, received, total int64)
	onComplete func(Result)
	onError    func(fileID, name string, err error)

	mu     sync.Mutex
	active *inflight
}

type inflight struct {
	meta     Control
	sink     Sink
	received int64
}

// NewReceiver attaches a receiver to the lane. Callbacks must be installed
// before any frames can arrive; Start begins consuming.
func NewReceiver(lane Lane, peerID string, factory SinkFactory, log *logrus.Logger) *Receiver {
	return &Receiver{
		lane:    lane,
		peerID:  peerID,
		factory: factory,
		log:     log.WithField("peer", peerID),
	}
}

func (r *Receiver) OnProgress(fn func(name string, received, total int64)) { r.onProgress = fn }
func (r *Receiver) OnComplete(fn func(Result)) { r.onComplete = fn }
func (r *Receiver) OnError(fn func(fileID, name string, err error)) { r.onError = fn }

// Start registers the message handler and begins watching the lane for
// teardown mid-transfer.
func (r *Receiver) Start() {
	r.lane.OnMessage(r.handle)
	go r.watchLane()
}

func (r *Receiver) watchLane() {
	<-r.lane.Done()

	r.mu.Lock()
	tr := r.active
	r.active = nil
	r.mu.Unlock()
	if tr == nil {
		return
	}

	tr.sink.Abort()
	err := r.lane.Err()
	if err == nil {
		err = rtc.ErrLaneClosed
	}
	r.fail(tr.meta, err)
}

func (r *Receiver) handle(msg rtc.LaneMessage) {
	if msg.Binary {
		r.handleChunk(msg.Data)
		return
	}

	c, err := DecodeControl(msg.Data)
	if err != nil {
		r.log.WithError(err).Debug("Dropping malformed control frame")
		return
	}

	switch c.Type {
	case ControlFileStart:
		r.handleStart(c)
	case ControlFileEnd:
		r.handleEnd(c)
	case ControlPing:
		r.lane.Send(rtc.LaneMessage{Data: EncodeControl(Control{Type: ControlPong})})
	case ControlPong:
		// Heartbeat reply, nothing to do on this side.
	}
}

func (r *Receiver) handleStart(c Control) {
	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		r.log.WithField("file", c.Name).Warn("Rejecting concurrent transfer")
		r.fail(c, ErrTransferBusy)
		return
	}

	sink, err := SelectSink(r.factory, c.Name, c.MimeType, c.Size)
	if err != nil {
		r.mu.Unlock()
		r.fail(c, err)
		return
	}

	r.active = &inflight{meta: c, sink: sink}
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"file": c.Name,
		"size": c.Size,
	}).Info("Incoming transfer started")
}

func (r *Receiver) handleChunk(data []byte) {
	r.mu.Lock()
	tr := r.active
	if tr == nil {
		r.mu.Unlock()
		r.log.Debug("Dropping chunk with no transfer in flight")
		return
	}

	if err := tr.sink.Write(data); err != nil {
		r.active = nil
		r.mu.Unlock()
		tr.sink.Abort()
		r.fail(tr.meta, err)
		return
	}
	tr.received += int64(len(data))
	received, total, name := tr.received, tr.meta.Size, tr.meta.Name
	r.mu.Unlock()

	if r.onProgress != nil {
		r.onProgress(name, received, total)
	}
}

func (r *Receiver) handleEnd(c Control) {
	r.mu.Lock()
	tr := r.active
	if tr == nil || tr.meta.FileID != c.FileID {
		r.mu.Unlock()
		r.log.WithField("fileId", c.FileID).Debug("Dropping file-end with no matching transfer")
		return
	}
	r.active = nil
	r.mu.Unlock()

	payload, err := tr.sink.Finalize()
	if err != nil {
		r.fail(tr.meta, err)
		return
	}

	r.log.WithFields(logrus.Fields{
		"file":  tr.meta.Name,
		"bytes": tr.received,
	}).Info("Transfer complete")

	if r.onComplete != nil {
		r.onComplete(Result{
			FileID:   tr.meta.FileID,
			PeerID:   r.peerID,
			Name:     tr.meta.Name,
			Size:     tr.received,
			MimeType: tr.meta.MimeType,
			Path:     payload.Path,
			Data:     payload.Data,
		})
	}
}

func (r *Receiver) fail(meta Control, err error) {
	r.log.WithField("fileId", meta.FileID).WithError(err).Warn("Transfer failed")
	if r.onError != nil {
		r.onError(meta.FileID, meta.Name, err)
	}
}
