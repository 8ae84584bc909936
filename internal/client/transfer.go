package client

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/DDME36/PurrDrop/internal/history"
	"github.com/DDME36/PurrDrop/internal/rtc"
	"github.com/DDME36/PurrDrop/internal/signal"
	"github.com/DDME36/PurrDrop/internal/transfer"
)

var errQueueFull = errors.New("transfer queue is full")

// fileSender is the outbound half of the transfer engine.
type fileSender interface {
	OnProgress(fn transfer.Progress)
	Send(ctx context.Context, peerID, fileID string, meta signal.FileMeta, data []byte) error
}

// laneDialer adapts the negotiator to the transfer engine: each send
// attempt dials a fresh session and waits for its lane.
type laneDialer struct {
	neg *rtc.Negotiator
}

func (d laneDialer) Dial(ctx context.Context, peerID string) (transfer.Lane, error) {
	session, err := d.neg.Dial(peerID)
	if err != nil {
		return nil, err
	}
	lane, err := session.Lane(ctx)
	if err != nil {
		d.neg.Drop(peerID)
		return nil, err
	}
	return lane, nil
}

// transferLoop drains the outbound queue, one transfer at a time.
func (c *Client) transferLoop() {
	for {
		select {
		case out := <-c.sendQueue:
			c.runSend(out)
		case <-c.done:
			return
		}
	}
}

func (c *Client) runSend(out *outbound) {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancelSend = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		c.cancelSend = nil
		c.mu.Unlock()
	}()

	c.wake.Acquire()
	defer c.wake.Release()

	c.sender.OnProgress(func(transferred, total int64) {
		c.emitDroppable(ProgressEvent{
			FileID:      out.fileID,
			Name:        out.meta.Name,
			Direction:   history.DirectionSent,
			Transferred: transferred,
			Total:       total,
		})
	})

	err := c.sender.Send(ctx, out.peerID, out.fileID, out.meta, out.data)
	if err == nil {
		if session, ok := c.neg.Session(out.peerID); ok {
			c.log.WithFields(logrus.Fields{
				"peer": out.peerID,
				"path": session.ActivePath(),
			}).Info("Transfer delivered")
		}
	} else {
		// A failed or cancelled send leaves its session behind; tear it
		// down rather than wait for the next dial to replace it.
		c.neg.Drop(out.peerID)
	}
	c.record(&history.Record{
		FileID:    out.fileID,
		PeerName:  c.peerName(out.peerID),
		FileName:  out.meta.Name,
		Size:      out.meta.Size,
		Direction: history.DirectionSent,
		Success:   err == nil,
	})
	c.emit(SentEvent{
		FileID: out.fileID,
		PeerID: out.peerID,
		Name:   out.meta.Name,
		Size:   out.meta.Size,
		Err:    err,
	})
}

// receive runs one incoming transfer session to completion.
func (c *Client) receive(session *rtc.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), transfer.OpenTimeout)
	defer cancel()

	lane, err := session.Lane(ctx)
	if err != nil {
		c.log.WithError(err).WithField("peer", session.PeerID()).Warn("Incoming lane never arrived")
		c.neg.Drop(session.PeerID())
		return
	}

	c.wake.Acquire()
	defer c.wake.Release()

	recv := transfer.NewReceiver(lane, session.PeerID(), c.cfg.Sinks, c.log)
	recv.OnProgress(func(name string, received, total int64) {
		c.emitDroppable(ProgressEvent{
			Name:        name,
			Direction:   history.DirectionReceived,
			Transferred: received,
			Total:       total,
		})
	})
	recv.OnComplete(func(res transfer.Result) {
		c.record(&history.Record{
			FileID:    res.FileID,
			PeerName:  c.peerName(res.PeerID),
			FileName:  res.Name,
			Size:      res.Size,
			Direction: history.DirectionReceived,
			Path:      res.Path,
			Success:   true,
		})
		c.emit(ReceivedEvent{Result: res})
	})
	recv.OnError(func(fileID, name string, err error) {
		c.record(&history.Record{
			FileID:    fileID,
			PeerName:  c.peerName(session.PeerID()),
			FileName:  name,
			Direction: history.DirectionReceived,
		})
		c.emit(ReceiveErrorEvent{PeerID: session.PeerID(), FileID: fileID, Err: err})
	})
	recv.Start()

	select {
	case <-lane.Done():
	case <-c.done:
	}
}

func (c *Client) peerName(peerID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.peers[peerID]; ok {
		return p.Name
	}
	return peerID
}

func (c *Client) record(rec *history.Record) {
	if c.cfg.History == nil {
		return
	}
	if err := c.cfg.History.Add(rec); err != nil {
		c.log.WithError(err).Warn("Could not record transfer history")
	}
}
