package client

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DDME36/PurrDrop/internal/history"
	"github.com/DDME36/PurrDrop/internal/rtc"
	"github.com/DDME36/PurrDrop/internal/signal"
	"github.com/DDME36/PurrDrop/internal/store"
	"github.com/DDME36/PurrDrop/internal/transfer"
	"github.com/DDME36/PurrDrop/internal/wakelock"
)

type stubSender struct{ err error }

func (s *stubSender) OnProgress(transfer.Progress) {}

func (s *stubSender) Send(ctx context.Context, peerID, fileID string, meta signal.FileMeta, data []byte) error {
	return s.err
}

// A send that exhausts its attempts must not leave the dialed session
// tracked, and the failure still lands in the history.
func TestFailedSendDropsSessionAndRecords(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite3"))
	require.NoError(t, err)
	hist, err := history.NewStore(db)
	require.NoError(t, err)

	neg := rtc.NewNegotiator(log, func(signal.Message) error { return nil })
	_, err = neg.Dial("peer-1")
	require.NoError(t, err)
	_, tracked := neg.Session("peer-1")
	require.True(t, tracked)

	c := &Client{
		cfg:    Config{History: hist},
		log:    log,
		neg:    neg,
		sender: &stubSender{err: errors.New("lane never opened")},
		wake:   wakelock.New(log),
		peers:  make(map[string]signal.PeerInfo),
		events: make(chan Event, 8),
		done:   make(chan struct{}),
	}

	c.runSend(&outbound{
		fileID: "f1",
		peerID: "peer-1",
		meta:   signal.FileMeta{Name: "cat.png", Size: 4},
		data:   []byte("meow"),
	})

	_, tracked = neg.Session("peer-1")
	assert.False(t, tracked, "a failed send must tear its session down")

	sent, ok := (<-c.events).(SentEvent)
	require.True(t, ok)
	assert.Error(t, sent.Err)

	recs, err := hist.Recent(1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "cat.png", recs[0].FileName)
	assert.Equal(t, history.DirectionSent, recs[0].Direction)
	assert.False(t, recs[0].Success)
}
