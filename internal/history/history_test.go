package history

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DDME36/PurrDrop/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite3"))
	require.NoError(t, err)
	s, err := NewStore(db)
	require.NoError(t, err)
	return s
}

func TestAddAndRecent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Add(&Record{
		FileID:    "f1",
		PeerName:  "Sleepy Tabby",
		FileName:  "cat.png",
		Size:      1024,
		Direction: DirectionReceived,
		Path:      "/tmp/cat.png",
		Success:   true,
	}))
	require.NoError(t, s.Add(&Record{
		FileID:    "f2",
		PeerName:  "Dapper Manx",
		FileName:  "dog.png",
		Size:      2048,
		Direction: DirectionSent,
	}))

	recs, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// Newest first; a failed transfer keeps its record too.
	assert.Equal(t, "dog.png", recs[0].FileName)
	assert.False(t, recs[0].Success)
	assert.Equal(t, "cat.png", recs[1].FileName)
	assert.True(t, recs[1].Success)
	assert.NotZero(t, recs[0].CreatedAt)
}

func TestRetentionBound(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < maxRecords+10; i++ {
		require.NoError(t, s.Add(&Record{
			FileID:    fmt.Sprintf("f%d", i),
			FileName:  fmt.Sprintf("file%d.bin", i),
			Direction: DirectionSent,
		}))
	}

	recs, err := s.Recent(maxRecords)
	require.NoError(t, err)
	assert.Len(t, recs, maxRecords)

	// The oldest rows were trimmed.
	for _, r := range recs {
		assert.NotEqual(t, "f0", r.FileID)
	}
}
