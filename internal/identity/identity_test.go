package identity

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DDME36/PurrDrop/internal/store"
)

func TestGenerate(t *testing.T) {
	p := Generate()
	assert.NotEmpty(t, p.PeerID)
	assert.NotEmpty(t, p.Name)
	assert.NotEmpty(t, p.Emoji)
	assert.NotEmpty(t, p.Color)

	// Two profiles never share a peer id.
	assert.NotEqual(t, p.PeerID, Generate().PeerID)
}

func TestStorePersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite3")

	db, err := store.Open(path)
	require.NoError(t, err)
	s, err := NewStore(db)
	require.NoError(t, err)

	first, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.Rename(&first, "Custom Name"))
	require.NoError(t, s.SetEmoji(&first, "😻"))

	// A fresh handle over the same file sees the same identity.
	db2, err := store.Open(path)
	require.NoError(t, err)
	s2, err := NewStore(db2)
	require.NoError(t, err)

	second, err := s2.Load()
	require.NoError(t, err)
	assert.Equal(t, first.PeerID, second.PeerID)
	assert.Equal(t, "Custom Name", second.Name)
	assert.Equal(t, "😻", second.Emoji)
	assert.Equal(t, first.Color, second.Color)
}

func TestLoadBackfillsMissingPeerID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite3")

	db, err := store.Open(path)
	require.NoError(t, err)
	s, err := NewStore(db)
	require.NoError(t, err)

	// A row written before peer ids were persisted.
	old := Profile{Name: "Mellow Manx", Emoji: "🐈", Color: "#56b6c2"}
	require.NoError(t, db.Create(&old).Error)

	p, err := s.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, p.PeerID)

	again, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, p.PeerID, again.PeerID)
}

func TestPeerInfo(t *testing.T) {
	p := Generate()
	info := p.PeerInfo("peer-1")
	assert.Equal(t, "peer-1", info.ID)
	assert.Equal(t, p.Name, info.Name)
	assert.Equal(t, p.Emoji, info.Avatar.Emoji)
	assert.Equal(t, "cat", info.Avatar.Kind)
	assert.NotEmpty(t, info.Device)
}
