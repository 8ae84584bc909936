package transfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker(t *testing.T) {
	data := make([]byte, 2*DefaultChunkSize+100)
	c := NewChunker(data, DefaultChunkSize)

	first, ok := c.Next()
	require.True(t, ok)
	assert.Len(t, first, DefaultChunkSize)

	second, ok := c.Next()
	require.True(t, ok)
	assert.Len(t, second, DefaultChunkSize)

	tail, ok := c.Next()
	require.True(t, ok)
	assert.Len(t, tail, 100)
	assert.Zero(t, c.Remaining())

	_, ok = c.Next()
	assert.False(t, ok)
}

func TestMemorySinkCap(t *testing.T) {
	_, err := NewMemorySink(MemoryCap + 1)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	sink, err := NewMemorySink(10)
	require.NoError(t, err)
	require.NoError(t, sink.Write([]byte("hello ")))
	require.NoError(t, sink.Write([]byte("world")))

	payload, err := sink.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(payload.Data))
	assert.Empty(t, payload.Path)
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	sink, err := NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Write([]byte("persisted")))

	payload, err := sink.Finalize()
	require.NoError(t, err)
	assert.Equal(t, path, payload.Path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(data))
}

func TestFileSinkAbortRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	sink, err := NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Write([]byte("partial")))
	sink.Abort()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDirFactorySanitizesAndAvoidsCollisions(t *testing.T) {
	dir := t.TempDir()
	f := DirFactory{Dir: dir}

	// A traversal attempt lands inside the download dir.
	sink, err := f.NewSink("../../etc/passwd", "", 1)
	require.NoError(t, err)
	payload, err := sink.Finalize()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "passwd"), payload.Path)

	// A second file with the same name gets a counter suffix.
	sink, err = f.NewSink("passwd", "", 1)
	require.NoError(t, err)
	payload, err = sink.Finalize()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "passwd(1)"), payload.Path)
}

func TestSelectSink(t *testing.T) {
	dir := t.TempDir()

	// Small files stay in memory even when a factory exists.
	sink, err := SelectSink(DirFactory{Dir: dir}, "small.bin", "", 10)
	require.NoError(t, err)
	_, ok := sink.(*MemorySink)
	assert.True(t, ok)

	// Large files stream to disk when they can.
	sink, err = SelectSink(DirFactory{Dir: dir}, "big.bin", "", StreamThreshold+1)
	require.NoError(t, err)
	fs, ok := sink.(*FileSink)
	require.True(t, ok)
	fs.Abort()

	// Without a factory, anything over the cap is refused outright.
	_, err = SelectSink(nil, "huge.bin", "", MemoryCap+1)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestDecodeControlValidation(t *testing.T) {
	testCases := []struct {
		name string
		data string
		ok   bool
	}{
		{"file-start", `{"type":"file-start","fileId":"f1","name":"a.bin","size":10}`, true},
		{"file-start without id", `{"type":"file-start","name":"a.bin","size":10}`, false},
		{"file-start negative size", `{"type":"file-start","fileId":"f1","name":"a","size":-1}`, false},
		{"file-end", `{"type":"file-end","fileId":"f1"}`, true},
		{"file-end without id", `{"type":"file-end"}`, false},
		{"ping", `{"type":"ping"}`, true},
		{"unknown", `{"type":"warp"}`, false},
		{"garbage", `not json`, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeControl([]byte(tc.data))
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
