package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MemoryCap bounds the in-memory sink. Files larger than this are
	// rejected before any bytes are accepted unless a streaming sink is
	// available.
	MemoryCap = 500 << 20

	// StreamThreshold is the size above which the receiver prefers a
	// disk-streaming sink when one can be created.
	StreamThreshold = 100 << 20
)

// ErrFileTooLarge is reported when an incoming file cannot fit the
// in-memory sink and no streaming sink is available.
var ErrFileTooLarge = errors.New("file exceeds the in-memory receive limit")

// Payload is the finalized output of a sink. Exactly one of Path and Data
// is set, depending on the sink kind.
type Payload struct {
	Path string
	Data []byte
}

// Sink accepts the ordered chunk bytes of one incoming file.
type Sink interface {
	// Write appends one chunk. An error means the transfer must be
	// aborted; the sink is no longer usable.
	Write(p []byte) error

	// Finalize completes the file and returns its payload.
	Finalize() (Payload, error)

	// Abort discards everything written so far.
	Abort()
}

// SinkFactory creates streaming sinks for incoming files. A factory is a
// capability: receivers without one buffer in memory instead.
type SinkFactory interface {
	NewSink(name, mimeType string, size int64) (Sink, error)
}

// SelectSink picks a sink for an incoming file. Large files go to the
// streaming factory when present; factory failure falls back to memory
// rather than failing the transfer. The memory fallback rejects files over
// MemoryCap before accepting any bytes.
func SelectSink(factory SinkFactory, name, mimeType string, size int64) (Sink, error) {
	if factory != nil && size > StreamThreshold {
		if s, err := factory.NewSink(name, mimeType, size); err == nil {
			return s, nil
		}
	}
	return NewMemorySink(size)
}

// --- memory sink ---

// MemorySink buffers the whole file in memory, bounded by MemoryCap.
type MemorySink struct {
	chunks   [][]byte
	received int64
	expected int64
}

// NewMemorySink returns a memory sink for a file of the given size, or
// ErrFileTooLarge when the size already exceeds the cap.
func NewMemorySink(expected int64) (*MemorySink, error) {
	if expected > MemoryCap {
		return nil, ErrFileTooLarge
	}
	return &MemorySink{expected: expected}, nil
}

func (m *MemorySink) Write(p []byte) error {
	if m.received+int64(len(p)) > MemoryCap {
		return ErrFileTooLarge
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	m.chunks = append(m.chunks, buf)
	m.received += int64(len(p))
	return nil
}

func (m *MemorySink) Finalize() (Payload, error) {
	data := make([]byte, 0, m.received)
	for _, c := range m.chunks {
		data = append(data, c...)
	}
	m.chunks = nil
	return Payload{Data: data}, nil
}

func (m *MemorySink) Abort() {
	m.chunks = nil
	m.received = 0
}

// --- file sink ---

// FileSink streams chunks straight to a file on disk.
type FileSink struct {
	f    *os.File
	path string
}

// NewFileSink creates the destination file and returns a sink over it.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create destination file: %w", err)
	}
	return &FileSink{f: f, path: path}, nil
}

func (s *FileSink) Write(p []byte) error {
	if _, err := s.f.Write(p); err != nil {
		return fmt.Errorf("write destination file: %w", err)
	}
	return nil
}

func (s *FileSink) Finalize() (Payload, error) {
	if err := s.f.Close(); err != nil {
		return Payload{}, fmt.Errorf("close destination file: %w", err)
	}
	return Payload{Path: s.path}, nil
}

func (s *FileSink) Abort() {
	s.f.Close()
	os.Remove(s.path)
}

// DirFactory creates file sinks inside a fixed download directory.
type DirFactory struct {
	Dir string
}

func (d DirFactory) NewSink(name, _ string, _ int64) (Sink, error) {
	path, err := d.destination(name)
	if err != nil {
		return nil, err
	}
	return NewFileSink(path)
}

// destination sanitizes the remote-supplied name and avoids clobbering an
// existing file by suffixing a counter.
func (d DirFactory) destination(name string) (string, error) {
	base := filepath.Base(filepath.Clean(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "download"
	}

	path := filepath.Join(d.Dir, base)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		} else if err != nil {
			return "", fmt.Errorf("stat destination: %w", err)
		}
		path = filepath.Join(d.Dir, fmt.Sprintf("%s(%d)%s", stem, i, ext))
	}
}
