package transfer

// DefaultChunkSize is the fixed chunk size used for binary frames. Small
// enough to keep per-message overhead and buffering granular, large enough
// to amortize the per-message cost of the data channel.
const DefaultChunkSize = 16 * 1024

// Chunker slices a file payload into fixed-size chunks. The final chunk may
// be short.
type Chunker struct {
	data []byte
	size int
	off  int
}

// NewChunker returns a chunker over data. A non-positive size falls back to
// DefaultChunkSize.
func NewChunker(data []byte, size int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Chunker{data: data, size: size}
}

// Next returns the next chunk, or false when the payload is exhausted.
func (c *Chunker) Next() ([]byte, bool) {
	if c.off >= len(c.data) {
		return nil, false
	}
	end := c.off + c.size
	if end > len(c.data) {
		end = len(c.data)
	}
	chunk := c.data[c.off:end]
	c.off = end
	return chunk, true
}

// Remaining reports how many bytes have not been handed out yet.
func (c *Chunker) Remaining() int {
	return len(c.data) - c.off
}
