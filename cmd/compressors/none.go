package compressors

import "io"

// NoneCompressor passes data through unchanged.
type NoneCompressor struct{}

// NewNoneCompressor creates a pass-through compressor
func NewNoneCompressor() *NoneCompressor {
	return &NoneCompressor{}
}

// Compress returns data unchanged
func (c *NoneCompressor) Compress(data []byte, _ int) ([]byte, error) {
	return data, nil
}

// NewReader returns r itself
func (c *NoneCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// Extension returns an empty extension
func (c *NoneCompressor) Extension() string { return "" }

// DefaultLevel returns 0; the level is ignored
func (c *NoneCompressor) DefaultLevel() int { return 0 }
