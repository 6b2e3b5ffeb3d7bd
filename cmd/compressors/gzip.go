package compressors

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// GzipCompressor handles gzip compression
type GzipCompressor struct{}

// NewGzipCompressor creates a new gzip compressor
func NewGzipCompressor() *GzipCompressor {
	return &GzipCompressor{}
}

// Compress compresses data using gzip
func (c *GzipCompressor) Compress(data []byte, level int) ([]byte, error) {
	var buffer bytes.Buffer

	if level < 1 || level > 9 {
		level = gzip.DefaultCompression
	}

	writer, err := gzip.NewWriterLevel(&buffer, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buffer.Bytes(), nil
}

// NewReader returns a streaming gzip decompressor for r
func (c *GzipCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	reader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	return reader, nil
}

// Extension returns the file extension for gzip compression
func (c *GzipCompressor) Extension() string { return ".gz" }

// DefaultLevel returns the default compression level for gzip
func (c *GzipCompressor) DefaultLevel() int { return 6 }
