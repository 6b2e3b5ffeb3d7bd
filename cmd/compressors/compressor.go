// Package compressors wraps the codecs exported datasets may be stored with.
package compressors

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnsupportedCompression is returned when an unsupported compression type is requested
var ErrUnsupportedCompression = errors.New("unsupported compression type")

// Compressor compresses whole payloads on export and decompresses streams on read.
type Compressor interface {
	Compress(data []byte, level int) ([]byte, error)

	// NewReader wraps r with a decompressing reader. Closing it does not close r.
	NewReader(r io.Reader) (io.ReadCloser, error)

	// Extension returns the file suffix (".zst", ".lz4", ".gz", or "" for none)
	Extension() string

	DefaultLevel() int
}

// GetCompressor returns the appropriate compressor based on the compression string
func GetCompressor(compression string) (Compressor, error) {
	switch compression {
	case "zstd":
		return NewZstdCompressor(), nil
	case "lz4":
		return NewLZ4Compressor(), nil
	case "gzip":
		return NewGzipCompressor(), nil
	case "none", "":
		return NewNoneCompressor(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, compression)
	}
}

var suffixes = map[string]string{
	".zst":  "zstd",
	".zstd": "zstd",
	".lz4":  "lz4",
	".gz":   "gzip",
}

// DetectCompression inspects a file name's last extension. It returns the
// compression name and the name with that extension stripped; files without
// a known suffix report "none" and the unchanged name.
func DetectCompression(name string) (string, string) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return "none", name
	}
	if c, ok := suffixes[strings.ToLower(name[i:])]; ok {
		return c, name[:i]
	}
	return "none", name
}
