// Package codec is the compression boundary of a relay session. Every
// payload chunk is compressed on its own: a compressed unit never depends on
// a previous one, so each wire write can be decoded by itself.
package codec

import (
	"errors"
	"fmt"
	"io"
	"slices"
)

var (
	// ErrCorrupt is returned when a chunk cannot be decoded.
	ErrCorrupt = errors.New("malformed compressed chunk")
	// ErrTooLarge is returned when a chunk does not fit the frame bounds.
	ErrTooLarge = errors.New("chunk exceeds frame capacity")
)

// Overhead bounds how much a codec may grow an incompressible frame.
const Overhead = 64

// MaxEncodedLen is the largest wire chunk produced for n raw bytes.
func MaxEncodedLen(n int) int { return n + Overhead }

// Codec compresses and decompresses self-contained chunks. Implementations
// keep no dictionary or stream state between calls.
type Codec interface {
	Name() string
	// Compress appends one complete compressed unit for src to dst.
	Compress(dst, src []byte) ([]byte, error)
	// Decompress appends the decoded form of exactly one unit to dst. It
	// fails with ErrTooLarge if the unit decodes to more than limit bytes.
	Decompress(dst, src []byte, limit int) ([]byte, error)
	Close() error
}

// Names lists the codecs accepted by New.
var Names = []string{"zlib", "zstd", "lz4"}

// Check reports whether New accepts name.
func Check(name string) error {
	if !slices.Contains(Names, name) {
		return fmt.Errorf("unknown codec %q (want one of %v)", name, Names)
	}
	return nil
}

// New returns the codec registered under name.
func New(name string) (Codec, error) {
	switch name {
	case "zlib":
		return NewZlib(), nil
	case "zstd":
		return NewZstd()
	case "lz4":
		return NewLZ4(), nil
	default:
		return nil, Check(name)
	}
}

// readBounded appends everything r yields to dst, allowing at most limit
// bytes.
func readBounded(dst []byte, r io.Reader, limit int) ([]byte, error) {
	start := len(dst)
	dst = slices.Grow(dst, limit+1)
	for {
		if len(dst)-start > limit {
			return dst[:start], ErrTooLarge
		}
		n, err := r.Read(dst[len(dst) : start+limit+1])
		dst = dst[:len(dst)+n]
		if errors.Is(err, io.EOF) {
			if len(dst)-start > limit {
				return dst[:start], ErrTooLarge
			}
			return dst, nil
		}
		if err != nil {
			return dst[:start], fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
}
