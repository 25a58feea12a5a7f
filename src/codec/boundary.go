package codec

import (
	"fmt"
)

// Boundary applies a Codec to relay frames. Its scratch buffers are
// allocated once, sized to one frame, and reused by every call; the slices
// returned by Encode and Decode are only valid until the next call.
type Boundary struct {
	codec  Codec
	frame  int
	encBuf []byte
	decBuf []byte
}

func NewBoundary(c Codec, frameSize int) *Boundary {
	return &Boundary{
		codec:  c,
		frame:  frameSize,
		encBuf: make([]byte, 0, MaxEncodedLen(frameSize)),
		decBuf: make([]byte, 0, frameSize+1),
	}
}

func (b *Boundary) Codec() Codec { return b.codec }

// WireSize is the receive buffer capacity needed to hold one encoded frame.
func (b *Boundary) WireSize() int { return MaxEncodedLen(b.frame) }

// Encode compresses p, at most one frame, into a single wire chunk.
func (b *Boundary) Encode(p []byte) ([]byte, error) {
	if len(p) > b.frame {
		return nil, fmt.Errorf("encode %d bytes: %w", len(p), ErrTooLarge)
	}
	out, err := b.codec.Compress(b.encBuf[:0], p)
	if err != nil {
		return nil, err
	}
	if len(out) > b.WireSize() {
		return nil, fmt.Errorf("%s produced %d bytes for a %d byte frame: %w",
			b.codec.Name(), len(out), len(p), ErrTooLarge)
	}
	return out, nil
}

// Decode reverses exactly one Encode call, yielding at most rawSize bytes
// (never more than one frame).
func (b *Boundary) Decode(p []byte, rawSize int) ([]byte, error) {
	if rawSize > b.frame {
		rawSize = b.frame
	}
	out, err := b.codec.Decompress(b.decBuf[:0], p, rawSize)
	if err != nil {
		return nil, fmt.Errorf("%s decode: %w", b.codec.Name(), err)
	}
	return out, nil
}

func (b *Boundary) Close() error {
	return b.codec.Close()
}
