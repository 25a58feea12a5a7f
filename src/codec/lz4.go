package codec

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/pierrec/lz4/v4"
)

// Leading tag byte of an lz4 chunk. lz4 block compression gives up on
// incompressible input, so such chunks travel stored.
const (
	lz4Stored byte = 0
	lz4Block  byte = 1
)

// lz4Header is the tag byte followed by the big-endian payload length. A
// block carries no end marker of its own, so the length is what tells one
// chunk from two.
const lz4Header = 3

// LZ4 encodes every chunk as a tagged lz4 block.
type LZ4 struct{}

func NewLZ4() *LZ4 { return &LZ4{} }

func (LZ4) Name() string { return "lz4" }

func (LZ4) Compress(dst, src []byte) ([]byte, error) {
	if len(src) > 0xffff {
		return dst, fmt.Errorf("lz4 compress %d bytes: %w", len(src), ErrTooLarge)
	}
	start := len(dst)
	bound := lz4.CompressBlockBound(len(src))
	dst = slices.Grow(dst, lz4Header+bound)
	dst = dst[:start+lz4Header+bound]

	n, err := lz4.CompressBlock(src, dst[start+lz4Header:], nil)
	if err != nil {
		return dst[:start], fmt.Errorf("lz4 compress: %w", err)
	}
	tag := lz4Block
	if n == 0 || n >= len(src) {
		tag = lz4Stored
		n = copy(dst[start+lz4Header:], src)
	}
	dst[start] = tag
	binary.BigEndian.PutUint16(dst[start+1:], uint16(n))
	return dst[:start+lz4Header+n], nil
}

func (LZ4) Decompress(dst, src []byte, limit int) ([]byte, error) {
	if len(src) < lz4Header {
		return dst, fmt.Errorf("%w: short lz4 chunk of %d bytes", ErrCorrupt, len(src))
	}
	payload := src[lz4Header:]
	if size := int(binary.BigEndian.Uint16(src[1:])); size != len(payload) {
		return dst, fmt.Errorf("%w: lz4 chunk declares %d bytes, carries %d", ErrCorrupt, size, len(payload))
	}
	switch src[0] {
	case lz4Stored:
		if len(payload) > limit {
			return dst, ErrTooLarge
		}
		return append(dst, payload...), nil
	case lz4Block:
		start := len(dst)
		dst = slices.Grow(dst, limit)
		n, err := lz4.UncompressBlock(payload, dst[start:start+limit])
		if err != nil {
			return dst[:start], fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		return dst[:start+n], nil
	default:
		return dst, fmt.Errorf("%w: unknown lz4 chunk tag %d", ErrCorrupt, src[0])
	}
}

func (LZ4) Close() error { return nil }
