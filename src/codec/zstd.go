package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// maxZstdDecoded caps what the decoder will ever hold, well above any
// frame the relay sends.
const maxZstdDecoded = 1 << 16

// Zstd encodes every chunk as one complete single-segment zstd frame, which
// always records its decoded size.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewZstd() (*Zstd, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
		zstd.WithZeroFrames(true),
		zstd.WithSingleSegment(true),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxZstdDecoded),
	)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Zstd{enc: enc, dec: dec}, nil
}

func (z *Zstd) Name() string { return "zstd" }

func (z *Zstd) Compress(dst, src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, dst), nil
}

// Decompress checks the frame header before decoding anything, so memory
// use is bounded by limit. The decoded length must match the header exactly;
// a second frame behind the first makes it longer.
func (z *Zstd) Decompress(dst, src []byte, limit int) ([]byte, error) {
	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return dst, fmt.Errorf("%w: zstd header: %v", ErrCorrupt, err)
	}
	if h.Skippable || !h.SingleSegment || !h.HasFCS {
		return dst, fmt.Errorf("%w: zstd frame is not a single segment", ErrCorrupt)
	}
	if h.FrameContentSize > uint64(limit) {
		return dst, fmt.Errorf("zstd frame of %d bytes: %w", h.FrameContentSize, ErrTooLarge)
	}

	start := len(dst)
	out, err := z.dec.DecodeAll(src, dst)
	if err != nil {
		return dst[:start], fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
	}
	if uint64(len(out)-start) != h.FrameContentSize {
		return dst[:start], fmt.Errorf("%w: zstd decoded %d bytes, frame declares %d",
			ErrCorrupt, len(out)-start, h.FrameContentSize)
	}
	return out, nil
}

func (z *Zstd) Close() error {
	z.dec.Close()
	return z.enc.Close()
}
