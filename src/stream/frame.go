package stream

import (
	"errors"
	"fmt"
	"io"
)

// NotRead is the frame length when the source had nothing pending.
const NotRead = -1

// Frame holds the bytes moved from one source in one iteration.
type Frame struct {
	buf [FrameSize]byte
	n   int
}

func NewFrame() *Frame {
	return &Frame{n: NotRead}
}

// Fill reads at most FrameSize bytes from s if the last poll reported it
// readable. A zero length afterwards means end-of-stream.
func (f *Frame) Fill(s *Stream) error {
	f.n = NotRead
	if !s.Active() || !s.Readable() || s.Failed() {
		return nil
	}
	n, err := s.Read(f.buf[:])
	switch {
	case errors.Is(err, io.EOF):
		f.n = 0
	case err != nil:
		return fmt.Errorf("read %s: %w", s.Role(), err)
	case n > 0:
		f.n = n
	}
	return nil
}

// Len returns the frame length: positive, 0 for end-of-stream or NotRead.
func (f *Frame) Len() int { return f.n }

// EOF reports that the source signalled end-of-stream.
func (f *Frame) EOF() bool { return f.n == 0 }

// Bytes returns the payload, nil unless the length is positive.
func (f *Frame) Bytes() []byte {
	if f.n <= 0 {
		return nil
	}
	return f.buf[:f.n]
}
