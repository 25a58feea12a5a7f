package helpers

import (
	"io"
	"sync"
)

// Bytes with a meaning to the relay.
const (
	CR  byte = 0x0D
	LF  byte = 0x0A
	ETX byte = 0x03 // ^C, interrupt
	EOT byte = 0x04 // ^D, end of transmission
)

// AppendEcho appends c as the local terminal should show a typed byte:
// CR and LF both become CR LF.
func AppendEcho(dst []byte, c byte) []byte {
	if c == CR || c == LF {
		return append(dst, CR, LF)
	}
	return append(dst, c)
}

// AppendOutbound appends c as it travels to the remote side: CR becomes LF.
func AppendOutbound(dst []byte, c byte) []byte {
	if c == CR {
		return append(dst, LF)
	}
	return append(dst, c)
}

// AppendDisplay appends remote output src for a raw-mode terminal: each LF
// becomes CR LF, CR passes through.
func AppendDisplay(dst, src []byte) []byte {
	for _, c := range src {
		if c == LF {
			dst = append(dst, CR, LF)
			continue
		}
		dst = append(dst, c)
	}
	return dst
}

// DisplayWriter applies AppendDisplay to everything written through it, so
// plain text output stays readable on a terminal in raw mode.
type DisplayWriter struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

func NewDisplayWriter(w io.Writer) *DisplayWriter {
	return &DisplayWriter{w: w}
}

func (d *DisplayWriter) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = AppendDisplay(d.buf[:0], p)
	if _, err := d.w.Write(d.buf); err != nil {
		return 0, err
	}
	return len(p), nil
}
