package helpers

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// Transcript appends every chunk a client sends or receives to a log file:
//
//	SENT <n> bytes: <payload>\n
//	RECEIVED <n> bytes: <payload>\n
//
// The payload is the logical one, before compression or after
// decompression.
type Transcript struct {
	w   io.Writer
	buf []byte
}

func NewTranscript(w io.Writer) *Transcript {
	return &Transcript{w: w}
}

// OpenTranscript opens path for appending, creating it if needed.
func OpenTranscript(path string) (*Transcript, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("open log %s: %w", path, err)
	}
	return NewTranscript(f), f, nil
}

func (t *Transcript) Sent(p []byte) error { return t.record("SENT", p) }

func (t *Transcript) Received(p []byte) error { return t.record("RECEIVED", p) }

func (t *Transcript) record(direction string, p []byte) error {
	t.buf = append(t.buf[:0], direction...)
	t.buf = append(t.buf, ' ')
	t.buf = strconv.AppendInt(t.buf, int64(len(p)), 10)
	t.buf = append(t.buf, " bytes: "...)
	t.buf = append(t.buf, p...)
	t.buf = append(t.buf, '\n')
	if _, err := t.w.Write(t.buf); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
