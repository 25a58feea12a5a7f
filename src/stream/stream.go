package stream

import (
	"errors"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/sys/unix"
)

// FrameSize is the capacity of one relay frame.
const FrameSize = 256 * 2

// Role identifies what a stream is connected to.
type Role int

const (
	Keyboard Role = iota
	Display
	Network
	SubprocessIn
	SubprocessOut
)

func (r Role) String() string {
	switch r {
	case Keyboard:
		return "keyboard"
	case Display:
		return "display"
	case Network:
		return "network"
	case SubprocessIn:
		return "subprocess-in"
	case SubprocessOut:
		return "subprocess-out"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Endpoint is a descriptor-backed reader/writer. *os.File satisfies it.
type Endpoint interface {
	io.ReadWriteCloser
	Fd() uintptr
}

// Stream is one endpoint of a relay session together with the readiness
// state reported by the last Poll.
type Stream struct {
	role    Role
	end     Endpoint
	fd      int
	open    bool
	revents int16
}

func New(role Role, end Endpoint) *Stream {
	return &Stream{
		role: role,
		end:  end,
		fd:   int(end.Fd()),
		open: true,
	}
}

func (s *Stream) Role() Role { return s.role }

// Active reports whether the stream is still open in this session.
func (s *Stream) Active() bool { return s.open }

func (s *Stream) Read(p []byte) (int, error) { return s.end.Read(p) }

func (s *Stream) Write(p []byte) (int, error) {
	if !s.open {
		return 0, fmt.Errorf("write %s: %w", s.role, io.ErrClosedPipe)
	}
	return s.end.Write(p)
}

// Close closes the underlying endpoint once and marks the stream inactive.
func (s *Stream) Close() error {
	if !s.open {
		return nil
	}
	s.open = false
	s.revents = 0
	if err := s.end.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.role, err)
	}
	return nil
}

// Readable reports pending input (or a pending end-of-stream) from the last poll.
func (s *Stream) Readable() bool {
	return s.revents&unix.POLLIN != 0
}

// HungUp reports a hangup with nothing left to drain.
func (s *Stream) HungUp() bool {
	return s.revents&unix.POLLHUP != 0 && s.revents&unix.POLLIN == 0
}

// Failed reports an error condition on the descriptor.
func (s *Stream) Failed() bool {
	return s.revents&(unix.POLLERR|unix.POLLNVAL) != 0
}

// PeerGone reports whether err means the other side of a pipe or socket
// disappeared. Such errors end a session; they are not failures.
func PeerGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
