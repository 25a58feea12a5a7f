package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/ajpfahnl/Twoface/src/logger"
	"github.com/ajpfahnl/Twoface/src/stream"
	"github.com/google/uuid"
)

// Mode selects which streams a session relays between.
type Mode int

const (
	// Client relays a local terminal to the network.
	Client Mode = iota
	// ServerEcho writes everything received back to the network.
	ServerEcho
	// ServerShell relays the network to a subprocess.
	ServerShell
)

func (m Mode) String() string {
	switch m {
	case Client:
		return "client"
	case ServerEcho:
		return "server-echo"
	case ServerShell:
		return "server-shell"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Interrupter delivers an interrupt to a running subprocess.
type Interrupter interface {
	Interrupt() error
}

// Recorder receives the logical payload of every chunk the session sends
// to or receives from the network.
type Recorder interface {
	Sent(p []byte) error
	Received(p []byte) error
}

// Session is the state of one relay run. It is mutated only by Run, apart
// from the broken pipe flag which NotifyBrokenPipe may set from any
// goroutine.
type Session struct {
	ID         string
	Mode       Mode
	Compressed bool

	Keyboard *stream.Stream
	Display  *stream.Stream
	Network  *stream.Stream
	ShellIn  *stream.Stream
	ShellOut *stream.Stream
	Process  Interrupter

	// Recorder is optional.
	Recorder Recorder
	Logger   *slog.Logger

	escapeRequested   bool
	shutdownRequested bool
	brokenPipe        atomic.Bool

	// scratch buffers reused every iteration
	echo    []byte
	out     []byte
	display []byte
}

func newSession(mode Mode) *Session {
	id := uuid.NewString()
	return &Session{
		ID:      id,
		Mode:    mode,
		Logger:  slog.Default().With("session", id, "mode", mode.String()),
		echo:    make([]byte, 0, 2*stream.FrameSize),
		out:     make([]byte, 0, stream.FrameSize),
		display: make([]byte, 0, 4*stream.FrameSize),
	}
}

// NewClientSession relays keyboard and display to network.
func NewClientSession(keyboard, display, network *stream.Stream) *Session {
	s := newSession(Client)
	s.Keyboard = keyboard
	s.Display = display
	s.Network = network
	return s
}

// NewEchoSession echoes network back to itself.
func NewEchoSession(network *stream.Stream) *Session {
	s := newSession(ServerEcho)
	s.Network = network
	return s
}

// NewShellSession relays network to a subprocess reading shellIn and
// writing shellOut.
func NewShellSession(network, shellIn, shellOut *stream.Stream, process Interrupter) *Session {
	s := newSession(ServerShell)
	s.Network = network
	s.ShellIn = shellIn
	s.ShellOut = shellOut
	s.Process = process
	return s
}

// NotifyBrokenPipe records that a peer disappeared. The loop checks the
// flag once per iteration and shuts the session down.
func (s *Session) NotifyBrokenPipe() {
	s.brokenPipe.Store(true)
}

// EscapeRequested reports whether the client typed ^D.
func (s *Session) EscapeRequested() bool { return s.escapeRequested }

// WatchBrokenPipe turns SIGPIPE into NotifyBrokenPipe until stop is called.
func (s *Session) WatchBrokenPipe() (stop func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGPIPE)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-signals:
				s.NotifyBrokenPipe()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(signals)
		close(done)
	}
}

func (s *Session) validate() error {
	var missing []string
	need := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name)
		}
	}
	need("network", s.Network != nil)
	switch s.Mode {
	case Client:
		need("keyboard", s.Keyboard != nil)
		need("display", s.Display != nil)
	case ServerEcho:
	case ServerShell:
		need("subprocess input", s.ShellIn != nil)
		need("subprocess output", s.ShellOut != nil)
		need("subprocess", s.Process != nil)
	default:
		return fmt.Errorf("unknown session mode %v", s.Mode)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s session missing %v", s.Mode, missing)
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	return nil
}

// peerWrite writes p to dst. A vanished peer raises the broken pipe flag
// instead of failing.
func (s *Session) peerWrite(dst *stream.Stream, p []byte) (bool, error) {
	if _, err := dst.Write(p); err != nil {
		if stream.PeerGone(err) {
			s.Logger.Debug("peer gone on write", "stream", dst.Role().String(), logger.Error(err))
			s.NotifyBrokenPipe()
			return false, nil
		}
		return false, fmt.Errorf("write %s: %w", dst.Role(), err)
	}
	return true, nil
}

// peerFill fills f from src, treating a reset connection as broken pipe.
func (s *Session) peerFill(f *stream.Frame, src *stream.Stream) error {
	err := f.Fill(src)
	if err != nil && stream.PeerGone(err) {
		s.Logger.Debug("peer gone on read", "stream", src.Role().String(), logger.Error(err))
		s.NotifyBrokenPipe()
		return nil
	}
	return err
}

func ended(f *stream.Frame, s *stream.Stream) bool {
	return f.EOF() || s.HungUp() || s.Failed()
}

// closeSubprocess is the shutdown sequence of a shell session: close
// whichever subprocess streams are still open. The network stream belongs
// to the caller.
func (s *Session) closeSubprocess() error {
	return errors.Join(s.ShellIn.Close(), s.ShellOut.Close())
}
