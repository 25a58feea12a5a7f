// Package relay moves bytes between the streams of one session. A single
// goroutine polls every source, reads what is pending, translates line
// endings, acts on control characters and writes the result, then decides
// whether the session is over.
package relay

import (
	"fmt"

	"github.com/ajpfahnl/Twoface/src/helpers"
	"github.com/ajpfahnl/Twoface/src/stream"
)

// Run relays until a shutdown condition holds. It returns nil when the
// session ended normally and an error for any read, write, poll or decode
// failure.
func Run(s *Session) error {
	if err := s.validate(); err != nil {
		return err
	}
	s.Logger.Debug("relay started", "compressed", s.Compressed)

	var err error
	switch s.Mode {
	case Client:
		err = s.runClient()
	case ServerEcho:
		err = s.runEcho()
	case ServerShell:
		err = s.runShell()
	}
	if err != nil {
		return fmt.Errorf("%s relay: %w", s.Mode, err)
	}
	s.Logger.Debug("relay finished")
	return nil
}

func (s *Session) runClient() error {
	poller := stream.NewPoller(s.Keyboard, s.Network)
	keys := stream.NewFrame()
	remote := stream.NewFrame()

	for {
		if err := poller.Poll(); err != nil {
			return err
		}
		if err := keys.Fill(s.Keyboard); err != nil {
			return err
		}
		if err := s.peerFill(remote, s.Network); err != nil {
			return err
		}
		if s.Recorder != nil && remote.Len() > 0 {
			if err := s.Recorder.Received(remote.Bytes()); err != nil {
				return err
			}
		}

		s.echo, s.out = s.echo[:0], s.out[:0]
		for _, c := range keys.Bytes() {
			if c == helpers.EOT {
				s.escapeRequested = true
				continue
			}
			s.echo = helpers.AppendEcho(s.echo, c)
			s.out = helpers.AppendOutbound(s.out, c)
		}

		s.display = append(s.display[:0], s.echo...)
		s.display = helpers.AppendDisplay(s.display, remote.Bytes())
		if len(s.display) > 0 {
			if _, err := s.Display.Write(s.display); err != nil {
				return fmt.Errorf("write %s: %w", s.Display.Role(), err)
			}
		}

		if len(s.out) > 0 {
			sent, err := s.peerWrite(s.Network, s.out)
			if err != nil {
				return err
			}
			if sent && s.Recorder != nil {
				if err := s.Recorder.Sent(s.out); err != nil {
					return err
				}
			}
		}

		switch {
		case s.escapeRequested:
			s.Logger.Debug("escape requested")
			return nil
		case ended(keys, s.Keyboard):
			s.Logger.Debug("keyboard closed")
			return nil
		case ended(remote, s.Network):
			s.Logger.Debug("network closed")
			return nil
		case s.brokenPipe.Load():
			return nil
		}
	}
}

func (s *Session) runEcho() error {
	poller := stream.NewPoller(s.Network)
	frame := stream.NewFrame()

	for {
		if err := poller.Poll(); err != nil {
			return err
		}
		if err := s.peerFill(frame, s.Network); err != nil {
			return err
		}
		if frame.Len() > 0 {
			if _, err := s.peerWrite(s.Network, frame.Bytes()); err != nil {
				return err
			}
		}
		if ended(frame, s.Network) || s.brokenPipe.Load() {
			s.Logger.Debug("network closed")
			return nil
		}
	}
}

func (s *Session) runShell() error {
	poller := stream.NewPoller(s.Network, s.ShellOut)
	remote := stream.NewFrame()
	output := stream.NewFrame()

	for {
		if err := poller.Poll(); err != nil {
			return err
		}
		if err := s.peerFill(remote, s.Network); err != nil {
			return err
		}
		if err := output.Fill(s.ShellOut); err != nil {
			return err
		}

		if ended(output, s.ShellOut) {
			s.Logger.Debug("subprocess output closed")
			s.shutdownRequested = true
		}
		if ended(remote, s.Network) {
			s.Logger.Debug("network closed")
			s.shutdownRequested = true
		}

		if err := s.forwardToShell(remote.Bytes()); err != nil {
			return err
		}

		if output.Len() > 0 {
			if _, err := s.peerWrite(s.Network, output.Bytes()); err != nil {
				return err
			}
		}

		if s.brokenPipe.Load() {
			s.shutdownRequested = true
		}
		if s.shutdownRequested {
			return s.closeSubprocess()
		}
	}
}

// forwardToShell applies the control characters in p and passes the rest,
// with CR mapped to LF, to the subprocess input. ^D closes the input, ^C
// interrupts the subprocess; neither is forwarded.
func (s *Session) forwardToShell(p []byte) error {
	s.out = s.out[:0]
	for _, c := range p {
		if s.brokenPipe.Load() {
			break
		}
		switch c {
		case helpers.EOT:
			if err := s.flushShell(); err != nil {
				return err
			}
			if s.ShellIn.Active() {
				s.Logger.Debug("closing subprocess input")
				if err := s.ShellIn.Close(); err != nil {
					return err
				}
			}
		case helpers.ETX:
			if err := s.flushShell(); err != nil {
				return err
			}
			s.Logger.Debug("interrupting subprocess")
			if err := s.Process.Interrupt(); err != nil {
				return err
			}
		default:
			s.out = helpers.AppendOutbound(s.out, c)
		}
	}
	if err := s.flushShell(); err != nil {
		return err
	}

	if s.brokenPipe.Load() {
		s.shutdownRequested = true
		return s.ShellIn.Close()
	}
	return nil
}

// flushShell writes the bytes gathered so far to the subprocess. Bytes for
// an input that was already closed are dropped.
func (s *Session) flushShell() error {
	defer func() { s.out = s.out[:0] }()
	if len(s.out) == 0 || !s.ShellIn.Active() {
		return nil
	}
	_, err := s.peerWrite(s.ShellIn, s.out)
	return err
}
