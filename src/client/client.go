package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ajpfahnl/Twoface/src/codec"
	"github.com/ajpfahnl/Twoface/src/connection"
	"github.com/ajpfahnl/Twoface/src/helpers"
	"github.com/ajpfahnl/Twoface/src/relay"
	"github.com/ajpfahnl/Twoface/src/stream"
	"golang.org/x/term"
)

// Config is everything connect mode needs.
type Config struct {
	Host string
	Port int
	// LogPath, when set, receives a transcript of the network traffic.
	LogPath  string
	Compress bool
	Codec    string
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if c.Host == "" {
		return errors.New("empty host")
	}
	if c.Compress {
		if err := codec.Check(c.Codec); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RunClient connects to the server and relays stdin and stdout to it until
// the user types ^D, either side closes or the peer goes away. When stdin is
// a terminal it is switched to raw mode for the duration of the session.
func RunClient(cfg Config, stdin, stdout *os.File) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var recorder relay.Recorder
	if cfg.LogPath != "" {
		transcript, file, err := helpers.OpenTranscript(cfg.LogPath)
		if err != nil {
			return err
		}
		defer file.Close()
		recorder = transcript
	}

	boundary, err := connection.NewBoundary(cfg.Compress, cfg.Codec)
	if err != nil {
		return err
	}
	if boundary != nil {
		defer boundary.Close()
	}

	conn, err := net.Dial("tcp", cfg.Address())
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.Address(), err)
	}
	defer conn.Close()
	slog.Info("connected", "remote", conn.RemoteAddr().String(), "compress", cfg.Compress)

	network, err := connection.NetworkStream(conn, boundary)
	if err != nil {
		return err
	}
	defer network.Close()

	if fd := int(stdin.Fd()); term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("set terminal raw mode: %w", err)
		}
		defer term.Restore(fd, oldState)

		// Raw mode turns ^C into a byte, so only outside signals end up here.
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGTERM, syscall.SIGHUP)
		done := make(chan struct{})
		defer func() {
			signal.Stop(signals)
			close(done)
		}()
		go func() {
			select {
			case <-signals:
				term.Restore(fd, oldState)
				conn.Close()
				os.Exit(0)
			case <-done:
			}
		}()
	}

	session := relay.NewClientSession(
		stream.New(stream.Keyboard, stdin),
		stream.New(stream.Display, stdout),
		network,
	)
	session.Compressed = boundary != nil
	session.Recorder = recorder
	stop := session.WatchBrokenPipe()
	defer stop()

	if err := relay.Run(session); err != nil {
		return err
	}
	slog.Debug("session closed", "session", session.ID, "escape", session.EscapeRequested())
	return nil
}
