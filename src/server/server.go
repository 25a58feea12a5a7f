package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"

	"github.com/ajpfahnl/Twoface/src/codec"
	"github.com/ajpfahnl/Twoface/src/connection"
	"github.com/ajpfahnl/Twoface/src/logger"
	"github.com/ajpfahnl/Twoface/src/relay"
	"github.com/ajpfahnl/Twoface/src/stream"
	"github.com/ajpfahnl/Twoface/src/subprocess"
)

// Config is everything listen mode needs.
type Config struct {
	// Bind is the local address to listen on; empty means all interfaces.
	Bind string
	Port int
	// Shell, when set, is the program whose standard streams the client
	// drives. Without it the server echoes.
	Shell    string
	Compress bool
	Codec    string
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if c.Compress {
		if err := codec.Check(c.Codec); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// RunServer listens on the configured port and serves a single client.
// The shell's exit report is written to diag.
func RunServer(cfg Config, diag io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Address(), err)
	}
	defer ln.Close()
	slog.Info("listening", "addr", ln.Addr().String())

	return Serve(ln, cfg, diag)
}

// Serve accepts exactly one connection from ln and relays it until the
// session ends.
func Serve(ln net.Listener, cfg Config, diag io.Writer) error {
	conn, err := ln.Accept()
	if err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	defer conn.Close()
	slog.Info("connection accepted", "remote", conn.RemoteAddr().String())

	boundary, err := connection.NewBoundary(cfg.Compress, cfg.Codec)
	if err != nil {
		return err
	}
	if boundary != nil {
		defer boundary.Close()
	}

	network, err := connection.NetworkStream(conn, boundary)
	if err != nil {
		return err
	}
	defer network.Close()

	if cfg.Shell == "" {
		session := relay.NewEchoSession(network)
		session.Compressed = boundary != nil
		stop := session.WatchBrokenPipe()
		defer stop()
		return relay.Run(session)
	}
	return serveShell(conn, network, cfg.Shell, boundary != nil, diag)
}

func serveShell(conn net.Conn, network *stream.Stream, shell string, compressed bool, diag io.Writer) error {
	proc, err := subprocess.Spawn(shell)
	if err != nil {
		return err
	}
	defer proc.Close()
	slog.Debug("shell started", "shell", shell, "pid", proc.Pid())

	session := relay.NewShellSession(network, proc.Input, proc.Output, proc)
	session.Compressed = compressed
	stop := session.WatchBrokenPipe()
	runErr := relay.Run(session)
	stop()
	if runErr != nil {
		slog.Error("relay failed, killing shell", "pid", proc.Pid(), logger.Error(runErr))
		_ = proc.Close()
		_ = proc.Kill()
	}

	status, err := proc.Await()
	if err != nil {
		return errors.Join(runErr, err)
	}
	fmt.Fprintln(diag, status.String())

	if err := connection.Shutdown(conn); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
