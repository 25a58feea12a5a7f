package client

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajpfahnl/Twoface/src/connection"
	"github.com/ajpfahnl/Twoface/src/helpers"
	"github.com/ajpfahnl/Twoface/src/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

type terminal struct {
	stdin, stdout *os.File // handed to RunClient
	keys          *os.File // test types here
	screen        *os.File // test reads the display here
}

func newTerminal(t *testing.T) *terminal {
	t.Helper()
	inR, inW, err := os.Pipe()
	require.NoError(t, err)
	outR, outW, err := os.Pipe()
	require.NoError(t, err)
	require.NoError(t, outR.SetDeadline(time.Now().Add(testTimeout)))
	t.Cleanup(func() {
		for _, f := range []*os.File{inR, inW, outR, outW} {
			_ = f.Close()
		}
	})
	return &terminal{stdin: inR, stdout: outW, keys: inW, screen: outR}
}

func listen(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func accept(t *testing.T, ln net.Listener) <-chan net.Conn {
	t.Helper()
	conns := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(conns)
			return
		}
		_ = conn.SetDeadline(time.Now().Add(testTimeout))
		conns <- conn
	}()
	return conns
}

func run(cfg Config, term *terminal) <-chan error {
	done := make(chan error, 1)
	go func() { done <- RunClient(cfg, term.stdin, term.stdout) }()
	return done
}

func readN(t *testing.T, r io.Reader, n int) string {
	t.Helper()
	buf := make([]byte, n)
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	return string(buf)
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(testTimeout):
		t.Fatal("client did not return")
		return nil
	}
}

func TestRunClient_RelaysAndLogs(t *testing.T) {
	ln, port := listen(t)
	conns := accept(t, ln)
	term := newTerminal(t)
	logPath := filepath.Join(t.TempDir(), "session.log")

	done := run(Config{Host: "127.0.0.1", Port: port, LogPath: logPath}, term)
	server := <-conns
	require.NotNil(t, server)
	defer server.Close()

	_, err := term.keys.Write([]byte("hello\r"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", readN(t, server, 6))
	assert.Equal(t, "hello\r\n", readN(t, term.screen, 7))

	_, err = server.Write([]byte("ok\n"))
	require.NoError(t, err)
	assert.Equal(t, "ok\r\n", readN(t, term.screen, 4))

	_, err = term.keys.Write([]byte{helpers.EOT})
	require.NoError(t, err)
	require.NoError(t, waitDone(t, done))

	rest, err := io.ReadAll(server)
	require.NoError(t, err)
	assert.Empty(t, rest, "^D is not forwarded")

	got, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "SENT 6 bytes: hello\n\nRECEIVED 3 bytes: ok\n\n", string(got))
}

func TestRunClient_ServerCloses(t *testing.T) {
	ln, port := listen(t)
	conns := accept(t, ln)
	term := newTerminal(t)

	done := run(Config{Host: "127.0.0.1", Port: port}, term)
	server := <-conns
	require.NotNil(t, server)

	_, err := server.Write([]byte("bye\n"))
	require.NoError(t, err)
	require.NoError(t, server.Close())

	require.NoError(t, waitDone(t, done))
	assert.Equal(t, "bye\r\n", readN(t, term.screen, 5))
}

func TestRunClient_Compressed(t *testing.T) {
	ln, port := listen(t)
	conns := accept(t, ln)
	term := newTerminal(t)

	done := run(Config{Host: "127.0.0.1", Port: port, Compress: true, Codec: "zstd"}, term)
	server := <-conns
	require.NotNil(t, server)
	defer server.Close()

	boundary, err := connection.NewBoundary(true, "zstd")
	require.NoError(t, err)
	defer boundary.Close()
	remote, err := connection.NetworkStream(server, boundary)
	require.NoError(t, err)
	defer remote.Close()

	_, err = term.keys.Write([]byte("ping\r"))
	require.NoError(t, err)
	buf := make([]byte, stream.FrameSize)
	n, err := remote.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping\n", string(buf[:n]))

	_, err = remote.Write([]byte("pong\n"))
	require.NoError(t, err)
	assert.Equal(t, "ping\r\npong\r\n", readN(t, term.screen, 12))

	_, err = term.keys.Write([]byte{helpers.EOT})
	require.NoError(t, err)
	require.NoError(t, waitDone(t, done))
}

func TestRunClient_ConnectionRefused(t *testing.T) {
	ln, port := listen(t)
	require.NoError(t, ln.Close())

	err := RunClient(Config{Host: "127.0.0.1", Port: port}, newTerminal(t).stdin, os.Stdout)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect 127.0.0.1:")
}

func TestRunClient_BadLogPath(t *testing.T) {
	_, port := listen(t)
	err := RunClient(Config{
		Host:    "127.0.0.1",
		Port:    port,
		LogPath: filepath.Join(t.TempDir(), "missing", "session.log"),
	}, newTerminal(t).stdin, os.Stdout)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{Host: "localhost", Port: 9000}.Validate())
	assert.NoError(t, Config{Host: "localhost", Port: 9000, Compress: true, Codec: "lz4"}.Validate())
	assert.Error(t, Config{Host: "localhost", Port: 0}.Validate())
	assert.Error(t, Config{Host: "localhost", Port: 70000}.Validate())
	assert.Error(t, Config{Port: 9000}.Validate())
	assert.Error(t, Config{Host: "localhost", Port: 9000, Compress: true, Codec: "brotli"}.Validate())
	assert.Equal(t, "localhost:9000", Config{Host: "localhost", Port: 9000}.Address())
}
