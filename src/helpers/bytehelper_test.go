package helpers

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(src []byte) []byte {
	var out []byte
	for _, c := range src {
		out = AppendEcho(out, c)
	}
	return out
}

func outbound(src []byte) []byte {
	var out []byte
	for _, c := range src {
		out = AppendOutbound(out, c)
	}
	return out
}

func TestAppendOutbound_IdentityWithoutSpecialBytes(t *testing.T) {
	var in []byte
	for c := 0; c < 256; c++ {
		switch byte(c) {
		case CR, LF, ETX, EOT:
			continue
		}
		in = append(in, byte(c))
	}
	assert.Equal(t, in, outbound(in))
	assert.Equal(t, in, echo(in))
	assert.Equal(t, in, AppendDisplay(nil, in))
}

func TestCarriageReturnMapping(t *testing.T) {
	cases := []struct {
		in       string
		outbound string
		echo     string
	}{
		{"\r", "\n", "\r\n"},
		{"ls\r", "ls\n", "ls\r\n"},
		{"a\rb\rc", "a\nb\nc", "a\r\nb\r\nc"},
		{"\r\r", "\n\n", "\r\n\r\n"},
		{"x\n", "x\n", "x\r\n"},
		{"\r\n", "\n\n", "\r\n\r\n"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.outbound, string(outbound([]byte(tc.in))), "outbound %q", tc.in)
		assert.Equal(t, tc.echo, string(echo([]byte(tc.in))), "echo %q", tc.in)
	}
}

func TestAppendDisplay(t *testing.T) {
	assert.Equal(t, "hi\r\n", string(AppendDisplay(nil, []byte("hi\n"))))
	assert.Equal(t, "a\rb\r\n", string(AppendDisplay(nil, []byte("a\rb\n"))))
	assert.Equal(t, "pre:x\r\n", string(AppendDisplay([]byte("pre:"), []byte("x\n"))))
}

func TestTranscript_Format(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTranscript(&buf)

	require.NoError(t, tr.Sent([]byte("ls\n")))
	require.NoError(t, tr.Received([]byte("a b")))
	require.NoError(t, tr.Sent(nil))

	assert.Equal(t, "SENT 3 bytes: ls\n\nRECEIVED 3 bytes: a b\nSENT 0 bytes: \n", buf.String())
}

func TestOpenTranscript_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	tr, f, err := OpenTranscript(path)
	require.NoError(t, err)
	require.NoError(t, tr.Sent([]byte("x")))
	require.NoError(t, f.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nSENT 1 bytes: x\n", string(got))
}

func TestOpenTranscript_BadPath(t *testing.T) {
	_, _, err := OpenTranscript(filepath.Join(t.TempDir(), "missing", "session.log"))
	assert.Error(t, err)
}

func TestDisplayWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewDisplayWriter(&buf)

	n, err := w.Write([]byte("level=WARN msg=x\n"))
	require.NoError(t, err)
	assert.Equal(t, 17, n)
	_, err = w.Write([]byte("a\r\nb\n"))
	require.NoError(t, err)

	assert.Equal(t, "level=WARN msg=x\r\na\r\r\nb\r\n", buf.String())
}
