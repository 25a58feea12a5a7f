package stream

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipe(t *testing.T) (*Stream, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	s := New(SubprocessOut, r)
	t.Cleanup(func() {
		_ = s.Close()
		_ = w.Close()
	})
	return s, w
}

func TestPoll_NothingPending(t *testing.T) {
	s, _ := newPipe(t)
	p := NewPoller(s)

	require.NoError(t, p.Poll())
	assert.False(t, s.Readable())
	assert.False(t, s.HungUp())

	f := NewFrame()
	require.NoError(t, f.Fill(s))
	assert.Equal(t, NotRead, f.Len())
	assert.Nil(t, f.Bytes())
}

func TestPoll_PartialRead(t *testing.T) {
	s, w := newPipe(t)
	p := NewPoller(s)

	_, err := w.Write([]byte("abc"))
	require.NoError(t, err)

	require.NoError(t, p.Poll())
	require.True(t, s.Readable())

	f := NewFrame()
	require.NoError(t, f.Fill(s))
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, []byte("abc"), f.Bytes())
}

func TestPoll_FrameCapacity(t *testing.T) {
	s, w := newPipe(t)
	p := NewPoller(s)

	big := make([]byte, FrameSize+100)
	_, err := w.Write(big)
	require.NoError(t, err)

	require.NoError(t, p.Poll())
	f := NewFrame()
	require.NoError(t, f.Fill(s))
	assert.Equal(t, FrameSize, f.Len())

	require.NoError(t, p.Poll())
	require.NoError(t, f.Fill(s))
	assert.Equal(t, 100, f.Len())
}

func TestPoll_HangupDrainsFirst(t *testing.T) {
	s, w := newPipe(t)
	p := NewPoller(s)

	_, err := w.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, p.Poll())
	assert.True(t, s.Readable())
	assert.False(t, s.HungUp(), "pending bytes must be drained before hangup counts")

	f := NewFrame()
	require.NoError(t, f.Fill(s))
	assert.Equal(t, []byte("tail"), f.Bytes())

	require.NoError(t, p.Poll())
	if s.Readable() {
		require.NoError(t, f.Fill(s))
		assert.True(t, f.EOF())
	} else {
		assert.True(t, s.HungUp())
	}
}

func TestPoll_SkipsClosedStreams(t *testing.T) {
	a, aw := newPipe(t)
	b, bw := newPipe(t)
	p := NewPoller(a, b)

	_, err := aw.Write([]byte("x"))
	require.NoError(t, err)
	_, err = bw.Write([]byte("y"))
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, p.Poll())
	assert.False(t, a.Active())
	assert.False(t, a.Readable())
	assert.True(t, b.Readable())

	_, err = a.Write([]byte("z"))
	assert.Error(t, err)
	assert.NoError(t, a.Close(), "second close is a no-op")
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "keyboard", Keyboard.String())
	assert.Equal(t, "subprocess-out", SubprocessOut.String())
	assert.Equal(t, "role(42)", Role(42).String())
}
