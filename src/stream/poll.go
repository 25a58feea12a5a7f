package stream

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Poller checks a fixed set of source streams for readiness. It polls with
// a zero timeout, so a relay loop built on it busy-polls. With at most three
// descriptors per session that cost is accepted: the loop must re-poll right
// after partial progress to keep per-source ordering.
type Poller struct {
	streams []*Stream
	fds     []unix.PollFd
}

func NewPoller(streams ...*Stream) *Poller {
	return &Poller{
		streams: streams,
		fds:     make([]unix.PollFd, 0, len(streams)),
	}
}

// Poll refreshes the readiness state of every active stream. Inactive
// streams are skipped and report nothing.
func (p *Poller) Poll() error {
	p.fds = p.fds[:0]
	for _, s := range p.streams {
		s.revents = 0
		if !s.open {
			continue
		}
		p.fds = append(p.fds, unix.PollFd{
			Fd:     int32(s.fd),
			Events: unix.POLLIN | unix.POLLHUP | unix.POLLERR,
		})
	}
	if len(p.fds) == 0 {
		return nil
	}

	for {
		_, err := unix.Poll(p.fds, 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}
		break
	}

	i := 0
	for _, s := range p.streams {
		if !s.open {
			continue
		}
		s.revents = p.fds[i].Revents
		i++
	}
	return nil
}
