// Package eventloop implements a single-threaded readiness reactor over
// epoll. Callers register file descriptors for read readiness or repeating
// timerfd timers, each tagged with an opaque integer, and drive everything
// from Poll. Poll is the only suspension point; callbacks for one batch run
// to completion before the next wait.
package eventloop

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const maxBatch = 32

type source struct {
	tag   int
	timer bool
}

// Loop is a readiness-based reactor. Not safe for concurrent use; it is
// meant to be owned by exactly one goroutine.
type Loop struct {
	epfd     int
	sources  map[int]source
	timerFDs []int
}

// New creates an epoll-backed loop.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("failed to create epoll instance: %w", err)
	}
	return &Loop{
		epfd:    epfd,
		sources: map[int]source{},
	}, nil
}

// RegisterRead registers a file descriptor for read readiness.
func (l *Loop) RegisterRead(fd, tag int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("failed to register read event: %w", err)
	}
	l.sources[fd] = source{tag: tag}
	return nil
}

// RegisterTimer registers a repeating timer with the given period in
// milliseconds and returns the underlying timerfd.
func (l *Loop) RegisterTimer(periodMs, tag int) (int, error) {
	tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC)
	if err != nil {
		return -1, fmt.Errorf("failed to create timerfd: %w", err)
	}

	spec := unix.ItimerSpec{
		Interval: msToTimespec(periodMs),
		Value:    msToTimespec(periodMs),
	}
	if err := unix.TimerfdSettime(tfd, 0, &spec, nil); err != nil {
		unix.Close(tfd)
		return -1, fmt.Errorf("failed to arm timerfd: %w", err)
	}

	ev := unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(tfd),
	}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, tfd, &ev); err != nil {
		unix.Close(tfd)
		return -1, fmt.Errorf("failed to register timer event: %w", err)
	}

	l.sources[tfd] = source{tag: tag, timer: true}
	l.timerFDs = append(l.timerFDs, tfd)
	return tfd, nil
}

// Poll blocks until at least one registered source is ready, then invokes
// cb once per ready source with its tag and an EOF flag. At most one batch
// of 32 events is delivered per call. A wait interrupted by a signal
// returns nil without invoking the callback.
func (l *Loop) Poll(cb func(tag int, eof bool)) error {
	var events [maxBatch]unix.EpollEvent

	n, err := unix.EpollWait(l.epfd, events[:], -1)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("epoll wait failed: %w", err)
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		src, ok := l.sources[fd]
		if !ok {
			continue
		}
		if src.timer {
			// Drain the expiration count so the timerfd re-arms.
			var buf [8]byte
			_, _ = unix.Read(fd, buf[:])
		}
		eof := events[i].Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0
		cb(src.tag, eof)
	}
	return nil
}

// Close releases the epoll instance and all timer descriptors. Registered
// read descriptors stay owned by the caller.
func (l *Loop) Close() error {
	for _, tfd := range l.timerFDs {
		unix.Close(tfd)
	}
	l.timerFDs = nil
	if l.epfd != -1 {
		err := unix.Close(l.epfd)
		l.epfd = -1
		return err
	}
	return nil
}

func msToTimespec(ms int) unix.Timespec {
	return unix.Timespec{
		Sec:  int64(ms / 1000),
		Nsec: int64(ms%1000) * 1_000_000,
	}
}
