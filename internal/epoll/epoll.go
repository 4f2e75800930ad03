// epoll.go: readiness multiplexer over a fixed set of descriptors
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package epoll is a thin wrapper over golang.org/x/sys/unix's epoll
// syscalls, giving the event loop a "register fd with an opaque tag, wait,
// get back ready tags" contract. It carries no knowledge of the ring
// buffer, source descriptor, or device sessions above it.
package epoll

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/agilira/echofan/internal/errs"
)

// Poller multiplexes readiness across registered descriptors.
type Poller struct {
	epfd int
	tags map[int]int32 // fd -> caller-supplied tag
}

// New creates a Poller backed by a fresh epoll instance.
func New() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errs.Framework("epoll_create1", err)
	}
	return &Poller{epfd: epfd, tags: make(map[int]int32)}, nil
}

// Add registers fd for read readiness, associated with the given tag. The
// event loop uses one tag value per consumer plus a dedicated sentinel tag
// for the source descriptor.
func (p *Poller) Add(fd int, tag int32) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errs.Framework("epoll_ctl_add", err)
	}
	p.tags[fd] = tag
	return nil
}

// Remove deregisters fd.
func (p *Poller) Remove(fd int) error {
	delete(p.tags, fd)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errs.Framework("epoll_ctl_del", err)
	}
	return nil
}

// Close releases the underlying epoll instance.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}

// Ready is one readiness result: the tag supplied at Add time for the
// descriptor that became readable.
type Ready struct {
	Tag int32
}

// Wait blocks for up to timeout for at least one registered descriptor to
// become readable, appending results into dst (reused across calls to
// avoid per-wakeup allocation) and returning the used prefix. A timeout
// with no ready descriptors returns a nil-length result and a nil error;
// it is a liveness heartbeat only, not a failure.
func (p *Poller) Wait(dst []Ready, timeout time.Duration) ([]Ready, error) {
	// Sized to the number of registered descriptors, not cap(dst): a
	// batch-sized scratch buffer throttles how many ready fds a single
	// EpollWait can report once dst has settled to a small steady-state
	// batch size.
	want := len(p.tags)
	if want == 0 {
		want = 1
	}
	events := make([]unix.EpollEvent, want)
	ms := int(timeout / time.Millisecond)
	n, err := unix.EpollWait(p.epfd, events, ms)
	if err != nil {
		if err == unix.EINTR {
			return dst[:0], nil
		}
		return dst[:0], errs.Framework("epoll_wait", err)
	}
	dst = dst[:0]
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		tag, ok := p.tags[fd]
		if !ok {
			continue
		}
		dst = append(dst, Ready{Tag: tag})
	}
	return dst, nil
}
