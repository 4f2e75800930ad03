// loop.go: single-threaded readiness multiplexer
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package loop runs the single cooperative event loop that multiplexes
// the source descriptor and every device-session descriptor. Everything
// it touches — the ring, the consumer cursors, every callback the device
// framework invokes — runs on this one goroutine; no other part of
// echofan's core is allowed to read or write ring/consumer state.
package loop

import (
	"context"
	"time"

	"github.com/agilira/echofan/internal/device"
	"github.com/agilira/echofan/internal/epoll"
	"github.com/agilira/echofan/internal/logging"
	"github.com/agilira/echofan/ring"
	"github.com/agilira/echofan/source"
)

// sourceTag identifies the source descriptor's epoll registration; every
// other tag is a consumer index, so this is chosen outside the valid
// index range.
const sourceTag int32 = -1

// heartbeat bounds epoll_wait's timeout. It exists only to give the loop
// a chance to notice context cancellation promptly; it plays no role in
// fan-out correctness.
const heartbeat = 30 * time.Second

// SourceFD is the subset of the source descriptor the loop needs: a
// descriptor to register with epoll.
type SourceFD interface {
	FD() int
}

// Member is one registered consumer: its cursor and the session the
// device framework handed back for it.
type Member struct {
	Consumer *ring.Consumer
	Session  device.Session
}

// Loop is the assembled single-threaded event loop.
type Loop struct {
	poller   *epoll.Poller
	src      SourceFD
	reader   *source.Reader
	ring     *ring.Ring
	members  []Member
	reporter *logging.Reporter
}

// New builds a Loop and registers the source descriptor and every
// member's session descriptor with a fresh epoll instance.
func New(r *ring.Ring, members []Member, src SourceFD, reader *source.Reader, reporter *logging.Reporter) (*Loop, error) {
	if reporter == nil {
		reporter = logging.Default
	}
	poller, err := epoll.New()
	if err != nil {
		return nil, err
	}
	l := &Loop{poller: poller, src: src, reader: reader, ring: r, members: members, reporter: reporter}
	if err := poller.Add(src.FD(), sourceTag); err != nil {
		return nil, err
	}
	for i, m := range members {
		if err := poller.Add(m.Session.FD(), int32(i)); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Close releases the loop's epoll instance. It does not tear down member
// sessions; that is bootstrap's responsibility, in consumer creation
// order.
func (l *Loop) Close() error {
	return l.poller.Close()
}

// consumers returns the plain cursor slice ring.Ring.Publish expects.
func (l *Loop) consumers() []*ring.Consumer {
	out := make([]*ring.Consumer, len(l.members))
	for i, m := range l.members {
		out[i] = m.Consumer
	}
	return out
}

// Run services readiness events until ctx is cancelled or a
// device-session receive reports failure, end-of-stream, or that its
// session has exited. Within one wakeup batch, descriptors are serviced
// in the order the multiplexer reports them; a source-read iteration
// (including overtake repair and notifier firing) runs to completion
// with no consumer callback interleaved, so no consumer callback ever
// observes a half-applied publish.
func (l *Loop) Run(ctx context.Context) error {
	consumers := l.consumers()
	var ready []epoll.Ready
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		var err error
		ready, err = l.poller.Wait(ready, heartbeat)
		if err != nil {
			return err
		}

		for _, rd := range ready {
			if rd.Tag == sourceTag {
				l.reader.Drain(l.ring, consumers)
				continue
			}

			idx := int(rd.Tag)
			m := l.members[idx]
			exited, derr := m.Session.Dispatch(ctx)
			if derr != nil {
				if device.IsInterrupted(derr) {
					continue
				}
				l.reporter.Errorf("consumer %q receive failed: %v", m.Consumer.Name(), derr)
				return derr
			}
			if exited {
				return nil
			}
		}
	}
}
