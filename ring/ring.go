// ring.go: fixed-capacity single-producer/multi-consumer ring buffer
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package ring implements the fan-out engine's core data structure: a
// fixed-capacity byte buffer written by a single producer and read by many
// independent consumer cursors. There is exactly one copy of the data in
// memory; consumers advance through it at their own pace and the producer
// is free to wrap around and overtake a straggling consumer, in which case
// the consumer's cursor is repaired to resume at the newest available byte
// rather than being reset to the oldest one.
//
// Everything in this package is single-threaded: the caller (the event
// loop) is responsible for ensuring that Publish, Read, Open, Release and
// Poll are never invoked concurrently with each other.
package ring

import "github.com/agilira/echofan/internal/errs"

// Notifier is an opaque handle supplied by the device framework that wakes
// one reader blocked in poll. Fire must be called at most once; Release
// discards the handle without waking anyone, used when a pending notifier
// is replaced by a newer one.
type Notifier interface {
	Fire()
	Release()
}

// Ring is the fixed-capacity cyclic byte store. The zero value is not
// usable; construct with NewRing.
type Ring struct {
	buf     []byte
	prodPos int
	prodGen uint64
}

// NewRing allocates a ring of the given capacity in bytes.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, errs.Newf("ring: capacity must be positive, got %d", capacity)
	}
	return &Ring{buf: make([]byte, capacity)}, nil
}

// Capacity returns the ring's fixed byte capacity.
func (r *Ring) Capacity() int { return len(r.buf) }

// ProdPos returns the producer's current write position.
func (r *Ring) ProdPos() int { return r.prodPos }

// ProdGen returns the producer's current wrap generation.
func (r *Ring) ProdGen() uint64 { return r.prodGen }

// ProducerSlice returns the contiguous region the producer may write into
// next: from the current write position to the end of the backing array.
// The source reader issues at most one read(2) into this slice per drain
// iteration; it never scatters a single read across the wrap boundary.
func (r *Ring) ProducerSlice() []byte {
	return r.buf[r.prodPos:]
}

// segmentEnd returns the exclusive end of consumer c's readable region,
// per the single-segment policy: a consumer reads either up to the
// producer's position (same generation), or to the end of the buffer
// (previous generation), or nothing at all (caught up).
func (r *Ring) segmentEnd(c *Consumer) int {
	switch {
	case c.readPos < r.prodPos:
		return r.prodPos
	case c.readPos == r.prodPos && c.readGen == r.prodGen:
		return c.readPos
	default:
		return len(r.buf)
	}
}

// Available reports how many unread bytes consumer c currently has.
func (r *Ring) Available(c *Consumer) int {
	avail := r.segmentEnd(c) - c.readPos
	if avail < 0 {
		avail = 0
	}
	return avail
}

// Open registers a new client handle on consumer c. Per the shared-cursor
// model, the cursor itself is only (re)initialized on the transition from
// zero to one concurrent client; further concurrent opens just bump the
// open count and observe whatever the shared cursor currently sees.
func (r *Ring) Open(c *Consumer) {
	if c.openCount == 0 {
		c.readPos = r.prodPos
		if r.prodGen == 0 {
			c.readGen = 0
		} else {
			c.readGen = r.prodGen - 1
		}
	}
	c.openCount++
}

// Release retires one client handle on consumer c. When the last handle
// closes, the cursor position is reset to the sentinel 0; the next open
// reinitializes it per Open's rules above.
func (r *Ring) Release(c *Consumer) {
	if c.openCount > 0 {
		c.openCount--
	}
	if c.openCount == 0 {
		c.readPos = 0
	}
}

// Read serves a read(size, offset) callback against consumer c: offset is
// honoured as a read-ahead peek, and the cursor advances by the full
// returned span (offset plus the bytes actually handed back), so a client
// that reads ahead with a nonzero offset does not see the skipped bytes
// again on its next call at offset zero.
func (r *Ring) Read(c *Consumer, size, offset int) []byte {
	avail := r.Available(c)
	if offset > avail {
		return nil
	}
	n := size
	if room := avail - offset; n > room {
		n = room
	}
	if n < 0 {
		n = 0
	}
	start := c.readPos + offset
	out := make([]byte, n)
	copy(out, r.buf[start:start+n])
	r.advanceRead(c, offset+n)
	return out
}

func (r *Ring) advanceRead(c *Consumer, n int) {
	c.readPos += n
	if c.readPos == len(r.buf) {
		c.readPos = 0
		c.readGen++
	}
}

// Publish records that the producer just wrote n bytes starting at the
// ring's previous write position. It repairs the cursor of any consumer
// the write overtook, advances the producer cursor (wrapping and bumping
// the generation if needed), and fires the notifier of any consumer whose
// availability transitioned from zero to positive — all as a single
// non-suspending step, so no consumer callback can observe the update
// half-applied.
func (r *Ring) Publish(n int, consumers []*Consumer) {
	old := r.prodPos
	newPos := old + n
	newGen := r.prodGen
	if newPos == len(r.buf) {
		newPos = 0
		newGen++
	}

	for _, c := range consumers {
		// Only a consumer trailing by exactly one generation can be
		// overtaken by a forward write: a same-generation consumer
		// always has read_pos <= old (it is reading data the producer
		// already committed this generation), so this write — which
		// starts exactly at old — can only ever hand it new bytes, never
		// destroy unread ones. A trailing consumer's unread region runs
		// from read_pos to the end of the buffer, so the write overtakes
		// it the instant old+n reaches read_pos; at old+n == read_pos it
		// isn't losing data, just being caught up to, but it still needs
		// its generation bumped out of "trailing" — hence <=, not <.
		trailing := r.prodGen > 0 && c.readGen == r.prodGen-1
		if trailing && c.readPos <= old+n {
			c.readPos = newPos
			c.readGen = newGen
		}
	}

	r.prodPos = newPos
	r.prodGen = newGen

	for _, c := range consumers {
		if c.notifier != nil && r.Available(c) > 0 {
			c.notifier.Fire()
			c.notifier = nil
		}
	}
}
