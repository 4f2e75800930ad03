// handler.go: per-device open/release/read/write/poll callbacks
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package session implements the five device-framework callbacks for one
// fan-out device, consulting or advancing its ring.Consumer cursor, or
// forwarding writes to the shared source descriptor. None of these
// methods ever block: ring operations are pure in-memory arithmetic, and
// the write path is a single nonblocking syscall on a descriptor already
// owned exclusively by the process.
package session

import (
	"github.com/agilira/echofan/internal/device"
	"github.com/agilira/echofan/internal/logging"
	"github.com/agilira/echofan/ring"
)

// SourceWriter forwards a write to the shared underlying source
// descriptor; internal/sourceio.Source satisfies it.
type SourceWriter interface {
	Write(buf []byte) (int, error)
}

// Handler services callbacks for exactly one consumer.
type Handler struct {
	ring     *ring.Ring
	consumer *ring.Consumer
	source   SourceWriter
}

// New binds a Handler to one consumer's cursor and the shared ring and
// source descriptor.
func New(r *ring.Ring, c *ring.Consumer, source SourceWriter) *Handler {
	return &Handler{ring: r, consumer: c, source: source}
}

// Consumer returns the consumer this handler services.
func (h *Handler) Consumer() *ring.Consumer { return h.consumer }

// Callbacks returns the device.Callbacks vtable the framework dispatches
// into for this consumer's device.
func (h *Handler) Callbacks() device.Callbacks {
	return device.Callbacks{
		Open:    h.Open,
		Release: h.Release,
		Read:    h.Read,
		Write:   h.Write,
		Poll:    h.Poll,
	}
}

// Open increments the open count, initializing the shared cursor only on
// the first concurrent open.
func (h *Handler) Open() error {
	h.ring.Open(h.consumer)
	return nil
}

// Release decrements the open count, resetting the cursor to its sentinel
// once the last handle closes.
func (h *Handler) Release() error {
	if h.consumer.OpenCount() == 0 {
		logging.Default.Errorf("consumer %q released with open count already 0", h.consumer.Name())
	}
	h.ring.Release(h.consumer)
	return nil
}

// Read serves a read(size, offset) request against the consumer's cursor.
func (h *Handler) Read(size, offset int) ([]byte, error) {
	return h.ring.Read(h.consumer, size, offset), nil
}

// Write forwards buf to the source descriptor unchanged. The write never
// enters the ring directly; it only reappears for readers if and when the
// source echoes it back, via the source reader's next drain.
func (h *Handler) Write(buf []byte) (int, error) {
	return h.source.Write(buf)
}

// Poll reports readiness for this consumer, retaining n as the pending
// notifier when no data is currently available.
func (h *Handler) Poll(n ring.Notifier) (bool, error) {
	return h.consumer.Poll(h.ring, n), nil
}
