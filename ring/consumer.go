// consumer.go: per-fan-out-device reader cursor
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ring

// Consumer is one synthetic fan-out device's cursor state: a position and
// generation into the shared ring, an open-handle count, and at most one
// retained readiness notifier. Consumers are created once at startup and
// never destroyed while the process runs; only their cursor fields and
// notifier evolve per client activity.
type Consumer struct {
	name      string
	readPos   int
	readGen   uint64
	openCount int
	notifier  Notifier
}

// NewConsumer creates a fresh, unopened consumer identified by name.
func NewConsumer(name string) *Consumer {
	return &Consumer{name: name}
}

// Name returns the consumer's identity (the synthetic device name).
func (c *Consumer) Name() string { return c.name }

// OpenCount reports how many client handles currently hold this device
// open.
func (c *Consumer) OpenCount() int { return c.openCount }

// ReadPos and ReadGen expose the raw cursor for diagnostics and tests.
func (c *Consumer) ReadPos() int      { return c.readPos }
func (c *Consumer) ReadGen() uint64   { return c.readGen }
func (c *Consumer) HasNotifier() bool { return c.notifier != nil }

// Poll implements the poll callback against the ring's current state for
// this consumer. If data is already available, it replies ready, releases
// any stale pending notifier, and releases n itself since it is never
// retained. Otherwise it releases any previously retained notifier and
// retains n, the handle the framework will fire when new data arrives.
func (c *Consumer) Poll(r *Ring, n Notifier) (ready bool) {
	if r.Available(c) > 0 {
		if c.notifier != nil {
			c.notifier.Release()
			c.notifier = nil
		}
		if n != nil {
			n.Release()
		}
		return true
	}
	if c.notifier != nil {
		c.notifier.Release()
	}
	c.notifier = n
	return false
}
