// reader.go: drains the source descriptor into the ring
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package source implements the fan-out engine's producer side: draining
// the underlying character device into the ring buffer as fast as
// possible, with no per-consumer buffering or backpressure.
package source

import (
	"github.com/agilira/echofan/internal/logging"
	"github.com/agilira/echofan/ring"
)

// Drainer is the nonblocking-read half of the source descriptor contract;
// internal/sourceio.Source satisfies it.
type Drainer interface {
	Read(buf []byte) (int, error)
}

// TransientChecker reports whether an error from Drainer.Read represents
// a transient, retry-on-next-readiness condition rather than a permanent
// failure.
type TransientChecker func(error) bool

// Reader drains a Drainer into a ring.Ring, repairing overtaken consumer
// cursors and firing readiness notifiers as part of the same
// non-suspending step that publishes each chunk.
type Reader struct {
	drainer   Drainer
	transient TransientChecker
	reporter  *logging.Reporter
}

// New creates a Reader. transient classifies read errors as
// retry-later versus permanent; reporter receives permanent-failure
// diagnostics.
func New(drainer Drainer, transient TransientChecker, reporter *logging.Reporter) *Reader {
	if reporter == nil {
		reporter = logging.Default
	}
	return &Reader{drainer: drainer, transient: transient, reporter: reporter}
}

// Drain loops reading from the source into r until it would block, hits
// end-of-stream, or fails, publishing each successful chunk to r and
// firing consumer notifiers before looping again. It never returns an
// error: transient conditions simply end the drain loop (the next
// readiness event resumes it), and permanent failures are logged and
// likewise end the drain loop without touching the event loop's control
// flow.
func (rd *Reader) Drain(r *ring.Ring, consumers []*ring.Consumer) {
	for {
		buf := r.ProducerSlice()
		n, err := rd.drainer.Read(buf)
		if err != nil {
			if rd.transient != nil && rd.transient(err) {
				return
			}
			rd.reporter.Errorf("source read failed, will retry on next readiness event: %v", err)
			return
		}
		if n == 0 {
			return
		}
		r.Publish(n, consumers)
	}
}
