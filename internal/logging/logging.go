// logging.go: diagnostic reporting
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package logging is a small leveled diagnostic writer, not a full
// structured-logging framework. Nothing in echofan's core blocks on I/O
// to emit a log line; Reporter just writes a timestamped line to its
// configured writer.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/agilira/echofan/internal/timestamp"
)

// Reporter writes timestamped diagnostic lines. The zero value writes to
// os.Stderr.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewReporter returns a Reporter writing to w. A nil w defaults to
// os.Stderr.
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = os.Stderr
	}
	return &Reporter{out: w}
}

// Errorf logs a formatted error-level diagnostic. It never returns an
// error itself: a failure to log must not perturb the caller's control
// flow.
func (r *Reporter) Errorf(format string, args ...any) {
	r.log("ERROR", format, args...)
}

// Infof logs a formatted informational diagnostic.
func (r *Reporter) Infof(format string, args ...any) {
	r.log("INFO", format, args...)
}

func (r *Reporter) log(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, "%s [%s] %s\n", timestamp.Now().Format("2006-01-02T15:04:05.000Z07:00"), level, fmt.Sprintf(format, args...))
}

// Default is the process-wide reporter used by packages that don't carry
// their own explicit dependency on a Reporter (source's permanent-failure
// path, loop shutdown diagnostics).
var Default = NewReporter(nil)
