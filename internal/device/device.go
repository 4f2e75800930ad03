// device.go: contract the core consumes from the device-in-userspace framework
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package device defines the narrow contract echofan's core needs from an
// external character-device-in-userspace framework: dynamic dispatch
// over a callback table, addressed by opaque per-session user data,
// never a raw aliased pointer. The core only ever talks to these
// interfaces; internal/device/cuse is the one concrete binding, driving
// /dev/cuse directly over the raw CUSE wire protocol.
package device

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"

	"github.com/agilira/echofan/ring"
)

// Callbacks is the fixed set of entry points the framework invokes for one
// registered synthetic device. Every field is a function value rather
// than an interface method so a Framework implementation can dispatch to
// the right consumer purely from the session user-data it is handed,
// without any dynamic type assertion.
type Callbacks struct {
	Open    func() error
	Release func() error
	Read    func(size, offset int) ([]byte, error)
	Write   func(buf []byte) (int, error)
	Poll    func(n ring.Notifier) (ready bool, err error)
}

// Session is the per-device handle the framework returns from
// RegisterDevice. The event loop registers its descriptor with the
// readiness multiplexer and calls Dispatch whenever that descriptor is
// ready.
type Session interface {
	// FD returns the descriptor to register with the readiness
	// multiplexer.
	FD() int
	// Dispatch receives and handles exactly one pending framework
	// request, invoking the matching Callbacks entry synchronously. It
	// reports exited=true once the framework has signalled this
	// session will deliver no further requests.
	Dispatch(ctx context.Context) (exited bool, err error)
	// Teardown releases the session's framework-side resources. Called
	// once, in creation order, during bootstrap shutdown.
	Teardown() error
}

// Framework publishes synthetic character devices and hands back a
// Session per registered name.
type Framework interface {
	// RegisterDevice publishes one synthetic device named name, backed
	// by cb, using the framework's low-level setup contract.
	RegisterDevice(name string, cb Callbacks) (Session, error)
	// Close releases framework-wide resources once every session has
	// been torn down.
	Close() error
}

// IsInterrupted reports whether err from Session.Dispatch represents a
// signal-interrupted receive, which the event loop skips rather than
// treating as a reason to stop.
func IsInterrupted(err error) bool {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno == unix.EINTR
	}
	return false
}
