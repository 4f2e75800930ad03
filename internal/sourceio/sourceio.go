// sourceio.go: nonblocking I/O on the underlying source descriptor
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package sourceio opens and operates the single underlying character
// device (typically a serial/UART port) that echofan fans out. It is
// grounded on the conventions goserial and SerialLink use for nonblocking
// serial descriptors: O_NOCTTY so the port never becomes the process's
// controlling terminal, O_NONBLOCK so reads never stall the event loop,
// and O_SYNC so writes are not silently buffered by the kernel.
package sourceio

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/agilira/echofan/internal/errs"
)

// Source is the opened underlying character device.
type Source struct {
	path string
	fd   int
}

// Open opens path read-write, nonblocking, without a controlling
// terminal, with synchronous writes.
func Open(path string) (*Source, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_NOCTTY|unix.O_SYNC, 0)
	if err != nil {
		return nil, errs.Source("open", err)
	}
	return &Source{path: path, fd: fd}, nil
}

// FD returns the raw descriptor, for registration with the readiness
// multiplexer.
func (s *Source) FD() int { return s.fd }

// Path returns the path the source was opened from.
func (s *Source) Path() string { return s.path }

// Read performs one nonblocking read(2) into buf. It returns (0, nil) on
// end-of-stream, and wraps EAGAIN/EWOULDBLOCK/EINTR so callers can detect
// transient conditions with IsTransient.
func (s *Source) Read(buf []byte) (int, error) {
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		return 0, errs.Source("read", err)
	}
	return n, nil
}

// Write forwards buf to the source descriptor unchanged, returning the
// byte count actually written.
func (s *Source) Write(buf []byte) (int, error) {
	n, err := unix.Write(s.fd, buf)
	if err != nil {
		return n, errs.Source("write", err)
	}
	return n, nil
}

// Close closes the source descriptor.
func (s *Source) Close() error {
	return unix.Close(s.fd)
}

// IsTransient reports whether err represents a transient, retry-later
// condition from Read: the source would have blocked, or the call was
// interrupted by a signal.
func IsTransient(err error) bool {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno == unix.EAGAIN || errno == unix.EWOULDBLOCK || errno == unix.EINTR
	}
	return false
}

// Errno extracts the platform errno from err, for exit-code propagation on
// source-open failure.
func Errno(err error) int {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 1
}
