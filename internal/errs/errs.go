// errs.go: structured error construction shared across echofan
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package errs centralizes error construction: every constructed error in
// echofan carries an error code so callers can branch on failure class
// (configuration vs I/O vs framework) without parsing strings.
package errs

import (
	"fmt"

	goerrors "github.com/agilira/go-errors"
)

// Error codes used across echofan's config, ring, sourceio, epoll and
// device packages.
const (
	CodeConfig    = "ECHOFAN_CONFIG"
	CodeSource    = "ECHOFAN_SOURCE"
	CodeFramework = "ECHOFAN_FRAMEWORK"
	CodeInternal  = "ECHOFAN_INTERNAL"
)

// New wraps msg as an internal-class error.
func New(msg string) error {
	return goerrors.New(CodeInternal, msg)
}

// Newf formats msg as an internal-class error.
func Newf(format string, args ...any) error {
	return goerrors.New(CodeInternal, fmt.Sprintf(format, args...))
}

// Config builds a configuration-class error, used for missing/invalid CLI
// flags before any device is registered.
func Config(msg string) error {
	return goerrors.New(CodeConfig, msg)
}

// Configf formats a configuration-class error.
func Configf(format string, args ...any) error {
	return goerrors.New(CodeConfig, fmt.Sprintf(format, args...))
}

// Source wraps an error from the source descriptor (open, read, write)
// with the source-class code, preserving the underlying error for
// errors.Is/errors.As.
func Source(op string, err error) error {
	return goerrors.Wrap(err, CodeSource, op)
}

// Framework wraps an error from the device-framework adapter (CUSE
// registration, session teardown) with the framework-class code.
func Framework(op string, err error) error {
	return goerrors.Wrap(err, CodeFramework, op)
}
