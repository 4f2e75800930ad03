// cuse.go: device.Framework backed by Linux CUSE, driven directly
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package cuse is the one concrete binding for internal/device.Framework:
// it publishes each fan-out name as a real Linux character device by
// speaking the CUSE (character device in userspace) wire protocol
// directly against /dev/cuse, the same way internal/sourceio drives the
// underlying source descriptor: raw golang.org/x/sys/unix syscalls, no
// intervening framework goroutine. RegisterDevice performs the CUSE_INIT
// handshake once, synchronously; every request after that is read,
// decoded, dispatched to device.Callbacks, and replied to entirely
// inside one Session.Dispatch call, on whichever goroutine the caller is
// running — the event loop goroutine, in echofan's case. There is no
// second goroutine and no eventfd bridge: callbacks only ever touch
// ring/session state from the loop goroutine.
package cuse

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"

	"github.com/agilira/echofan/internal/device"
	"github.com/agilira/echofan/internal/errs"
	"github.com/agilira/echofan/ring"
)

var errShortRead = errors.New("cuse: short read from /dev/cuse")
var errUnexpectedOpcode = errors.New("cuse: expected CUSE_INIT as the first request")

// Framework publishes synthetic character devices over /dev/cuse.
type Framework struct{}

// New creates a Framework. Registering a device requires CAP_SYS_ADMIN
// (or the cuse capability under an unprivileged user namespace) and the
// cuse kernel module loaded.
func New() *Framework { return &Framework{} }

// HelpText describes the framework-specific requirements, appended to
// the CLI's own usage text.
func HelpText() string {
	return "CUSE (character device in userspace, via /dev/cuse):\n" +
		"  each registered device publishes DEVNAME=<name> and requires\n" +
		"  CAP_SYS_ADMIN (or equivalent) and /dev/cuse to be available."
}

// RegisterDevice opens /dev/cuse, performs the CUSE_INIT handshake
// synchronously, and returns a Session whose descriptor is ready for
// registration with the event loop's readiness multiplexer.
func (f *Framework) RegisterDevice(name string, cb device.Callbacks) (device.Session, error) {
	fd, err := unix.Open("/dev/cuse", unix.O_RDWR, 0)
	if err != nil {
		return nil, errs.Framework("cuse_open:"+name, err)
	}

	if err := handshake(fd, name); err != nil {
		unix.Close(fd)
		return nil, err
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, errs.Framework("cuse_nonblock:"+name, err)
	}

	return &session{
		name: name,
		fd:   fd,
		cb:   cb,
		buf:  make([]byte, maxMessageSize),
	}, nil
}

// handshake reads the kernel's CUSE_INIT request and replies with the
// device's capabilities and its DEVNAME, the one mandatory device-info
// string; the kernel creates /dev/<name> once this reply lands.
func handshake(fd int, name string) error {
	buf := make([]byte, maxMessageSize)
	n, err := unix.Read(fd, buf)
	if err != nil {
		return errs.Framework("cuse_init_read:"+name, err)
	}
	if n < inHeaderSize {
		return errs.Framework("cuse_init_read:"+name, errShortRead)
	}

	var hdr inHeader
	if err := decode(buf[:inHeaderSize], &hdr); err != nil {
		return errs.Framework("cuse_init_decode:"+name, err)
	}
	if hdr.Opcode != opCuseInit {
		return errs.Framework("cuse_init:"+name, errUnexpectedOpcode)
	}

	initOut := cuseInitOut{
		Major:    cuseInitVersionMajor,
		Minor:    cuseInitVersionMinor,
		MaxRead:  maxMessageSize,
		MaxWrite: uint32(maxMessageSize - inHeaderSize - writeInSize),
	}
	payload := append(encode(&initOut), []byte("DEVNAME="+name+"\x00")...)
	out := outHeader{Len: uint32(outHeaderSize + len(payload)), Unique: hdr.Unique}
	reply := append(encode(&out), payload...)
	if _, err := unix.Write(fd, reply); err != nil {
		return errs.Framework("cuse_init_write:"+name, err)
	}
	return nil
}

// Close releases framework-wide resources. There are none: every
// resource belongs to a session, released by its own Teardown.
func (f *Framework) Close() error { return nil }

// session is one registered device's /dev/cuse connection.
type session struct {
	name string
	fd   int
	cb   device.Callbacks
	buf  []byte
}

func (s *session) FD() int { return s.fd }

// Dispatch reads exactly one pending request off /dev/cuse, invokes the
// matching callback, and writes the reply, all on the calling goroutine.
func (s *session) Dispatch(ctx context.Context) (exited bool, err error) {
	n, rerr := unix.Read(s.fd, s.buf)
	if rerr != nil {
		if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK {
			return false, nil
		}
		if rerr == unix.ENODEV {
			// The kernel answers reads on a /dev/cuse connection whose
			// published device node is gone with ENODEV.
			return true, nil
		}
		return false, errs.Framework("cuse_dispatch:"+s.name, rerr)
	}
	if n == 0 {
		return true, nil
	}
	if n < inHeaderSize {
		return false, errs.Framework("cuse_dispatch:"+s.name, errShortRead)
	}

	var hdr inHeader
	if err := decode(s.buf[:inHeaderSize], &hdr); err != nil {
		return false, errs.Framework("cuse_dispatch:"+s.name, err)
	}
	body := s.buf[inHeaderSize:n]

	switch hdr.Opcode {
	case opOpen:
		s.handleOpen(hdr)
	case opRelease:
		s.handleRelease(hdr)
	case opRead:
		s.handleRead(hdr, body)
	case opWrite:
		s.handleWrite(hdr, body)
	case opPoll:
		s.handlePoll(hdr, body)
	case opInterrupt:
		// Callbacks never block, so there is nothing in flight to
		// interrupt; the kernel does not require a reply to this one.
	default:
		s.replyErrno(hdr.Unique, unix.ENOSYS)
	}
	return false, nil
}

// Teardown closes the /dev/cuse connection, which removes the published
// device node.
func (s *session) Teardown() error {
	if err := unix.Close(s.fd); err != nil {
		return errs.Framework("cuse_close:"+s.name, err)
	}
	return nil
}

func (s *session) replyErrno(unique uint64, errno unix.Errno) {
	out := outHeader{Len: uint32(outHeaderSize), Error: -int32(errno), Unique: unique}
	unix.Write(s.fd, encode(&out))
}

func (s *session) replyOK(unique uint64, payload []byte) {
	out := outHeader{Len: uint32(outHeaderSize + len(payload)), Unique: unique}
	buf := append(encode(&out), payload...)
	unix.Write(s.fd, buf)
}

func (s *session) handleOpen(hdr inHeader) {
	if err := s.cb.Open(); err != nil {
		s.replyErrno(hdr.Unique, unix.EIO)
		return
	}
	out := openOut{FH: 1}
	s.replyOK(hdr.Unique, encode(&out))
}

func (s *session) handleRelease(hdr inHeader) {
	// fuse_release_in carries lock/flush flags this device never uses;
	// the kernel does not act on a RELEASE reply's contents either way.
	_ = s.cb.Release()
	s.replyOK(hdr.Unique, nil)
}

func (s *session) handleRead(hdr inHeader, body []byte) {
	if len(body) < readInSize {
		s.replyErrno(hdr.Unique, unix.EIO)
		return
	}
	var in readIn
	if err := decode(body[:readInSize], &in); err != nil {
		s.replyErrno(hdr.Unique, unix.EIO)
		return
	}
	data, err := s.cb.Read(int(in.Size), int(in.Offset))
	if err != nil {
		s.replyErrno(hdr.Unique, unix.EIO)
		return
	}
	s.replyOK(hdr.Unique, data)
}

func (s *session) handleWrite(hdr inHeader, body []byte) {
	if len(body) < writeInSize {
		s.replyErrno(hdr.Unique, unix.EIO)
		return
	}
	var in writeIn
	if err := decode(body[:writeInSize], &in); err != nil {
		s.replyErrno(hdr.Unique, unix.EIO)
		return
	}
	data := body[writeInSize:]
	if uint32(len(data)) > in.Size {
		data = data[:in.Size]
	}
	written, err := s.cb.Write(data)
	if err != nil {
		s.replyErrno(hdr.Unique, unix.EIO)
		return
	}
	out := writeOut{Size: uint32(written)}
	s.replyOK(hdr.Unique, encode(&out))
}

func (s *session) handlePoll(hdr inHeader, body []byte) {
	if len(body) < pollInSize {
		s.replyErrno(hdr.Unique, unix.EIO)
		return
	}
	var in pollIn
	if err := decode(body[:pollInSize], &in); err != nil {
		s.replyErrno(hdr.Unique, unix.EIO)
		return
	}

	var n ring.Notifier = noopNotifier{}
	if in.Flags&pollScheduleNotify != 0 {
		n = pollNotifier{fd: s.fd, kh: in.Kh}
	}

	ready, err := s.cb.Poll(n)
	if err != nil {
		s.replyErrno(hdr.Unique, unix.EIO)
		return
	}
	out := pollOut{}
	if ready {
		out.REvents = pollInOut
	}
	s.replyOK(hdr.Unique, encode(&out))
}

// pollNotifier fires an unsolicited poll-wakeup for one outstanding
// kernel poll handle, identified by kh. A wakeup for a kh the kernel no
// longer holds is simply discarded, so racing a client that already
// re-polled is harmless.
type pollNotifier struct {
	fd int
	kh uint64
}

func (n pollNotifier) Fire() {
	wakeup := notifyPollWakeupOut{Kh: n.kh}
	payload := encode(&wakeup)
	out := outHeader{Len: uint32(outHeaderSize + len(payload)), Error: fuseNotifyPoll, Unique: 0}
	unix.Write(n.fd, append(encode(&out), payload...))
}

func (n pollNotifier) Release() {}

// noopNotifier stands in when the kernel's poll request did not ask to
// be woken later (FUSE_POLL_SCHEDULE_NOTIFY unset): the client polled
// without blocking, so there is no handle to fire.
type noopNotifier struct{}

func (noopNotifier) Fire()    {}
func (noopNotifier) Release() {}

var _ ring.Notifier = pollNotifier{}
var _ ring.Notifier = noopNotifier{}
var _ device.Session = (*session)(nil)
var _ device.Framework = (*Framework)(nil)
