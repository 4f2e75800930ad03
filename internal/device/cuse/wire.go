// wire.go: raw CUSE/FUSE kernel wire protocol
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cuse

import (
	"bytes"
	"encoding/binary"

	"github.com/agilira/echofan/internal/errs"
)

// Opcodes the kernel sends over /dev/cuse. CUSE_INIT is CUSE's own
// handshake request; the rest are the ordinary FUSE opcodes CUSE reuses
// for file-like operations on the published device node.
const (
	opCuseInit  = 4096
	opOpen      = 14
	opRead      = 15
	opWrite     = 16
	opRelease   = 18
	opInterrupt = 36
	opPoll      = 40
)

// fuseNotifyPoll is the notification code carried in an unsolicited
// reply's Error field (with Unique == 0) to wake a client blocked in
// poll(2) on the published device.
const fuseNotifyPoll = 1

// pollScheduleNotify, set in fuse_poll_in.Flags, means the kernel will
// accept a later wakeup for the accompanying Kh handle.
const pollScheduleNotify = 1 << 0

// pollInOut is the revents mask this binding reports once the ring has
// bytes for the asking consumer: POLLIN together with POLLOUT. A poll
// with nothing to read reports no events at all, POLLOUT included.
const pollInOut = 0x0001 | 0x0004 // POLLIN | POLLOUT

const cuseInitVersionMajor = 7
const cuseInitVersionMinor = 11

// maxMessageSize bounds both the scratch buffer used to read one request
// and the max_read/max_write the kernel is told to honor, so a single
// read(2) off /dev/cuse always carries one complete request.
const maxMessageSize = 128 * 1024

type inHeader struct {
	Len     uint32
	Opcode  uint32
	Unique  uint64
	NodeID  uint64
	UID     uint32
	GID     uint32
	PID     uint32
	Padding uint32
}

type outHeader struct {
	Len    uint32
	Error  int32
	Unique uint64
}

type cuseInitIn struct {
	Major  uint32
	Minor  uint32
	Unused uint32
	Flags  uint32
}

type cuseInitOut struct {
	Major    uint32
	Minor    uint32
	Unused   uint32
	Flags    uint32
	MaxRead  uint32
	MaxWrite uint32
	DevMajor uint32
	DevMinor uint32
	Spare    [10]uint32
}

type openIn struct {
	Flags   uint32
	Padding uint32
}

type openOut struct {
	FH        uint64
	OpenFlags uint32
	Padding   uint32
}

type readIn struct {
	FH        uint64
	Offset    uint64
	Size      uint32
	ReadFlags uint32
	LockOwner uint64
	Flags     uint32
	Padding   uint32
}

type writeIn struct {
	FH         uint64
	Offset     uint64
	Size       uint32
	WriteFlags uint32
	LockOwner  uint64
	Flags      uint32
	Padding    uint32
}

type writeOut struct {
	Size    uint32
	Padding uint32
}

type releaseIn struct {
	FH           uint64
	Flags        uint32
	ReleaseFlags uint32
	LockOwner    uint64
}

type pollIn struct {
	FH     uint64
	Kh     uint64
	Flags  uint32
	Events uint32
}

type pollOut struct {
	REvents uint32
	Padding uint32
}

type notifyPollWakeupOut struct {
	Kh uint64
}

var (
	inHeaderSize  = binary.Size(inHeader{})
	outHeaderSize = binary.Size(outHeader{})
	readInSize    = binary.Size(readIn{})
	writeInSize   = binary.Size(writeIn{})
	pollInSize    = binary.Size(pollIn{})
)

// decode unmarshals a fixed-size little-endian struct from buf.
func decode(buf []byte, v any) error {
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, v); err != nil {
		return errs.Framework("cuse_decode", err)
	}
	return nil
}

// encode marshals a fixed-size little-endian struct, returning its bytes.
func encode(v any) []byte {
	buf := new(bytes.Buffer)
	// v is always one of the fixed-size structs above; binary.Write
	// cannot fail against a bytes.Buffer.
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}
