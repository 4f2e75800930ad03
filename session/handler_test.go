// handler_test.go
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"errors"
	"testing"

	"github.com/agilira/echofan/ring"
)

type fakeSource struct {
	written []byte
	err     error
}

func (s *fakeSource) Write(buf []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.written = append(s.written, buf...)
	return len(buf), nil
}

func mustRing(t *testing.T, capacity int) *ring.Ring {
	t.Helper()
	r, err := ring.NewRing(capacity)
	if err != nil {
		t.Fatalf("ring.NewRing(%d) failed: %v", capacity, err)
	}
	return r
}

func TestHandlerOpenInitializesCursorOnceThenCounts(t *testing.T) {
	r := mustRing(t, 8)
	n := copy(r.ProducerSlice(), "AB")
	r.Publish(n, nil)

	c := ring.NewConsumer("a")
	h := New(r, c, &fakeSource{})

	if err := h.Open(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.OpenCount() != 1 {
		t.Fatalf("expected open count 1, got %d", c.OpenCount())
	}
	if r.Available(c) != 0 {
		t.Fatalf("expected no historical replay on first open before the producer has wrapped, got %d", r.Available(c))
	}

	if err := h.Open(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.OpenCount() != 2 {
		t.Fatalf("expected open count 2 after second concurrent open, got %d", c.OpenCount())
	}
}

func TestHandlerReadAdvancesCursor(t *testing.T) {
	r := mustRing(t, 8)
	c := ring.NewConsumer("a")
	h := New(r, c, &fakeSource{})
	h.Open()

	n := copy(r.ProducerSlice(), "ABCD")
	r.Publish(n, nil)

	got, err := h.Read(2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "AB" {
		t.Fatalf("expected AB, got %q", got)
	}
	if c.ReadPos() != 2 {
		t.Fatalf("expected cursor at 2 after reading 2 bytes, got %d", c.ReadPos())
	}

	got2, err := h.Read(8, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got2) != "CD" {
		t.Fatalf("expected remaining CD, got %q", got2)
	}
}

// A write is forwarded to the source unchanged and never appears in any
// consumer's ring data directly.
func TestHandlerWriteIsTransparentToTheRing(t *testing.T) {
	r := mustRing(t, 8)
	c := ring.NewConsumer("a")
	src := &fakeSource{}
	h := New(r, c, src)
	h.Open()

	n, err := h.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 bytes written, got %d", n)
	}
	if string(src.written) != "hello" {
		t.Fatalf("expected the write forwarded verbatim to the source, got %q", src.written)
	}
	if r.Available(c) != 0 {
		t.Fatalf("a write must not itself become readable data in the ring, got available=%d", r.Available(c))
	}
}

func TestHandlerWritePropagatesSourceError(t *testing.T) {
	r := mustRing(t, 8)
	c := ring.NewConsumer("a")
	wantErr := errors.New("source closed")
	h := New(r, c, &fakeSource{err: wantErr})
	h.Open()

	_, err := h.Write([]byte("x"))
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected source error to propagate, got %v", err)
	}
}

func TestHandlerReleaseResetsCursorOnLastClose(t *testing.T) {
	r := mustRing(t, 4)
	c := ring.NewConsumer("a")
	h := New(r, c, &fakeSource{})
	h.Open()
	n := copy(r.ProducerSlice(), "AB")
	r.Publish(n, nil)
	h.Read(8, 0)

	if err := h.Release(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.OpenCount() != 0 {
		t.Fatalf("expected open count 0 after release, got %d", c.OpenCount())
	}

	n2 := copy(r.ProducerSlice(), "CD")
	r.Publish(n2, nil)
	h.Open()
	if r.Available(c) == 0 {
		t.Fatal("expected reopened consumer to replay historical data written while closed")
	}
}

func TestHandlerPollDelegatesToConsumer(t *testing.T) {
	r := mustRing(t, 8)
	c := ring.NewConsumer("a")
	h := New(r, c, &fakeSource{})
	h.Open()

	ready, err := h.Poll(noopNotifier{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ready {
		t.Fatal("expected not-ready with no data available")
	}

	n := copy(r.ProducerSlice(), "A")
	r.Publish(n, nil)

	ready2, err := h.Poll(noopNotifier{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ready2 {
		t.Fatal("expected ready once data is available")
	}
}

type noopNotifier struct{}

func (noopNotifier) Fire()    {}
func (noopNotifier) Release() {}
