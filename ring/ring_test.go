// ring_test.go
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ring

import "testing"

func mustRing(t *testing.T, capacity int) *Ring {
	t.Helper()
	r, err := NewRing(capacity)
	if err != nil {
		t.Fatalf("NewRing(%d) failed: %v", capacity, err)
	}
	return r
}

func TestNewRingRejectsNonPositiveCapacity(t *testing.T) {
	if _, err := NewRing(0); err == nil {
		t.Error("expected error for zero capacity")
	}
	if _, err := NewRing(-1); err == nil {
		t.Error("expected error for negative capacity")
	}
}

// Scenario 1: capacity=8, one consumer opens after the producer has
// already delivered "ABCDEFGH" in one chunk (prod_gen=1); the consumer
// replays the whole buffer from the start.
func TestScenario1_HistoricalReplayAfterWrap(t *testing.T) {
	r := mustRing(t, 8)
	n := copy(r.ProducerSlice(), "ABCDEFGH")
	r.Publish(n, nil)

	if r.ProdGen() != 1 || r.ProdPos() != 0 {
		t.Fatalf("expected wrapped producer at (pos=0, gen=1), got (pos=%d, gen=%d)", r.ProdPos(), r.ProdGen())
	}

	c := NewConsumer("a")
	r.Open(c)

	got := r.Read(c, 8, 0)
	if string(got) != "ABCDEFGH" {
		t.Fatalf("expected historical replay %q, got %q", "ABCDEFGH", got)
	}
	if r.Available(c) != 0 {
		t.Fatalf("expected 0 available after full replay, got %d", r.Available(c))
	}
}

// Scenario 2: two consumers open before any data; source delivers "ABCD";
// each reads it independently, then sees zero more.
func TestScenario2_IndependentFanOut(t *testing.T) {
	r := mustRing(t, 8)
	c1, c2 := NewConsumer("a"), NewConsumer("b")
	r.Open(c1)
	r.Open(c2)

	n := copy(r.ProducerSlice(), "ABCD")
	r.Publish(n, []*Consumer{c1, c2})

	for _, c := range []*Consumer{c1, c2} {
		got := r.Read(c, 8, 0)
		if string(got) != "ABCD" {
			t.Fatalf("consumer %s: expected ABCD, got %q", c.Name(), got)
		}
		if got := r.Read(c, 8, 0); len(got) != 0 {
			t.Fatalf("consumer %s: expected 0 bytes on second read, got %q", c.Name(), got)
		}
	}
}

// Scenario 3: capacity=4, one consumer open before any data; source
// delivers "ABCDEFG" as three chunks of 3, 3, 1 bytes, and the consumer
// reads once after each chunk.
func TestScenario3_BoundarySplitRead(t *testing.T) {
	r := mustRing(t, 4)
	c := NewConsumer("a")
	r.Open(c)

	chunks := []string{"ABC", "DEF", "G"}
	wantReads := []string{"ABC", "D", "EFG"}
	var published int
	for i, chunk := range chunks {
		remaining := chunk
		for len(remaining) > 0 {
			slice := r.ProducerSlice()
			n := copy(slice, remaining)
			r.Publish(n, []*Consumer{c})
			remaining = remaining[n:]
			published += n
		}
		if got := r.Read(c, 8, 0); string(got) != wantReads[i] {
			t.Fatalf("read %d: expected %s, got %q", i+1, wantReads[i], got)
		}
	}
	if published != 7 {
		t.Fatalf("expected to publish 7 bytes total, published %d", published)
	}
}

// Scenario 4: capacity=4, one consumer, source delivers "ABCDEFGH" (two
// full wraps) before the consumer ever reads.
func TestScenario4_OvertakeSkipsToNewestByte(t *testing.T) {
	r := mustRing(t, 4)
	c := NewConsumer("a")
	r.Open(c)

	data := "ABCDEFGH"
	for i := 0; i < len(data); {
		slice := r.ProducerSlice()
		end := i + len(slice)
		if end > len(data) {
			end = len(data)
		}
		n := copy(slice, data[i:end])
		r.Publish(n, []*Consumer{c})
		i += n
	}

	if c.ReadPos() != r.ProdPos() || c.ReadGen() != r.ProdGen() {
		t.Fatalf("expected overtaken consumer caught up to producer, got pos=%d gen=%d vs prod pos=%d gen=%d",
			c.ReadPos(), c.ReadGen(), r.ProdPos(), r.ProdGen())
	}
	if got := r.Read(c, 8, 0); len(got) != 0 {
		t.Fatalf("expected 0 bytes after overtake, got %q", got)
	}
}

func TestOvertakeTieBreakAtLowerBoundNotOvertaken(t *testing.T) {
	r := mustRing(t, 4)
	c := NewConsumer("a")
	// Place consumer exactly at the producer's current position before
	// any write: read_pos == prod_pos must NOT be treated as overtaken.
	n := copy(r.ProducerSlice(), "AB")
	r.Publish(n, nil)
	c.readPos = r.ProdPos()
	c.readGen = r.ProdGen()

	before := c.ReadPos()
	n2 := copy(r.ProducerSlice(), "C")
	r.Publish(n2, []*Consumer{c})

	if c.ReadPos() != before {
		t.Fatalf("consumer at read_pos==old_prod_pos must not be overtaken; moved from %d to %d", before, c.ReadPos())
	}
}

func TestAvailableNeverNegativeOrOverCapacity(t *testing.T) {
	r := mustRing(t, 4)
	c := NewConsumer("a")
	r.Open(c)
	for _, s := range []string{"AB", "CD", "EF", "GH", "IJ"} {
		n := copy(r.ProducerSlice(), s)
		r.Publish(n, []*Consumer{c})
		if avail := r.Available(c); avail < 0 || avail > r.Capacity() {
			t.Fatalf("available out of range: %d", avail)
		}
	}
}

func TestReadOffsetAdvancesCursorByOffsetPlusReturned(t *testing.T) {
	r := mustRing(t, 8)
	c := NewConsumer("a")
	r.Open(c)
	n := copy(r.ProducerSlice(), "ABCDEF")
	r.Publish(n, []*Consumer{c})

	got := r.Read(c, 2, 2) // peek 2 bytes starting at offset 2: "CD"
	if string(got) != "CD" {
		t.Fatalf("expected CD, got %q", got)
	}
	if c.ReadPos() != 4 {
		t.Fatalf("expected cursor to advance past offset+returned (4), got %d", c.ReadPos())
	}

	rest := r.Read(c, 8, 0)
	if string(rest) != "EF" {
		t.Fatalf("expected remaining EF, got %q", rest)
	}
}

func TestReadOffsetBeyondAvailableReturnsEmpty(t *testing.T) {
	r := mustRing(t, 8)
	c := NewConsumer("a")
	r.Open(c)
	n := copy(r.ProducerSlice(), "AB")
	r.Publish(n, []*Consumer{c})

	if got := r.Read(c, 4, 5); len(got) != 0 {
		t.Fatalf("expected empty read when offset exceeds available, got %q", got)
	}
}

func TestOpenPositioningBeforeAnyWrap(t *testing.T) {
	r := mustRing(t, 8)
	c := NewConsumer("a")
	r.Open(c)
	if r.Available(c) != 0 {
		t.Fatalf("freshly opened consumer before any producer wrap must see 0 bytes, got %d", r.Available(c))
	}
}

func TestReleaseThenReopenReinitializesCursor(t *testing.T) {
	r := mustRing(t, 4)
	c := NewConsumer("a")
	r.Open(c)
	n := copy(r.ProducerSlice(), "AB")
	r.Publish(n, []*Consumer{c})
	r.Read(c, 8, 0)
	r.Release(c)

	if c.OpenCount() != 0 {
		t.Fatalf("expected open count 0 after release, got %d", c.OpenCount())
	}

	n2 := copy(r.ProducerSlice(), "CD")
	r.Publish(n2, nil)

	r.Open(c)
	if r.Available(c) == 0 {
		t.Fatalf("expected reinitialized consumer to see historical data after reopen")
	}
}

func TestSharedCursorAcrossConcurrentOpens(t *testing.T) {
	r := mustRing(t, 8)
	c := NewConsumer("a")
	r.Open(c)
	firstPos := c.ReadPos()
	r.Open(c) // second concurrent open of the same device
	if c.OpenCount() != 2 {
		t.Fatalf("expected open count 2, got %d", c.OpenCount())
	}
	if c.ReadPos() != firstPos {
		t.Fatalf("second open must not reinitialize the shared cursor")
	}
}
