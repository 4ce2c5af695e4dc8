// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"fmt"
	"testing"
)

// TestRing_NoTruncationAtCapacity verifies the ring holds exactly
// MaxLogLines before any eviction happens.
func TestRing_NoTruncationAtCapacity(t *testing.T) {
	t.Parallel()

	r := NewRing()
	for i := 0; i < MaxLogLines; i++ {
		r.Append(fmt.Sprintf("line-%d", i))
	}

	if r.Len() != MaxLogLines {
		t.Errorf("Len() = %d, want %d", r.Len(), MaxLogLines)
	}
	if got := r.Snapshot()[0]; got != "line-0" {
		t.Errorf("first line = %q, want line-0", got)
	}
}

// TestRing_EvictionKeepsContiguousSuffix verifies that crossing the
// capacity drops the oldest lines and the survivors are the newest
// KeepLogLines in order.
func TestRing_EvictionKeepsContiguousSuffix(t *testing.T) {
	t.Parallel()

	r := NewRing()
	total := MaxLogLines + 1
	for i := 0; i < total; i++ {
		r.Append(fmt.Sprintf("line-%d", i))
	}

	lines := r.Snapshot()
	if len(lines) != KeepLogLines {
		t.Fatalf("Len() after eviction = %d, want %d", len(lines), KeepLogLines)
	}
	for i, line := range lines {
		want := fmt.Sprintf("line-%d", total-KeepLogLines+i)
		if line != want {
			t.Fatalf("lines[%d] = %q, want %q", i, line, want)
		}
	}
}

// TestRing_SnapshotIsCopy verifies mutating a snapshot does not affect the
// ring.
func TestRing_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	r := NewRing()
	r.Append("original")

	snap := r.Snapshot()
	snap[0] = "mutated"

	if got := r.Snapshot()[0]; got != "original" {
		t.Errorf("ring line = %q after snapshot mutation", got)
	}
}

// TestRing_Reset empties the buffer.
func TestRing_Reset(t *testing.T) {
	t.Parallel()

	r := NewRing()
	r.Append("a")
	r.Append("b")
	r.Reset()

	if r.Len() != 0 {
		t.Errorf("Len() after Reset = %d", r.Len())
	}
}
