// SPDX-License-Identifier: MPL-2.0

package supervisor

import "sync"

const (
	// MaxLogLines is the ring capacity. Exceeding it triggers truncation.
	MaxLogLines = 500
	// KeepLogLines is the contiguous suffix kept after truncation.
	KeepLogLines = 300
)

// Ring is a bounded log line buffer. When the line count exceeds
// MaxLogLines the oldest lines are dropped so that exactly KeepLogLines
// remain; the survivors are always a contiguous suffix of what was
// appended.
type Ring struct {
	mu    sync.Mutex
	lines []string
}

// NewRing creates an empty ring.
func NewRing() *Ring {
	return &Ring{lines: make([]string, 0, MaxLogLines)}
}

// Append adds one line, truncating when the capacity is exceeded.
func (r *Ring) Append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines = append(r.lines, line)
	if len(r.lines) > MaxLogLines {
		kept := make([]string, KeepLogLines, MaxLogLines)
		copy(kept, r.lines[len(r.lines)-KeepLogLines:])
		r.lines = kept
	}
}

// Snapshot returns a copy of the current lines, oldest first.
func (r *Ring) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Len returns the current line count.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

// Reset discards all lines. Called at the start of a new session so logs
// never mix output from two runs.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = r.lines[:0]
}
