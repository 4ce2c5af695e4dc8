// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// maxLogLineBytes bounds a single relayed line. Training tools emit long
// progress bars; a line that never sees a newline is delivered in chunks of
// this size rather than killing the relay.
const maxLogLineBytes = 1 << 20

// Relay copies child output line by line into the ring and fans it out to
// subscribers. Delivery to subscribers is best effort: a slow consumer
// loses its oldest pending lines, never stalls the child.
type Relay struct {
	ring   *Ring
	logger *log.Logger

	mu   sync.Mutex
	subs map[int]chan string
	next int
}

// NewRelay creates a relay writing into ring.
func NewRelay(ring *Ring, logger *log.Logger) *Relay {
	if logger == nil {
		logger = log.Default()
	}
	return &Relay{ring: ring, logger: logger, subs: make(map[int]chan string)}
}

// Run consumes src until EOF. It is meant to run on its own goroutine for
// the lifetime of one child process; read errors end the relay but never
// the child.
func (r *Relay) Run(src io.Reader) {
	br := bufio.NewReaderSize(src, maxLogLineBytes)
	for {
		chunk, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			// Over-long line: deliver what fits and keep reading.
			r.deliver(string(chunk))
			continue
		}
		if line := strings.TrimRight(string(chunk), "\r\n"); line != "" || err == nil {
			r.deliver(line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !expectedReadEnd(err) {
				r.logger.Warn("log relay ended early; process keeps running", "err", err)
			}
			return
		}
	}
}

// Announce injects a supervisor-origin line into the stream: it reaches the
// ring and every live subscriber exactly like child output does.
func (r *Relay) Announce(line string) {
	r.deliver(line)
}

func (r *Relay) deliver(line string) {
	r.ring.Append(line)
	r.publish(line)
}

// Subscribe registers a live log consumer. The returned cancel func must be
// called when the consumer goes away; the channel is never closed by the
// relay.
func (r *Relay) Subscribe(buffer int) (<-chan string, func()) {
	if buffer < 1 {
		buffer = 1
	}

	r.mu.Lock()
	id := r.next
	r.next++
	ch := make(chan string, buffer)
	r.subs[id] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
	return ch, cancel
}

// expectedReadEnd reports whether a read error is just the normal end of a
// child's output stream. A pseudo-terminal reports EIO instead of EOF when
// the slave side closes.
func expectedReadEnd(err error) bool {
	if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, fs.ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), "input/output error")
}

// publish delivers a line to every subscriber, dropping the oldest pending
// line of any full channel.
func (r *Relay) publish(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.subs {
		select {
		case ch <- line:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- line:
			default:
			}
		}
	}
}
