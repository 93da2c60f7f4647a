package logging

import (
	"os"
	"sync"
)

// RingBuffer is a thread-safe circular byte buffer used to keep the most
// recent log output in memory. It implements io.Writer; old data is
// silently overwritten when the buffer is full.
type RingBuffer struct {
	mu    sync.Mutex
	buf   []byte
	start int // index of the oldest byte
	n     int // number of valid bytes
}

// NewRingBuffer creates a ring buffer with the given capacity in bytes.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1024 * 1024
	}
	return &RingBuffer{buf: make([]byte, capacity)}
}

// Write implements io.Writer. Data wraps around when the buffer is full.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := len(p)
	cap := len(rb.buf)

	// Oversized write: only the tail survives anyway
	if len(p) > cap {
		p = p[len(p)-cap:]
	}

	end := (rb.start + rb.n) % cap
	first := copy(rb.buf[end:], p)
	copy(rb.buf, p[first:])

	rb.n += len(p)
	if rb.n > cap {
		// Overwrote the oldest bytes; advance start past them
		rb.start = (rb.start + rb.n - cap) % cap
		rb.n = cap
	}

	return written, nil
}

// Bytes returns the buffer contents in chronological order.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	out := make([]byte, rb.n)
	first := copy(out, rb.buf[rb.start:min(rb.start+rb.n, len(rb.buf))])
	copy(out[first:], rb.buf[:rb.n-first])
	return out
}

// DumpToFile writes the ring buffer contents to a file in chronological order.
func (rb *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, rb.Bytes(), 0o644)
}
