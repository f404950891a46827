// Package secret holds password material in wipeable buffers. A Buffer
// pins its backing memory where the platform allows it and guarantees
// the bytes are overwritten before the memory is returned to the runtime.
package secret

import (
	"crypto/rand"
	"sync"
)

// Buffer owns a byte slice containing sensitive material.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	pinned bool
	wiped  bool
}

// New takes ownership of b. The caller must not retain b.
func New(b []byte) *Buffer {
	buf := &Buffer{data: b}
	if len(b) > 0 {
		buf.pinned = pin(b) == nil
	}
	return buf
}

// Bytes exposes the underlying slice. The slice is only valid until Wipe.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wiped {
		return nil
	}
	return b.data
}

// Len reports the number of secret bytes held.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wiped {
		return 0
	}
	return len(b.data)
}

// Wipe overwrites the buffer and unpins it. Subsequent calls are no-ops.
func (b *Buffer) Wipe() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wiped {
		return
	}
	Scrub(b.data)
	if b.pinned {
		_ = unpin(b.data)
		b.pinned = false
	}
	b.data = nil
	b.wiped = true
}

// Scrub overwrites p in place, first with random bytes, then with zeros.
func Scrub(p []byte) {
	if len(p) == 0 {
		return
	}
	_, _ = rand.Read(p)
	for i := range p {
		p[i] = 0
	}
}
