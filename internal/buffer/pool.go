// Package buffer lends fixed-size byte buffers for packet receive.
package buffer

import (
	"sync"
	"sync/atomic"

	"firestige.xyz/sniff/internal/core"
)

// DefaultSize fits one untagged Ethernet frame at a 1500-byte MTU.
const DefaultSize = 1500 + 14

// Buffer is a byte region lent by a Pool. A Buffer has exactly one owner:
// whoever received it from Get until it is handed back with Put or Release.
type Buffer struct {
	data []byte
	pool *Pool
	lent atomic.Bool
}

// Bytes returns the whole buffer. The slice must not be used after the
// buffer is returned to its pool.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the buffer capacity in bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Release hands the buffer back to the pool it came from.
func (b *Buffer) Release() error {
	return b.pool.Put(b)
}

// Pool keeps idle buffers on a LIFO stack. Get never blocks and never fails:
// when the stack is empty a new buffer of the configured size is allocated,
// so memory grows without bound if callers hold buffers faster than they
// return them.
type Pool struct {
	mu        sync.Mutex
	idle      []*Buffer
	size      int
	allocated int
}

// NewPool creates a pool of size-byte buffers with initial buffers allocated
// up front. A zero initial count is valid; a non-positive size selects
// DefaultSize.
func NewPool(initial, size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	p := &Pool{
		idle: make([]*Buffer, 0, initial),
		size: size,
	}
	for i := 0; i < initial; i++ {
		p.idle = append(p.idle, p.alloc(size))
	}
	p.allocated = initial
	return p
}

func (p *Pool) alloc(size int) *Buffer {
	return &Buffer{data: make([]byte, size), pool: p}
}

// Get lends one buffer.
func (p *Pool) Get() *Buffer {
	p.mu.Lock()
	var b *Buffer
	if n := len(p.idle); n > 0 {
		b = p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
	} else {
		b = p.alloc(p.size)
		p.allocated++
	}
	p.mu.Unlock()

	b.lent.Store(true)
	return b
}

// Put returns a lent buffer to the idle set. It fails with
// core.ErrPoolBufferNotLent if b belongs to another pool or is already idle.
func (p *Pool) Put(b *Buffer) error {
	if b == nil || b.pool != p || !b.lent.CompareAndSwap(true, false) {
		return core.ErrPoolBufferNotLent
	}

	p.mu.Lock()
	p.idle = append(p.idle, b)
	p.mu.Unlock()
	return nil
}

// Create adds one idle buffer of the given size. Buffers created this way
// break the assumption that every buffer has the configured size; prefer
// NewPool's initial count.
func (p *Pool) Create(size int) {
	b := p.alloc(size)

	p.mu.Lock()
	p.idle = append(p.idle, b)
	p.allocated++
	p.mu.Unlock()
}

// Count returns the number of idle buffers.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Allocated returns the number of buffers this pool has ever allocated.
func (p *Pool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// Size returns the configured buffer size.
func (p *Pool) Size() int { return p.size }

// Drain drops every idle buffer and returns how many were dropped.
// Lent buffers are unaffected and may still be returned.
func (p *Pool) Drain() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.idle)
	clear(p.idle)
	p.idle = p.idle[:0]
	return n
}
