// Package pool provides a sync.Pool of fixed-size receive buffers so the
// UDP transport's hot path does not allocate one []byte per datagram.
package pool

import "sync"

// BufferSize is the fixed size of every buffer this pool hands out: the
// wire protocol never sends or receives a datagram larger than this
// (section 6 — overlong responses are truncated with tc=1, never grown).
const BufferSize = 512

var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, BufferSize)
		return &buf
	},
}

// Get returns a BufferSize-length buffer.
func Get() []byte {
	bufPtr := bufferPool.Get().(*[]byte)
	return (*bufPtr)[:BufferSize]
}

// Put returns buf to the pool. A buffer smaller than BufferSize (which
// this pool never hands out, but a caller could pass by mistake) is
// dropped rather than pooled.
func Put(buf []byte) {
	if cap(buf) < BufferSize {
		return
	}
	buf = buf[:BufferSize]
	bufferPool.Put(&buf)
}
