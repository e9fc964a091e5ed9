// Package pool recycles render buffers on the request and event hot paths.
package pool

import (
	"bytes"
	"sync"
)

// maxPooled is the largest buffer capacity kept for reuse.
const maxPooled = 256 << 10

var buffers = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// GetBuffer retrieves an empty buffer from the pool.
func GetBuffer() *bytes.Buffer {
	buf := buffers.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns buf to the pool. Oversized buffers are dropped.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooled {
		return
	}
	buffers.Put(buf)
}
