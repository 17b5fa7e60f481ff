package util

import "sync"

// bufPool recycles DefaultBufSize arrays for the chunked copy loop and
// the READ handler.
var bufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// Buffer is a pooled byte slice.  B has the length asked of GetBuf;
// Release hands the backing array back.
type Buffer struct {
	B  []byte
	bp *[]byte
}

// GetBuf returns a buffer of n bytes.  n is clamped to
// [0, DefaultBufSize], so a caller asking for more gets a short buffer
// and must treat the result as a partial read.
func GetBuf(n int) Buffer {
	n = min(max(n, 0), DefaultBufSize)
	bp := bufPool.Get().(*[]byte)
	return Buffer{B: (*bp)[:n], bp: bp}
}

// Release returns the buffer to the pool.  B must not be used
// afterwards.  Releasing the zero Buffer is a no-op.
func (b Buffer) Release() {
	if b.bp != nil {
		bufPool.Put(b.bp)
	}
}
