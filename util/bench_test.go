package util

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
)

// BenchmarkCopyChunked measures the chunked copy loop used to stream
// a session to a connection.
func BenchmarkCopyChunked(b *testing.B) {
	payload := bytes.Repeat([]byte("X"), DefaultBufSize)

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		CopyChunked(context.Background(), io.Discard, bytes.NewReader(payload), 512) //nolint:errcheck
	}
}

// BenchmarkGetBuf compares a pooled READ buffer with a fresh
// allocation of the same size.
func BenchmarkGetBuf(b *testing.B) {
	for _, size := range []int{64, DefaultBufSize} {
		b.Run(fmt.Sprintf("pool/%d", size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				buf := GetBuf(size)
				buf.B[0] = 1
				buf.Release()
			}
		})
		b.Run(fmt.Sprintf("alloc/%d", size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				buf := make([]byte, size)
				buf[0] = 1
			}
		})
	}
}
