package cache

import (
	"strconv"
	"testing"
)

func BenchmarkCacheGet(b *testing.B) {
	c := New[string, blob](1000, blobSize, nil)
	for i := 0; i < 100; i++ {
		_ = c.Insert(strconv.Itoa(i), blob{n: 1})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("50")
	}
}

func BenchmarkCacheInsert(b *testing.B) {
	c := New[string, blob](1000, blobSize, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Insert(strconv.Itoa(i%100), blob{n: 1})
	}
}

func BenchmarkCacheInsertEvicting(b *testing.B) {
	c := New[int, blob](64, blobSize, func(int, blob) {})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Insert(i, blob{n: 1})
	}
}
