// Package bloomfilter is a fixed-size, approximate set of strings.
//
// It answers "seen before?" in constant memory: a key that was added is
// always reported as seen, while a key that was not is reported as seen
// with roughly the configured probability.
package bloomfilter

import (
	"hash/maphash"
	"math"
	"math/bits"
	"sync"
)

var hashSeed = maphash.MakeSeed()

// Filter is safe for concurrent use.
type Filter struct {
	mu    sync.Mutex
	words []uint64
	m     uint64
	k     uint64
}

// New sizes a filter for expectedItems keys at false positive rate fpRate.
// Zero or out of range arguments fall back to 1000 keys at 1%.
func New(expectedItems uint, fpRate float64) *Filter {
	if expectedItems == 0 {
		expectedItems = 1000
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}

	n := float64(expectedItems)
	m := uint64(math.Ceil(-n * math.Log(fpRate) / (math.Ln2 * math.Ln2)))
	k := uint64(math.Ceil(float64(m) / n * math.Ln2))

	return &Filter{
		words: make([]uint64, (m+63)/64),
		m:     m,
		k:     k,
	}
}

// locations derives the k bit positions of key by double hashing.
func (f *Filter) locations(key string, fn func(pos uint64) bool) {
	sum := maphash.String(hashSeed, key)
	h1, h2 := sum, bits.RotateLeft64(sum, 32)|1
	for i := uint64(0); i < f.k; i++ {
		if !fn((h1 + i*h2) % f.m) {
			return
		}
	}
}

func (f *Filter) add(key string) {
	f.locations(key, func(pos uint64) bool {
		f.words[pos/64] |= 1 << (pos % 64)
		return true
	})
}

func (f *Filter) contains(key string) bool {
	found := true
	f.locations(key, func(pos uint64) bool {
		found = f.words[pos/64]&(1<<(pos%64)) != 0
		return found
	})
	return found
}

// TestAndAdd adds key and reports whether it may have been present before.
func (f *Filter) TestAndAdd(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contains(key) {
		return true
	}
	f.add(key)
	return false
}
