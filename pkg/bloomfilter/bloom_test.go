package bloomfilter

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_NoFalseNegatives(t *testing.T) {
	f := New(1000, 0.01)

	keys := []string{`"\x1b[2J"`, `"\x1b]0;title\a"`, `"\r"`, `"‮"`}
	for _, k := range keys {
		f.TestAndAdd(k)
	}
	for _, k := range keys {
		assert.True(t, f.TestAndAdd(k), "key %s", k)
	}
}

func TestFilter_FalsePositiveRate(t *testing.T) {
	f := New(1000, 0.01)
	for i := 0; i < 1000; i++ {
		f.TestAndAdd(fmt.Sprintf("seq-%d", i))
	}

	fp := 0
	for i := 0; i < 10000; i++ {
		if f.contains(fmt.Sprintf("other-%d", i)) {
			fp++
		}
	}
	assert.Less(t, fp, 500, "false positives: %d/10000", fp)
}

func TestFilter_TestAndAdd(t *testing.T) {
	f := New(100, 0.01)

	assert.False(t, f.TestAndAdd("a"))
	assert.True(t, f.TestAndAdd("a"))
	assert.False(t, f.TestAndAdd("b"))
	assert.True(t, f.TestAndAdd("b"))
}

func TestFilter_DefaultValues(t *testing.T) {
	for _, f := range []*Filter{New(0, 0.01), New(1000, 0), New(1000, 1.5)} {
		assert.NotZero(t, f.m)
		assert.NotZero(t, f.k)
		assert.False(t, f.TestAndAdd("x"))
		assert.True(t, f.TestAndAdd("x"))
	}
}

func TestFilter_Concurrent(t *testing.T) {
	f := New(10000, 0.01)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				f.TestAndAdd(fmt.Sprintf("%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	for g := 0; g < 8; g++ {
		assert.True(t, f.contains(fmt.Sprintf("%d-499", g)))
	}
}

func BenchmarkFilter_TestAndAdd(b *testing.B) {
	f := New(100000, 0.01)
	for i := 0; i < b.N; i++ {
		f.TestAndAdd(fmt.Sprintf("item%d", i%50000))
	}
}
