package lru

import (
	"sync"
	"testing"
)

func TestCache_PutGet(t *testing.T) {
	cache := New[string, int](4)

	cache.Put("sgr=on", 1)
	cache.Put("sgr=off", 2)

	if val, ok := cache.Get("sgr=on"); !ok || val != 1 {
		t.Errorf("Expected 1, got %d (ok=%v)", val, ok)
	}
	if val, ok := cache.Get("sgr=off"); !ok || val != 2 {
		t.Errorf("Expected 2, got %d (ok=%v)", val, ok)
	}
	if _, ok := cache.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := New[string, int](3)

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3)
	cache.Get("a")
	cache.Put("d", 4)

	if _, ok := cache.Get("b"); ok {
		t.Error("Expected 'b' to be evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := cache.Get(k); !ok {
			t.Errorf("Expected %q to survive", k)
		}
	}
	if cache.Len() != 3 {
		t.Errorf("Expected length 3, got %d", cache.Len())
	}
}

func TestCache_UpdateKeepsSingleEntry(t *testing.T) {
	cache := New[string, int](2)

	cache.Put("a", 1)
	cache.Put("a", 2)

	if val, _ := cache.Get("a"); val != 2 {
		t.Errorf("Expected 2, got %d", val)
	}
	if cache.Len() != 1 {
		t.Errorf("Expected length 1, got %d", cache.Len())
	}
}

func TestCache_PinnedSurvivesEviction(t *testing.T) {
	cache := New[string, int](2)

	cache.Put("default", 0)
	if !cache.Pin("default") {
		t.Fatal("Expected Pin to find key")
	}
	cache.Put("b", 1)
	cache.Put("c", 2)
	cache.Put("d", 3)

	if _, ok := cache.Get("default"); !ok {
		t.Error("Expected pinned entry to stay")
	}
	if _, ok := cache.Get("c"); ok {
		t.Error("Expected 'c' to be evicted")
	}
	if cache.Len() != 2 {
		t.Errorf("Expected length 2, got %d", cache.Len())
	}
}

func TestCache_PinKeepsEntryHot(t *testing.T) {
	cache := New[string, int](2)

	cache.Put("a", 1)
	cache.Pin("a")
	cache.Put("b", 2)
	cache.Put("a", 10)
	cache.Put("c", 3)

	if val, ok := cache.Get("a"); !ok || val != 10 {
		t.Errorf("Expected updated pinned value 10, got %d (ok=%v)", val, ok)
	}
	if _, ok := cache.Get("b"); ok {
		t.Error("Expected 'b' to be evicted")
	}
}

func TestCache_AllPinnedDropsNewcomer(t *testing.T) {
	cache := New[string, int](1)

	cache.Put("a", 1)
	cache.Pin("a")
	cache.Put("b", 2)

	if _, ok := cache.Get("b"); ok {
		t.Error("Expected 'b' to be dropped while 'a' is pinned")
	}
	if cache.Len() != 1 {
		t.Errorf("Expected length 1, got %d", cache.Len())
	}
}

func TestCache_PinUnknownKey(t *testing.T) {
	cache := New[string, int](2)

	if cache.Pin("nope") {
		t.Error("Expected Pin on missing key to report false")
	}
}

func TestCache_DefaultCapacity(t *testing.T) {
	cache := New[int, int](0)

	for i := 0; i < 100; i++ {
		cache.Put(i, i)
	}
	if cache.Len() != 64 {
		t.Errorf("Expected default capacity 64, got %d", cache.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := New[int, int](128)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				key := id*1000 + i
				cache.Put(key, key)
				cache.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if cache.Len() > 128 {
		t.Errorf("Cache exceeded capacity: %d", cache.Len())
	}
}
