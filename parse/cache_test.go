package parse

import (
	"testing"
	"unsafe"
)

func TestCacheEntrySize(t *testing.T) {
	if size := unsafe.Sizeof(CacheEntry{}); size != 16 {
		t.Errorf("CacheEntry size = %d bytes, want 16", size)
	}
}

func TestCacheEntryPacking(t *testing.T) {
	e := newCacheEntry(10, 3, true, 25, 42)
	if !e.Success() {
		t.Error("Success() = false, want true")
	}
	if e.NodeIndex() != 42 {
		t.Errorf("NodeIndex() = %d, want 42", e.NodeIndex())
	}
	if e.Pos != 10 || e.EndPos != 25 || e.Atom != 3 {
		t.Errorf("entry = %+v", e)
	}

	f := newCacheEntry(10, 3, false, 10, 0)
	if f.Success() {
		t.Error("failure entry reports success")
	}

	// The node index must survive next to the success flag at the top
	// of its word.
	big := newCacheEntry(0, 0, true, 0, (1<<31)-1)
	if big.NodeIndex() != (1<<31)-1 {
		t.Errorf("NodeIndex() = %d, want %d", big.NodeIndex(), uint32(1<<31)-1)
	}
	if !big.Success() {
		t.Error("large node index clobbered the success flag")
	}
}

func TestCacheInsertGet(t *testing.T) {
	c := NewCache(16)

	if _, ok := c.Get(5, 1); ok {
		t.Error("Get on empty cache should miss")
	}

	c.Insert(newCacheEntry(5, 1, true, 9, 0))
	e, ok := c.Get(5, 1)
	if !ok {
		t.Fatal("Get after Insert should hit")
	}
	if e.EndPos != 9 {
		t.Errorf("EndPos = %d, want 9", e.EndPos)
	}

	// Same position, different atom is a distinct key.
	if _, ok := c.Get(5, 2); ok {
		t.Error("different atom id should miss")
	}

	// Duplicate insert keeps the first entry.
	c.Insert(newCacheEntry(5, 1, true, 99, 0))
	if e, _ := c.Get(5, 1); e.EndPos != 9 {
		t.Errorf("duplicate insert replaced entry: EndPos = %d, want 9", e.EndPos)
	}
}

func TestCacheGrowth(t *testing.T) {
	c := NewCache(16)
	const n = 10_000
	for i := 0; i < n; i++ {
		c.Insert(newCacheEntry(uint32(i), uint16(i%100), i%2 == 0, uint32(i+1), uint32(i)))
	}
	if c.Len() != n {
		t.Fatalf("Len() = %d, want %d", c.Len(), n)
	}
	for i := 0; i < n; i += 997 {
		e, ok := c.Get(uint32(i), uint16(i%100))
		if !ok {
			t.Fatalf("entry %d lost after growth", i)
		}
		if e.EndPos != uint32(i+1) {
			t.Errorf("entry %d EndPos = %d, want %d", i, e.EndPos, i+1)
		}
	}
}

func TestCacheStats(t *testing.T) {
	c := NewCache(16)
	c.Insert(newCacheEntry(0, 0, true, 1, 0))

	c.Get(0, 0)
	c.Get(0, 0)
	c.Get(9, 9)

	hits, misses, ratio := c.Stats()
	if hits != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
	if ratio <= 0 || ratio > 1 {
		t.Errorf("ratio = %f, want in (0, 1]", ratio)
	}
}

func TestCacheClear(t *testing.T) {
	c := NewCache(16)
	c.Insert(newCacheEntry(1, 1, true, 2, 0))
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", c.Len())
	}
	if _, ok := c.Get(1, 1); ok {
		t.Error("Get after Clear should miss")
	}
}

func TestCacheRetain(t *testing.T) {
	c := NewCache(16)
	for i := 0; i < 100; i++ {
		c.Insert(newCacheEntry(uint32(i), 0, true, uint32(i+1), uint32(i)))
	}

	c.Retain(func(e *CacheEntry) bool { return e.Pos < 50 })

	if c.Len() != 50 {
		t.Fatalf("Len() = %d after Retain, want 50", c.Len())
	}
	if _, ok := c.Get(10, 0); !ok {
		t.Error("retained entry lost")
	}
	if _, ok := c.Get(80, 0); ok {
		t.Error("evicted entry still reachable")
	}
}

func TestCacheCapacityForInput(t *testing.T) {
	tests := []struct {
		name     string
		inputLen int
		atoms    int
		want     int
	}{
		{"floor", 10, 3, 1000},
		{"scales with input", 100_000, 10, 50_000},
		{"ceiling", 50_000_000, 200, 500_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CacheCapacityForInput(tt.inputLen, tt.atoms); got != tt.want {
				t.Errorf("CacheCapacityForInput(%d, %d) = %d, want %d", tt.inputLen, tt.atoms, got, tt.want)
			}
		})
	}
}
