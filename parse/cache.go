package parse

// CacheEntry is one memoized match result, packed to 16 bytes so four
// entries share a cache line. The packed word carries the success bit in
// the top position and a 31-bit index into the matcher's node slice.
type CacheEntry struct {
	Pos    uint32
	EndPos uint32
	packed uint32
	Atom   uint16
	_      uint16
}

const successBit = uint32(1) << 31

func newCacheEntry(pos uint32, atom uint16, success bool, endPos, nodeIndex uint32) CacheEntry {
	packed := nodeIndex &^ successBit
	if success {
		packed |= successBit
	}
	return CacheEntry{Pos: pos, EndPos: endPos, packed: packed, Atom: atom}
}

func (e *CacheEntry) Success() bool     { return e.packed&successBit != 0 }
func (e *CacheEntry) NodeIndex() uint32 { return e.packed &^ successBit }

// Cache is the packrat memo table: open addressing with linear probing
// over a power-of-two slot array of indices into a dense entry slice. A
// general map's per-entry allocation and pointer chasing dominate packrat
// runtime, which performs on the order of input length times grammar size
// lookups; the dense layout keeps everything in two contiguous arrays.
type Cache struct {
	slots   []int32
	entries []CacheEntry
	hits    uint64
	misses  uint64
}

const cacheLoadFactor = 0.75

func NewCache(capacity int) *Cache {
	if capacity < 16 {
		capacity = 16
	}
	size := nextPowerOfTwo(capacity)
	c := &Cache{
		slots:   make([]int32, size),
		entries: make([]CacheEntry, 0, capacity),
	}
	for i := range c.slots {
		c.slots[i] = -1
	}
	return c
}

// CacheCapacityForInput sizes the cache from input length and grammar
// size, clamped so tiny inputs still get a useful table and huge inputs
// do not pre-allocate unboundedly.
func CacheCapacityForInput(inputLen, atomCount int) int {
	atoms := atomCount
	if atoms > 5 {
		atoms = 5
	}
	capacity := (inputLen / 10) * atoms
	if capacity < 1000 {
		capacity = 1000
	}
	if capacity > 500000 {
		capacity = 500000
	}
	return capacity
}

func nextPowerOfTwo(n int) int {
	size := 16
	for size < n {
		size <<= 1
	}
	return size
}

// hashKey is FNV-1a over the six key bytes: position little-endian, then
// atom id. Order-dependent, fast, and good enough for the tightly bounded
// key space; nothing here needs collision resistance.
func hashKey(pos uint32, atom uint16) uint32 {
	h := uint32(0x811c9dc5)
	for i := 0; i < 4; i++ {
		h ^= (pos >> (8 * i)) & 0xff
		h *= 0x01000193
	}
	h ^= uint32(atom) & 0xff
	h *= 0x01000193
	h ^= uint32(atom) >> 8
	h *= 0x01000193
	return h
}

// Get returns the memoized entry for (pos, atom) if present.
func (c *Cache) Get(pos uint32, atom uint16) (CacheEntry, bool) {
	mask := uint32(len(c.slots) - 1)
	i := hashKey(pos, atom) & mask
	for {
		slot := c.slots[i]
		if slot < 0 {
			c.misses++
			return CacheEntry{}, false
		}
		e := &c.entries[slot]
		if e.Pos == pos && e.Atom == atom {
			c.hits++
			return *e, true
		}
		i = (i + 1) & mask
	}
}

// Insert memoizes an entry, growing the table when the load factor passes
// the threshold. Inserting a key twice keeps the first entry.
func (c *Cache) Insert(e CacheEntry) {
	if float64(len(c.entries)+1) > cacheLoadFactor*float64(len(c.slots)) {
		c.grow()
	}
	mask := uint32(len(c.slots) - 1)
	i := hashKey(e.Pos, e.Atom) & mask
	for {
		slot := c.slots[i]
		if slot < 0 {
			c.slots[i] = int32(len(c.entries))
			c.entries = append(c.entries, e)
			return
		}
		existing := &c.entries[slot]
		if existing.Pos == e.Pos && existing.Atom == e.Atom {
			return
		}
		i = (i + 1) & mask
	}
}

func (c *Cache) grow() {
	newSlots := make([]int32, len(c.slots)*2)
	for i := range newSlots {
		newSlots[i] = -1
	}
	c.slots = newSlots
	c.reindex()
}

// reindex rebuilds the slot table from the dense entries.
func (c *Cache) reindex() {
	mask := uint32(len(c.slots) - 1)
	for idx := range c.entries {
		e := &c.entries[idx]
		i := hashKey(e.Pos, e.Atom) & mask
		for c.slots[i] >= 0 {
			i = (i + 1) & mask
		}
		c.slots[i] = int32(idx)
	}
}

func (c *Cache) Len() int { return len(c.entries) }

// Clear drops every entry but keeps the allocated tables.
func (c *Cache) Clear() {
	c.entries = c.entries[:0]
	for i := range c.slots {
		c.slots[i] = -1
	}
	c.hits = 0
	c.misses = 0
}

// Retain keeps only entries the predicate accepts, compacting the dense
// array and rebuilding the slot table. Used by the incremental and
// streaming layers for eviction.
func (c *Cache) Retain(keep func(e *CacheEntry) bool) {
	kept := c.entries[:0]
	for i := range c.entries {
		if keep(&c.entries[i]) {
			kept = append(kept, c.entries[i])
		}
	}
	c.entries = kept
	for i := range c.slots {
		c.slots[i] = -1
	}
	c.reindex()
}

// Stats returns hit and miss counts and the hit ratio.
func (c *Cache) Stats() (hits, misses uint64, ratio float64) {
	total := c.hits + c.misses
	if total > 0 {
		ratio = float64(c.hits) / float64(total)
	}
	return c.hits, c.misses, ratio
}

// MemoryUsage estimates the cache's footprint in bytes.
func (c *Cache) MemoryUsage() int {
	return len(c.slots)*4 + cap(c.entries)*16
}
