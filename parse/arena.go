package parse

import "hash/maphash"

// HashEntry is one key/value pair in the arena's hash pool. Keys are
// interned string pool indices.
type HashEntry struct {
	Key   uint32
	Value Node
}

// Arena owns all storage a parse produces: the interned string pool, a
// flat array pool of nodes and a flat hash pool of key/value pairs, each
// addressed by (start, length). One parse writes to exactly one arena;
// Reset reclaims everything in O(1) for the next parse.
type Arena struct {
	strings []string
	arrays  []Node
	hashes  []HashEntry

	// byHash maps a string hash to candidate pool indices. Candidates are
	// verified by byte comparison, so hash collisions cannot alias two
	// different strings to one index.
	byHash map[uint64][]uint32
	seed   maphash.Seed
}

const defaultArenaCapacity = 64

func NewArena() *Arena {
	return NewArenaWithCapacity(defaultArenaCapacity)
}

func NewArenaWithCapacity(capacity int) *Arena {
	if capacity < 1 {
		capacity = 1
	}
	return &Arena{
		strings: make([]string, 0, capacity/4+1),
		arrays:  make([]Node, 0, capacity),
		hashes:  make([]HashEntry, 0, capacity/4+1),
		byHash:  make(map[uint64][]uint32),
		seed:    maphash.MakeSeed(),
	}
}

// NewArenaForInput sizes the pools from the input length, assuming roughly
// one node per ten input bytes.
func NewArenaForInput(inputLen int) *Arena {
	estimated := inputLen / 10
	if estimated < 64 {
		estimated = 64
	}
	if estimated > 100000 {
		estimated = 100000
	}
	return NewArenaWithCapacity(estimated)
}

// Intern deduplicates s into the string pool and returns a Str node.
// Identical content always yields the same pool index.
func (a *Arena) Intern(s string) Node {
	idx := a.internIndex(s)
	return Node{Kind: KindStr, a: idx}
}

func (a *Arena) internIndex(s string) uint32 {
	h := maphash.String(a.seed, s)
	for _, candidate := range a.byHash[h] {
		if a.strings[candidate] == s {
			return candidate
		}
	}
	idx := uint32(len(a.strings))
	a.strings = append(a.strings, s)
	a.byHash[h] = append(a.byHash[h], idx)
	return idx
}

// InputRef returns a zero-copy span node over the original input. No
// arena storage is touched.
func (a *Arena) InputRef(offset, length int) Node {
	return Node{Kind: KindInputRef, a: uint32(offset), b: uint32(length)}
}

// StoreArray copies items into the array pool and returns an Array node.
func (a *Arena) StoreArray(items []Node) Node {
	start := uint32(len(a.arrays))
	a.arrays = append(a.arrays, items...)
	return Node{Kind: KindArray, a: start, b: uint32(len(items))}
}

// StoreHash copies pairs into the hash pool, interning the keys, and
// returns a Hash node.
func (a *Arena) StoreHash(keys []string, values []Node) Node {
	start := uint32(len(a.hashes))
	for i, key := range keys {
		a.hashes = append(a.hashes, HashEntry{Key: a.internIndex(key), Value: values[i]})
	}
	return Node{Kind: KindHash, a: start, b: uint32(len(keys))}
}

// StringAt returns the interned string at the given pool index.
func (a *Arena) StringAt(index int) string {
	if index < 0 || index >= len(a.strings) {
		return ""
	}
	return a.strings[index]
}

// Array returns the pool slice backing an Array node. The slice borrows
// arena storage and is valid until the next Reset.
func (a *Arena) Array(n Node) []Node {
	if n.Kind != KindArray {
		return nil
	}
	start, length := n.Pool()
	if start < 0 || start+length > len(a.arrays) {
		return nil
	}
	return a.arrays[start : start+length]
}

// Hash returns the pool slice backing a Hash node.
func (a *Arena) Hash(n Node) []HashEntry {
	if n.Kind != KindHash {
		return nil
	}
	start, length := n.Pool()
	if start < 0 || start+length > len(a.hashes) {
		return nil
	}
	return a.hashes[start : start+length]
}

// HashGet looks up a key in a Hash node.
func (a *Arena) HashGet(n Node, key string) (Node, bool) {
	for _, e := range a.Hash(n) {
		if a.StringAt(int(e.Key)) == key {
			return e.Value, true
		}
	}
	return Nil, false
}

// Reset truncates the array and hash pools in O(1), keeping interned
// strings so repeated parses of similar inputs reuse them.
func (a *Arena) Reset() {
	a.ResetWithOptions(false)
}

// ResetWithOptions optionally also drops the string pool. Clearing strings
// bounds memory growth in long-running processes at the cost of
// re-interning; keeping them maximizes reuse. The caller chooses.
func (a *Arena) ResetWithOptions(clearStrings bool) {
	a.arrays = a.arrays[:0]
	a.hashes = a.hashes[:0]
	if clearStrings {
		a.strings = a.strings[:0]
		clear(a.byHash)
	}
}

// StringCount reports the number of interned strings.
func (a *Arena) StringCount() int { return len(a.strings) }

// MemoryUsage estimates the arena's footprint in bytes. It feeds the
// matcher's memory ceiling, so it only needs to be proportional.
func (a *Arena) MemoryUsage() int {
	usage := len(a.arrays)*16 + len(a.hashes)*24
	for _, s := range a.strings {
		usage += len(s) + 16
	}
	return usage
}
