package parse

import "math"

// NodeKind identifies the variant a Node carries.
type NodeKind int

const (
	KindNil NodeKind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindInputRef
	KindArray
	KindHash
)

var nodeKindNames = map[NodeKind]string{
	KindNil:      "Nil",
	KindBool:     "Bool",
	KindInt:      "Int",
	KindFloat:    "Float",
	KindStr:      "Str",
	KindInputRef: "InputRef",
	KindArray:    "Array",
	KindHash:     "Hash",
}

func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Node is a fixed-size tagged parse value. Str, Array and Hash nodes hold
// indices into the arena that produced them; InputRef holds a span of the
// original input. Nodes are cheap to copy and never point into the heap,
// so they are not portable across arenas.
type Node struct {
	Kind NodeKind

	// num holds the Bool (0/1), Int or Float bits.
	num uint64

	// a is the string pool index (Str), the input offset (InputRef), or
	// the pool start (Array, Hash). b is the length where one applies.
	a uint32
	b uint32
}

// Nil is the zero Node.
var Nil = Node{}

func BoolNode(v bool) Node {
	n := Node{Kind: KindBool}
	if v {
		n.num = 1
	}
	return n
}

func IntNode(v int64) Node { return Node{Kind: KindInt, num: uint64(v)} }

func FloatNode(v float64) Node {
	return Node{Kind: KindFloat, num: math.Float64bits(v)}
}

func (n Node) Bool() bool     { return n.num != 0 }
func (n Node) Int() int64     { return int64(n.num) }
func (n Node) Float() float64 { return math.Float64frombits(n.num) }

// StrIndex returns the string pool index of a Str node.
func (n Node) StrIndex() int { return int(n.a) }

// Span returns the input offset and length of an InputRef node.
func (n Node) Span() (offset, length int) { return int(n.a), int(n.b) }

// Pool returns the pool start and length of an Array or Hash node.
func (n Node) Pool() (start, length int) { return int(n.a), int(n.b) }

func (n Node) IsNil() bool { return n.Kind == KindNil }

// Text resolves the node's textual content: the referenced input span for
// InputRef, the interned string for Str, "" otherwise.
func (n Node) Text(arena *Arena, input string) string {
	switch n.Kind {
	case KindInputRef:
		off, length := n.Span()
		if off < 0 || off+length > len(input) {
			return ""
		}
		return input[off : off+length]
	case KindStr:
		return arena.StringAt(n.StrIndex())
	}
	return ""
}

// Equal compares two nodes structurally through their arenas: index-based
// variants compare their referenced contents, not the raw indices, so trees
// built by separate parses compare equal when they describe the same value.
func Equal(a Node, aArena *Arena, b Node, bArena *Arena) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool, KindInt, KindFloat:
		return a.num == b.num
	case KindStr:
		return aArena.StringAt(a.StrIndex()) == bArena.StringAt(b.StrIndex())
	case KindInputRef:
		return a.a == b.a && a.b == b.b
	case KindArray:
		as, bs := aArena.Array(a), bArena.Array(b)
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], aArena, bs[i], bArena) {
				return false
			}
		}
		return true
	case KindHash:
		as, bs := aArena.Hash(a), bArena.Hash(b)
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if aArena.StringAt(int(as[i].Key)) != bArena.StringAt(int(bs[i].Key)) {
				return false
			}
			if !Equal(as[i].Value, aArena, bs[i].Value, bArena) {
				return false
			}
		}
		return true
	}
	return false
}
