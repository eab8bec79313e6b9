package grammar

import "fmt"

// AtomKind identifies the matching primitive an Atom implements.
type AtomKind int

const (
	KindStr AtomKind = iota
	KindRe
	KindSequence
	KindAlternative
	KindRepetition
	KindNamed
	KindEntity
	KindLookahead
	KindCut
	KindIgnore
)

var atomKindNames = map[AtomKind]string{
	KindStr:         "Str",
	KindRe:          "Re",
	KindSequence:    "Sequence",
	KindAlternative: "Alternative",
	KindRepetition:  "Repetition",
	KindNamed:       "Named",
	KindEntity:      "Entity",
	KindLookahead:   "Lookahead",
	KindCut:         "Cut",
	KindIgnore:      "Ignore",
}

func (k AtomKind) String() string {
	if name, ok := atomKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Unbounded marks a repetition with no upper limit.
const Unbounded = -1

// Atom is one matching rule in a grammar. Atoms reference each other by
// index, never by pointer, so recursive rules are plain indices through an
// Entity indirection.
type Atom struct {
	Kind AtomKind

	// Pattern is the literal for Str and the pattern source for Re.
	Pattern string

	// Atoms holds the children of Sequence and Alternative.
	Atoms []int

	// Atom is the single child of Repetition, Named, Entity, Lookahead
	// and Ignore.
	Atom int

	// Min and Max bound a Repetition. Max == Unbounded means no limit.
	Min int
	Max int

	// Name labels a Named capture.
	Name string

	// Positive distinguishes positive from negative Lookahead.
	Positive bool
}

func Str(pattern string) Atom { return Atom{Kind: KindStr, Pattern: pattern} }
func Re(pattern string) Atom { return Atom{Kind: KindRe, Pattern: pattern} }
func Sequence(atoms ...int) Atom {
	return Atom{Kind: KindSequence, Atoms: atoms}
}
func Alternative(atoms ...int) Atom {
	return Atom{Kind: KindAlternative, Atoms: atoms}
}
func Repetition(atom, min, max int) Atom {
	return Atom{Kind: KindRepetition, Atom: atom, Min: min, Max: max}
}
func Named(name string, atom int) Atom {
	return Atom{Kind: KindNamed, Name: name, Atom: atom}
}
func Entity(atom int) Atom { return Atom{Kind: KindEntity, Atom: atom} }
func Lookahead(atom int, positive bool) Atom {
	return Atom{Kind: KindLookahead, Atom: atom, Positive: positive}
}
func Cut() Atom { return Atom{Kind: KindCut} }
func Ignore(atom int) Atom { return Atom{Kind: KindIgnore, Atom: atom} }

// Grammar is a flat, index-addressed table of atoms plus a root index.
// Grammars are immutable once built and safe for concurrent readers.
type Grammar struct {
	Atoms []Atom
	Root  int
}

func New() *Grammar {
	return &Grammar{}
}

// Add appends an atom and returns its index.
func (g *Grammar) Add(a Atom) int {
	g.Atoms = append(g.Atoms, a)
	return len(g.Atoms) - 1
}

// Atom returns the atom at index i, or nil when i is out of range.
func (g *Grammar) Atom(i int) *Atom {
	if i < 0 || i >= len(g.Atoms) {
		return nil
	}
	return &g.Atoms[i]
}

func (g *Grammar) Len() int { return len(g.Atoms) }

// children returns every atom index referenced by a.
func (a *Atom) children() []int {
	switch a.Kind {
	case KindSequence, KindAlternative:
		return a.Atoms
	case KindRepetition, KindNamed, KindEntity, KindLookahead, KindIgnore:
		return []int{a.Atom}
	}
	return nil
}

// Validate checks that every atom reference is in range and that repetition
// bounds make sense. Parsing with an invalid grammar is undefined.
func (g *Grammar) Validate() error {
	if len(g.Atoms) == 0 {
		return fmt.Errorf("grammar has no atoms")
	}
	if g.Root < 0 || g.Root >= len(g.Atoms) {
		return fmt.Errorf("root index %d out of range (%d atoms)", g.Root, len(g.Atoms))
	}
	for i := range g.Atoms {
		a := &g.Atoms[i]
		for _, child := range a.children() {
			if child < 0 || child >= len(g.Atoms) {
				return fmt.Errorf("atom %d (%s) references atom %d, out of range", i, a.Kind, child)
			}
		}
		if a.Kind == KindRepetition {
			if a.Min < 0 {
				return fmt.Errorf("atom %d: repetition min %d is negative", i, a.Min)
			}
			if a.Max != Unbounded && a.Max < a.Min {
				return fmt.Errorf("atom %d: repetition max %d below min %d", i, a.Max, a.Min)
			}
		}
	}
	return nil
}

// Walk visits every atom reachable from the root, parents before children,
// each atom once.
func (g *Grammar) Walk(visit func(id int, a *Atom)) {
	seen := make([]bool, len(g.Atoms))
	var walk func(id int)
	walk = func(id int) {
		if id < 0 || id >= len(g.Atoms) || seen[id] {
			return
		}
		seen[id] = true
		a := &g.Atoms[id]
		visit(id, a)
		for _, child := range a.children() {
			walk(child)
		}
	}
	walk(g.Root)
}

// Append copies every atom of other into g, remapping the internal indices,
// and returns the remapped index of other's root. The receiver's root is
// unchanged; the caller decides how to connect the imported rules.
func (g *Grammar) Append(other *Grammar) int {
	base := len(g.Atoms)
	for _, a := range other.Atoms {
		remapped := a
		if len(a.Atoms) > 0 {
			remapped.Atoms = make([]int, len(a.Atoms))
			for i, child := range a.Atoms {
				remapped.Atoms[i] = child + base
			}
		}
		switch a.Kind {
		case KindRepetition, KindNamed, KindEntity, KindLookahead, KindIgnore:
			remapped.Atom = a.Atom + base
		}
		g.Atoms = append(g.Atoms, remapped)
	}
	return other.Root + base
}
