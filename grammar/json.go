package grammar

import (
	"encoding/json"
	"fmt"
	"io"
)

// atomJSON is the interchange form of an Atom. Fields are pointers where
// absence and zero must be told apart during decoding.
type atomJSON struct {
	Type     string `json:"type"`
	Pattern  string `json:"pattern,omitempty"`
	Atoms    []int  `json:"atoms,omitempty"`
	Atom     *int   `json:"atom,omitempty"`
	Min      *int   `json:"min,omitempty"`
	Max      *int   `json:"max,omitempty"`
	Name     string `json:"name,omitempty"`
	Positive *bool  `json:"positive,omitempty"`
}

type grammarJSON struct {
	Atoms []atomJSON `json:"atoms"`
	Root  int        `json:"root"`
}

var kindTags = map[AtomKind]string{
	KindStr:         "str",
	KindRe:          "re",
	KindSequence:    "sequence",
	KindAlternative: "alternative",
	KindRepetition:  "repetition",
	KindNamed:       "named",
	KindEntity:      "entity",
	KindLookahead:   "lookahead",
	KindCut:         "cut",
	KindIgnore:      "ignore",
}

var tagKinds = func() map[string]AtomKind {
	m := make(map[string]AtomKind, len(kindTags))
	for k, tag := range kindTags {
		m[tag] = k
	}
	return m
}()

// MarshalJSON encodes the grammar in the interchange schema
// {"atoms": [...], "root": n}.
func (g *Grammar) MarshalJSON() ([]byte, error) {
	out := grammarJSON{Root: g.Root, Atoms: make([]atomJSON, len(g.Atoms))}
	for i := range g.Atoms {
		a := &g.Atoms[i]
		ja := atomJSON{Type: kindTags[a.Kind]}
		switch a.Kind {
		case KindStr, KindRe:
			ja.Pattern = a.Pattern
		case KindSequence, KindAlternative:
			ja.Atoms = a.Atoms
			if ja.Atoms == nil {
				ja.Atoms = []int{}
			}
		case KindRepetition:
			atom, min, max := a.Atom, a.Min, a.Max
			ja.Atom, ja.Min, ja.Max = &atom, &min, &max
		case KindNamed:
			atom := a.Atom
			ja.Atom = &atom
			ja.Name = a.Name
		case KindEntity, KindIgnore:
			atom := a.Atom
			ja.Atom = &atom
		case KindLookahead:
			atom, positive := a.Atom, a.Positive
			ja.Atom, ja.Positive = &atom, &positive
		case KindCut:
		}
		out.Atoms[i] = ja
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the interchange schema. Unknown type tags and
// missing required fields are errors; index validity is left to Validate.
func (g *Grammar) UnmarshalJSON(data []byte) error {
	var in grammarJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	atoms := make([]Atom, len(in.Atoms))
	for i, ja := range in.Atoms {
		kind, ok := tagKinds[ja.Type]
		if !ok {
			return fmt.Errorf("atom %d: unknown type %q", i, ja.Type)
		}
		a := Atom{Kind: kind}
		switch kind {
		case KindStr, KindRe:
			a.Pattern = ja.Pattern
		case KindSequence, KindAlternative:
			a.Atoms = ja.Atoms
		case KindRepetition:
			if ja.Atom == nil {
				return fmt.Errorf("atom %d: repetition without atom", i)
			}
			a.Atom = *ja.Atom
			if ja.Min != nil {
				a.Min = *ja.Min
			}
			a.Max = Unbounded
			if ja.Max != nil {
				a.Max = *ja.Max
			}
		case KindNamed:
			if ja.Atom == nil {
				return fmt.Errorf("atom %d: named capture without atom", i)
			}
			if ja.Name == "" {
				return fmt.Errorf("atom %d: named capture without name", i)
			}
			a.Atom = *ja.Atom
			a.Name = ja.Name
		case KindEntity, KindIgnore:
			if ja.Atom == nil {
				return fmt.Errorf("atom %d: %s without atom", i, kind)
			}
			a.Atom = *ja.Atom
		case KindLookahead:
			if ja.Atom == nil {
				return fmt.Errorf("atom %d: lookahead without atom", i)
			}
			a.Atom = *ja.Atom
			a.Positive = true
			if ja.Positive != nil {
				a.Positive = *ja.Positive
			}
		case KindCut:
		}
		atoms[i] = a
	}
	g.Atoms = atoms
	g.Root = in.Root
	return nil
}

// Decode reads a grammar from r and validates it.
func Decode(r io.Reader) (*Grammar, error) {
	g := New()
	dec := json.NewDecoder(r)
	if err := dec.Decode(g); err != nil {
		return nil, fmt.Errorf("decode grammar: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grammar: %w", err)
	}
	return g, nil
}

// Encode writes the grammar to w, indented.
func (g *Grammar) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}
