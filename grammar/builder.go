package grammar

import "fmt"

// Builder constructs grammars rule by rule. Rules may be referenced before
// they are defined: Rule allocates an Entity placeholder whose target is
// patched when Build resolves the rule table. The first defined rule
// becomes the root.
type Builder struct {
	g       *Grammar
	refs    map[string]int // rule name -> placeholder Entity index
	defined map[string]int // rule name -> defined atom index
	first   string
}

func NewBuilder() *Builder {
	return &Builder{
		g:       New(),
		refs:    make(map[string]int),
		defined: make(map[string]int),
	}
}

// Rule returns an atom index that refers to the named rule, allocating a
// forward reference when the rule is not defined yet.
func (b *Builder) Rule(name string) int {
	if id, ok := b.refs[name]; ok {
		return id
	}
	id := b.g.Add(Entity(-1))
	b.refs[name] = id
	return id
}

// Define binds name to the given atom. Defining a rule twice is an error
// reported by Build.
func (b *Builder) Define(name string, atom int) int {
	if _, dup := b.defined[name]; dup {
		b.defined[name] = -1
		return b.Rule(name)
	}
	b.defined[name] = atom
	if b.first == "" {
		b.first = name
	}
	return b.Rule(name)
}

func (b *Builder) Str(pattern string) int { return b.g.Add(Str(pattern)) }
func (b *Builder) Re(pattern string) int { return b.g.Add(Re(pattern)) }

// Any matches one character of any kind.
func (b *Builder) Any() int { return b.g.Add(Re(".")) }

func (b *Builder) Seq(atoms ...int) int { return b.g.Add(Sequence(atoms...)) }
func (b *Builder) Choice(atoms ...int) int { return b.g.Add(Alternative(atoms...)) }

func (b *Builder) Rep(atom, min, max int) int { return b.g.Add(Repetition(atom, min, max)) }
func (b *Builder) Many(atom int) int { return b.g.Add(Repetition(atom, 0, Unbounded)) }
func (b *Builder) Many1(atom int) int { return b.g.Add(Repetition(atom, 1, Unbounded)) }
func (b *Builder) Opt(atom int) int { return b.g.Add(Repetition(atom, 0, 1)) }

func (b *Builder) Named(name string, atom int) int { return b.g.Add(Named(name, atom)) }
func (b *Builder) Ahead(atom int) int { return b.g.Add(Lookahead(atom, true)) }
func (b *Builder) NotAhead(atom int) int { return b.g.Add(Lookahead(atom, false)) }
func (b *Builder) Ignore(atom int) int { return b.g.Add(Ignore(atom)) }
func (b *Builder) Cut() int { return b.g.Add(Cut()) }

// Add appends a hand-built atom.
func (b *Builder) Add(a Atom) int { return b.g.Add(a) }

// Import appends another grammar's atoms, remapped, and returns the
// imported root's new index.
func (b *Builder) Import(other *Grammar) int { return b.g.Append(other) }

// Build resolves every forward reference and returns the grammar rooted at
// the first defined rule.
func (b *Builder) Build() (*Grammar, error) {
	if b.first == "" {
		return nil, fmt.Errorf("no rules defined")
	}
	for name, ref := range b.refs {
		target, ok := b.defined[name]
		if !ok {
			return nil, fmt.Errorf("rule %q referenced but never defined", name)
		}
		if target < 0 {
			return nil, fmt.Errorf("rule %q defined more than once", name)
		}
		b.g.Atoms[ref].Atom = target
	}
	b.g.Root = b.refs[b.first]
	if err := b.g.Validate(); err != nil {
		return nil, err
	}
	return b.g, nil
}
