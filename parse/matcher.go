package parse

import (
	"time"

	"github.com/dhamidi/peg/grammar"
)

const (
	// DefaultMaxInputSize bounds accepted inputs at 100 MB.
	DefaultMaxInputSize = 100 * 1024 * 1024

	// DefaultMaxDepth bounds entity-mediated recursion. Plain composite
	// nesting is structurally bounded by grammar size; only entity
	// indirection can diverge.
	DefaultMaxDepth = 1000

	// resourceCheckInterval amortizes clock reads: the deadline and the
	// memory ceiling are checked once per this many atom operations.
	resourceCheckInterval = 1000
)

// maxAtoms is the largest grammar the 16-byte cache entry can address.
const maxAtoms = 1 << 16

type Option func(*Matcher)

func WithMaxInputSize(n int) Option {
	return func(m *Matcher) { m.maxInputSize = n }
}

func WithMaxDepth(n int) Option {
	return func(m *Matcher) { m.maxDepth = n }
}

// WithTimeout sets the parse deadline. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(m *Matcher) { m.timeout = d }
}

// WithMaxMemory caps the arena plus cache estimate. Zero means no limit.
func WithMaxMemory(n int) Option {
	return func(m *Matcher) { m.maxMemory = n }
}

// WithCache supplies an externally owned cache, letting the incremental
// and streaming layers carry memoized results across parses.
func WithCache(c *Cache) Option {
	return func(m *Matcher) { m.cache = c }
}

func WithCacheCapacity(n int) Option {
	return func(m *Matcher) { m.cacheCapacity = n }
}

func WithTracer(t Tracer) Option {
	return func(m *Matcher) { m.tracer = t }
}

// Matcher evaluates one grammar against one input. It owns its arena and
// cache exclusively for the duration of a parse; a Matcher must not be
// shared between goroutines. The grammar is never written to.
type Matcher struct {
	grammar *grammar.Grammar
	input   string
	arena   *Arena
	cache   *Cache

	// nodes is the side slice cache entries index into.
	nodes []Node

	maxInputSize  int
	maxDepth      int
	timeout       time.Duration
	maxMemory     int
	cacheCapacity int

	deadline time.Time
	ops      int
	depth    int

	// cut is set when a Cut atom matches and consumed by the innermost
	// enclosing alternative: a committed branch that later fails takes
	// the whole alternative down instead of falling through.
	cut bool

	// hasCut marks atoms whose subtree contains a Cut. Their results are
	// context-dependent (the commit signal does not replay from a memo),
	// so they are never cached.
	hasCut []bool

	tracer Tracer
}

// NewMatcher prepares a matcher. The grammar must validate; the arena may
// be nil, in which case one is sized from the input.
func NewMatcher(g *grammar.Grammar, input string, arena *Arena, opts ...Option) (*Matcher, error) {
	if err := g.Validate(); err != nil {
		return nil, &InvalidGrammarError{Reason: err.Error()}
	}
	if g.Len() > maxAtoms {
		return nil, &InvalidGrammarError{Reason: "too many atoms for the cache key space"}
	}
	m := &Matcher{
		grammar:      g,
		input:        input,
		arena:        arena,
		maxInputSize: DefaultMaxInputSize,
		maxDepth:     DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.arena == nil {
		m.arena = NewArenaForInput(len(input))
	}
	if m.cache == nil {
		capacity := m.cacheCapacity
		if capacity == 0 {
			capacity = CacheCapacityForInput(len(input), g.Len())
		}
		m.cache = NewCache(capacity)
	}
	m.hasCut = markCutReach(g)
	return m, nil
}

// Match is the convenience entry point: one grammar, one input, a fresh
// arena.
func Match(g *grammar.Grammar, input string, opts ...Option) (Node, *Arena, error) {
	m, err := NewMatcher(g, input, nil, opts...)
	if err != nil {
		return Nil, nil, err
	}
	node, err := m.Run()
	return node, m.arena, err
}

// Run parses the input. Success requires the root atom to consume the
// whole input.
func (m *Matcher) Run() (Node, error) {
	node, end, err := m.runRoot()
	if err != nil {
		return Nil, err
	}
	if end != len(m.input) {
		return Nil, &IncompleteError{Expected: len(m.input), Actual: end}
	}
	return node, nil
}

// RunPrefix parses from the start of the input without requiring full
// consumption, returning the match and the offset it ended at.
func (m *Matcher) RunPrefix() (Node, int, error) {
	return m.runRoot()
}

func (m *Matcher) runRoot() (Node, int, error) {
	if m.maxInputSize > 0 && len(m.input) > m.maxInputSize {
		return Nil, 0, &InputTooLargeError{Size: len(m.input), Limit: m.maxInputSize}
	}
	if m.timeout > 0 {
		m.deadline = time.Now().Add(m.timeout)
	}
	m.ops = 0
	m.depth = 0
	m.cut = false
	return m.tryAtom(m.grammar.Root, 0)
}

// Rebind points the matcher at new input while keeping the arena, cache
// and memoized nodes. Callers must first evict cache entries the new
// input invalidates; retained entries replay against positions where
// both inputs agree.
func (m *Matcher) Rebind(input string) {
	m.input = input
}

// ResetAll drops all carried state for a from-scratch parse: arena pools,
// cache entries and the memoized node slice.
func (m *Matcher) ResetAll() {
	m.arena.Reset()
	m.cache.Clear()
	m.nodes = m.nodes[:0]
}

// Input returns the input the matcher is currently bound to.
func (m *Matcher) Input() string { return m.input }

// Arena returns the arena holding this matcher's parse values.
func (m *Matcher) Arena() *Arena { return m.arena }

// Cache returns the packrat cache, mainly for stats.
func (m *Matcher) Cache() *Cache { return m.cache }

// MemoryUsage is the heuristic the memory ceiling checks.
func (m *Matcher) MemoryUsage() int {
	return m.arena.MemoryUsage() + m.cache.MemoryUsage() + len(m.nodes)*16
}

// BatchResult pairs one batch input's outcome with the arena that owns it.
type BatchResult struct {
	Node  Node
	Arena *Arena
	Err   error
}

// MatchBatch parses independent inputs against one immutable grammar.
// Every input gets its own arena and cache, so results stay valid side by
// side and callers may shard inputs across goroutines themselves.
func MatchBatch(g *grammar.Grammar, inputs []string, opts ...Option) []BatchResult {
	results := make([]BatchResult, len(inputs))
	for i, input := range inputs {
		node, arena, err := Match(g, input, opts...)
		results[i] = BatchResult{Node: node, Arena: arena, Err: err}
	}
	return results
}

func markCutReach(g *grammar.Grammar) []bool {
	reach := make([]bool, g.Len())
	// Fixed point: an atom reaches a cut if it is one or any child does.
	for changed := true; changed; {
		changed = false
		for i := 0; i < g.Len(); i++ {
			if reach[i] {
				continue
			}
			a := g.Atom(i)
			hit := a.Kind == grammar.KindCut
			switch a.Kind {
			case grammar.KindSequence, grammar.KindAlternative:
				for _, child := range a.Atoms {
					if reach[child] {
						hit = true
						break
					}
				}
			case grammar.KindRepetition, grammar.KindNamed, grammar.KindEntity,
				grammar.KindLookahead, grammar.KindIgnore:
				if reach[a.Atom] {
					hit = true
				}
			}
			if hit {
				reach[i] = true
				changed = true
			}
		}
	}
	return reach
}

func (m *Matcher) checkResources() error {
	m.ops++
	if m.ops%resourceCheckInterval != 0 {
		return nil
	}
	if !m.deadline.IsZero() && time.Now().After(m.deadline) {
		return &TimeoutError{Limit: m.timeout}
	}
	if m.maxMemory > 0 {
		if used := m.MemoryUsage(); used > m.maxMemory {
			return &MemoryLimitError{Used: used, Limit: m.maxMemory}
		}
	}
	return nil
}

func (m *Matcher) tryAtom(id, pos int) (Node, int, error) {
	if err := m.checkResources(); err != nil {
		return Nil, pos, err
	}

	cacheable := !m.hasCut[id]
	if cacheable {
		if e, ok := m.cache.Get(uint32(pos), uint16(id)); ok {
			if e.Success() {
				return m.nodes[e.NodeIndex()], int(e.EndPos), nil
			}
			return Nil, pos, &FailedError{Position: pos}
		}
	}

	if m.tracer != nil {
		m.tracer.Enter(id, pos, m.depth)
	}
	node, end, err := m.matchAtom(id, pos)
	if m.tracer != nil {
		m.tracer.Exit(id, pos, end, m.depth, err)
	}

	if err != nil {
		if cacheable && IsFailed(err) {
			m.cache.Insert(newCacheEntry(uint32(pos), uint16(id), false, uint32(pos), 0))
		}
		return Nil, pos, err
	}
	if cacheable {
		idx := uint32(len(m.nodes))
		m.nodes = append(m.nodes, node)
		m.cache.Insert(newCacheEntry(uint32(pos), uint16(id), true, uint32(end), idx))
	}
	return node, end, nil
}

func (m *Matcher) matchAtom(id, pos int) (Node, int, error) {
	a := m.grammar.Atom(id)
	if a == nil {
		return Nil, pos, &InternalError{Reason: "atom index out of range"}
	}
	switch a.Kind {
	case grammar.KindStr:
		return m.matchStr(a.Pattern, pos)
	case grammar.KindRe:
		return m.matchRe(a.Pattern, pos)
	case grammar.KindSequence:
		return m.matchSequence(a.Atoms, pos)
	case grammar.KindAlternative:
		return m.matchAlternative(a.Atoms, pos)
	case grammar.KindRepetition:
		return m.matchRepetition(a.Atom, a.Min, a.Max, pos)
	case grammar.KindNamed:
		return m.matchNamed(a.Name, a.Atom, pos)
	case grammar.KindEntity:
		return m.matchEntity(a.Atom, pos)
	case grammar.KindLookahead:
		return m.matchLookahead(a.Atom, a.Positive, pos)
	case grammar.KindCut:
		m.cut = true
		return Nil, pos, nil
	case grammar.KindIgnore:
		_, end, err := m.tryAtom(a.Atom, pos)
		if err != nil {
			return Nil, pos, err
		}
		return Nil, end, nil
	}
	return Nil, pos, &InternalError{Reason: "unknown atom kind"}
}

func (m *Matcher) matchStr(pattern string, pos int) (Node, int, error) {
	end := pos + len(pattern)
	if end > len(m.input) || m.input[pos:end] != pattern {
		return Nil, pos, &FailedError{Position: pos}
	}
	return m.arena.InputRef(pos, len(pattern)), end, nil
}

func (m *Matcher) matchRe(pattern string, pos int) (Node, int, error) {
	if pos >= len(m.input) {
		return Nil, pos, &FailedError{Position: pos}
	}
	b := m.input[pos]

	if class, ok := classForPattern(pattern); ok {
		if !class.matches(b) {
			return Nil, pos, &FailedError{Position: pos}
		}
		length := 1
		if class.multibyte() {
			length = utf8CharLen(b)
		}
		if pos+length > len(m.input) {
			length = len(m.input) - pos
		}
		return m.arena.InputRef(pos, length), pos + length, nil
	}

	re, err := sharedRegexCache.getOrCompile(pattern, m.timeout)
	if err != nil {
		return Nil, pos, &InternalError{Reason: "invalid regex pattern " + pattern + ": " + err.Error()}
	}
	match, err := re.FindStringMatch(m.input[pos:])
	if err != nil {
		return Nil, pos, &TimeoutError{Limit: re.MatchTimeout}
	}
	if match == nil || match.Index != 0 {
		return Nil, pos, &FailedError{Position: pos}
	}
	length := len(match.String())
	return m.arena.InputRef(pos, length), pos + length, nil
}

func (m *Matcher) matchSequence(atoms []int, pos int) (Node, int, error) {
	current := pos
	items := make([]Node, 0, len(atoms))
	for _, id := range atoms {
		node, end, err := m.tryAtom(id, current)
		if err != nil {
			return Nil, pos, err
		}
		items = append(items, node)
		current = end
	}
	return m.arena.StoreArray(items), current, nil
}

func (m *Matcher) matchAlternative(atoms []int, pos int) (Node, int, error) {
	outerCut := m.cut
	defer func() { m.cut = outerCut }()

	for _, id := range atoms {
		m.cut = false
		node, end, err := m.tryAtom(id, pos)
		if err == nil {
			return node, end, nil
		}
		if !IsFailed(err) {
			return Nil, pos, err
		}
		if m.cut {
			// The branch committed before failing: no fallthrough.
			return Nil, pos, err
		}
	}
	return Nil, pos, &FailedError{Position: pos}
}

func (m *Matcher) matchRepetition(atomID, min, max, pos int) (Node, int, error) {
	if inner := m.grammar.Atom(atomID); inner != nil && inner.Kind == grammar.KindRe {
		if class, ok := classForPattern(inner.Pattern); ok {
			if predicate, bytewise := class.predicate(); bytewise {
				return m.matchRepetitionRun(predicate, min, max, pos)
			}
		}
	}

	current := pos
	count := 0
	var items []Node
	for max == grammar.Unbounded || count < max {
		node, end, err := m.tryAtom(atomID, current)
		if err != nil {
			if !IsFailed(err) {
				return Nil, pos, err
			}
			break
		}
		items = append(items, node)
		// A zero-width match would repeat forever; stop after taking it
		// once.
		if end == current {
			count++
			break
		}
		current = end
		count++
	}
	if count < min {
		return Nil, pos, &FailedError{Position: pos}
	}
	return m.arena.StoreArray(items), current, nil
}

// matchRepetitionRun is the bulk fast path for repetitions over a
// single-byte character class: one scan, one InputRef spanning the run
// instead of an array of one-character matches. Callers relying on the
// result shape must account for this (the general path returns an Array).
func (m *Matcher) matchRepetitionRun(predicate func(byte) bool, min, max, pos int) (Node, int, error) {
	end := pos
	for end < len(m.input) && predicate(m.input[end]) {
		end++
	}
	count := end - pos
	if count < min {
		return Nil, pos, &FailedError{Position: pos}
	}
	if max != grammar.Unbounded && count > max {
		count = max
		end = pos + max
	}
	return m.arena.InputRef(pos, count), end, nil
}

func (m *Matcher) matchNamed(name string, atomID, pos int) (Node, int, error) {
	node, end, err := m.tryAtom(atomID, pos)
	if err != nil {
		return Nil, pos, err
	}
	return m.arena.StoreHash([]string{name}, []Node{node}), end, nil
}

func (m *Matcher) matchEntity(atomID, pos int) (Node, int, error) {
	m.depth++
	if m.maxDepth > 0 && m.depth > m.maxDepth {
		m.depth--
		return Nil, pos, &RecursionLimitError{Depth: m.maxDepth, Position: pos}
	}
	node, end, err := m.tryAtom(atomID, pos)
	m.depth--
	return node, end, err
}

func (m *Matcher) matchLookahead(atomID int, positive bool, pos int) (Node, int, error) {
	savedCut := m.cut
	_, _, err := m.tryAtom(atomID, pos)
	m.cut = savedCut
	if err != nil && !IsFailed(err) {
		return Nil, pos, err
	}
	matched := err == nil
	if matched != positive {
		return Nil, pos, &FailedError{Position: pos}
	}
	return Nil, pos, nil
}
