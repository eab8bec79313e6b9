// Package incremental reparses evolving inputs while reusing the packrat
// cache for the unchanged prefix. Edits invalidate every memoized result
// at or past the first changed byte; results that end strictly before it
// replay as cache hits on the next parse.
package incremental

import (
	"fmt"

	"github.com/dhamidi/peg/grammar"
	"github.com/dhamidi/peg/parse"
)

// Result reports one reparse: the value, the covering span of the batch
// of edits in old coordinates, and how much of the previous parse's work
// was reused. A cold parse reports Dirty.Start == -1.
type Result struct {
	Node  parse.Node
	Dirty DirtyRegion

	// Retained counts cache entries that survived invalidation;
	// Evicted counts the ones the edit discarded.
	Retained int
	Evicted  int

	// Efficiency is Retained over the pre-edit entry count, 0 on a
	// cold parse.
	Efficiency float64
}

// Parser owns one grammar, one current input, and the matcher state that
// carries over between reparses. Not safe for concurrent use.
type Parser struct {
	grammar *grammar.Grammar
	opts    []parse.Option
	matcher *parse.Matcher
	input   string

	// parses counts since the last full reset; the arena only grows
	// while state is carried, so the parser periodically starts over.
	parses     int
	resetEvery int
}

// DefaultResetInterval bounds arena growth: after this many carried
// reparses the parser drops all state and starts cold.
const DefaultResetInterval = 64

func NewParser(g *grammar.Grammar, opts ...parse.Option) *Parser {
	return &Parser{grammar: g, opts: opts, resetEvery: DefaultResetInterval}
}

// Input returns the text of the most recent parse.
func (p *Parser) Input() string { return p.input }

// Parse performs a full cold parse of input and makes it the baseline
// for subsequent Apply calls.
func (p *Parser) Parse(input string) (Result, error) {
	m, err := parse.NewMatcher(p.grammar, input, nil, p.opts...)
	if err != nil {
		return Result{}, err
	}
	node, err := m.Run()
	if err != nil {
		return Result{}, err
	}
	p.matcher = m
	p.input = input
	p.parses = 1
	return Result{Node: node, Dirty: DirtyRegion{Start: -1}}, nil
}

// Apply applies a batch of edits to the current input and reparses,
// keeping memoized results that the edits cannot have touched. Without a
// prior Parse it falls back to a cold parse of the edited text.
func (p *Parser) Apply(edits ...Edit) (Result, error) {
	next, dirty, err := applyEdits(p.input, edits)
	if err != nil {
		return Result{}, err
	}
	if p.matcher == nil || len(edits) == 0 {
		res, perr := p.Parse(next)
		res.Dirty = dirty
		return res, perr
	}
	if p.parses >= p.resetEvery {
		p.matcher.ResetAll()
		p.parses = 0
	}

	cache := p.matcher.Cache()
	before := cache.Len()
	cutoff := uint32(dirty.Start)
	cache.Retain(func(e *parse.CacheEntry) bool {
		// A match is safe to replay when everything it consumed lies
		// strictly before the first changed byte. Failures record no
		// extent and may have scanned arbitrarily far, so none of
		// them survive an edit.
		return e.Success() && e.EndPos < cutoff
	})
	retained := cache.Len()

	p.matcher.Rebind(next)
	node, err := p.matcher.Run()
	if err != nil {
		return Result{}, err
	}
	p.input = next
	p.parses++

	res := Result{
		Node:     node,
		Dirty:    dirty,
		Retained: retained,
		Evicted:  before - retained,
	}
	if before > 0 {
		res.Efficiency = float64(retained) / float64(before)
	}
	return res, nil
}

// Arena exposes the arena the latest Result's node lives in.
func (p *Parser) Arena() *parse.Arena {
	if p.matcher == nil {
		return nil
	}
	return p.matcher.Arena()
}

// Reset drops all carried state; the next Parse starts cold.
func (p *Parser) Reset() {
	p.matcher = nil
	p.input = ""
	p.parses = 0
}

// applyEdits validates and applies a batch in ascending start order,
// adjusting later offsets for earlier replacements, and returns the new
// text plus the covering dirty span in old coordinates.
func applyEdits(input string, edits []Edit) (string, DirtyRegion, error) {
	none := DirtyRegion{Start: -1}
	if len(edits) == 0 {
		return input, none, nil
	}
	for i := 1; i < len(edits); i++ {
		if edits[i].Start < edits[i-1].End() {
			return "", none, fmt.Errorf("edits must be sorted and non-overlapping: edit %d starts at %d inside the previous edit", i, edits[i].Start)
		}
	}

	var tracker DirtyTracker
	out := make([]byte, 0, len(input))
	prev := 0
	for i, e := range edits {
		if e.Start < 0 || e.OldLen < 0 || e.End() > len(input) {
			return "", none, fmt.Errorf("edit %d out of range: %d+%d exceeds input length %d", i, e.Start, e.OldLen, len(input))
		}
		out = append(out, input[prev:e.Start]...)
		out = append(out, e.NewText...)
		prev = e.End()
		tracker.MarkEdit(e)
	}
	out = append(out, input[prev:]...)

	regions := tracker.Regions()
	dirty := DirtyRegion{
		Start: regions[0].Start,
		End:   regions[len(regions)-1].End,
	}
	return string(out), dirty, nil
}
