package parse

import (
	"fmt"
	"io"
	"strings"

	"github.com/dhamidi/peg/grammar"
)

// Tracer observes atom evaluation. Enter fires before an uncached atom is
// tried, Exit after, with the outcome. Cache hits replay a memoized
// result and do not fire the tracer again.
type Tracer interface {
	Enter(atomID, pos, depth int)
	Exit(atomID, pos, end, depth int, err error)
}

// TraceEvent is one recorded Enter/Exit pair. Parent is the index of the
// enclosing event, or -1 at the root.
type TraceEvent struct {
	AtomID  int
	Parent  int
	Pos     int
	End     int
	Depth   int
	Matched bool
	Err     error
}

// CollectingTracer records every evaluation for later inspection.
type CollectingTracer struct {
	Events []TraceEvent

	stack []int // indices of open events
}

func (t *CollectingTracer) Enter(atomID, pos, depth int) {
	parent := -1
	if len(t.stack) > 0 {
		parent = t.stack[len(t.stack)-1]
	}
	t.stack = append(t.stack, len(t.Events))
	t.Events = append(t.Events, TraceEvent{AtomID: atomID, Parent: parent, Pos: pos, Depth: depth})
}

func (t *CollectingTracer) Exit(atomID, pos, end, depth int, err error) {
	if len(t.stack) == 0 {
		return
	}
	i := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	t.Events[i].End = end
	t.Events[i].Matched = err == nil
	t.Events[i].Err = err
}

// Dump writes the recorded trace as an indented listing, one line per
// evaluation, resolving atom kinds and patterns through the grammar.
func (t *CollectingTracer) Dump(w io.Writer, g *grammar.Grammar) {
	for _, e := range t.Events {
		indent := strings.Repeat("  ", e.Depth)
		outcome := "match"
		if !e.Matched {
			outcome = "fail"
		}
		fmt.Fprintf(w, "%s%s @%d..%d %s\n", indent, describeAtom(g, e.AtomID), e.Pos, e.End, outcome)
	}
}

// WriterTracer streams evaluations as they happen, useful when a parse
// never finishes.
type WriterTracer struct {
	W io.Writer
	G *grammar.Grammar
}

func (t *WriterTracer) Enter(atomID, pos, depth int) {
	fmt.Fprintf(t.W, "%senter %s @%d\n", strings.Repeat("  ", depth), describeAtom(t.G, atomID), pos)
}

func (t *WriterTracer) Exit(atomID, pos, end, depth int, err error) {
	outcome := "match"
	if err != nil {
		outcome = "fail"
		if !IsFailed(err) {
			outcome = err.Error()
		}
	}
	fmt.Fprintf(t.W, "%sexit  %s @%d..%d %s\n", strings.Repeat("  ", depth), describeAtom(t.G, atomID), pos, end, outcome)
}

// describeAtom renders an atom compactly for traces and rich errors.
func describeAtom(g *grammar.Grammar, id int) string {
	a := g.Atom(id)
	if a == nil {
		return fmt.Sprintf("atom#%d", id)
	}
	switch a.Kind {
	case grammar.KindStr:
		return fmt.Sprintf("str(%q)", a.Pattern)
	case grammar.KindRe:
		return fmt.Sprintf("re(%s)", a.Pattern)
	case grammar.KindNamed:
		return fmt.Sprintf("named(%s)", a.Name)
	case grammar.KindRepetition:
		if a.Max == grammar.Unbounded {
			return fmt.Sprintf("repetition(%d..)", a.Min)
		}
		return fmt.Sprintf("repetition(%d..%d)", a.Min, a.Max)
	case grammar.KindLookahead:
		if a.Positive {
			return "lookahead(&)"
		}
		return "lookahead(!)"
	default:
		return strings.ToLower(a.Kind.String())
	}
}
