package parse

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dhamidi/peg/grammar"
)

// RichError decorates a parse failure with line/column, the source line,
// the set of terminals expected at the furthest failure point, and the
// chain of atoms that led there. It wraps the original error.
type RichError struct {
	Input    string
	Position Position
	Expected []string
	Chain    []string

	cause error
}

func (e *RichError) Error() string {
	if len(e.Expected) == 0 {
		return fmt.Sprintf("parse failed at %s", e.Position)
	}
	return fmt.Sprintf("parse failed at %s: expected %s", e.Position, strings.Join(e.Expected, " or "))
}

func (e *RichError) Unwrap() error { return e.cause }

// Format renders the multi-line report: message, source line with caret,
// and the failing atom chain as a tree.
func (e *RichError) Format() string {
	var b strings.Builder
	b.WriteString(e.Error())
	b.WriteByte('\n')
	line := LineAt(e.Input, e.Position.Offset)
	if line != "" {
		fmt.Fprintf(&b, "  %d | %s\n", e.Position.Line, line)
		b.WriteString("    | ")
		b.WriteString(caretLine(e.Input, e.Position))
		b.WriteByte('\n')
	}
	for i, step := range e.Chain {
		b.WriteString(strings.Repeat("  ", i))
		if i > 0 {
			b.WriteString("└─ ")
		}
		b.WriteString("in ")
		b.WriteString(step)
		b.WriteByte('\n')
	}
	return b.String()
}

// Explain reparses the input with tracing enabled and turns the failure
// into a RichError. Parses that succeed return nil. Fatal errors (limits,
// invalid grammars) pass through untouched since source context adds
// nothing to them.
func Explain(g *grammar.Grammar, input string, opts ...Option) error {
	tracer := &CollectingTracer{}
	m, err := NewMatcher(g, input, nil, append(opts, WithTracer(tracer), WithCacheCapacity(16))...)
	if err != nil {
		return err
	}
	_, runErr := m.Run()
	if runErr == nil {
		return nil
	}

	switch cause := runErr.(type) {
	case *FailedError:
		return enrichFailure(g, input, tracer, cause)
	case *IncompleteError:
		pos := PositionAt(input, cause.Actual)
		return &RichError{
			Input:    input,
			Position: pos,
			Expected: []string{"end of input"},
			cause:    cause,
		}
	default:
		return runErr
	}
}

func enrichFailure(g *grammar.Grammar, input string, tracer *CollectingTracer, cause *FailedError) *RichError {
	furthest := -1
	failedAt := -1
	for i, e := range tracer.Events {
		if e.Matched {
			continue
		}
		a := g.Atom(e.AtomID)
		if a == nil || (a.Kind != grammar.KindStr && a.Kind != grammar.KindRe) {
			continue
		}
		if e.Pos > furthest {
			furthest = e.Pos
			failedAt = i
		}
	}
	if furthest < 0 {
		furthest = cause.Position
	}

	expected := map[string]bool{}
	for _, e := range tracer.Events {
		if e.Matched || e.Pos != furthest {
			continue
		}
		a := g.Atom(e.AtomID)
		if a == nil || (a.Kind != grammar.KindStr && a.Kind != grammar.KindRe) {
			continue
		}
		expected[describeAtom(g, e.AtomID)] = true
	}
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Strings(names)

	return &RichError{
		Input:    input,
		Position: PositionAt(input, furthest),
		Expected: names,
		Chain:    failureChain(g, tracer, failedAt),
		cause:    cause,
	}
}

// failureChain follows parent links from one failed event back to the
// root, giving the path of atoms that were open when it failed.
func failureChain(g *grammar.Grammar, tracer *CollectingTracer, index int) []string {
	var reversed []string
	for i := index; i >= 0; i = tracer.Events[i].Parent {
		reversed = append(reversed, describeAtom(g, tracer.Events[i].AtomID))
	}
	chain := make([]string, len(reversed))
	for i, step := range reversed {
		chain[len(reversed)-1-i] = step
	}
	return chain
}
