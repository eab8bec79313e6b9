package parse

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dhamidi/peg/grammar"
)

func mustMatch(t *testing.T, g *grammar.Grammar, input string, opts ...Option) (Node, *Arena) {
	t.Helper()
	node, arena, err := Match(g, input, opts...)
	if err != nil {
		t.Fatalf("Match(%q) error = %v", input, err)
	}
	return node, arena
}

func singleAtomGrammar(a grammar.Atom) *grammar.Grammar {
	g := grammar.New()
	g.Root = g.Add(a)
	return g
}

func TestMatchLiteral(t *testing.T) {
	g := singleAtomGrammar(grammar.Str("hello"))

	node, arena := mustMatch(t, g, "hello")
	if got := node.Text(arena, "hello"); got != "hello" {
		t.Errorf("Text = %q, want %q", got, "hello")
	}

	_, _, err := Match(g, "help!")
	pos, ok := FailedAt(err)
	if !ok {
		t.Fatalf("error = %v, want a match failure", err)
	}
	if pos != 0 {
		t.Errorf("failure position = %d, want 0", pos)
	}
}

func TestMatchRegex(t *testing.T) {
	t.Run("character class fast path", func(t *testing.T) {
		g := singleAtomGrammar(grammar.Re("[0-9]"))
		node, arena := mustMatch(t, g, "7")
		if got := node.Text(arena, "7"); got != "7" {
			t.Errorf("Text = %q, want 7", got)
		}
		if _, _, err := Match(g, "x"); !IsFailed(err) {
			t.Errorf("error = %v, want a match failure", err)
		}
	})

	t.Run("general pattern", func(t *testing.T) {
		g := singleAtomGrammar(grammar.Re(`[0-9]+\.[0-9]+`))
		input := "3.14"
		node, arena := mustMatch(t, g, input)
		if got := node.Text(arena, input); got != "3.14" {
			t.Errorf("Text = %q, want 3.14", got)
		}
	})

	t.Run("must match at the current position", func(t *testing.T) {
		g := grammar.New()
		a := g.Add(grammar.Str("x"))
		b := g.Add(grammar.Re("[0-9]+"))
		g.Root = g.Add(grammar.Sequence(a, b))

		// The digits exist later in the input but not right after "x".
		if _, _, err := Match(g, "x y 42"); !IsFailed(err) {
			t.Errorf("error = %v, want a match failure", err)
		}
	})

	t.Run("multibyte any", func(t *testing.T) {
		g := singleAtomGrammar(grammar.Re("."))
		input := "é"
		node, arena := mustMatch(t, g, input)
		if got := node.Text(arena, input); got != "é" {
			t.Errorf("Text = %q, want é", got)
		}
	})

	t.Run("invalid pattern is fatal", func(t *testing.T) {
		g := singleAtomGrammar(grammar.Re("[unclosed"))
		_, _, err := Match(g, "x")
		var internal *InternalError
		if !errors.As(err, &internal) {
			t.Errorf("error = %v, want InternalError", err)
		}
	})
}

func TestMatchSequence(t *testing.T) {
	g := grammar.New()
	a := g.Add(grammar.Str("a"))
	b := g.Add(grammar.Str("b"))
	g.Root = g.Add(grammar.Sequence(a, b))

	input := "ab"
	node, arena := mustMatch(t, g, input)
	if node.Kind != KindArray {
		t.Fatalf("Kind = %v, want Array", node.Kind)
	}
	items := arena.Array(node)
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Text(arena, input) != "a" || items[1].Text(arena, input) != "b" {
		t.Errorf("items = %q, %q", items[0].Text(arena, input), items[1].Text(arena, input))
	}

	// A sequence fails as a whole when any element fails.
	if _, _, err := Match(g, "ax"); !IsFailed(err) {
		t.Errorf("error = %v, want a match failure", err)
	}
}

func TestMatchSequenceKeepsEveryValue(t *testing.T) {
	// Ignored elements still occupy a slot, as Nil.
	g := grammar.New()
	a := g.Add(grammar.Str("a"))
	ws := g.Add(grammar.Ignore(g.Add(grammar.Str(" "))))
	b := g.Add(grammar.Str("b"))
	g.Root = g.Add(grammar.Sequence(a, ws, b))

	input := "a b"
	node, arena := mustMatch(t, g, input)
	items := arena.Array(node)
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	if !items[1].IsNil() {
		t.Errorf("ignored element = %v, want Nil", items[1].Kind)
	}
}

func TestMatchAlternativeOrderedChoice(t *testing.T) {
	// Both branches can match; the first one wins even though the
	// second is longer.
	g := grammar.New()
	short := g.Add(grammar.Str("in"))
	long := g.Add(grammar.Str("inline"))
	alt := g.Add(grammar.Alternative(short, long))
	rest := g.Add(grammar.Re("[a-z]*"))
	g.Root = g.Add(grammar.Sequence(alt, rest))

	input := "inline"
	node, arena := mustMatch(t, g, input)
	items := arena.Array(node)
	if got := items[0].Text(arena, input); got != "in" {
		t.Errorf("first branch = %q, want %q (ordered choice)", got, "in")
	}

	// No branch matches.
	g2 := grammar.New()
	x := g2.Add(grammar.Str("x"))
	y := g2.Add(grammar.Str("y"))
	g2.Root = g2.Add(grammar.Alternative(x, y))
	if _, _, err := Match(g2, "z"); !IsFailed(err) {
		t.Errorf("error = %v, want a match failure", err)
	}
}

func TestMatchRepetitionBounds(t *testing.T) {
	input5 := "aaaaa"
	newRep := func(min, max int) *grammar.Grammar {
		g := grammar.New()
		// Wrap the literal in a sequence so the general repetition
		// path runs rather than the byte-run shortcut.
		lit := g.Add(grammar.Str("a"))
		seq := g.Add(grammar.Sequence(lit))
		rep := g.Add(grammar.Repetition(seq, min, max))
		rest := g.Add(grammar.Re("[a-z]*"))
		g.Root = g.Add(grammar.Sequence(rep, rest))
		return g
	}

	t.Run("min not met", func(t *testing.T) {
		if _, _, err := Match(newRep(3, grammar.Unbounded), "aa"); !IsFailed(err) {
			t.Errorf("error = %v, want a match failure", err)
		}
	})

	t.Run("max stops matching", func(t *testing.T) {
		node, arena := mustMatch(t, newRep(0, 2), input5)
		rep := arena.Array(node)[0]
		if got := len(arena.Array(rep)); got != 2 {
			t.Errorf("matched %d repetitions, want 2", got)
		}
	})

	t.Run("unbounded takes everything", func(t *testing.T) {
		node, arena := mustMatch(t, newRep(0, grammar.Unbounded), input5)
		rep := arena.Array(node)[0]
		if got := len(arena.Array(rep)); got != 5 {
			t.Errorf("matched %d repetitions, want 5", got)
		}
	})

	t.Run("zero matches is fine with min 0", func(t *testing.T) {
		g := grammar.New()
		lit := g.Add(grammar.Str("a"))
		seq := g.Add(grammar.Sequence(lit))
		g.Root = g.Add(grammar.Repetition(seq, 0, grammar.Unbounded))

		node, arena := mustMatch(t, g, "")
		if got := len(arena.Array(node)); got != 0 {
			t.Errorf("matched %d repetitions, want 0", got)
		}
	})
}

func TestMatchRepetitionByteRun(t *testing.T) {
	// Repetition directly over a single-byte class collapses to one
	// input reference covering the run.
	g := grammar.New()
	digit := g.Add(grammar.Re("[0-9]"))
	g.Root = g.Add(grammar.Repetition(digit, 1, grammar.Unbounded))

	input := "12345"
	node, arena := mustMatch(t, g, input)
	if node.Kind != KindInputRef {
		t.Fatalf("Kind = %v, want InputRef", node.Kind)
	}
	if got := node.Text(arena, input); got != "12345" {
		t.Errorf("Text = %q, want 12345", got)
	}

	if _, _, err := Match(g, ""); !IsFailed(err) {
		t.Errorf("empty input: error = %v, want a match failure", err)
	}
}

func TestMatchRepetitionZeroWidthBody(t *testing.T) {
	// A nullable body must not loop forever.
	g := grammar.New()
	lit := g.Add(grammar.Str("a"))
	opt := g.Add(grammar.Repetition(lit, 0, 1))
	g.Root = g.Add(grammar.Repetition(opt, 0, grammar.Unbounded))

	done := make(chan struct{})
	go func() {
		defer close(done)
		Match(g, "aa")
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("repetition over a nullable body did not terminate")
	}
}

func TestMatchNamed(t *testing.T) {
	g := grammar.New()
	digits := g.Add(grammar.Re("[0-9]"))
	run := g.Add(grammar.Repetition(digits, 1, grammar.Unbounded))
	g.Root = g.Add(grammar.Named("value", run))

	input := "42"
	node, arena := mustMatch(t, g, input)
	if node.Kind != KindHash {
		t.Fatalf("Kind = %v, want Hash", node.Kind)
	}
	entries := arena.Hash(node)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	v, ok := arena.HashGet(node, "value")
	if !ok {
		t.Fatal("key missing")
	}
	if got := v.Text(arena, input); got != "42" {
		t.Errorf("value = %q, want 42", got)
	}
}

func TestMatchLookahead(t *testing.T) {
	t.Run("positive", func(t *testing.T) {
		// "a" followed by "b", but only "a" is consumed by the root
		// repetition's first element.
		g := grammar.New()
		a := g.Add(grammar.Str("a"))
		b := g.Add(grammar.Str("b"))
		ahead := g.Add(grammar.Lookahead(b, true))
		seq := g.Add(grammar.Sequence(a, ahead))
		rest := g.Add(grammar.Str("b"))
		g.Root = g.Add(grammar.Sequence(seq, rest))

		mustMatch(t, g, "ab")

		if _, _, err := Match(g, "ac"); !IsFailed(err) {
			t.Errorf("error = %v, want a match failure", err)
		}
	})

	t.Run("negative", func(t *testing.T) {
		// Keyword boundary: "if" not followed by a letter.
		g := grammar.New()
		kw := g.Add(grammar.Str("if"))
		letter := g.Add(grammar.Re("[a-z]"))
		notLetter := g.Add(grammar.Lookahead(letter, false))
		body := g.Add(grammar.Re("[ -~]*"))
		g.Root = g.Add(grammar.Sequence(kw, notLetter, body))

		mustMatch(t, g, "if (x)")

		if _, _, err := Match(g, "iffy"); !IsFailed(err) {
			t.Errorf("error = %v, want a match failure", err)
		}
	})

	t.Run("zero width result", func(t *testing.T) {
		g := grammar.New()
		a := g.Add(grammar.Str("a"))
		ahead := g.Add(grammar.Lookahead(a, true))
		g.Root = g.Add(grammar.Sequence(ahead, a))

		input := "a"
		node, arena := mustMatch(t, g, input)
		items := arena.Array(node)
		if !items[0].IsNil() {
			t.Errorf("lookahead value = %v, want Nil", items[0].Kind)
		}
	})
}

func TestMatchCutCommitsAlternative(t *testing.T) {
	// After "let" the first branch is committed: a malformed binding
	// must not fall through to the expression branch.
	newGrammar := func(withCut bool) *grammar.Grammar {
		g := grammar.New()
		let := g.Add(grammar.Str("let "))
		name := g.Add(grammar.Re("[a-z]+"))
		eq := g.Add(grammar.Str("="))
		parts := []int{let}
		if withCut {
			parts = append(parts, g.Add(grammar.Cut()))
		}
		parts = append(parts, name, eq, name)
		binding := g.Add(grammar.Sequence(parts...))
		fallback := g.Add(grammar.Re("[a-z =]+"))
		g.Root = g.Add(grammar.Alternative(binding, fallback))
		return g
	}

	input := "let x y" // missing "="

	// Without the cut the fallback branch accepts the input.
	mustMatch(t, newGrammar(false), input)

	// With the cut the failure is final.
	if _, _, err := Match(newGrammar(true), input); !IsFailed(err) {
		t.Errorf("error = %v, want a committed match failure", err)
	}
}

func TestMatchCutScopedToInnermostAlternative(t *testing.T) {
	// The commit binds the innermost alternative only: once that
	// alternative gives up, the outer one still tries its own
	// remaining branches.
	g := grammar.New()
	a := g.Add(grammar.Str("a"))
	cut := g.Add(grammar.Cut())
	x := g.Add(grammar.Str("x"))
	inner := g.Add(grammar.Sequence(a, cut, x)) // commits on "a", then fails on "x"
	innerAlt := g.Add(grammar.Alternative(inner))
	fallback := g.Add(grammar.Str("ab"))
	g.Root = g.Add(grammar.Alternative(innerAlt, fallback))

	mustMatch(t, g, "ab")
}

func TestMatchEntity(t *testing.T) {
	// Balanced parens: expr <- "(" expr ")" / "x"
	g := grammar.New()
	entity := g.Add(grammar.Entity(-1))
	open := g.Add(grammar.Str("("))
	closeP := g.Add(grammar.Str(")"))
	x := g.Add(grammar.Str("x"))
	nested := g.Add(grammar.Sequence(open, entity, closeP))
	alt := g.Add(grammar.Alternative(nested, x))
	g.Atoms[entity].Atom = alt
	g.Root = entity

	mustMatch(t, g, "(((x)))")

	if _, _, err := Match(g, "((x)"); !IsFailed(err) {
		t.Errorf("unbalanced input: error = %v, want a match failure", err)
	}
}

func TestMatchRecursionLimit(t *testing.T) {
	g := grammar.New()
	entity := g.Add(grammar.Entity(-1))
	open := g.Add(grammar.Str("("))
	closeP := g.Add(grammar.Str(")"))
	x := g.Add(grammar.Str("x"))
	nested := g.Add(grammar.Sequence(open, entity, closeP))
	alt := g.Add(grammar.Alternative(nested, x))
	g.Atoms[entity].Atom = alt
	g.Root = entity

	deep := strings.Repeat("(", 50) + "x" + strings.Repeat(")", 50)
	_, _, err := Match(g, deep, WithMaxDepth(10))
	var limit *RecursionLimitError
	if !errors.As(err, &limit) {
		t.Fatalf("error = %v, want RecursionLimitError", err)
	}
	if limit.Depth != 10 {
		t.Errorf("Depth = %d, want 10", limit.Depth)
	}

	// The same input parses with a roomier limit.
	mustMatch(t, g, deep, WithMaxDepth(200))
}

func TestMatchIncomplete(t *testing.T) {
	g := singleAtomGrammar(grammar.Str("ab"))

	_, _, err := Match(g, "abc")
	var incomplete *IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("error = %v, want IncompleteError", err)
	}
	if incomplete.Actual != 2 || incomplete.Expected != 3 {
		t.Errorf("consumed %d of %d, want 2 of 3", incomplete.Actual, incomplete.Expected)
	}
}

func TestMatchInputTooLarge(t *testing.T) {
	g := singleAtomGrammar(grammar.Str("x"))

	_, _, err := Match(g, "xxxx", WithMaxInputSize(3))
	var tooLarge *InputTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("error = %v, want InputTooLargeError", err)
	}
	if tooLarge.Size != 4 || tooLarge.Limit != 3 {
		t.Errorf("Size = %d, Limit = %d", tooLarge.Size, tooLarge.Limit)
	}
}

func TestMatchTimeout(t *testing.T) {
	// The deadline is in the past from the start; the periodic check
	// fires once enough atoms have run.
	g := grammar.New()
	digit := g.Add(grammar.Re("[0-9]"))
	one := g.Add(grammar.Sequence(digit))
	g.Root = g.Add(grammar.Repetition(one, 0, grammar.Unbounded))

	input := strings.Repeat("7", 5000)
	_, _, err := Match(g, input, WithTimeout(time.Nanosecond))
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("error = %v, want TimeoutError", err)
	}
}

func TestMatchMemoryLimit(t *testing.T) {
	g := grammar.New()
	digit := g.Add(grammar.Re("[0-9]"))
	one := g.Add(grammar.Sequence(digit))
	g.Root = g.Add(grammar.Repetition(one, 0, grammar.Unbounded))

	input := strings.Repeat("7", 50_000)
	_, _, err := Match(g, input, WithMaxMemory(1))
	var mem *MemoryLimitError
	if !errors.As(err, &mem) {
		t.Fatalf("error = %v, want MemoryLimitError", err)
	}
}

func TestMatchInvalidGrammar(t *testing.T) {
	g := grammar.New() // no atoms at all
	_, _, err := Match(g, "x")
	var invalid *InvalidGrammarError
	if !errors.As(err, &invalid) {
		t.Errorf("error = %v, want InvalidGrammarError", err)
	}
}

func TestMatchDeterministic(t *testing.T) {
	g, err := numbersGrammar()
	if err != nil {
		t.Fatal(err)
	}
	input := "12,345,6"

	n1, a1 := mustMatch(t, g, input)
	n2, a2 := mustMatch(t, g, input)
	if !Equal(n1, a1, n2, a2) {
		t.Error("two parses of the same input differ")
	}
}

func TestMatchCacheCarriesAcrossRuns(t *testing.T) {
	g, err := numbersGrammar()
	if err != nil {
		t.Fatal(err)
	}
	input := "12,345,6"

	m, err := NewMatcher(g, input, nil)
	if err != nil {
		t.Fatal(err)
	}
	first, err := m.Run()
	if err != nil {
		t.Fatal(err)
	}

	// The second run replays from the cache and must produce the same
	// value.
	second, err := m.Run()
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(first, m.Arena(), second, m.Arena()) {
		t.Error("cached rerun produced a different value")
	}
	hits, _, _ := m.Cache().Stats()
	if hits == 0 {
		t.Error("second run should hit the cache")
	}
}

func TestMatchBatch(t *testing.T) {
	g, err := numbersGrammar()
	if err != nil {
		t.Fatal(err)
	}

	results := MatchBatch(g, []string{"1,2", "bad!", "345"})
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("results[0].Err = %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Error("results[1] should fail")
	}
	if results[2].Err != nil {
		t.Errorf("results[2].Err = %v", results[2].Err)
	}

	// Results stay independently readable side by side.
	digits := results[2].Arena.Array(results[2].Node)[0]
	if got := digits.Text(results[2].Arena, "345"); got != "345" {
		t.Errorf("results[2] digits = %q, want 345", got)
	}
}

// numbersGrammar is digits ("," digits)* built through the rule builder.
func numbersGrammar() (*grammar.Grammar, error) {
	b := grammar.NewBuilder()
	digits := b.Many1(b.Re("[0-9]"))
	tail := b.Seq(b.Str(","), digits)
	b.Define("numbers", b.Seq(digits, b.Many(tail)))
	return b.Build()
}
