package grammar

import (
	"testing"
)

func findWarning(warnings []Warning, kind WarningKind) (Warning, bool) {
	for _, w := range warnings {
		if w.Kind == kind {
			return w, true
		}
	}
	return Warning{}, false
}

func TestAnalyzerNullable(t *testing.T) {
	g := New()
	empty := g.Add(Str(""))
	lit := g.Add(Str("x"))
	re := g.Add(Re("[0-9]"))
	opt := g.Add(Repetition(lit, 0, 1))
	plus := g.Add(Repetition(lit, 1, Unbounded))
	seqN := g.Add(Sequence(empty, opt))
	seqC := g.Add(Sequence(empty, lit))
	alt := g.Add(Alternative(lit, opt))
	g.Root = alt

	an := NewAnalyzer(g)
	tests := []struct {
		name string
		id   int
		want bool
	}{
		{"empty string", empty, true},
		{"literal", lit, false},
		{"regex", re, false},
		{"optional", opt, true},
		{"one or more", plus, false},
		{"all nullable sequence", seqN, true},
		{"consuming sequence", seqC, false},
		{"alternative with nullable branch", alt, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := an.Nullable(tt.id); got != tt.want {
				t.Errorf("Nullable(%d) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestAnalyzerLeftRecursion(t *testing.T) {
	// expr -> expr "+" term, directly left recursive through an entity.
	g := New()
	entity := g.Add(Entity(-1))
	plus := g.Add(Str("+"))
	term := g.Add(Re("[0-9]"))
	seq := g.Add(Sequence(entity, plus, term))
	g.Atoms[entity].Atom = seq
	g.Root = entity

	warnings := NewAnalyzer(g).Analyze()
	if _, ok := findWarning(warnings, WarnLeftRecursion); !ok {
		t.Errorf("expected left recursion warning, got %v", warnings)
	}
}

func TestAnalyzerNoLeftRecursionWhenGuarded(t *testing.T) {
	// expr -> "(" expr ")" | number consumes before recursing.
	g := New()
	entity := g.Add(Entity(-1))
	open := g.Add(Str("("))
	closeP := g.Add(Str(")"))
	number := g.Add(Re("[0-9]"))
	paren := g.Add(Sequence(open, entity, closeP))
	alt := g.Add(Alternative(paren, number))
	g.Atoms[entity].Atom = alt
	g.Root = entity

	warnings := NewAnalyzer(g).Analyze()
	if w, ok := findWarning(warnings, WarnLeftRecursion); ok {
		t.Errorf("unexpected left recursion warning: %v", w)
	}
}

func TestAnalyzerUnusedAtom(t *testing.T) {
	g := New()
	used := g.Add(Str("a"))
	g.Add(Str("orphan"))
	g.Root = g.Add(Sequence(used))

	warnings := NewAnalyzer(g).Analyze()
	w, ok := findWarning(warnings, WarnUnusedAtom)
	if !ok {
		t.Fatalf("expected unused atom warning, got %v", warnings)
	}
	if w.AtomID != 1 {
		t.Errorf("unused AtomID = %d, want 1", w.AtomID)
	}
}

func TestAnalyzerEmptyComposites(t *testing.T) {
	g := New()
	seq := g.Add(Sequence())
	alt := g.Add(Alternative())
	g.Root = g.Add(Alternative(seq, alt))

	warnings := NewAnalyzer(g).Analyze()
	count := 0
	for _, w := range warnings {
		if w.Kind == WarnEmptyComposite {
			count++
		}
	}
	if count != 2 {
		t.Errorf("empty composite warnings = %d, want 2", count)
	}
}

func TestAnalyzerUselessRepetition(t *testing.T) {
	g := New()
	lit := g.Add(Str("x"))
	g.Root = g.Add(Repetition(lit, 0, 0))

	warnings := NewAnalyzer(g).Analyze()
	if _, ok := findWarning(warnings, WarnUselessRepetition); !ok {
		t.Errorf("expected useless repetition warning, got %v", warnings)
	}
}

func TestAnalyzerInfiniteLoop(t *testing.T) {
	g := New()
	entity := g.Add(Entity(0))
	g.Root = entity

	warnings := NewAnalyzer(g).Analyze()
	if _, ok := findWarning(warnings, WarnInfiniteLoop); !ok {
		t.Errorf("expected infinite loop warning, got %v", warnings)
	}
}

func TestAnalyzerUnreachableAlternative(t *testing.T) {
	t.Run("after nullable branch", func(t *testing.T) {
		g := New()
		lit := g.Add(Str("x"))
		opt := g.Add(Repetition(lit, 0, 1))
		never := g.Add(Str("y"))
		g.Root = g.Add(Alternative(opt, never))

		warnings := NewAnalyzer(g).Analyze()
		if _, ok := findWarning(warnings, WarnUnreachableAlternative); !ok {
			t.Errorf("expected unreachable alternative warning, got %v", warnings)
		}
	})

	t.Run("prefix shadowing", func(t *testing.T) {
		g := New()
		short := g.Add(Str("in"))
		long := g.Add(Str("inline"))
		g.Root = g.Add(Alternative(short, long))

		warnings := NewAnalyzer(g).Analyze()
		w, ok := findWarning(warnings, WarnUnreachableAlternative)
		if !ok {
			t.Fatalf("expected shadowing warning, got %v", warnings)
		}
		if len(w.Related) != 2 {
			t.Errorf("Related = %v, want the two branches", w.Related)
		}
	})
}

func TestAnalyzerExcessiveBacktracking(t *testing.T) {
	t.Run("nested repetition", func(t *testing.T) {
		g := New()
		lit := g.Add(Str("a"))
		inner := g.Add(Repetition(lit, 0, Unbounded))
		g.Root = g.Add(Repetition(inner, 0, Unbounded))

		warnings := NewAnalyzer(g).Analyze()
		if _, ok := findWarning(warnings, WarnExcessiveBacktracking); !ok {
			t.Errorf("expected backtracking warning, got %v", warnings)
		}
	})

	t.Run("overlapping sequence", func(t *testing.T) {
		g := New()
		a1 := g.Add(Str("a"))
		rep := g.Add(Repetition(a1, 0, Unbounded))
		a2 := g.Add(Str("ab"))
		g.Root = g.Add(Sequence(rep, a2))

		warnings := NewAnalyzer(g).Analyze()
		if _, ok := findWarning(warnings, WarnExcessiveBacktracking); !ok {
			t.Errorf("expected overlap warning, got %v", warnings)
		}
	})
}

func TestAnalyzerCleanGrammar(t *testing.T) {
	g := New()
	digit := g.Add(Re("[0-9]"))
	digits := g.Add(Repetition(digit, 1, Unbounded))
	comma := g.Add(Str(","))
	tail := g.Add(Sequence(comma, digits))
	tails := g.Add(Repetition(tail, 0, Unbounded))
	g.Root = g.Add(Sequence(digits, tails))

	if warnings := NewAnalyzer(g).Analyze(); len(warnings) != 0 {
		t.Errorf("clean grammar produced warnings: %v", warnings)
	}
}
