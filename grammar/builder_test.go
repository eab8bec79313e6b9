package grammar

import (
	"testing"
)

func TestBuilderForwardReference(t *testing.T) {
	b := NewBuilder()
	// value is referenced before it is defined.
	item := b.Seq(b.Str("("), b.Rule("value"), b.Str(")"))
	b.Define("expr", b.Choice(item, b.Rule("value")))
	b.Define("value", b.Re("[0-9]"))

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	root := g.Atom(g.Root)
	if root.Kind != KindEntity {
		t.Fatalf("root kind = %v, want Entity", root.Kind)
	}
	if target := g.Atom(root.Atom); target.Kind != KindAlternative {
		t.Errorf("root target kind = %v, want Alternative", target.Kind)
	}
}

func TestBuilderRootIsFirstRule(t *testing.T) {
	b := NewBuilder()
	b.Define("first", b.Str("a"))
	b.Define("second", b.Str("b"))

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	root := g.Atom(g.Root)
	if target := g.Atom(root.Atom); target.Pattern != "a" {
		t.Errorf("root resolves to %q, want %q", target.Pattern, "a")
	}
}

func TestBuilderUndefinedRule(t *testing.T) {
	b := NewBuilder()
	b.Define("expr", b.Seq(b.Rule("missing")))

	if _, err := b.Build(); err == nil {
		t.Error("Build() with undefined rule should fail")
	}
}

func TestBuilderDuplicateRule(t *testing.T) {
	b := NewBuilder()
	b.Define("expr", b.Str("a"))
	b.Define("expr", b.Str("b"))

	if _, err := b.Build(); err == nil {
		t.Error("Build() with duplicate rule should fail")
	}
}

func TestBuilderNoRules(t *testing.T) {
	b := NewBuilder()
	if _, err := b.Build(); err == nil {
		t.Error("Build() with no rules should fail")
	}
}

func TestBuilderCombinators(t *testing.T) {
	b := NewBuilder()
	digit := b.Re("[0-9]")
	b.Define("number", b.Seq(
		b.Opt(b.Str("-")),
		b.Many1(digit),
		b.NotAhead(b.Str(".")),
	))

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	kinds := make(map[AtomKind]int)
	for i := 0; i < g.Len(); i++ {
		kinds[g.Atom(i).Kind]++
	}
	if kinds[KindRepetition] != 2 {
		t.Errorf("repetition count = %d, want 2", kinds[KindRepetition])
	}
	if kinds[KindLookahead] != 1 {
		t.Errorf("lookahead count = %d, want 1", kinds[KindLookahead])
	}
}

func TestBuilderImport(t *testing.T) {
	sub := New()
	sub.Root = sub.Add(Str("shared"))

	b := NewBuilder()
	imported := b.Import(sub)
	b.Define("main", b.Seq(imported))

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := g.Atom(imported); got.Pattern != "shared" {
		t.Errorf("imported atom = %+v, want Str(shared)", got)
	}
}
