package grammar

import (
	"testing"
)

func TestInfixBuilderEmpty(t *testing.T) {
	g := New()
	primary := g.Add(Re("[0-9]"))

	expr, err := NewInfixBuilder().Build(g, primary)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if expr != primary {
		t.Errorf("expr = %d, want the primary %d", expr, primary)
	}
}

func TestInfixBuilderPrecedenceOrder(t *testing.T) {
	g := New()
	primary := g.Add(Re("[0-9]"))

	expr, err := NewInfixBuilder().
		Operator("+", 1, AssocLeft).
		Operator("*", 2, AssocLeft).
		Build(g, primary)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	g.Root = expr
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	// The loosest level is "+", so its operator literal appears in the
	// tail sequence directly under the root.
	root := g.Atom(expr)
	if root.Kind != KindSequence || len(root.Atoms) != 2 {
		t.Fatalf("root = %+v, want sequence of operand and repetition", root)
	}
	rep := g.Atom(root.Atoms[1])
	if rep.Kind != KindRepetition || rep.Max != Unbounded {
		t.Fatalf("tail = %+v, want unbounded repetition", rep)
	}
	tail := g.Atom(rep.Atom)
	op := g.Atom(tail.Atoms[0])
	if op.Pattern != "+" {
		t.Errorf("loosest operator = %q, want %q", op.Pattern, "+")
	}
}

func TestInfixBuilderSamePrecedenceAlternative(t *testing.T) {
	g := New()
	primary := g.Add(Re("[0-9]"))

	expr, err := NewInfixBuilder().
		Operator("+", 1, AssocLeft).
		Operator("-", 1, AssocLeft).
		Build(g, primary)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	g.Root = expr

	root := g.Atom(expr)
	tail := g.Atom(g.Atom(root.Atoms[1]).Atom)
	op := g.Atom(tail.Atoms[0])
	if op.Kind != KindAlternative || len(op.Atoms) != 2 {
		t.Errorf("operator atom = %+v, want two-branch alternative", op)
	}
}

func TestInfixBuilderRightAssoc(t *testing.T) {
	g := New()
	primary := g.Add(Re("[0-9]"))

	expr, err := NewInfixBuilder().
		Operator("^", 1, AssocRight).
		Build(g, primary)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	g.Root = expr
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	// Right associativity recurses into the level itself through an
	// entity placeholder.
	root := g.Atom(expr)
	rep := g.Atom(root.Atoms[1])
	if rep.Max != 1 {
		t.Errorf("right-assoc tail max = %d, want 1", rep.Max)
	}
	tail := g.Atom(rep.Atom)
	recur := g.Atom(tail.Atoms[1])
	if recur.Kind != KindEntity || recur.Atom != expr {
		t.Errorf("recursion atom = %+v, want entity back to %d", recur, expr)
	}
}

func TestInfixBuilderNonAssoc(t *testing.T) {
	g := New()
	primary := g.Add(Re("[0-9]"))

	expr, err := NewInfixBuilder().
		Operator("==", 1, AssocNonAssoc).
		Build(g, primary)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	rep := g.Atom(g.Atom(expr).Atoms[1])
	if rep.Min != 0 || rep.Max != 1 {
		t.Errorf("non-assoc tail bounds = %d..%d, want 0..1", rep.Min, rep.Max)
	}
}

func TestInfixBuilderMixedAssocFails(t *testing.T) {
	g := New()
	primary := g.Add(Re("[0-9]"))

	_, err := NewInfixBuilder().
		Operator("+", 1, AssocLeft).
		Operator("-", 1, AssocRight).
		Build(g, primary)
	if err == nil {
		t.Error("Build() with mixed associativity at one level should fail")
	}
}
