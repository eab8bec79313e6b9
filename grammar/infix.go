package grammar

import (
	"fmt"
	"sort"
)

// Assoc is the associativity of an infix operator level.
type Assoc int

const (
	AssocLeft Assoc = iota
	AssocRight
	AssocNonAssoc
)

var assocNames = map[Assoc]string{
	AssocLeft:     "left",
	AssocRight:    "right",
	AssocNonAssoc: "non-assoc",
}

func (a Assoc) String() string {
	if name, ok := assocNames[a]; ok {
		return name
	}
	return "Unknown"
}

// Operator is one infix operator: its literal, its precedence level
// (higher binds tighter) and its associativity.
type Operator struct {
	Pattern    string
	Precedence int
	Assoc      Assoc
}

// InfixBuilder compiles an operator table over a primary expression into
// grammar atoms, one sub-grammar per precedence level, tightest level
// first, each level's result becoming the operand of the next looser one.
type InfixBuilder struct {
	operators []Operator
}

func NewInfixBuilder() *InfixBuilder {
	return &InfixBuilder{}
}

func (b *InfixBuilder) Operator(pattern string, precedence int, assoc Assoc) *InfixBuilder {
	b.operators = append(b.operators, Operator{Pattern: pattern, Precedence: precedence, Assoc: assoc})
	return b
}

// Build appends the compiled expression atoms to g and returns the index
// of the loosest level, which is the whole expression.
func (b *InfixBuilder) Build(g *Grammar, primary int) (int, error) {
	if len(b.operators) == 0 {
		return primary, nil
	}

	levels := make(map[int][]Operator)
	for _, op := range b.operators {
		levels[op.Precedence] = append(levels[op.Precedence], op)
	}
	precs := make([]int, 0, len(levels))
	for p := range levels {
		precs = append(precs, p)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(precs)))

	operand := primary
	for _, prec := range precs {
		ops := levels[prec]
		assoc := ops[0].Assoc
		for _, op := range ops[1:] {
			if op.Assoc != assoc {
				return 0, fmt.Errorf("precedence level %d mixes %s and %s operators", prec, assoc, op.Assoc)
			}
		}

		var opAtom int
		if len(ops) == 1 {
			opAtom = g.Add(Str(ops[0].Pattern))
		} else {
			branches := make([]int, len(ops))
			for i, op := range ops {
				branches[i] = g.Add(Str(op.Pattern))
			}
			opAtom = g.Add(Alternative(branches...))
		}

		switch assoc {
		case AssocLeft:
			// operand (op operand)*
			tail := g.Add(Sequence(opAtom, operand))
			rep := g.Add(Repetition(tail, 0, Unbounded))
			operand = g.Add(Sequence(operand, rep))
		case AssocNonAssoc:
			// operand (op operand)?
			tail := g.Add(Sequence(opAtom, operand))
			rep := g.Add(Repetition(tail, 0, 1))
			operand = g.Add(Sequence(operand, rep))
		case AssocRight:
			// operand (op THIS)? where THIS is this level's own result,
			// reached through a placeholder patched after the fact.
			placeholder := g.Add(Entity(-1))
			tail := g.Add(Sequence(opAtom, placeholder))
			rep := g.Add(Repetition(tail, 0, 1))
			level := g.Add(Sequence(operand, rep))
			g.Atoms[placeholder].Atom = level
			operand = level
		}
	}
	return operand, nil
}
