package grammar

import (
	"fmt"
	"strings"
)

// WarningKind classifies analyzer findings.
type WarningKind int

const (
	// WarnLeftRecursion marks direct or indirect left recursion, which a
	// PEG matcher cannot terminate on.
	WarnLeftRecursion WarningKind = iota
	// WarnUnreachableAlternative marks a branch no input can reach.
	WarnUnreachableAlternative
	// WarnUnusedAtom marks an atom not reachable from the root.
	WarnUnusedAtom
	// WarnExcessiveBacktracking marks shapes with exponential potential.
	WarnExcessiveBacktracking
	// WarnEmptyComposite marks an empty sequence or alternative.
	WarnEmptyComposite
	// WarnUselessRepetition marks min=0 max=0 repetitions.
	WarnUselessRepetition
	// WarnInfiniteLoop marks an entity referencing itself with no way out.
	WarnInfiniteLoop
)

var warningKindNames = map[WarningKind]string{
	WarnLeftRecursion:          "left recursion",
	WarnUnreachableAlternative: "unreachable alternative",
	WarnUnusedAtom:             "unused atom",
	WarnExcessiveBacktracking:  "excessive backtracking",
	WarnEmptyComposite:         "empty composite",
	WarnUselessRepetition:      "useless repetition",
	WarnInfiniteLoop:           "infinite loop",
}

func (k WarningKind) String() string {
	if name, ok := warningKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Warning is one analyzer finding.
type Warning struct {
	Kind    WarningKind
	AtomID  int
	Message string
	Related []int
}

func (w Warning) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[atom %d] %s: %s", w.AtomID, w.Kind, w.Message)
	if len(w.Related) > 0 {
		fmt.Fprintf(&sb, " (related atoms: %v)", w.Related)
	}
	return sb.String()
}

// Analyzer runs static checks over a grammar. Results are advisory: the
// backtracking and shadowing checks are heuristics, the left recursion and
// degenerate composite checks are exact.
type Analyzer struct {
	g        *Grammar
	nullable map[int]bool
}

func NewAnalyzer(g *Grammar) *Analyzer {
	return &Analyzer{g: g, nullable: make(map[int]bool)}
}

// Analyze runs every check and returns the findings in check order.
func (an *Analyzer) Analyze() []Warning {
	var warnings []Warning
	warnings = an.detectLeftRecursion(warnings)
	warnings = an.detectUnusedAtoms(warnings)
	warnings = an.detectEmptyComposites(warnings)
	warnings = an.detectUselessRepetitions(warnings)
	warnings = an.detectInfiniteLoops(warnings)
	warnings = an.detectUnreachableAlternatives(warnings)
	warnings = an.detectExcessiveBacktracking(warnings)
	return warnings
}

// Nullable reports whether the atom can match without consuming input.
// Regex atoms are conservatively treated as consuming.
func (an *Analyzer) Nullable(id int) bool {
	if v, ok := an.nullable[id]; ok {
		return v
	}
	// Break cycles: assume non-nullable while computing.
	an.nullable[id] = false
	v := an.computeNullable(id)
	an.nullable[id] = v
	return v
}

func (an *Analyzer) computeNullable(id int) bool {
	a := an.g.Atom(id)
	if a == nil {
		return false
	}
	switch a.Kind {
	case KindStr:
		return a.Pattern == ""
	case KindRe, KindCut:
		return false
	case KindSequence:
		for _, child := range a.Atoms {
			if !an.Nullable(child) {
				return false
			}
		}
		return true
	case KindAlternative:
		for _, child := range a.Atoms {
			if an.Nullable(child) {
				return true
			}
		}
		return false
	case KindRepetition:
		return a.Min == 0
	case KindNamed, KindEntity, KindIgnore, KindLookahead:
		return an.Nullable(a.Atom)
	}
	return false
}

func (an *Analyzer) detectLeftRecursion(warnings []Warning) []Warning {
	for id := range an.g.Atoms {
		visited := make(map[int]bool)
		if chain, ok := an.leftPathTo(id, id, visited); ok {
			warnings = append(warnings, Warning{
				Kind:    WarnLeftRecursion,
				AtomID:  id,
				Message: fmt.Sprintf("atom %d can match itself without consuming input", id),
				Related: chain,
			})
		}
	}
	return warnings
}

// leftPathTo searches for a path from start back to target reachable
// without guaranteed input consumption.
func (an *Analyzer) leftPathTo(start, target int, visited map[int]bool) ([]int, bool) {
	if visited[start] {
		return nil, false
	}
	visited[start] = true

	a := an.g.Atom(start)
	if a == nil {
		return nil, false
	}

	descend := func(child int) ([]int, bool) {
		if child == target {
			return []int{start, child}, true
		}
		if chain, ok := an.leftPathTo(child, target, visited); ok {
			return append([]int{start}, chain...), true
		}
		return nil, false
	}

	switch a.Kind {
	case KindEntity, KindNamed, KindIgnore, KindLookahead:
		return descend(a.Atom)
	case KindSequence:
		for _, child := range a.Atoms {
			if child == target && an.allNullableBefore(a.Atoms, child) {
				return []int{start, child}, true
			}
			if chain, ok := an.leftPathTo(child, target, visited); ok {
				return append([]int{start}, chain...), true
			}
			if !an.Nullable(child) {
				break
			}
		}
	case KindAlternative:
		for _, child := range a.Atoms {
			if chain, ok := descend(child); ok {
				return chain, true
			}
		}
	case KindRepetition:
		if a.Min > 0 {
			return descend(a.Atom)
		}
	}
	return nil, false
}

func (an *Analyzer) allNullableBefore(atoms []int, target int) bool {
	for _, a := range atoms {
		if a == target {
			return true
		}
		if !an.Nullable(a) {
			return false
		}
	}
	return true
}

func (an *Analyzer) detectUnusedAtoms(warnings []Warning) []Warning {
	reachable := make(map[int]bool)
	an.collectReachable(an.g.Root, reachable)
	for id := range an.g.Atoms {
		if !reachable[id] && id != an.g.Root {
			warnings = append(warnings, Warning{
				Kind:    WarnUnusedAtom,
				AtomID:  id,
				Message: fmt.Sprintf("atom %d is not reachable from the root", id),
			})
		}
	}
	return warnings
}

func (an *Analyzer) collectReachable(id int, reachable map[int]bool) {
	if reachable[id] {
		return
	}
	reachable[id] = true
	a := an.g.Atom(id)
	if a == nil {
		return
	}
	for _, child := range a.children() {
		an.collectReachable(child, reachable)
	}
}

func (an *Analyzer) detectEmptyComposites(warnings []Warning) []Warning {
	for id := range an.g.Atoms {
		a := &an.g.Atoms[id]
		switch {
		case a.Kind == KindSequence && len(a.Atoms) == 0:
			warnings = append(warnings, Warning{
				Kind:    WarnEmptyComposite,
				AtomID:  id,
				Message: "empty sequence always matches the empty string",
			})
		case a.Kind == KindAlternative && len(a.Atoms) == 0:
			warnings = append(warnings, Warning{
				Kind:    WarnEmptyComposite,
				AtomID:  id,
				Message: "empty alternative never matches",
			})
		}
	}
	return warnings
}

func (an *Analyzer) detectUselessRepetitions(warnings []Warning) []Warning {
	for id := range an.g.Atoms {
		a := &an.g.Atoms[id]
		if a.Kind == KindRepetition && a.Min == 0 && a.Max == 0 {
			warnings = append(warnings, Warning{
				Kind:    WarnUselessRepetition,
				AtomID:  id,
				Message: "repetition with min=0 and max=0 always matches nothing",
			})
		}
	}
	return warnings
}

func (an *Analyzer) detectInfiniteLoops(warnings []Warning) []Warning {
	for id := range an.g.Atoms {
		a := &an.g.Atoms[id]
		if a.Kind == KindEntity && a.Atom == id {
			warnings = append(warnings, Warning{
				Kind:    WarnInfiniteLoop,
				AtomID:  id,
				Message: fmt.Sprintf("atom %d is an entity that references itself with no base case", id),
			})
		}
	}
	return warnings
}

func (an *Analyzer) detectUnreachableAlternatives(warnings []Warning) []Warning {
	for id := range an.g.Atoms {
		a := &an.g.Atoms[id]
		if a.Kind != KindAlternative {
			continue
		}
		nullableSeen := false
		for i, child := range a.Atoms {
			if nullableSeen {
				warnings = append(warnings, Warning{
					Kind:    WarnUnreachableAlternative,
					AtomID:  id,
					Message: fmt.Sprintf("branch %d (atom %d) may be unreachable: an earlier branch can match empty", i, child),
					Related: []int{child},
				})
			}
			if i > 0 {
				prev, okPrev := an.firstLiteral(a.Atoms[i-1])
				curr, okCurr := an.firstLiteral(child)
				if okPrev && okCurr && strings.HasPrefix(curr, prev) {
					warnings = append(warnings, Warning{
						Kind:    WarnUnreachableAlternative,
						AtomID:  id,
						Message: fmt.Sprintf("branch %d (%q) may be shadowed by branch %d (%q)", i, curr, i-1, prev),
						Related: []int{a.Atoms[i-1], child},
					})
				}
			}
			if an.Nullable(child) {
				nullableSeen = true
			}
		}
	}
	return warnings
}

func (an *Analyzer) firstLiteral(id int) (string, bool) {
	a := an.g.Atom(id)
	if a == nil {
		return "", false
	}
	switch a.Kind {
	case KindStr:
		return a.Pattern, true
	case KindSequence:
		if len(a.Atoms) > 0 {
			return an.firstLiteral(a.Atoms[0])
		}
	case KindNamed, KindEntity, KindIgnore, KindLookahead:
		return an.firstLiteral(a.Atom)
	}
	return "", false
}

func (an *Analyzer) detectExcessiveBacktracking(warnings []Warning) []Warning {
	for id := range an.g.Atoms {
		a := &an.g.Atoms[id]
		switch a.Kind {
		case KindRepetition:
			inner := an.g.Atom(a.Atom)
			if inner == nil {
				continue
			}
			if inner.Kind == KindRepetition {
				warnings = append(warnings, Warning{
					Kind:    WarnExcessiveBacktracking,
					AtomID:  id,
					Message: "nested repetitions can backtrack exponentially",
					Related: []int{a.Atom},
				})
			}
			if inner.Kind == KindAlternative {
				nullableBranches := 0
				for _, child := range inner.Atoms {
					if an.Nullable(child) {
						nullableBranches++
					}
				}
				if nullableBranches > 1 {
					warnings = append(warnings, Warning{
						Kind:    WarnExcessiveBacktracking,
						AtomID:  id,
						Message: fmt.Sprintf("repetition over an alternative with %d nullable branches can backtrack", nullableBranches),
						Related: []int{a.Atom},
					})
				}
			}
		case KindSequence:
			for i := 0; i+1 < len(a.Atoms); i++ {
				rep := an.g.Atom(a.Atoms[i])
				if rep == nil || rep.Kind != KindRepetition {
					continue
				}
				if an.canMatchSame(a.Atoms[i+1], rep.Atom) {
					warnings = append(warnings, Warning{
						Kind:    WarnExcessiveBacktracking,
						AtomID:  id,
						Message: "sequence element overlaps a preceding repetition",
						Related: []int{a.Atoms[i], a.Atoms[i+1]},
					})
				}
			}
		}
	}
	return warnings
}

// canMatchSame is a coarse overlap test between two atoms' first characters.
func (an *Analyzer) canMatchSame(a, b int) bool {
	aa, ab := an.g.Atom(a), an.g.Atom(b)
	if aa == nil || ab == nil {
		return false
	}
	if aa.Kind == KindEntity || ab.Kind == KindEntity {
		return true
	}
	if aa.Kind == KindStr && ab.Kind == KindStr {
		return aa.Pattern != "" && ab.Pattern != "" && aa.Pattern[0] == ab.Pattern[0]
	}
	return false
}
