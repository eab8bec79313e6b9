package parse

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Position is a location in the input. Line and Column are 1-based;
// Column counts characters, not bytes.
type Position struct {
	Offset int
	Line   int
	Column int
}

// PositionAt computes the position of a byte offset, clamped to the input.
func PositionAt(input string, offset int) Position {
	if offset > len(input) {
		offset = len(input)
	}
	line, column := 1, 1
	current := 0
	for _, ch := range input {
		if current >= offset {
			break
		}
		if ch == '\n' {
			line++
			column = 1
		} else {
			column++
		}
		current += utf8.RuneLen(ch)
	}
	return Position{Offset: offset, Line: line, Column: column}
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// Span is a range in the input.
type Span struct {
	Start Position
	End   Position
}

func SpanFromOffsets(input string, start, end int) Span {
	return Span{Start: PositionAt(input, start), End: PositionAt(input, end)}
}

func (s Span) Len() int {
	if s.End.Offset < s.Start.Offset {
		return 0
	}
	return s.End.Offset - s.Start.Offset
}

func (s Span) Contains(offset int) bool {
	return offset >= s.Start.Offset && offset <= s.End.Offset
}

func (s Span) Merge(other Span) Span {
	merged := s
	if other.Start.Offset < merged.Start.Offset {
		merged.Start = other.Start
	}
	if other.End.Offset > merged.End.Offset {
		merged.End = other.End
	}
	return merged
}

func (s Span) Overlaps(other Span) bool {
	return s.Start.Offset <= other.End.Offset && other.Start.Offset <= s.End.Offset
}

func (s Span) String() string {
	if s.Start.Line == s.End.Line {
		return fmt.Sprintf("line %d, columns %d-%d", s.Start.Line, s.Start.Column, s.End.Column)
	}
	return fmt.Sprintf("line %d, column %d to line %d, column %d",
		s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// LineAt returns the input line containing the given offset, without the
// trailing newline.
func LineAt(input string, offset int) string {
	if offset > len(input) {
		offset = len(input)
	}
	start := 0
	if idx := strings.LastIndexByte(input[:offset], '\n'); idx >= 0 {
		start = idx + 1
	}
	end := len(input)
	if idx := strings.IndexByte(input[offset:], '\n'); idx >= 0 {
		end = offset + idx
	}
	return input[start:end]
}

// caretLine renders the source line at pos with a caret underneath the
// offending column.
func caretLine(input string, pos Position) string {
	var sb strings.Builder
	sb.WriteString(LineAt(input, pos.Offset))
	sb.WriteByte('\n')
	for i := 1; i < pos.Column; i++ {
		sb.WriteByte(' ')
	}
	sb.WriteByte('^')
	return sb.String()
}
