package parse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dhamidi/peg/grammar"
)

// Builder receives parse values as a stream of callbacks instead of a
// materialized tree. Composite values are bracketed by Start/End pairs;
// hash entries arrive as OnKey, the value's callbacks, then OnHashValue;
// a named capture arrives as OnNamedStart/OnNamedEnd around its value.
// Any callback returning an error aborts the walk.
//
// OnStart, OnSuccess and OnError fire only on the MatchInto path, which
// streams a parse end to end; a bare Emit walks an existing value
// without lifecycle events.
type Builder interface {
	OnStart(input string) error
	OnNil() error
	OnBool(v bool) error
	OnInt(v int64) error
	OnFloat(v float64) error

	// OnString carries the value's byte span in the input. Pooled
	// strings that were not cut from the input report offset 0.
	OnString(s string, offset, length int) error

	OnArrayStart(length int) error
	// OnArrayElement fires after element index's callbacks.
	OnArrayElement(index int) error
	OnArrayEnd() error

	OnHashStart(length int) error
	OnKey(key string) error
	// OnHashValue fires after the value's callbacks for key.
	OnHashValue(key string) error
	OnHashEnd() error

	OnNamedStart(name string) error
	OnNamedEnd(name string) error

	OnSuccess() error
	OnError(err error) error
}

// Emit walks a parse value depth-first, invoking the builder for each
// node. The arena and input must be the ones the value was built
// against.
func Emit(node Node, arena *Arena, input string, b Builder) error {
	if err := emit(node, arena, input, b); err != nil {
		return &BuilderAbortError{Reason: err.Error()}
	}
	return nil
}

func emit(node Node, arena *Arena, input string, b Builder) error {
	switch node.Kind {
	case KindNil:
		return b.OnNil()
	case KindBool:
		return b.OnBool(node.Bool())
	case KindInt:
		return b.OnInt(node.Int())
	case KindFloat:
		return b.OnFloat(node.Float())
	case KindStr:
		s := arena.StringAt(node.StrIndex())
		return b.OnString(s, 0, len(s))
	case KindInputRef:
		offset, length := node.Span()
		return b.OnString(node.Text(arena, input), offset, length)
	case KindArray:
		items := arena.Array(node)
		if err := b.OnArrayStart(len(items)); err != nil {
			return err
		}
		for i, item := range items {
			if err := emit(item, arena, input, b); err != nil {
				return err
			}
			if err := b.OnArrayElement(i); err != nil {
				return err
			}
		}
		return b.OnArrayEnd()
	case KindHash:
		entries := arena.Hash(node)
		// The engine encodes a named capture as a one-entry hash;
		// those surface as named events, not hash brackets.
		if len(entries) == 1 {
			name := arena.StringAt(int(entries[0].Key))
			if err := b.OnNamedStart(name); err != nil {
				return err
			}
			if err := emit(entries[0].Value, arena, input, b); err != nil {
				return err
			}
			return b.OnNamedEnd(name)
		}
		if err := b.OnHashStart(len(entries)); err != nil {
			return err
		}
		for _, entry := range entries {
			key := arena.StringAt(int(entry.Key))
			if err := b.OnKey(key); err != nil {
				return err
			}
			if err := emit(entry.Value, arena, input, b); err != nil {
				return err
			}
			if err := b.OnHashValue(key); err != nil {
				return err
			}
		}
		return b.OnHashEnd()
	}
	return fmt.Errorf("unknown node kind %d", node.Kind)
}

// MatchInto parses input and streams the result through the builder,
// without handing the tree to the caller. The arena is discarded after
// the walk. The builder sees OnStart first, then either the value's
// events followed by OnSuccess, or OnError with the parse error.
func MatchInto(g *grammar.Grammar, input string, b Builder, opts ...Option) error {
	if err := b.OnStart(input); err != nil {
		return &BuilderAbortError{Reason: err.Error()}
	}
	node, arena, err := Match(g, input, opts...)
	if err != nil {
		if berr := b.OnError(err); berr != nil {
			return &BuilderAbortError{Reason: berr.Error()}
		}
		return err
	}
	if err := Emit(node, arena, input, b); err != nil {
		return err
	}
	if err := b.OnSuccess(); err != nil {
		return &BuilderAbortError{Reason: err.Error()}
	}
	return nil
}

// NopBuilder ignores every event. Embed it to implement only the
// callbacks a builder cares about.
type NopBuilder struct{}

func (NopBuilder) OnStart(string) error            { return nil }
func (NopBuilder) OnNil() error                    { return nil }
func (NopBuilder) OnBool(bool) error               { return nil }
func (NopBuilder) OnInt(int64) error               { return nil }
func (NopBuilder) OnFloat(float64) error           { return nil }
func (NopBuilder) OnString(string, int, int) error { return nil }
func (NopBuilder) OnArrayStart(int) error          { return nil }
func (NopBuilder) OnArrayElement(int) error        { return nil }
func (NopBuilder) OnArrayEnd() error               { return nil }
func (NopBuilder) OnHashStart(int) error           { return nil }
func (NopBuilder) OnKey(string) error              { return nil }
func (NopBuilder) OnHashValue(string) error        { return nil }
func (NopBuilder) OnHashEnd() error                { return nil }
func (NopBuilder) OnNamedStart(string) error       { return nil }
func (NopBuilder) OnNamedEnd(string) error         { return nil }
func (NopBuilder) OnSuccess() error                { return nil }
func (NopBuilder) OnError(error) error             { return nil }

// DebugBuilder logs every value event as an indented line. Lifecycle
// and after-element events stay silent.
type DebugBuilder struct {
	NopBuilder
	W io.Writer

	depth int
}

func (d *DebugBuilder) emitf(format string, args ...any) error {
	_, err := fmt.Fprintf(d.W, "%s"+format+"\n", append([]any{strings.Repeat("  ", d.depth)}, args...)...)
	return err
}

func (d *DebugBuilder) OnNil() error                      { return d.emitf("nil") }
func (d *DebugBuilder) OnBool(v bool) error               { return d.emitf("bool %v", v) }
func (d *DebugBuilder) OnInt(v int64) error               { return d.emitf("int %d", v) }
func (d *DebugBuilder) OnFloat(v float64) error           { return d.emitf("float %g", v) }
func (d *DebugBuilder) OnString(s string, _, _ int) error { return d.emitf("string %q", s) }
func (d *DebugBuilder) OnKey(key string) error            { return d.emitf("key %q", key) }

func (d *DebugBuilder) OnArrayStart(length int) error {
	err := d.emitf("array(%d)", length)
	d.depth++
	return err
}

func (d *DebugBuilder) OnArrayEnd() error {
	d.depth--
	return nil
}

func (d *DebugBuilder) OnHashStart(length int) error {
	err := d.emitf("hash(%d)", length)
	d.depth++
	return err
}

func (d *DebugBuilder) OnHashEnd() error {
	d.depth--
	return nil
}

func (d *DebugBuilder) OnNamedStart(name string) error {
	err := d.emitf("named %q", name)
	d.depth++
	return err
}

func (d *DebugBuilder) OnNamedEnd(string) error {
	d.depth--
	return nil
}

// JSONBuilder serializes the event stream directly as JSON, keeping no
// tree in memory. Hash entries keep their parse order; a named capture
// renders as a one-key object.
type JSONBuilder struct {
	NopBuilder
	W io.Writer

	// needComma tracks whether the next value at each open nesting
	// level must be preceded by a comma.
	needComma  []bool
	pendingKey bool
}

func (j *JSONBuilder) separate() error {
	n := len(j.needComma)
	if j.pendingKey {
		j.pendingKey = false
		return nil
	}
	if n == 0 {
		return nil
	}
	if j.needComma[n-1] {
		if _, err := io.WriteString(j.W, ","); err != nil {
			return err
		}
	}
	j.needComma[n-1] = true
	return nil
}

func (j *JSONBuilder) value(s string) error {
	if err := j.separate(); err != nil {
		return err
	}
	_, err := io.WriteString(j.W, s)
	return err
}

func (j *JSONBuilder) OnNil() error                      { return j.value("null") }
func (j *JSONBuilder) OnBool(v bool) error               { return j.value(strconv.FormatBool(v)) }
func (j *JSONBuilder) OnInt(v int64) error               { return j.value(strconv.FormatInt(v, 10)) }
func (j *JSONBuilder) OnFloat(v float64) error           { return j.value(strconv.FormatFloat(v, 'g', -1, 64)) }
func (j *JSONBuilder) OnString(s string, _, _ int) error { return j.value(strconv.Quote(s)) }

func (j *JSONBuilder) OnArrayStart(int) error {
	if err := j.value("["); err != nil {
		return err
	}
	j.needComma = append(j.needComma, false)
	return nil
}

func (j *JSONBuilder) OnArrayEnd() error {
	j.needComma = j.needComma[:len(j.needComma)-1]
	_, err := io.WriteString(j.W, "]")
	return err
}

func (j *JSONBuilder) OnHashStart(int) error {
	if err := j.value("{"); err != nil {
		return err
	}
	j.needComma = append(j.needComma, false)
	return nil
}

func (j *JSONBuilder) OnKey(key string) error {
	if err := j.separate(); err != nil {
		return err
	}
	if _, err := io.WriteString(j.W, strconv.Quote(key)); err != nil {
		return err
	}
	if _, err := io.WriteString(j.W, ":"); err != nil {
		return err
	}
	j.pendingKey = true
	return nil
}

func (j *JSONBuilder) OnHashEnd() error {
	j.needComma = j.needComma[:len(j.needComma)-1]
	_, err := io.WriteString(j.W, "}")
	return err
}

func (j *JSONBuilder) OnNamedStart(name string) error {
	if err := j.OnHashStart(0); err != nil {
		return err
	}
	return j.OnKey(name)
}

func (j *JSONBuilder) OnNamedEnd(string) error {
	return j.OnHashEnd()
}
