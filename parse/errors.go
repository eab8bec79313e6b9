package parse

import (
	"errors"
	"fmt"
	"time"
)

// FailedError is an ordinary match failure at a position. It is control
// flow, not a fault: alternatives and repetitions generate and swallow it
// constantly, and it only surfaces when the root atom itself fails.
type FailedError struct {
	Position int
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("no match at position %d", e.Position)
}

// IncompleteError reports a root match that did not consume all input.
type IncompleteError struct {
	Expected int
	Actual   int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("incomplete parse: consumed %d of %d bytes", e.Actual, e.Expected)
}

// InputTooLargeError reports an input over the configured size limit.
type InputTooLargeError struct {
	Size  int
	Limit int
}

func (e *InputTooLargeError) Error() string {
	return fmt.Sprintf("input too large: %d bytes, limit %d", e.Size, e.Limit)
}

// RecursionLimitError reports entity recursion past the configured depth.
type RecursionLimitError struct {
	Depth    int
	Position int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion limit %d exceeded at position %d", e.Depth, e.Position)
}

// TimeoutError reports a parse that ran past its deadline.
type TimeoutError struct {
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("parse timed out after %s", e.Limit)
}

// MemoryLimitError reports arena plus cache usage over the ceiling.
type MemoryLimitError struct {
	Used  int
	Limit int
}

func (e *MemoryLimitError) Error() string {
	return fmt.Sprintf("memory limit exceeded: %d bytes used, limit %d", e.Used, e.Limit)
}

// InvalidGrammarError reports a grammar rejected before parsing started.
type InvalidGrammarError struct {
	Reason string
}

func (e *InvalidGrammarError) Error() string {
	return "invalid grammar: " + e.Reason
}

// InternalError reports an engine invariant violation, such as an atom
// index that escaped validation or a regex that failed to compile.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Reason
}

// BuilderAbortError reports a streaming builder callback that aborted the
// parse.
type BuilderAbortError struct {
	Reason string
}

func (e *BuilderAbortError) Error() string {
	return "builder aborted: " + e.Reason
}

// IsFailed reports whether err is a recoverable match failure, as opposed
// to a fatal resource or engine error.
func IsFailed(err error) bool {
	var failed *FailedError
	return errors.As(err, &failed)
}

// FailedAt returns the failure position when err is a match failure.
func FailedAt(err error) (int, bool) {
	var failed *FailedError
	if errors.As(err, &failed) {
		return failed.Position, true
	}
	return 0, false
}
