// Package stream parses record-oriented inputs that do not fit in
// memory. A sliding window assembles chunks from a reader; the record
// grammar repeatedly matches at the window start, matched bytes are
// handed to a callback and evicted, and the window refills. Memory stays
// bounded by the window limit regardless of input size.
package stream

import (
	"fmt"
	"io"
	"os"

	"github.com/dhamidi/peg/grammar"
	"github.com/dhamidi/peg/parse"
)

// ChunkConfig controls the sliding window.
type ChunkConfig struct {
	// ChunkSize is how many bytes each read requests.
	ChunkSize int

	// MaxWindow caps the assembled window. A record that cannot
	// complete within it aborts the stream with a WindowError.
	MaxWindow int
}

// DefaultConfig suits line-sized records: 64 KB reads, 1 MB window.
func DefaultConfig() ChunkConfig {
	return ChunkConfig{ChunkSize: 64 * 1024, MaxWindow: 1024 * 1024}
}

// LargeRecordConfig suits multi-megabyte records such as embedded
// documents: 1 MB reads, 64 MB window.
func LargeRecordConfig() ChunkConfig {
	return ChunkConfig{ChunkSize: 1024 * 1024, MaxWindow: 64 * 1024 * 1024}
}

// Record is one matched value. Node and Arena are valid only during the
// callback; the arena is recycled for the next record.
type Record struct {
	Node  parse.Node
	Arena *parse.Arena

	// Offset is the record's absolute byte offset in the stream.
	Offset int64

	// Input is the window text the record's InputRef spans index into.
	Input string
}

// RecordFunc consumes one record. A non-nil error stops the stream.
type RecordFunc func(rec Record) error

// Stats summarizes a finished stream.
type Stats struct {
	Records   int
	Bytes     int64
	MaxWindow int
}

// WindowError reports a record that outgrew the window.
type WindowError struct {
	Offset int64
	Limit  int
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("record at offset %d exceeds the %d byte window", e.Offset, e.Limit)
}

// RecordError wraps a parse failure with its absolute stream offset.
type RecordError struct {
	Offset int64
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record at offset %d: %v", e.Offset, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Parser matches one record grammar against a stream. Safe to reuse
// sequentially, not concurrently.
type Parser struct {
	grammar *grammar.Grammar
	config  ChunkConfig
	opts    []parse.Option
}

func NewParser(g *grammar.Grammar, config ChunkConfig, opts ...parse.Option) (*Parser, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if config.ChunkSize <= 0 || config.MaxWindow < config.ChunkSize {
		return nil, fmt.Errorf("chunk size %d and window %d must be positive with window >= chunk", config.ChunkSize, config.MaxWindow)
	}
	return &Parser{grammar: g, config: config, opts: opts}, nil
}

// ParseFromFile streams records from a file on disk.
func (p *Parser) ParseFromFile(path string, fn RecordFunc) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, err
	}
	defer f.Close()
	return p.ParseFromReader(f, fn)
}

// ParseFromChunks streams records from pre-split chunks, typically
// message payloads that arrived separately. Chunk boundaries carry no
// meaning; records may span any number of chunks.
func (p *Parser) ParseFromChunks(chunks [][]byte, fn RecordFunc) (Stats, error) {
	return p.ParseFromReader(&chunkReader{chunks: chunks}, fn)
}

// ParseFromReader assembles the window from r and emits every record in
// order. It returns once the reader is drained and the final window is
// consumed.
func (p *Parser) ParseFromReader(r io.Reader, fn RecordFunc) (Stats, error) {
	var (
		stats  Stats
		window []byte
		base   int64
		eof    bool
	)

	matcher, err := parse.NewMatcher(p.grammar, "", nil, p.opts...)
	if err != nil {
		return stats, err
	}
	buf := make([]byte, p.config.ChunkSize)

	fill := func() error {
		for !eof && len(window) < p.config.MaxWindow {
			n, rerr := r.Read(buf)
			if n > 0 {
				window = append(window, buf[:n]...)
				stats.Bytes += int64(n)
			}
			if rerr == io.EOF {
				eof = true
				return nil
			}
			if rerr != nil {
				return rerr
			}
			if n > 0 {
				return nil
			}
		}
		return nil
	}

	for {
		if len(window) == 0 {
			if eof {
				return stats, nil
			}
			if err := fill(); err != nil {
				return stats, err
			}
			continue
		}
		if len(window) > stats.MaxWindow {
			stats.MaxWindow = len(window)
		}

		input := string(window)
		matcher.ResetAll()
		matcher.Rebind(input)
		node, end, merr := matcher.RunPrefix()

		if merr == nil && end == 0 {
			return stats, &RecordError{Offset: base, Err: fmt.Errorf("record grammar matched zero bytes")}
		}

		if merr != nil && !parse.IsFailed(merr) {
			return stats, &RecordError{Offset: base, Err: merr}
		}

		// A match flush against the window edge may be a truncated
		// greedy match; a failure may just need more data. Either way,
		// grow the window before concluding anything, unless the
		// reader is already drained.
		needMore := merr != nil || end == len(window)
		if needMore && !eof {
			if len(window) >= p.config.MaxWindow {
				return stats, &WindowError{Offset: base, Limit: p.config.MaxWindow}
			}
			if err := fill(); err != nil {
				return stats, err
			}
			continue
		}
		if merr != nil {
			return stats, &RecordError{Offset: base, Err: merr}
		}

		err := fn(Record{
			Node:   node,
			Arena:  matcher.Arena(),
			Offset: base,
			Input:  input,
		})
		if err != nil {
			return stats, err
		}
		stats.Records++
		window = window[end:]
		base += int64(end)
	}
}

// chunkReader adapts a chunk slice to io.Reader.
type chunkReader struct {
	chunks [][]byte
	pos    int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for len(c.chunks) > 0 && c.pos >= len(c.chunks[0]) {
		c.chunks = c.chunks[1:]
		c.pos = 0
	}
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0][c.pos:])
	c.pos += n
	return n, nil
}
