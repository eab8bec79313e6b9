// Package langserver serves diagnostics for grammar definition files
// over the language server protocol. Documents are grammar JSON; every
// open, change and save decodes the document, validates it, runs the
// static analyzer and publishes the findings.
package langserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dhamidi/peg/grammar"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"
)

const lsName = "peg"

type LSPServer struct {
	handler protocol.Handler
	server  *server.Server
	version string

	// documents holds the latest text per open URI.
	documents map[string]string
}

func NewLSPServer(version string) *LSPServer {
	ls := &LSPServer{
		version:   version,
		documents: make(map[string]string),
	}

	ls.handler = protocol.Handler{
		Initialize:            ls.initialize,
		Initialized:           ls.initialized,
		Shutdown:              ls.shutdown,
		SetTrace:              ls.setTrace,
		TextDocumentDidOpen:   ls.textDocumentDidOpen,
		TextDocumentDidChange: ls.textDocumentDidChange,
		TextDocumentDidClose:  ls.textDocumentDidClose,
		TextDocumentDidSave:   ls.textDocumentDidSave,
	}

	ls.server = server.NewServer(&ls.handler, lsName, false)

	return ls
}

func (ls *LSPServer) RunStdio() error {
	return ls.server.RunStdio()
}

func (ls *LSPServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := ls.handler.CreateServerCapabilities()

	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindFull),
		Save: &protocol.SaveOptions{
			IncludeText: boolPtr(true),
		},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &ls.version,
		},
	}, nil
}

func (ls *LSPServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (ls *LSPServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (ls *LSPServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *LSPServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	ls.documents[params.TextDocument.URI] = params.TextDocument.Text
	ls.publishDiagnostics(ctx, params.TextDocument.URI)
	return nil
}

func (ls *LSPServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) > 0 {
		change := params.ContentChanges[len(params.ContentChanges)-1]
		if textChange, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
			ls.documents[params.TextDocument.URI] = textChange.Text
			ls.publishDiagnostics(ctx, params.TextDocument.URI)
		}
	}
	return nil
}

func (ls *LSPServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	delete(ls.documents, params.TextDocument.URI)
	return nil
}

func (ls *LSPServer) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	if params.Text != nil {
		ls.documents[params.TextDocument.URI] = *params.Text
	}
	ls.publishDiagnostics(ctx, params.TextDocument.URI)
	return nil
}

func (ls *LSPServer) publishDiagnostics(ctx *glsp.Context, uri string) {
	text, ok := ls.documents[uri]
	if !ok {
		return
	}
	diagnostics := Diagnose(text)
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// Diagnose decodes a grammar document and reports decode errors as
// errors and analyzer findings as warnings. A clean document yields an
// empty, non-nil slice so stale diagnostics get cleared.
func Diagnose(text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	g, err := grammar.Decode(strings.NewReader(text))
	if err != nil {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    decodeErrorRange(text, err),
			Severity: severityPtr(protocol.DiagnosticSeverityError),
			Source:   sourcePtr(),
			Message:  err.Error(),
		})
		return diagnostics
	}

	ranges := atomRanges(text)
	for _, w := range grammar.NewAnalyzer(g).Analyze() {
		r := protocol.Range{}
		if w.AtomID >= 0 && w.AtomID < len(ranges) {
			r = ranges[w.AtomID]
		}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    r,
			Severity: severityPtr(protocol.DiagnosticSeverityWarning),
			Source:   sourcePtr(),
			Message:  w.Message,
		})
	}
	return diagnostics
}

// decodeErrorRange points at the byte offset of a JSON syntax error, or
// the document start when the error carries no offset.
func decodeErrorRange(text string, err error) protocol.Range {
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		pos := offsetToPosition(text, int(syntax.Offset))
		return protocol.Range{Start: pos, End: pos}
	}
	return protocol.Range{}
}

// atomRanges locates each element of the top level "atoms" array so
// analyzer warnings can point at the atom they concern. Positions are
// zero-based UTF-16-naive line/character pairs, which is close enough
// for ASCII grammar files.
func atomRanges(text string) []protocol.Range {
	start := strings.Index(text, `"atoms"`)
	if start < 0 {
		return nil
	}
	open := strings.IndexByte(text[start:], '[')
	if open < 0 {
		return nil
	}
	i := start + open + 1

	var ranges []protocol.Range
	depth := 0
	inString := false
	elementStart := -1
	for ; i < len(text); i++ {
		c := text[i]
		if inString {
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				elementStart = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && elementStart >= 0 {
				ranges = append(ranges, protocol.Range{
					Start: offsetToPosition(text, elementStart),
					End:   offsetToPosition(text, i+1),
				})
				elementStart = -1
			}
		case ']':
			if depth == 0 {
				return ranges
			}
		}
	}
	return ranges
}

func offsetToPosition(text string, offset int) protocol.Position {
	if offset > len(text) {
		offset = len(text)
	}
	line := 0
	lineStart := 0
	for i := 0; i < offset; i++ {
		if text[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(offset - lineStart),
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKindPtr(kind protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &kind
}

func severityPtr(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func sourcePtr() *string {
	source := fmt.Sprintf("%s-analyzer", lsName)
	return &source
}
