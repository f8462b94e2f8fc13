// Package lsp wires the mode dispatcher to a language-server endpoint
// speaking LSP 3.16 over stdio.
package lsp

import (
	"sync"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"interlace/internal/cache"
	"interlace/internal/document"
	"interlace/internal/format"
	"interlace/internal/library"
	"interlace/internal/mode"
	"interlace/internal/region"
)

const ServerName = "interlace"

const Version = "0.1.0"

// Server holds the open-document table and the dispatcher. Handlers
// serialize on one mutex; the modes keep per-document parse state and
// are not safe for concurrent use.
type Server struct {
	handler    *protocol.Handler
	dispatcher *mode.Dispatcher
	docs       map[string]*document.Document
	mutex      sync.Mutex
	log        commonlog.Logger
}

// NewServer builds the full mode stack and returns a ready stdio
// server. libraryRoot is where the static script libraries live.
func NewServer(libraryRoot string) (*server.Server, error) {
	ls, err := newServer(libraryRoot)
	if err != nil {
		return nil, err
	}
	return server.NewServer(ls.handler, ServerName, false), nil
}

func newServer(libraryRoot string) (*Server, error) {
	extractor := region.NewExtractor(cache.Options{})
	loader := library.NewLoader(libraryRoot)

	markup, err := mode.NewMarkupMode(format.Default)
	if err != nil {
		return nil, err
	}
	script, err := mode.NewScriptMode(extractor, loader, format.Default)
	if err != nil {
		return nil, err
	}
	style, err := mode.NewStyleMode(extractor, format.Default)
	if err != nil {
		return nil, err
	}
	template := mode.NewTemplateMode(extractor, format.Default)

	ls := &Server{
		dispatcher: mode.NewDispatcher(extractor, markup, script, style, template),
		docs:       make(map[string]*document.Document),
		log:        commonlog.GetLogger("interlace.lsp"),
	}
	ls.handler = &protocol.Handler{
		Initialize:                      ls.initialize,
		Initialized:                     ls.initialized,
		Shutdown:                        ls.shutdown,
		TextDocumentDidOpen:             ls.textDocumentDidOpen,
		TextDocumentDidChange:           ls.textDocumentDidChange,
		TextDocumentDidClose:            ls.textDocumentDidClose,
		TextDocumentCompletion:          ls.textDocumentCompletion,
		CompletionItemResolve:           ls.completionItemResolve,
		TextDocumentHover:               ls.textDocumentHover,
		TextDocumentSignatureHelp:       ls.textDocumentSignatureHelp,
		TextDocumentDocumentHighlight:   ls.textDocumentDocumentHighlight,
		TextDocumentDocumentSymbol:      ls.textDocumentDocumentSymbol,
		TextDocumentDefinition:          ls.textDocumentDefinition,
		TextDocumentReferences:          ls.textDocumentReferences,
		TextDocumentRangeFormatting:     ls.textDocumentRangeFormatting,
		WorkspaceDidChangeConfiguration: ls.workspaceDidChangeConfiguration,
	}

	return ls, nil
}
