package lsp

import (
	"encoding/json"
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"interlace/internal/document"
	"interlace/internal/mode"
)

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	if settings, ok := decodeSettings(params.InitializationOptions); ok {
		s.dispatcher.Configure(settings)
	}

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		ResolveProvider:   &protocol.True,
		TriggerCharacters: []string{".", ":", "<"},
	}
	capabilities.SignatureHelpProvider = &protocol.SignatureHelpOptions{
		TriggerCharacters: []string{"(", ","},
	}

	version := Version
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    ServerName,
			Version: &version,
		},
	}, nil
}

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	return nil
}

func (s *Server) shutdown(context *glsp.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.docs = make(map[string]*document.Document)
	s.dispatcher.Dispose()
	return nil
}

func (s *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	uri := string(params.TextDocument.URI)
	doc := document.New(uri, params.TextDocument.LanguageID,
		s.nextVersion(uri, params.TextDocument.Version), params.TextDocument.Text)
	s.docs[uri] = doc

	s.publishDiagnostics(context, doc)
	return nil
}

func (s *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	uri := string(params.TextDocument.URI)
	doc, ok := s.docs[uri]
	if !ok {
		return fmt.Errorf("change for unopened document %q", uri)
	}

	text := doc.Text
	for _, change := range params.ContentChanges {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEvent:
			if c.Range == nil {
				text = c.Text
				continue
			}
			// Offsets resolve against the text as already patched by
			// the preceding changes in this batch.
			shadow := document.New(uri, doc.LanguageID, doc.Version, text)
			start := shadow.OffsetAt(c.Range.Start)
			end := shadow.OffsetAt(c.Range.End)
			text = text[:start] + c.Text + text[end:]
		case protocol.TextDocumentContentChangeEventWhole:
			text = c.Text
		default:
			return fmt.Errorf("unsupported content change type %T", change)
		}
	}

	doc = document.New(uri, doc.LanguageID,
		s.nextVersion(uri, params.TextDocument.Version), text)
	s.docs[uri] = doc

	s.publishDiagnostics(context, doc)
	return nil
}

func (s *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	uri := string(params.TextDocument.URI)
	doc, ok := s.docs[uri]
	if !ok {
		return nil
	}
	delete(s.docs, uri)
	s.dispatcher.OnDocumentRemoved(doc)

	if context != nil && context.Notify != nil {
		context.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
			URI:         params.TextDocument.URI,
			Diagnostics: []protocol.Diagnostic{},
		})
	}
	return nil
}

func (s *Server) textDocumentCompletion(
	context *glsp.Context,
	params *protocol.CompletionParams,
) (any, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.docFor(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	list, err := s.dispatcher.GetModeAtPosition(doc, params.Position).DoComplete(doc, params.Position)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Server) completionItemResolve(
	context *glsp.Context,
	item *protocol.CompletionItem,
) (*protocol.CompletionItem, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	resolved, err := s.dispatcher.ResolveCompletion(*item)
	if err != nil {
		return item, err
	}
	return &resolved, nil
}

func (s *Server) textDocumentHover(
	context *glsp.Context,
	params *protocol.HoverParams,
) (*protocol.Hover, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.docFor(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.GetModeAtPosition(doc, params.Position).DoHover(doc, params.Position)
}

func (s *Server) textDocumentSignatureHelp(
	context *glsp.Context,
	params *protocol.SignatureHelpParams,
) (*protocol.SignatureHelp, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.docFor(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.GetModeAtPosition(doc, params.Position).DoSignatureHelp(doc, params.Position)
}

func (s *Server) textDocumentDocumentHighlight(
	context *glsp.Context,
	params *protocol.DocumentHighlightParams,
) ([]protocol.DocumentHighlight, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.docFor(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.GetModeAtPosition(doc, params.Position).FindDocumentHighlight(doc, params.Position)
}

func (s *Server) textDocumentDocumentSymbol(
	context *glsp.Context,
	params *protocol.DocumentSymbolParams,
) (any, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.docFor(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.DocumentSymbols(doc), nil
}

func (s *Server) textDocumentDefinition(
	context *glsp.Context,
	params *protocol.DefinitionParams,
) (any, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.docFor(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	locations, err := s.dispatcher.GetModeAtPosition(doc, params.Position).FindDefinition(doc, params.Position)
	if err != nil || len(locations) == 0 {
		return nil, err
	}
	return locations, nil
}

func (s *Server) textDocumentReferences(
	context *glsp.Context,
	params *protocol.ReferenceParams,
) ([]protocol.Location, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.docFor(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.GetModeAtPosition(doc, params.Position).FindReferences(doc, params.Position)
}

func (s *Server) textDocumentRangeFormatting(
	context *glsp.Context,
	params *protocol.DocumentRangeFormattingParams,
) ([]protocol.TextEdit, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.docFor(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.GetModeAtPosition(doc, params.Range.Start).Format(doc, params.Range, params.Options)
}

func (s *Server) workspaceDidChangeConfiguration(
	context *glsp.Context,
	params *protocol.DidChangeConfigurationParams,
) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if settings, ok := decodeSettings(params.Settings); ok {
		s.dispatcher.Configure(settings)
	}
	return nil
}

func (s *Server) docFor(uri protocol.DocumentUri) (*document.Document, error) {
	doc, ok := s.docs[string(uri)]
	if !ok {
		return nil, fmt.Errorf("unknown document %q", uri)
	}
	return doc, nil
}

// nextVersion keeps document versions strictly increasing even when the
// client resends or omits them.
func (s *Server) nextVersion(uri string, clientVersion int32) int32 {
	if doc, ok := s.docs[uri]; ok && clientVersion <= doc.Version {
		return doc.Version + 1
	}
	return clientVersion
}

func (s *Server) publishDiagnostics(context *glsp.Context, doc *document.Document) {
	if context == nil || context.Notify == nil {
		return
	}
	context.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentUri(doc.URI),
		Diagnostics: s.dispatcher.Validate(doc),
	})
}

// decodeSettings accepts either a bare settings object or one nested
// under an "interlace" key, the shape workspace configuration arrives
// in.
func decodeSettings(raw any) (mode.Settings, bool) {
	if raw == nil {
		return mode.Settings{}, false
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return mode.Settings{}, false
	}

	var wrapper struct {
		Interlace *mode.Settings `json:"interlace"`
	}
	if err := json.Unmarshal(encoded, &wrapper); err == nil && wrapper.Interlace != nil {
		return *wrapper.Interlace, true
	}

	var settings mode.Settings
	if err := json.Unmarshal(encoded, &settings); err != nil {
		return mode.Settings{}, false
	}
	return settings, true
}
