package mode

import (
	"fmt"
	"strconv"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"interlace/internal/analyzer"
	"interlace/internal/document"
	"interlace/internal/format"
	"interlace/internal/library"
	"interlace/internal/region"
)

// embeddedScriptName is the synthetic file identity the analysis
// service sees for the current virtual script document.
const embeddedScriptName = "inmemory://script.js"

// scriptHost exposes the current virtual script document plus the
// static libraries to the analysis service. Its version counter bumps
// only when the document identity or version actually changes, so
// unchanged documents never force a reparse.
type scriptHost struct {
	loader    *library.Loader
	libraries []string
	options   analyzer.Options

	uri        string
	docVersion int32
	counter    int
	doc        *document.Document
}

func (h *scriptHost) setDocument(vdoc *document.Document) {
	if h.doc != nil && h.uri == vdoc.URI && h.docVersion == vdoc.Version {
		return
	}
	h.uri = vdoc.URI
	h.docVersion = vdoc.Version
	h.counter++
	h.doc = vdoc
}

func (h *scriptHost) reset() {
	h.uri = ""
	h.docVersion = 0
	h.doc = nil
}

func (h *scriptHost) CompilerOptions() analyzer.Options { return h.options }

func (h *scriptHost) ScriptFileNames() []string {
	names := make([]string, 0, len(h.libraries)+1)
	names = append(names, embeddedScriptName)
	names = append(names, h.libraries...)
	return names
}

func (h *scriptHost) ScriptVersion(fileName string) string {
	if fileName == embeddedScriptName {
		return strconv.Itoa(h.counter)
	}
	// Library content never changes at runtime.
	return library.Version
}

func (h *scriptHost) ScriptSnapshot(fileName string) analyzer.Snapshot {
	if fileName == embeddedScriptName {
		if h.doc == nil {
			return analyzer.StringSnapshot("")
		}
		return analyzer.StringSnapshot(h.doc.Text)
	}
	return analyzer.StringSnapshot(h.loader.Load(fileName))
}

// scriptMode is the analyzer-backed adapter for embedded script blocks.
type scriptMode struct {
	extractor *region.Extractor
	host      *scriptHost
	service   *analyzer.Service
	formatter format.Func
	settings  Settings
	log       commonlog.Logger
}

// NewScriptMode creates the script adapter with one persistent analysis
// service for the mode's lifetime.
func NewScriptMode(extractor *region.Extractor, loader *library.Loader, formatter format.Func) (LanguageMode, error) {
	host := &scriptHost{
		loader:    loader,
		libraries: []string{library.DefaultLibrary},
	}
	service, err := analyzer.NewService(host)
	if err != nil {
		return nil, fmt.Errorf("failed to create script analysis service: %w", err)
	}
	return &scriptMode{
		extractor: extractor,
		host:      host,
		service:   service,
		formatter: formatter,
		log:       commonlog.GetLogger("interlace.mode.script"),
	}, nil
}

func (m *scriptMode) GetID() string { return region.ScriptLanguage }

func (m *scriptMode) Configure(settings Settings) {
	m.settings = settings
}

// virtual pins the current virtual script document into the host.
func (m *scriptMode) virtual(doc *document.Document) (*document.Document, error) {
	vdoc, err := m.extractor.GetEmbeddedDocument(doc, region.ScriptLanguage)
	if err != nil {
		return nil, err
	}
	m.host.setDocument(vdoc)
	return vdoc, nil
}

// owns reports whether the position falls inside a script region.
func (m *scriptMode) owns(doc *document.Document, offset int) bool {
	regions, err := m.extractor.GetRegions(doc)
	if err != nil {
		return false
	}
	r, ok := region.At(regions, offset)
	return ok && r.LanguageID == region.ScriptLanguage
}

func (m *scriptMode) DoValidation(doc *document.Document) ([]protocol.Diagnostic, error) {
	if !m.settings.ScriptValidate() {
		return nil, nil
	}
	vdoc, err := m.virtual(doc)
	if err != nil {
		return nil, err
	}
	findings, err := m.service.Diagnostics(embeddedScriptName)
	if err != nil {
		return nil, err
	}
	diagnostics := make([]protocol.Diagnostic, 0, len(findings))
	for _, f := range findings {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    spanToRange(vdoc, f.Span),
			Severity: ptr(protocol.DiagnosticSeverityError),
			Source:   ptr(region.ScriptLanguage),
			Message:  f.Message,
		})
	}
	return diagnostics, nil
}

func (m *scriptMode) DoComplete(doc *document.Document, pos protocol.Position) (protocol.CompletionList, error) {
	offset := doc.OffsetAt(pos)
	if !m.owns(doc, offset) {
		return emptyCompletionList(), nil
	}
	vdoc, err := m.virtual(doc)
	if err != nil {
		return emptyCompletionList(), nil
	}
	entries, err := m.service.CompletionsAt(embeddedScriptName, offset)
	if err != nil {
		return emptyCompletionList(), nil
	}

	wordStart, wordEnd := vdoc.WordRangeAt(offset)
	editRange := vdoc.RangeOf(wordStart, wordEnd)

	items := make([]protocol.CompletionItem, 0, len(entries))
	for _, e := range entries {
		kind := completionKind(e.Kind)
		items = append(items, protocol.CompletionItem{
			Label:    e.Name,
			Kind:     &kind,
			SortText: ptr(e.SortText),
			TextEdit: &protocol.TextEdit{Range: editRange, NewText: e.Name},
			Data:     map[string]any{"name": e.Name, "kind": e.Kind},
		})
	}
	return protocol.CompletionList{IsIncomplete: false, Items: items}, nil
}

func (m *scriptMode) DoResolve(item protocol.CompletionItem) (protocol.CompletionItem, error) {
	data, ok := item.Data.(map[string]any)
	if !ok {
		return item, nil
	}
	name, _ := data["name"].(string)
	kind, _ := data["kind"].(string)
	if name == "" {
		return item, nil
	}
	item.Detail = ptr(fmt.Sprintf("(%s) %s", kind, name))
	item.Documentation = fmt.Sprintf("%s declared in this document or its libraries", name)
	return item, nil
}

func (m *scriptMode) DoHover(doc *document.Document, pos protocol.Position) (*protocol.Hover, error) {
	offset := doc.OffsetAt(pos)
	if !m.owns(doc, offset) {
		return nil, nil
	}
	vdoc, err := m.virtual(doc)
	if err != nil {
		return nil, err
	}
	info, err := m.service.QuickInfoAt(embeddedScriptName, offset)
	if err != nil || info == nil {
		return nil, err
	}
	hoverRange := spanToRange(vdoc, info.Span)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindPlainText, Value: info.Contents},
		Range:    &hoverRange,
	}, nil
}

func (m *scriptMode) DoSignatureHelp(doc *document.Document, pos protocol.Position) (*protocol.SignatureHelp, error) {
	offset := doc.OffsetAt(pos)
	if !m.owns(doc, offset) {
		return nil, nil
	}
	if _, err := m.virtual(doc); err != nil {
		return nil, err
	}
	help, err := m.service.SignatureHelpAt(embeddedScriptName, offset)
	if err != nil || help == nil {
		return nil, err
	}
	signatures := make([]protocol.SignatureInformation, 0, len(help.Signatures))
	for _, s := range help.Signatures {
		parameters := make([]protocol.ParameterInformation, 0, len(s.Parameters))
		for _, p := range s.Parameters {
			parameters = append(parameters, protocol.ParameterInformation{Label: p})
		}
		signatures = append(signatures, protocol.SignatureInformation{
			Label:      s.Label,
			Parameters: parameters,
		})
	}
	return &protocol.SignatureHelp{
		Signatures:      signatures,
		ActiveSignature: ptr(toUInt32(help.ActiveSignature)),
		ActiveParameter: ptr(toUInt32(help.ActiveParameter)),
	}, nil
}

func (m *scriptMode) FindDocumentHighlight(doc *document.Document, pos protocol.Position) ([]protocol.DocumentHighlight, error) {
	offset := doc.OffsetAt(pos)
	if !m.owns(doc, offset) {
		return nil, nil
	}
	vdoc, err := m.virtual(doc)
	if err != nil {
		return nil, err
	}
	occurrences, err := m.service.OccurrencesAt(embeddedScriptName, offset)
	if err != nil {
		return nil, err
	}
	highlights := make([]protocol.DocumentHighlight, 0, len(occurrences))
	for _, o := range occurrences {
		kind := protocol.DocumentHighlightKindRead
		if o.IsWrite {
			kind = protocol.DocumentHighlightKindWrite
		}
		highlights = append(highlights, protocol.DocumentHighlight{
			Range: spanToRange(vdoc, o.Span),
			Kind:  &kind,
		})
	}
	return highlights, nil
}

func (m *scriptMode) FindDocumentSymbols(doc *document.Document) ([]protocol.SymbolInformation, error) {
	vdoc, err := m.virtual(doc)
	if err != nil {
		return nil, err
	}
	items, err := m.service.NavigationItems(embeddedScriptName)
	if err != nil {
		return nil, err
	}
	symbols := make([]protocol.SymbolInformation, 0, len(items))
	for _, item := range items {
		symbol := protocol.SymbolInformation{
			Name: item.Name,
			Kind: symbolKind(item.Kind),
			Location: protocol.Location{
				URI:   protocol.DocumentUri(doc.URI),
				Range: spanToRange(vdoc, item.Span),
			},
		}
		if item.Container != "" {
			symbol.ContainerName = ptr(item.Container)
		}
		symbols = append(symbols, symbol)
	}
	return dedupSymbols(symbols), nil
}

func (m *scriptMode) FindDefinition(doc *document.Document, pos protocol.Position) ([]protocol.Location, error) {
	offset := doc.OffsetAt(pos)
	if !m.owns(doc, offset) {
		return nil, nil
	}
	vdoc, err := m.virtual(doc)
	if err != nil {
		return nil, err
	}
	span, err := m.service.DefinitionAt(embeddedScriptName, offset)
	if err != nil || span == nil {
		return nil, err
	}
	// The service only resolves within the synthetic file, so results
	// always land back in the host document.
	return []protocol.Location{{
		URI:   protocol.DocumentUri(doc.URI),
		Range: spanToRange(vdoc, *span),
	}}, nil
}

func (m *scriptMode) FindReferences(doc *document.Document, pos protocol.Position) ([]protocol.Location, error) {
	offset := doc.OffsetAt(pos)
	if !m.owns(doc, offset) {
		return nil, nil
	}
	vdoc, err := m.virtual(doc)
	if err != nil {
		return nil, err
	}
	spans, err := m.service.ReferencesAt(embeddedScriptName, offset)
	if err != nil {
		return nil, err
	}
	locations := make([]protocol.Location, 0, len(spans))
	for _, span := range spans {
		locations = append(locations, protocol.Location{
			URI:   protocol.DocumentUri(doc.URI),
			Range: spanToRange(vdoc, span),
		})
	}
	return locations, nil
}

func (m *scriptMode) Format(doc *document.Document, rng protocol.Range, options protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	if !m.settings.FormatEnabled() {
		return nil, nil
	}
	vdoc, err := m.virtual(doc)
	if err != nil {
		return nil, err
	}
	return formatRange(doc, vdoc.Text, rng, region.ScriptLanguage, m.formatter, options), nil
}

func (m *scriptMode) OnDocumentRemoved(doc *document.Document) {
	if m.host.uri == doc.URI {
		m.service.Release(embeddedScriptName)
		m.host.reset()
	}
}

func (m *scriptMode) Dispose() {
	m.service.Dispose()
}

// spanToRange converts an analyzer span to a host range through the
// virtual document's line index; offset identity makes the result valid
// host coordinates. A missing start maps to a zero-length range at the
// document start.
func spanToRange(vdoc *document.Document, span analyzer.Span) protocol.Range {
	if span.Start < 0 {
		return protocol.Range{}
	}
	return vdoc.RangeOf(span.Start, span.Start+span.Length)
}

var completionKinds = map[string]protocol.CompletionItemKind{
	"function": protocol.CompletionItemKindFunction,
	"method":   protocol.CompletionItemKindMethod,
	"class":    protocol.CompletionItemKindClass,
	"variable": protocol.CompletionItemKindVariable,
}

func completionKind(kind string) protocol.CompletionItemKind {
	if k, ok := completionKinds[kind]; ok {
		return k
	}
	return protocol.CompletionItemKindProperty
}

var symbolKinds = map[string]protocol.SymbolKind{
	"function": protocol.SymbolKindFunction,
	"method":   protocol.SymbolKindMethod,
	"class":    protocol.SymbolKindClass,
	"variable": protocol.SymbolKindVariable,
}

func symbolKind(kind string) protocol.SymbolKind {
	if k, ok := symbolKinds[kind]; ok {
		return k
	}
	return protocol.SymbolKindVariable
}
