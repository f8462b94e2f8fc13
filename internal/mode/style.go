package mode

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"interlace/internal/document"
	"interlace/internal/format"
	"interlace/internal/region"
)

var selectorQuery = []byte(`(rule_set (selectors) @selector)`)

// cssProperties feeds completion inside style regions.
var cssProperties = []string{
	"background", "background-color", "border", "border-radius", "color",
	"display", "flex", "font-family", "font-size", "font-weight", "height",
	"justify-content", "margin", "opacity", "overflow", "padding",
	"position", "text-align", "width", "z-index",
}

// cssPropertyDocs backs hover for the better-known properties.
var cssPropertyDocs = map[string]string{
	"background-color": "Sets the background color of an element.",
	"color":            "Sets the foreground color of text.",
	"display":          "Sets whether an element is treated as a block or inline box.",
	"font-size":        "Sets the size of the font.",
	"margin":           "Sets the margin area on all four sides.",
	"padding":          "Sets the padding area on all four sides.",
	"position":         "Sets how an element is positioned in the document.",
	"width":            "Sets an element's width.",
}

// styleMode is the grammar-backed adapter for embedded style blocks. It
// analyzes the virtual style sub-document directly; offset identity
// makes every resulting range valid in the host document.
type styleMode struct {
	extractor *region.Extractor
	parser    *sitter.Parser
	query     *sitter.Query
	formatter format.Func
	settings  Settings
	log       commonlog.Logger

	uri     string
	version int32
	loaded  bool
	content []byte
	tree    *sitter.Tree
}

// NewStyleMode creates the stylesheet adapter.
func NewStyleMode(extractor *region.Extractor, formatter format.Func) (LanguageMode, error) {
	lang := css.GetLanguage()
	query, err := sitter.NewQuery(selectorQuery, lang)
	if err != nil {
		return nil, fmt.Errorf("failed to compile selector query: %w", err)
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	return &styleMode{
		extractor: extractor,
		parser:    parser,
		query:     query,
		formatter: formatter,
		log:       commonlog.GetLogger("interlace.mode.style"),
	}, nil
}

func (m *styleMode) GetID() string { return region.StyleLanguage }

func (m *styleMode) Configure(settings Settings) {
	m.settings = settings
}

// virtual returns the style sub-document and reparses it when the
// version changed.
func (m *styleMode) virtual(doc *document.Document) (*document.Document, error) {
	vdoc, err := m.extractor.GetEmbeddedDocument(doc, region.StyleLanguage)
	if err != nil {
		return nil, err
	}
	if m.loaded && m.uri == vdoc.URI && m.version == vdoc.Version {
		return vdoc, nil
	}
	content := []byte(vdoc.Text)
	tree, err := m.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stylesheet: %w", err)
	}
	if m.tree != nil {
		m.tree.Close()
	}
	m.uri = vdoc.URI
	m.version = vdoc.Version
	m.loaded = true
	m.content = content
	m.tree = tree
	return vdoc, nil
}

func (m *styleMode) owns(doc *document.Document, offset int) bool {
	regions, err := m.extractor.GetRegions(doc)
	if err != nil {
		return false
	}
	r, ok := region.At(regions, offset)
	return ok && r.LanguageID == region.StyleLanguage
}

func (m *styleMode) DoValidation(doc *document.Document) ([]protocol.Diagnostic, error) {
	vdoc, err := m.virtual(doc)
	if err != nil {
		return nil, err
	}
	var diagnostics []protocol.Diagnostic
	collectSyntaxErrors(m.tree.RootNode(), func(start, end int, message string) {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    vdoc.RangeOf(start, end),
			Severity: ptr(protocol.DiagnosticSeverityError),
			Source:   ptr(region.StyleLanguage),
			Message:  message,
		})
	})
	return diagnostics, nil
}

func (m *styleMode) DoComplete(doc *document.Document, pos protocol.Position) (protocol.CompletionList, error) {
	offset := doc.OffsetAt(pos)
	if !m.owns(doc, offset) {
		return emptyCompletionList(), nil
	}
	vdoc, err := m.virtual(doc)
	if err != nil {
		return emptyCompletionList(), nil
	}
	wordStart, wordEnd := vdoc.WordRangeAt(offset)
	editRange := vdoc.RangeOf(wordStart, wordEnd)

	items := make([]protocol.CompletionItem, 0, len(cssProperties))
	for _, property := range cssProperties {
		kind := protocol.CompletionItemKindProperty
		items = append(items, protocol.CompletionItem{
			Label:    property,
			Kind:     &kind,
			SortText: ptr(property),
			TextEdit: &protocol.TextEdit{Range: editRange, NewText: property},
		})
	}
	return protocol.CompletionList{IsIncomplete: false, Items: items}, nil
}

func (m *styleMode) DoResolve(item protocol.CompletionItem) (protocol.CompletionItem, error) {
	if doc, ok := cssPropertyDocs[item.Label]; ok && item.Documentation == nil {
		item.Documentation = doc
	}
	return item, nil
}

func (m *styleMode) DoHover(doc *document.Document, pos protocol.Position) (*protocol.Hover, error) {
	offset := doc.OffsetAt(pos)
	if !m.owns(doc, offset) {
		return nil, nil
	}
	vdoc, err := m.virtual(doc)
	if err != nil {
		return nil, err
	}
	start, end := cssWordRangeAt(vdoc.Text, offset)
	if start == end {
		return nil, nil
	}
	word := vdoc.Text[start:end]
	docText, ok := cssPropertyDocs[word]
	if !ok {
		return nil, nil
	}
	hoverRange := vdoc.RangeOf(start, end)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindPlainText, Value: docText},
		Range:    &hoverRange,
	}, nil
}

func (m *styleMode) DoSignatureHelp(doc *document.Document, pos protocol.Position) (*protocol.SignatureHelp, error) {
	return nil, nil
}

func (m *styleMode) FindDocumentHighlight(doc *document.Document, pos protocol.Position) ([]protocol.DocumentHighlight, error) {
	offset := doc.OffsetAt(pos)
	if !m.owns(doc, offset) {
		return nil, nil
	}
	vdoc, err := m.virtual(doc)
	if err != nil {
		return nil, err
	}
	start, end := cssWordRangeAt(vdoc.Text, offset)
	if start == end {
		return nil, nil
	}
	var highlights []protocol.DocumentHighlight
	for _, span := range wordSpansIn(vdoc.Text, vdoc.Text[start:end]) {
		highlights = append(highlights, protocol.DocumentHighlight{
			Range: vdoc.RangeOf(span[0], span[1]),
			Kind:  ptr(protocol.DocumentHighlightKindRead),
		})
	}
	return highlights, nil
}

func (m *styleMode) FindDocumentSymbols(doc *document.Document) ([]protocol.SymbolInformation, error) {
	vdoc, err := m.virtual(doc)
	if err != nil {
		return nil, err
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(m.query, m.tree.RootNode())

	var symbols []protocol.SymbolInformation
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, capture := range match.Captures {
			if capture.Node == nil {
				continue
			}
			node := capture.Node
			symbols = append(symbols, protocol.SymbolInformation{
				Name: strings.TrimSpace(node.Content(m.content)),
				Kind: protocol.SymbolKindClass,
				Location: protocol.Location{
					URI:   protocol.DocumentUri(doc.URI),
					Range: vdoc.RangeOf(int(node.StartByte()), int(node.EndByte())),
				},
			})
		}
	}
	return dedupSymbols(symbols), nil
}

func (m *styleMode) FindDefinition(doc *document.Document, pos protocol.Position) ([]protocol.Location, error) {
	return nil, nil
}

func (m *styleMode) FindReferences(doc *document.Document, pos protocol.Position) ([]protocol.Location, error) {
	offset := doc.OffsetAt(pos)
	if !m.owns(doc, offset) {
		return nil, nil
	}
	vdoc, err := m.virtual(doc)
	if err != nil {
		return nil, err
	}
	start, end := cssWordRangeAt(vdoc.Text, offset)
	if start == end {
		return nil, nil
	}
	var locations []protocol.Location
	for _, span := range wordSpansIn(vdoc.Text, vdoc.Text[start:end]) {
		locations = append(locations, protocol.Location{
			URI:   protocol.DocumentUri(doc.URI),
			Range: vdoc.RangeOf(span[0], span[1]),
		})
	}
	return locations, nil
}

func (m *styleMode) Format(doc *document.Document, rng protocol.Range, options protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	if !m.settings.FormatEnabled() {
		return nil, nil
	}
	vdoc, err := m.virtual(doc)
	if err != nil {
		return nil, err
	}
	return formatRange(doc, vdoc.Text, rng, region.StyleLanguage, m.formatter, options), nil
}

func (m *styleMode) OnDocumentRemoved(doc *document.Document) {
	if m.uri != doc.URI {
		return
	}
	if m.tree != nil {
		m.tree.Close()
		m.tree = nil
	}
	m.loaded = false
	m.uri = ""
	m.content = nil
}

func (m *styleMode) Dispose() {
	if m.tree != nil {
		m.tree.Close()
		m.tree = nil
	}
	m.query.Close()
	m.parser.Close()
}

// collectSyntaxErrors walks a tree for ERROR subtrees and missing
// nodes.
func collectSyntaxErrors(node *sitter.Node, report func(start, end int, message string)) {
	if node == nil || !node.HasError() {
		return
	}
	if node.Type() == "ERROR" {
		report(int(node.StartByte()), int(node.EndByte()), "syntax error")
		return
	}
	if node.IsMissing() {
		report(int(node.StartByte()), int(node.EndByte()), fmt.Sprintf("missing %s", node.Type()))
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectSyntaxErrors(node.Child(i), report)
	}
}

// cssWordRangeAt widens the document word scan to hyphenated property
// names.
func cssWordRangeAt(text string, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	start := offset
	for start > 0 && isWordByte(text[start-1]) {
		start--
	}
	end := offset
	for end < len(text) && isWordByte(text[end]) {
		end++
	}
	return start, end
}
