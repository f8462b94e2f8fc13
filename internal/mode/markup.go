package mode

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"interlace/internal/document"
	"interlace/internal/format"
	"interlace/internal/region"
)

var tagQuery = []byte(`
(start_tag (tag_name) @tag)
(end_tag (tag_name) @tag)
`)

// markupMode is the host-language adapter. It owns everything outside
// the embedded regions and is the fallback when a position lands in no
// region.
type markupMode struct {
	parser    *sitter.Parser
	query     *sitter.Query
	formatter format.Func
	settings  Settings
	log       commonlog.Logger

	// Parse state for the current document, reused until the version
	// changes.
	uri     string
	version int32
	loaded  bool
	content []byte
	tree    *sitter.Tree
}

// NewMarkupMode creates the host markup adapter.
func NewMarkupMode(formatter format.Func) (LanguageMode, error) {
	lang := html.GetLanguage()
	query, err := sitter.NewQuery(tagQuery, lang)
	if err != nil {
		return nil, fmt.Errorf("failed to compile tag query: %w", err)
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	return &markupMode{
		parser:    parser,
		query:     query,
		formatter: formatter,
		log:       commonlog.GetLogger("interlace.mode.markup"),
	}, nil
}

func (m *markupMode) GetID() string { return region.HostLanguage }

func (m *markupMode) Configure(settings Settings) {
	m.settings = settings
}

func (m *markupMode) ensure(doc *document.Document) error {
	if m.loaded && m.uri == doc.URI && m.version == doc.Version {
		return nil
	}
	content := []byte(doc.Text)
	tree, err := m.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return fmt.Errorf("failed to parse markup: %w", err)
	}
	if m.tree != nil {
		m.tree.Close()
	}
	m.uri = doc.URI
	m.version = doc.Version
	m.loaded = true
	m.content = content
	m.tree = tree
	return nil
}

// tagNodes collects every tag-name node in document order.
func (m *markupMode) tagNodes() []*sitter.Node {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(m.query, m.tree.RootNode())

	var nodes []*sitter.Node
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, capture := range match.Captures {
			if capture.Node != nil {
				nodes = append(nodes, capture.Node)
			}
		}
	}
	return nodes
}

func (m *markupMode) DoValidation(doc *document.Document) ([]protocol.Diagnostic, error) {
	// The host markup is permissive; stray tags are not findings.
	return nil, nil
}

func (m *markupMode) DoComplete(doc *document.Document, pos protocol.Position) (protocol.CompletionList, error) {
	return emptyCompletionList(), nil
}

func (m *markupMode) DoResolve(item protocol.CompletionItem) (protocol.CompletionItem, error) {
	return item, nil
}

func (m *markupMode) DoHover(doc *document.Document, pos protocol.Position) (*protocol.Hover, error) {
	if err := m.ensure(doc); err != nil {
		return nil, err
	}
	offset := doc.OffsetAt(pos)
	for _, node := range m.tagNodes() {
		if int(node.StartByte()) <= offset && offset <= int(node.EndByte()) {
			name := node.Content(m.content)
			hoverRange := doc.RangeOf(int(node.StartByte()), int(node.EndByte()))
			return &protocol.Hover{
				Contents: protocol.MarkupContent{
					Kind:  protocol.MarkupKindPlainText,
					Value: fmt.Sprintf("<%s> element", name),
				},
				Range: &hoverRange,
			}, nil
		}
	}
	return nil, nil
}

func (m *markupMode) DoSignatureHelp(doc *document.Document, pos protocol.Position) (*protocol.SignatureHelp, error) {
	return nil, nil
}

// FindDocumentHighlight highlights the start and end tag names of the
// element under the cursor.
func (m *markupMode) FindDocumentHighlight(doc *document.Document, pos protocol.Position) ([]protocol.DocumentHighlight, error) {
	if err := m.ensure(doc); err != nil {
		return nil, err
	}
	offset := doc.OffsetAt(pos)
	nodes := m.tagNodes()

	var element *sitter.Node
	for _, node := range nodes {
		if int(node.StartByte()) <= offset && offset <= int(node.EndByte()) {
			element = enclosingElement(node)
			break
		}
	}
	if element == nil {
		return nil, nil
	}

	var highlights []protocol.DocumentHighlight
	for _, node := range nodes {
		owner := enclosingElement(node)
		if owner != nil && owner.StartByte() == element.StartByte() && owner.EndByte() == element.EndByte() {
			highlights = append(highlights, protocol.DocumentHighlight{
				Range: doc.RangeOf(int(node.StartByte()), int(node.EndByte())),
				Kind:  ptr(protocol.DocumentHighlightKindRead),
			})
		}
	}
	return highlights, nil
}

func (m *markupMode) FindDocumentSymbols(doc *document.Document) ([]protocol.SymbolInformation, error) {
	if err := m.ensure(doc); err != nil {
		return nil, err
	}
	var symbols []protocol.SymbolInformation
	for _, node := range m.tagNodes() {
		parent := node.Parent()
		if parent == nil || parent.Type() != "start_tag" {
			continue
		}
		symbol := protocol.SymbolInformation{
			Name: node.Content(m.content),
			Kind: protocol.SymbolKindField,
			Location: protocol.Location{
				URI:   protocol.DocumentUri(doc.URI),
				Range: doc.RangeOf(int(node.StartByte()), int(node.EndByte())),
			},
		}
		if container := containerTagName(node, m.content); container != "" {
			symbol.ContainerName = ptr(container)
		}
		symbols = append(symbols, symbol)
	}
	return dedupSymbols(symbols), nil
}

func (m *markupMode) FindDefinition(doc *document.Document, pos protocol.Position) ([]protocol.Location, error) {
	return nil, nil
}

func (m *markupMode) FindReferences(doc *document.Document, pos protocol.Position) ([]protocol.Location, error) {
	return nil, nil
}

func (m *markupMode) Format(doc *document.Document, rng protocol.Range, options protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	if !m.settings.FormatEnabled() {
		return nil, nil
	}
	return formatRange(doc, doc.Text, rng, region.HostLanguage, m.formatter, options), nil
}

func (m *markupMode) OnDocumentRemoved(doc *document.Document) {
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

func (m *markupMode) Dispose() {
	if m.tree != nil {
		m.tree.Close()
		m.tree = nil
	}
	m.query.Close()
	m.parser.Close()
}

// enclosingElement walks from a tag-name node up to its element.
func enclosingElement(tagName *sitter.Node) *sitter.Node {
	for node := tagName.Parent(); node != nil; node = node.Parent() {
		switch node.Type() {
		case "element", "script_element", "style_element":
			return node
		}
	}
	return nil
}

// containerTagName names the parent element of a start-tag name node.
func containerTagName(tagName *sitter.Node, content []byte) string {
	element := enclosingElement(tagName)
	if element == nil {
		return ""
	}
	parent := element.Parent()
	if parent == nil || parent.Type() != "element" {
		return ""
	}
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		child := parent.NamedChild(i)
		if child.Type() != "start_tag" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			if name := child.NamedChild(j); name.Type() == "tag_name" {
				return name.Content(content)
			}
		}
	}
	return ""
}
