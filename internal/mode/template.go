package mode

import (
	"path"
	"strings"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"interlace/internal/document"
	"interlace/internal/format"
	"interlace/internal/region"
)

// templateMode is the adapter for {% include %} and {% extends %}
// directives. Its main capability is jump to the included file; the
// target path is synthesized from the configured search path without
// checking that the file exists, so the resulting location may dangle.
type templateMode struct {
	extractor *region.Extractor
	formatter format.Func
	settings  Settings
	log       commonlog.Logger
}

// NewTemplateMode creates the template-include adapter.
func NewTemplateMode(extractor *region.Extractor, formatter format.Func) LanguageMode {
	return &templateMode{
		extractor: extractor,
		formatter: formatter,
		log:       commonlog.GetLogger("interlace.mode.template"),
	}
}

func (m *templateMode) GetID() string { return region.TemplateLanguage }

func (m *templateMode) Configure(settings Settings) {
	m.settings = settings
}

// templateRegions returns the template directives of doc.
func (m *templateMode) templateRegions(doc *document.Document) ([]region.Region, error) {
	regions, err := m.extractor.GetRegions(doc)
	if err != nil {
		return nil, err
	}
	var out []region.Region
	for _, r := range regions {
		if r.LanguageID == region.TemplateLanguage {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *templateMode) DoValidation(doc *document.Document) ([]protocol.Diagnostic, error) {
	regions, err := m.templateRegions(doc)
	if err != nil {
		return nil, err
	}
	var diagnostics []protocol.Diagnostic
	for _, r := range regions {
		if _, ok := directiveTarget(doc.Text[r.Start:r.End]); !ok {
			diagnostics = append(diagnostics, protocol.Diagnostic{
				Range:    doc.RangeOf(r.Start, r.End),
				Severity: ptr(protocol.DiagnosticSeverityWarning),
				Source:   ptr(region.TemplateLanguage),
				Message:  "directive is missing a quoted target",
			})
		}
	}
	return diagnostics, nil
}

func (m *templateMode) DoComplete(doc *document.Document, pos protocol.Position) (protocol.CompletionList, error) {
	return emptyCompletionList(), nil
}

func (m *templateMode) DoResolve(item protocol.CompletionItem) (protocol.CompletionItem, error) {
	return item, nil
}

func (m *templateMode) DoHover(doc *document.Document, pos protocol.Position) (*protocol.Hover, error) {
	return nil, nil
}

func (m *templateMode) DoSignatureHelp(doc *document.Document, pos protocol.Position) (*protocol.SignatureHelp, error) {
	return nil, nil
}

func (m *templateMode) FindDocumentHighlight(doc *document.Document, pos protocol.Position) ([]protocol.DocumentHighlight, error) {
	return nil, nil
}

func (m *templateMode) FindDocumentSymbols(doc *document.Document) ([]protocol.SymbolInformation, error) {
	regions, err := m.templateRegions(doc)
	if err != nil {
		return nil, err
	}
	var symbols []protocol.SymbolInformation
	for _, r := range regions {
		target, ok := directiveTarget(doc.Text[r.Start:r.End])
		if !ok {
			continue
		}
		symbols = append(symbols, protocol.SymbolInformation{
			Name: target,
			Kind: protocol.SymbolKindModule,
			Location: protocol.Location{
				URI:   protocol.DocumentUri(doc.URI),
				Range: doc.RangeOf(r.Start, r.End),
			},
		})
	}
	return dedupSymbols(symbols), nil
}

// FindDefinition resolves the directive under the cursor to its target
// file. The path is synthesized, never verified.
func (m *templateMode) FindDefinition(doc *document.Document, pos protocol.Position) ([]protocol.Location, error) {
	regions, err := m.templateRegions(doc)
	if err != nil {
		return nil, err
	}
	offset := doc.OffsetAt(pos)
	r, ok := region.At(regions, offset)
	if !ok {
		return nil, nil
	}
	target, ok := directiveTarget(doc.Text[r.Start:r.End])
	if !ok {
		return nil, nil
	}
	return []protocol.Location{{
		URI:   protocol.DocumentUri(m.resolveTarget(doc, target)),
		Range: protocol.Range{},
	}}, nil
}

// FindReferences lists every directive naming the same target.
func (m *templateMode) FindReferences(doc *document.Document, pos protocol.Position) ([]protocol.Location, error) {
	regions, err := m.templateRegions(doc)
	if err != nil {
		return nil, err
	}
	offset := doc.OffsetAt(pos)
	at, ok := region.At(regions, offset)
	if !ok {
		return nil, nil
	}
	target, ok := directiveTarget(doc.Text[at.Start:at.End])
	if !ok {
		return nil, nil
	}
	var locations []protocol.Location
	for _, r := range regions {
		other, ok := directiveTarget(doc.Text[r.Start:r.End])
		if !ok || other != target {
			continue
		}
		locations = append(locations, protocol.Location{
			URI:   protocol.DocumentUri(doc.URI),
			Range: doc.RangeOf(r.Start, r.End),
		})
	}
	return locations, nil
}

func (m *templateMode) Format(doc *document.Document, rng protocol.Range, options protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	if !m.settings.FormatEnabled() {
		return nil, nil
	}
	return formatRange(doc, doc.Text, rng, region.TemplateLanguage, m.formatter, options), nil
}

func (m *templateMode) OnDocumentRemoved(doc *document.Document) {}

func (m *templateMode) Dispose() {}

// resolveTarget synthesizes the target path: names starting with "."
// resolve relative to the host document, everything else under the
// configured search path. A missing extension defaults to ".html".
func (m *templateMode) resolveTarget(doc *document.Document, target string) string {
	if path.Ext(target) == "" {
		target += ".html"
	}
	if strings.HasPrefix(target, ".") {
		base := path.Dir(uriToPath(doc.URI))
		return pathToURI(path.Clean(path.Join(base, target)))
	}
	return pathToURI(path.Clean(path.Join(m.settings.Template.SearchPath, target)))
}

// directiveTarget extracts the quoted target of an include/extends
// directive.
func directiveTarget(directive string) (string, bool) {
	for _, quote := range []byte{'"', '\''} {
		open := strings.IndexByte(directive, quote)
		if open < 0 {
			continue
		}
		rest := directive[open+1:]
		closing := strings.IndexByte(rest, quote)
		if closing < 0 {
			return "", false
		}
		target := rest[:closing]
		if target == "" {
			return "", false
		}
		return target, true
	}
	return "", false
}

func uriToPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

func pathToURI(p string) string {
	if strings.HasPrefix(p, "file://") {
		return p
	}
	return "file://" + p
}
