package mode_test

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"interlace/internal/cache"
	"interlace/internal/document"
	"interlace/internal/format"
	"interlace/internal/mode"
	"interlace/internal/region"
)

type templateFixture struct {
	extractor *region.Extractor
	mode      mode.LanguageMode
}

func newTemplateFixture(t *testing.T) *templateFixture {
	t.Helper()
	extractor := region.NewExtractor(cache.Options{MaxEntries: 10})
	m := mode.NewTemplateMode(extractor, format.Default)
	m.Configure(mode.Settings{Template: mode.TemplateSettings{SearchPath: "/srv/templates"}})
	t.Cleanup(func() {
		m.Dispose()
		extractor.Dispose()
	})
	return &templateFixture{extractor: extractor, mode: m}
}

func definitionURI(t *testing.T, f *templateFixture, doc *document.Document, offset int) string {
	t.Helper()
	locations, err := f.mode.FindDefinition(doc, doc.PositionAt(offset))
	if err != nil {
		t.Fatalf("FindDefinition: %v", err)
	}
	if len(locations) != 1 {
		t.Fatalf("expected one location, got %d", len(locations))
	}
	return string(locations[0].URI)
}

func TestTemplateDefinitionUnderSearchPath(t *testing.T) {
	f := newTemplateFixture(t)

	text := `<div>{% include "partials/nav" %}</div>`
	doc := hostDoc(text)
	uri := definitionURI(t, f, doc, strings.Index(text, "include"))
	if uri != "file:///srv/templates/partials/nav.html" {
		t.Errorf("definition URI = %q", uri)
	}
}

func TestTemplateDefinitionRelativeToDocument(t *testing.T) {
	f := newTemplateFixture(t)

	text := `{% include "./nav.html" %}`
	doc := document.New("file:///var/www/page.html", region.HostLanguage, 1, text)
	uri := definitionURI(t, f, doc, strings.Index(text, "nav"))
	if uri != "file:///var/www/nav.html" {
		t.Errorf("definition URI = %q", uri)
	}
}

func TestTemplateDefinitionExtendsDirective(t *testing.T) {
	f := newTemplateFixture(t)

	text := `{% extends "base" %}<p>body</p>`
	doc := hostDoc(text)
	uri := definitionURI(t, f, doc, strings.Index(text, "base"))
	if uri != "file:///srv/templates/base.html" {
		t.Errorf("definition URI = %q", uri)
	}
}

func TestTemplateDefinitionOutsideDirective(t *testing.T) {
	f := newTemplateFixture(t)

	text := `<p>body</p>{% include "base" %}`
	doc := hostDoc(text)
	locations, err := f.mode.FindDefinition(doc, doc.PositionAt(strings.Index(text, "body")))
	if err != nil {
		t.Fatalf("FindDefinition: %v", err)
	}
	if locations != nil {
		t.Errorf("positions outside directives must not resolve, got %v", locations)
	}
}

func TestTemplateValidationMissingTarget(t *testing.T) {
	f := newTemplateFixture(t)

	text := `{% include %}{% include "good" %}`
	doc := hostDoc(text)
	diagnostics, err := f.mode.DoValidation(doc)
	if err != nil {
		t.Fatalf("DoValidation: %v", err)
	}
	if len(diagnostics) != 1 {
		t.Fatalf("expected one finding, got %d", len(diagnostics))
	}
	d := diagnostics[0]
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityWarning {
		t.Errorf("missing target should warn, not error")
	}
	if d.Range.Start.Character != 0 || d.Range.End.Character != uint32(len("{% include %}")) {
		t.Errorf("finding should cover the directive, got %v", d.Range)
	}
}

func TestTemplateReferencesMatchTarget(t *testing.T) {
	f := newTemplateFixture(t)

	text := `{% include "shared/footer" %}<p>x</p>{% include "other" %}{% include 'shared/footer' %}`
	doc := hostDoc(text)
	locations, err := f.mode.FindReferences(doc, doc.PositionAt(strings.Index(text, "shared")))
	if err != nil {
		t.Fatalf("FindReferences: %v", err)
	}
	if len(locations) != 2 {
		t.Fatalf("expected both directives naming the target, got %d", len(locations))
	}
	for _, loc := range locations {
		if string(loc.URI) != doc.URI {
			t.Errorf("references stay in the host document, got %q", loc.URI)
		}
	}
}

func TestTemplateFormatTrimsTrailingWhitespace(t *testing.T) {
	f := newTemplateFixture(t)

	text := "{% include \"a\" %}   \n{% include \"b\" %}"
	doc := hostDoc(text)
	rng := protocol.Range{
		Start: protocol.Position{Line: 0, Character: 0},
		End:   protocol.Position{Line: 1, Character: 17},
	}

	edits, err := f.mode.Format(doc, rng, protocol.FormattingOptions{})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if len(edits) != 1 {
		t.Fatalf("expected one edit, got %d", len(edits))
	}
	want := "{% include \"a\" %}\n{% include \"b\" %}"
	if edits[0].NewText != want {
		t.Errorf("formatted text = %q, want %q", edits[0].NewText, want)
	}
}

func TestTemplateFormatBlankSelection(t *testing.T) {
	f := newTemplateFixture(t)

	doc := hostDoc("{% include \"a\" %}   \n<p>x</p>")
	edits, err := f.mode.Format(doc, protocol.Range{
		Start: protocol.Position{Line: 0, Character: 17},
		End:   protocol.Position{Line: 0, Character: 20},
	}, protocol.FormattingOptions{})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if edits != nil {
		t.Errorf("whitespace-only selection must produce no edits, got %v", edits)
	}
}

func TestTemplateDocumentSymbols(t *testing.T) {
	f := newTemplateFixture(t)

	text := `{% extends "base" %}{% include "partials/nav" %}{% include %}`
	doc := hostDoc(text)
	symbols, err := f.mode.FindDocumentSymbols(doc)
	if err != nil {
		t.Fatalf("FindDocumentSymbols: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("expected two symbols, got %d", len(symbols))
	}
	if symbols[0].Name != "base" || symbols[1].Name != "partials/nav" {
		t.Errorf("symbol names = %q, %q", symbols[0].Name, symbols[1].Name)
	}
	for _, s := range symbols {
		if s.Kind != protocol.SymbolKindModule {
			t.Errorf("symbol kind = %v, want module", s.Kind)
		}
	}
}
