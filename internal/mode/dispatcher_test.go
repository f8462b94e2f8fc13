package mode_test

import (
	"errors"
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"interlace/internal/cache"
	"interlace/internal/document"
	"interlace/internal/mode"
	"interlace/internal/region"
)

// stubMode records calls and serves canned results.
type stubMode struct {
	id          string
	diagnostics []protocol.Diagnostic
	validateErr error
	validated   int
	removed     int
	disposed    int
}

func (s *stubMode) GetID() string                   { return s.id }
func (s *stubMode) Configure(settings mode.Settings) {}

func (s *stubMode) DoValidation(doc *document.Document) ([]protocol.Diagnostic, error) {
	s.validated++
	if s.validateErr != nil {
		return nil, s.validateErr
	}
	return s.diagnostics, nil
}

func (s *stubMode) DoComplete(doc *document.Document, pos protocol.Position) (protocol.CompletionList, error) {
	return protocol.CompletionList{IsIncomplete: false, Items: []protocol.CompletionItem{}}, nil
}

func (s *stubMode) DoResolve(item protocol.CompletionItem) (protocol.CompletionItem, error) {
	return item, nil
}

func (s *stubMode) DoHover(doc *document.Document, pos protocol.Position) (*protocol.Hover, error) {
	return nil, nil
}

func (s *stubMode) DoSignatureHelp(doc *document.Document, pos protocol.Position) (*protocol.SignatureHelp, error) {
	return nil, nil
}

func (s *stubMode) FindDocumentHighlight(doc *document.Document, pos protocol.Position) ([]protocol.DocumentHighlight, error) {
	return nil, nil
}

func (s *stubMode) FindDocumentSymbols(doc *document.Document) ([]protocol.SymbolInformation, error) {
	return nil, nil
}

func (s *stubMode) FindDefinition(doc *document.Document, pos protocol.Position) ([]protocol.Location, error) {
	return nil, nil
}

func (s *stubMode) FindReferences(doc *document.Document, pos protocol.Position) ([]protocol.Location, error) {
	return nil, nil
}

func (s *stubMode) Format(doc *document.Document, rng protocol.Range, options protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	return nil, nil
}

func (s *stubMode) OnDocumentRemoved(doc *document.Document) { s.removed++ }
func (s *stubMode) Dispose()                                 { s.disposed++ }

func diag(message string) protocol.Diagnostic {
	return protocol.Diagnostic{Message: message}
}

type dispatcherFixture struct {
	dispatcher *mode.Dispatcher
	extractor  *region.Extractor
	host       *stubMode
	script     *stubMode
	style      *stubMode
}

func newFixture() *dispatcherFixture {
	extractor := region.NewExtractor(cache.Options{MaxEntries: 10})
	host := &stubMode{id: region.HostLanguage}
	script := &stubMode{id: region.ScriptLanguage}
	style := &stubMode{id: region.StyleLanguage}
	return &dispatcherFixture{
		dispatcher: mode.NewDispatcher(extractor, host, script, style),
		extractor:  extractor,
		host:       host,
		script:     script,
		style:      style,
	}
}

func hostDoc(text string) *document.Document {
	return document.New("file:///page.html", region.HostLanguage, 1, text)
}

func TestModeAtPositionRouting(t *testing.T) {
	f := newFixture()
	defer f.dispatcher.Dispose()

	text := `<style>p { color: red; }</style><div>x</div><script>var a = 1;</script>`
	doc := hostDoc(text)

	inStyle := doc.PositionAt(strings.Index(text, "color"))
	if got := f.dispatcher.GetModeAtPosition(doc, inStyle); got.GetID() != region.StyleLanguage {
		t.Errorf("position in style region routed to %q", got.GetID())
	}

	inScript := doc.PositionAt(strings.Index(text, "var a"))
	if got := f.dispatcher.GetModeAtPosition(doc, inScript); got.GetID() != region.ScriptLanguage {
		t.Errorf("position in script region routed to %q", got.GetID())
	}

	inMarkup := doc.PositionAt(strings.Index(text, "<div>"))
	if got := f.dispatcher.GetModeAtPosition(doc, inMarkup); got.GetID() != region.HostLanguage {
		t.Errorf("position outside regions routed to %q", got.GetID())
	}
}

func TestAllModesHostOnly(t *testing.T) {
	f := newFixture()
	defer f.dispatcher.Dispose()

	doc := hostDoc(`<div>{{x}}</div>`)
	modes := f.dispatcher.GetAllModes(doc)
	if len(modes) != 1 || modes[0].GetID() != region.HostLanguage {
		ids := make([]string, len(modes))
		for i, m := range modes {
			ids[i] = m.GetID()
		}
		t.Errorf("expected host mode only, got %v", ids)
	}
}

func TestAllModesFirstAppearanceOrder(t *testing.T) {
	f := newFixture()
	defer f.dispatcher.Dispose()

	doc := hostDoc(`<script>1</script><style>a{}</style><script>2</script>`)
	modes := f.dispatcher.GetAllModes(doc)
	want := []string{region.HostLanguage, region.ScriptLanguage, region.StyleLanguage}
	if len(modes) != len(want) {
		t.Fatalf("expected %d modes, got %d", len(want), len(modes))
	}
	for i, m := range modes {
		if m.GetID() != want[i] {
			t.Errorf("mode %d = %q, want %q", i, m.GetID(), want[i])
		}
	}
}

func TestValidateMergesInOrder(t *testing.T) {
	f := newFixture()
	defer f.dispatcher.Dispose()

	f.host.diagnostics = []protocol.Diagnostic{diag("host finding")}
	f.script.diagnostics = []protocol.Diagnostic{diag("script finding")}
	f.style.diagnostics = []protocol.Diagnostic{diag("style finding")}

	doc := hostDoc(`<script>x</script><style>y</style>`)
	diagnostics := f.dispatcher.Validate(doc)
	want := []string{"host finding", "script finding", "style finding"}
	if len(diagnostics) != len(want) {
		t.Fatalf("got %d diagnostics, want %d", len(diagnostics), len(want))
	}
	for i, d := range diagnostics {
		if d.Message != want[i] {
			t.Errorf("diagnostic %d = %q, want %q", i, d.Message, want[i])
		}
	}
}

func TestValidateIsolatesFailingMode(t *testing.T) {
	f := newFixture()
	defer f.dispatcher.Dispose()

	f.host.diagnostics = []protocol.Diagnostic{diag("host finding")}
	f.script.validateErr = errors.New("analyzer exploded")
	f.style.diagnostics = []protocol.Diagnostic{diag("style finding")}

	doc := hostDoc(`<script>x</script><style>y</style>`)
	diagnostics := f.dispatcher.Validate(doc)
	if len(diagnostics) != 2 {
		t.Fatalf("failing mode must contribute empty, got %d diagnostics", len(diagnostics))
	}
	if diagnostics[0].Message != "host finding" || diagnostics[1].Message != "style finding" {
		t.Errorf("unexpected merge: %v", diagnostics)
	}
	if f.style.validated != 1 {
		t.Errorf("later mode must still run after a failure")
	}
}

func TestValidateHostOnlyDocument(t *testing.T) {
	f := newFixture()
	defer f.dispatcher.Dispose()

	f.host.diagnostics = []protocol.Diagnostic{diag("host finding")}
	f.script.diagnostics = []protocol.Diagnostic{diag("should not appear")}

	diagnostics := f.dispatcher.Validate(hostDoc(`<div>{{x}}</div>`))
	if len(diagnostics) != 1 || diagnostics[0].Message != "host finding" {
		t.Errorf("host-only document should report only host findings: %v", diagnostics)
	}
	if f.script.validated != 0 {
		t.Errorf("script mode must not run for a document without script regions")
	}
}

func TestRemovalAndDisposeFanOut(t *testing.T) {
	f := newFixture()

	doc := hostDoc(`<script>x</script>`)
	f.dispatcher.OnDocumentRemoved(doc)
	if f.host.removed != 1 || f.script.removed != 1 || f.style.removed != 1 {
		t.Errorf("removal should reach every mode: %d %d %d",
			f.host.removed, f.script.removed, f.style.removed)
	}

	f.dispatcher.Dispose()
	if f.host.disposed != 1 || f.script.disposed != 1 || f.style.disposed != 1 {
		t.Errorf("dispose should reach every mode")
	}
}
