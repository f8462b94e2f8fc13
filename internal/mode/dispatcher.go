package mode

import (
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"interlace/internal/document"
	"interlace/internal/region"
)

// Dispatcher owns the mode registry for host documents: it resolves the
// mode owning a position and fans out whole-document operations,
// merging their results. Mode instances live for the dispatcher's
// lifetime.
type Dispatcher struct {
	extractor *region.Extractor
	host      LanguageMode
	modes     []LanguageMode
	byID      map[string]LanguageMode
	log       commonlog.Logger
}

// NewDispatcher registers the host mode and the embedded-language
// modes. The host mode is the fallback for positions outside every
// region.
func NewDispatcher(extractor *region.Extractor, host LanguageMode, embedded ...LanguageMode) *Dispatcher {
	d := &Dispatcher{
		extractor: extractor,
		host:      host,
		modes:     append([]LanguageMode{host}, embedded...),
		byID:      make(map[string]LanguageMode, len(embedded)+1),
		log:       commonlog.GetLogger("interlace.dispatcher"),
	}
	for _, m := range d.modes {
		d.byID[m.GetID()] = m
	}
	return d
}

// Configure hands the settings snapshot to every registered mode.
func (d *Dispatcher) Configure(settings Settings) {
	for _, m := range d.modes {
		m.Configure(settings)
	}
}

// GetMode returns the mode registered for a language id.
func (d *Dispatcher) GetMode(languageID string) (LanguageMode, bool) {
	m, ok := d.byID[languageID]
	return m, ok
}

// GetModeAtPosition returns the mode owning the region containing pos,
// falling back to the host mode.
func (d *Dispatcher) GetModeAtPosition(doc *document.Document, pos protocol.Position) LanguageMode {
	regions, err := d.extractor.GetRegions(doc)
	if err != nil {
		d.log.Errorf("region extraction failed for %q: %s", doc.URI, err.Error())
		return d.host
	}
	offset := doc.OffsetAt(pos)
	if r, ok := region.At(regions, offset); ok {
		if m, ok := d.byID[r.LanguageID]; ok {
			return m
		}
	}
	return d.host
}

// GetAllModes returns the host mode plus the mode of every language
// present in doc, in first-appearance order.
func (d *Dispatcher) GetAllModes(doc *document.Document) []LanguageMode {
	languages, err := d.extractor.GetLanguagesInDocument(doc)
	if err != nil {
		d.log.Errorf("region extraction failed for %q: %s", doc.URI, err.Error())
		return []LanguageMode{d.host}
	}
	modes := make([]LanguageMode, 0, len(languages))
	for _, languageID := range languages {
		if m, ok := d.byID[languageID]; ok {
			modes = append(modes, m)
		}
	}
	return modes
}

// Validate merges diagnostics from every mode in first-appearance
// order. A failing mode contributes nothing; it cannot suppress the
// other modes' findings.
func (d *Dispatcher) Validate(doc *document.Document) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	if overlap, ok := d.findOverlap(doc); ok {
		// Regions cannot overlap by construction; report instead of
		// silently picking a winner.
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    doc.RangeOf(overlap.Start, overlap.End),
			Severity: ptr(protocol.DiagnosticSeverityError),
			Source:   ptr("interlace"),
			Message:  "internal error: overlapping language regions",
		})
		return diagnostics
	}

	for _, m := range d.GetAllModes(doc) {
		found, err := m.DoValidation(doc)
		if err != nil {
			d.log.Errorf("validation failed in mode %q: %s", m.GetID(), err.Error())
			continue
		}
		diagnostics = append(diagnostics, found...)
	}
	return diagnostics
}

// DocumentSymbols concatenates per-mode symbols. Ranges cannot overlap
// across languages, so no cross-mode deduplication happens.
func (d *Dispatcher) DocumentSymbols(doc *document.Document) []protocol.SymbolInformation {
	symbols := []protocol.SymbolInformation{}
	for _, m := range d.GetAllModes(doc) {
		found, err := m.FindDocumentSymbols(doc)
		if err != nil {
			d.log.Errorf("symbol lookup failed in mode %q: %s", m.GetID(), err.Error())
			continue
		}
		symbols = append(symbols, found...)
	}
	return symbols
}

// ResolveCompletion gives every mode a chance to enrich a completion
// item; modes that do not recognize it return it unchanged.
func (d *Dispatcher) ResolveCompletion(item protocol.CompletionItem) (protocol.CompletionItem, error) {
	for _, m := range d.modes {
		var err error
		item, err = m.DoResolve(item)
		if err != nil {
			return item, err
		}
	}
	return item, nil
}

// OnDocumentRemoved releases per-document state in every mode and in
// the extractor's caches.
func (d *Dispatcher) OnDocumentRemoved(doc *document.Document) {
	for _, m := range d.modes {
		m.OnDocumentRemoved(doc)
	}
	d.extractor.OnDocumentRemoved(doc.URI)
}

// Dispose shuts down every mode and the extractor. Called once.
func (d *Dispatcher) Dispose() {
	for _, m := range d.modes {
		m.Dispose()
	}
	d.extractor.Dispose()
}

func (d *Dispatcher) findOverlap(doc *document.Document) (region.Region, bool) {
	regions, err := d.extractor.GetRegions(doc)
	if err != nil {
		return region.Region{}, false
	}
	end := 0
	for _, r := range regions {
		if r.Start < end {
			return r, true
		}
		end = r.End
	}
	return region.Region{}, false
}
