// Package region slices a polyglot host document into per-language
// regions and synthesizes virtual sub-documents whose offsets stay
// aligned with the host document.
package region

import (
	"interlace/internal/cache"
	"interlace/internal/document"
)

// Region is a half-open [Start, End) span of the host document owned by
// one embedded language.
type Region struct {
	LanguageID string
	Start      int
	End        int
}

// Contains reports whether the host offset falls inside the region.
func (r Region) Contains(offset int) bool {
	return r.Start <= offset && offset < r.End
}

// At returns the first region in document order containing offset.
func At(regions []Region, offset int) (Region, bool) {
	for _, r := range regions {
		if r.Contains(offset) {
			return r, true
		}
	}
	return Region{}, false
}

// Extractor computes regions and virtual sub-documents, memoized per
// document version.
type Extractor struct {
	regions  *cache.Cache[[]Region]
	embedded *cache.Cache[map[string]*document.Document]
}

// NewExtractor creates an extractor whose derived views are cached with
// the given bounds.
func NewExtractor(opts cache.Options) *Extractor {
	e := &Extractor{}
	e.regions = cache.New(func(doc *document.Document) ([]Region, error) {
		return scan(doc.Text), nil
	}, opts)
	e.embedded = cache.New(e.buildEmbedded, opts)
	return e
}

// GetRegions returns the ordered, non-overlapping region list for doc.
// A document with no embedded content yields an empty list.
func (e *Extractor) GetRegions(doc *document.Document) ([]Region, error) {
	return e.regions.Get(doc)
}

// GetEmbeddedDocument returns the virtual sub-document for languageID:
// same length and line structure as the host, matching spans verbatim,
// everything else whitespace. With no matching regions the result is
// entirely placeholder, which analyzers treat as an empty program.
func (e *Extractor) GetEmbeddedDocument(doc *document.Document, languageID string) (*document.Document, error) {
	docs, err := e.embedded.Get(doc)
	if err != nil {
		return nil, err
	}
	if v, ok := docs[languageID]; ok {
		return v, nil
	}
	return document.New(doc.URI, languageID, doc.Version, placeholderText(doc.Text)), nil
}

// GetLanguagesInDocument returns the host language followed by the
// distinct embedded languages in first-appearance order.
func (e *Extractor) GetLanguagesInDocument(doc *document.Document) ([]string, error) {
	regions, err := e.regions.Get(doc)
	if err != nil {
		return nil, err
	}
	languages := []string{HostLanguage}
	seen := map[string]bool{HostLanguage: true}
	for _, r := range regions {
		if !seen[r.LanguageID] {
			seen[r.LanguageID] = true
			languages = append(languages, r.LanguageID)
		}
	}
	return languages, nil
}

// OnDocumentRemoved drops all derived views for uri.
func (e *Extractor) OnDocumentRemoved(uri string) {
	e.regions.OnDocumentRemoved(uri)
	e.embedded.OnDocumentRemoved(uri)
}

// Dispose releases both caches.
func (e *Extractor) Dispose() {
	e.regions.Dispose()
	e.embedded.Dispose()
}

func (e *Extractor) buildEmbedded(doc *document.Document) (map[string]*document.Document, error) {
	regions, err := e.regions.Get(doc)
	if err != nil {
		return nil, err
	}

	spans := make(map[string][]Region)
	for _, r := range regions {
		spans[r.LanguageID] = append(spans[r.LanguageID], r)
	}

	docs := make(map[string]*document.Document, len(spans))
	for languageID, rs := range spans {
		docs[languageID] = document.New(doc.URI, languageID, doc.Version, virtualText(doc.Text, rs))
	}
	return docs, nil
}

// virtualText copies region spans verbatim into a placeholder body of
// identical length, keeping every newline so line numbers stay aligned.
func virtualText(text string, regions []Region) string {
	out := []byte(placeholderText(text))
	for _, r := range regions {
		copy(out[r.Start:r.End], text[r.Start:r.End])
	}
	return string(out)
}

func placeholderText(text string) string {
	out := make([]byte, len(text))
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n', '\r':
			out[i] = text[i]
		default:
			out[i] = ' '
		}
	}
	return string(out)
}
