// Package mode defines the uniform capability contract every embedded
// language adapter implements, the concrete adapters for the host
// markup, script, style, and template languages, and the dispatcher
// that routes requests to them. All positions and ranges crossing the
// contract are host-document coordinates; adapters backed by virtual
// sub-documents rely on the offset-identity invariant instead of
// translating.
package mode

import (
	"strings"

	"fortio.org/safecast"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"interlace/internal/document"
	"interlace/internal/format"
)

// Settings is the process-wide configuration snapshot handed to every
// mode; adapters ignore what they do not need.
type Settings struct {
	Format   FormatSettings   `json:"format"`
	Script   ScriptSettings   `json:"script"`
	Template TemplateSettings `json:"template"`
}

// FormatSettings selects per-language formatting behavior.
type FormatSettings struct {
	Enable         *bool `json:"enable"`
	WrapLineLength int   `json:"wrapLineLength"`
}

// ScriptSettings controls the script analyzer.
type ScriptSettings struct {
	Validate *bool `json:"validate"`
}

// TemplateSettings holds the include/extends search path.
type TemplateSettings struct {
	SearchPath string `json:"searchPath"`
}

// FormatEnabled defaults to on when unset.
func (s Settings) FormatEnabled() bool {
	return s.Format.Enable == nil || *s.Format.Enable
}

// ScriptValidate defaults to on when unset.
func (s Settings) ScriptValidate() bool {
	return s.Script.Validate == nil || *s.Script.Validate
}

// LanguageMode is the capability contract per embedded language. Every
// operation returns empty results instead of failing when the language
// is absent or the position falls outside its regions.
type LanguageMode interface {
	GetID() string
	Configure(settings Settings)
	DoValidation(doc *document.Document) ([]protocol.Diagnostic, error)
	DoComplete(doc *document.Document, pos protocol.Position) (protocol.CompletionList, error)
	DoResolve(item protocol.CompletionItem) (protocol.CompletionItem, error)
	DoHover(doc *document.Document, pos protocol.Position) (*protocol.Hover, error)
	DoSignatureHelp(doc *document.Document, pos protocol.Position) (*protocol.SignatureHelp, error)
	FindDocumentHighlight(doc *document.Document, pos protocol.Position) ([]protocol.DocumentHighlight, error)
	FindDocumentSymbols(doc *document.Document) ([]protocol.SymbolInformation, error)
	FindDefinition(doc *document.Document, pos protocol.Position) ([]protocol.Location, error)
	FindReferences(doc *document.Document, pos protocol.Position) ([]protocol.Location, error)
	Format(doc *document.Document, rng protocol.Range, options protocol.FormattingOptions) ([]protocol.TextEdit, error)
	OnDocumentRemoved(doc *document.Document)
	Dispose()
}

// emptyCompletionList is what position-misses resolve to, never an error.
func emptyCompletionList() protocol.CompletionList {
	return protocol.CompletionList{IsIncomplete: false, Items: []protocol.CompletionItem{}}
}

// formatRange implements the shared range-format semantics: nil for a
// blank selection, otherwise a single edit whose text is the formatter
// output with the indentation context of the range's first line prefixed
// to every non-blank line and the original trailing whitespace restored.
// text is the content view to format (a virtual sub-document for
// embedded modes); doc supplies offsets and the indentation context.
func formatRange(doc *document.Document, text string, rng protocol.Range, languageID string, fn format.Func, options protocol.FormattingOptions) []protocol.TextEdit {
	start := doc.OffsetAt(rng.Start)
	end := doc.OffsetAt(rng.End)
	if start > end || end > len(text) {
		return nil
	}
	value := text[start:end]
	if strings.TrimSpace(value) == "" {
		return nil
	}

	trimmedLen := len(strings.TrimRight(value, " \t\r\n"))
	suffix := value[trimmedLen:]
	formatted := fn(value[:trimmedLen], languageID, options)
	indent := lineIndent(doc, rng.Start)

	var b strings.Builder
	for i, line := range strings.Split(formatted, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		if line != "" {
			b.WriteString(indent)
			b.WriteString(line)
		}
	}
	b.WriteString(suffix)

	return []protocol.TextEdit{{Range: rng, NewText: b.String()}}
}

// lineIndent returns the leading whitespace of the line pos sits on.
func lineIndent(doc *document.Document, pos protocol.Position) string {
	start := doc.LineStart(int(pos.Line))
	i := start
	for i < len(doc.Text) && (doc.Text[i] == ' ' || doc.Text[i] == '\t') {
		i++
	}
	return doc.Text[start:i]
}

type symbolKey struct {
	name string
	kind protocol.SymbolKind
	line uint32
	char uint32
}

// dedupSymbols drops duplicate symbols keyed by name, kind, and start,
// keeping first occurrences in order.
func dedupSymbols(symbols []protocol.SymbolInformation) []protocol.SymbolInformation {
	seen := make(map[symbolKey]bool, len(symbols))
	out := symbols[:0]
	for _, s := range symbols {
		key := symbolKey{
			name: s.Name,
			kind: s.Kind,
			line: s.Location.Range.Start.Line,
			char: s.Location.Range.Start.Character,
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// wordSpansIn finds whole-word occurrences of word in text.
func wordSpansIn(text, word string) [][2]int {
	if word == "" {
		return nil
	}
	var spans [][2]int
	for i := 0; i+len(word) <= len(text); i++ {
		if text[i:i+len(word)] != word {
			continue
		}
		if i > 0 && isWordByte(text[i-1]) {
			continue
		}
		if i+len(word) < len(text) && isWordByte(text[i+len(word)]) {
			continue
		}
		spans = append(spans, [2]int{i, i + len(word)})
	}
	return spans
}

func isWordByte(b byte) bool {
	return b == '_' || b == '$' || b == '-' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func ptr[T any](v T) *T {
	return &v
}

func toUInt32(i int) uint32 {
	v, err := safecast.Conv[uint32](i)
	if err != nil {
		return 0
	}
	return v
}
