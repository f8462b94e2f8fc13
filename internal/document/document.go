// Package document provides immutable, versioned snapshots of text
// documents together with line/offset conversion helpers.
package document

import (
	"sort"
	"strings"

	"fortio.org/safecast"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Document is an immutable snapshot of a text document. Two documents
// with equal URI and Version carry identical text.
type Document struct {
	URI        string
	LanguageID string
	Version    int32
	Text       string

	lineStarts []int
}

// New creates a document snapshot and builds its line index.
func New(uri, languageID string, version int32, text string) *Document {
	starts := make([]int, 1, strings.Count(text, "\n")+1)
	starts[0] = 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Document{
		URI:        uri,
		LanguageID: languageID,
		Version:    version,
		Text:       text,
		lineStarts: starts,
	}
}

// LineCount returns the number of lines, counting a trailing newline as
// starting a final empty line.
func (d *Document) LineCount() int {
	return len(d.lineStarts)
}

// LineStart returns the offset of the first character of line. Lines past
// the end clamp to the document length.
func (d *Document) LineStart(line int) int {
	if line < 0 {
		return 0
	}
	if line >= len(d.lineStarts) {
		return len(d.Text)
	}
	return d.lineStarts[line]
}

// LineEnd returns the offset just past the last character of line,
// excluding the line terminator.
func (d *Document) LineEnd(line int) int {
	if line < 0 {
		return 0
	}
	if line+1 < len(d.lineStarts) {
		end := d.lineStarts[line+1] - 1
		if end > 0 && end <= len(d.Text) && end-1 >= 0 && d.Text[end-1] == '\r' {
			end--
		}
		return end
	}
	return len(d.Text)
}

// OffsetAt converts a protocol position to a byte offset, clamping
// positions past line or document ends.
func (d *Document) OffsetAt(pos protocol.Position) int {
	line, err := safecast.Conv[int](pos.Line)
	if err != nil || line >= len(d.lineStarts) {
		return len(d.Text)
	}
	char, err := safecast.Conv[int](pos.Character)
	if err != nil {
		return d.LineStart(line)
	}
	start := d.lineStarts[line]
	end := len(d.Text)
	if line+1 < len(d.lineStarts) {
		end = d.lineStarts[line+1]
	}
	if start+char > end {
		return end
	}
	return start + char
}

// PositionAt converts a byte offset to a protocol position, clamping
// offsets outside the document.
func (d *Document) PositionAt(offset int) protocol.Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Text) {
		offset = len(d.Text)
	}
	line := sort.Search(len(d.lineStarts), func(i int) bool {
		return d.lineStarts[i] > offset
	}) - 1
	return protocol.Position{
		Line:      toUInt32(line),
		Character: toUInt32(offset - d.lineStarts[line]),
	}
}

// RangeOf converts a half-open offset span to a protocol range.
func (d *Document) RangeOf(start, end int) protocol.Range {
	return protocol.Range{Start: d.PositionAt(start), End: d.PositionAt(end)}
}

// WordRangeAt returns the half-open span of the identifier-like word
// around offset, or (offset, offset) when there is none.
func (d *Document) WordRangeAt(offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Text) {
		offset = len(d.Text)
	}
	start := offset
	for start > 0 && isWordByte(d.Text[start-1]) {
		start--
	}
	end := offset
	for end < len(d.Text) && isWordByte(d.Text[end]) {
		end++
	}
	return start, end
}

// WordAt returns the identifier-like word around offset, or "".
func (d *Document) WordAt(offset int) string {
	start, end := d.WordRangeAt(offset)
	return d.Text[start:end]
}

func isWordByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func toUInt32(i int) uint32 {
	v, err := safecast.Conv[uint32](i)
	if err != nil {
		return 0
	}
	return v
}
