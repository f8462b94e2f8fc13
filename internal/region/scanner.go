package region

import "strings"

// Embedded language ids produced by the scanner.
const (
	HostLanguage     = "html"
	ScriptLanguage   = "javascript"
	StyleLanguage    = "css"
	TemplateLanguage = "template"
)

// scan lexically walks the host markup and emits regions for <script>
// and <style> blocks and for {% include %} / {% extends %} directives,
// in document order. Unterminated delimiters extend the region to the
// end of the document. Regions never overlap.
func scan(text string) []Region {
	lower := strings.ToLower(text)
	var regions []Region

	i := 0
	for i < len(text) {
		switch {
		case tagStartsAt(lower, i, "<script"):
			regions, i = scanBlock(lower, regions, i, "script", ScriptLanguage)
		case tagStartsAt(lower, i, "<style"):
			regions, i = scanBlock(lower, regions, i, "style", StyleLanguage)
		case strings.HasPrefix(text[i:], "{%"):
			regions, i = scanDirective(text, regions, i)
		default:
			i++
		}
	}
	return regions
}

// tagStartsAt reports whether an opening tag with the given lowercase
// name begins at i, requiring a delimiter after the name so "<scripting"
// does not match.
func tagStartsAt(lower string, i int, tag string) bool {
	if !strings.HasPrefix(lower[i:], tag) {
		return false
	}
	rest := lower[i+len(tag):]
	if rest == "" {
		return true
	}
	switch rest[0] {
	case ' ', '\t', '\n', '\r', '>', '/':
		return true
	}
	return false
}

// scanBlock consumes a <script>/<style> element starting at i and emits
// the content between the start tag and its close tag as one region.
// A missing close tag extends the region to end-of-document.
func scanBlock(lower string, regions []Region, i int, tag, languageID string) ([]Region, int) {
	contentStart := startTagEnd(lower, i)
	if contentStart >= len(lower) {
		return regions, len(lower)
	}

	end := len(lower)
	next := contentStart
	if idx := strings.Index(lower[contentStart:], "</"+tag); idx >= 0 {
		end = contentStart + idx
		next = end + len("</"+tag)
	} else {
		next = end
	}

	if end > contentStart {
		regions = append(regions, Region{LanguageID: languageID, Start: contentStart, End: end})
	}
	return regions, next
}

// startTagEnd returns the offset just past the '>' closing the start tag
// at i, skipping over quoted attribute values. Without a '>' the tag
// swallows the rest of the document.
func startTagEnd(lower string, i int) int {
	var quote byte
	for j := i; j < len(lower); j++ {
		c := lower[j]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return j + 1
		}
	}
	return len(lower)
}

// scanDirective consumes a {% ... %} directive starting at i and emits a
// template region when it is an include or extends directive.
func scanDirective(text string, regions []Region, i int) ([]Region, int) {
	end := len(text)
	if idx := strings.Index(text[i+2:], "%}"); idx >= 0 {
		end = i + 2 + idx + 2
	}

	inner := strings.TrimSuffix(text[i+2:end], "%}")
	fields := strings.Fields(inner)
	if len(fields) > 0 && (fields[0] == "include" || fields[0] == "extends") {
		regions = append(regions, Region{LanguageID: TemplateLanguage, Start: i, End: end})
	}
	return regions, end
}
