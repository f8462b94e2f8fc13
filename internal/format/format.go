// Package format holds the code-formatter collaborator: a pure function
// from text to text. Modes depend on the Func type only, so a real
// beautifier can be injected without touching them.
package format

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Func formats text for one language. Implementations must be pure:
// equal inputs produce equal output.
type Func func(text, languageID string, options protocol.FormattingOptions) string

// Default is a small whitespace normalizer: brace-depth reindentation
// for script and style content, trailing-whitespace trimming for
// everything else.
func Default(text, languageID string, options protocol.FormattingOptions) string {
	switch languageID {
	case "javascript", "css":
		return reindent(text, indentUnit(options))
	default:
		return trimTrailing(text)
	}
}

// indentUnit reads the protocol's option map; "tabSize" arrives as a
// JSON number and "insertSpaces" as a bool.
func indentUnit(options protocol.FormattingOptions) string {
	if insertSpaces, ok := options["insertSpaces"].(bool); ok && !insertSpaces {
		return "\t"
	}
	size := 4
	switch v := options["tabSize"].(type) {
	case float64:
		if v > 0 {
			size = int(v)
		}
	case int:
		if v > 0 {
			size = v
		}
	}
	return strings.Repeat(" ", size)
}

func reindent(text, unit string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, len(lines))
	depth := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			out[i] = ""
			continue
		}
		opens, closes, leadingCloses := braceCounts(trimmed)
		lineDepth := depth - leadingCloses
		if lineDepth < 0 {
			lineDepth = 0
		}
		out[i] = strings.Repeat(unit, lineDepth) + trimmed
		depth += opens - closes
		if depth < 0 {
			depth = 0
		}
	}
	return strings.Join(out, "\n")
}

// braceCounts tallies block delimiters on a line; leadingCloses counts
// closers before any other content, which outdent the line itself.
func braceCounts(trimmed string) (opens, closes, leadingCloses int) {
	leading := true
	for i := 0; i < len(trimmed); i++ {
		switch trimmed[i] {
		case '{':
			opens++
			leading = false
		case '}':
			closes++
			if leading {
				leadingCloses++
			}
		default:
			leading = false
		}
	}
	return opens, closes, leadingCloses
}

func trimTrailing(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
