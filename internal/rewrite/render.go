package rewrite

import (
	"strings"

	"tgrelay/internal/domain"
)

// Render serializes rewritten text and spans into the outbound message
// body. Bare URLs are already literal in the text (brackets included); a
// labeled-URL span becomes a markdown link so its target survives the
// relay: `[visible text](<url>)`. Other spans render as their plain text.
//
// This is deliberately not a markdown engine: the one transformation the
// relay needs, nothing more.
func Render(text string, spans []domain.TextSpan) string {
	var sb strings.Builder
	sb.Grow(len(text))

	pos := 0
	for _, s := range spans {
		if s.Kind != domain.SpanTextURL || s.URL == "" {
			continue
		}
		start, end := clampRange(len(text), s.Offset, s.Length)
		if start < pos {
			continue // overlap, keep earlier rendering
		}
		sb.WriteString(text[pos:start])
		sb.WriteByte('[')
		sb.WriteString(text[start:end])
		sb.WriteString("](")
		sb.WriteString(s.URL)
		sb.WriteByte(')')
		pos = end
	}
	sb.WriteString(text[pos:])
	return sb.String()
}
