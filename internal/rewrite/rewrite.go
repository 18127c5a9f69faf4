// Package rewrite transforms message text so that destination platforms do
// not render automatic link-preview embeds. Discord suppresses the preview
// for URLs wrapped in angle brackets, so `https://example.com` becomes
// `<https://example.com>` and a labeled link keeps its visible text while
// its target is wrapped.
package rewrite

import (
	"strings"

	"tgrelay/internal/domain"
)

// Rewrite returns new text and spans with every bare-URL span wrapped in
// angle brackets and every labeled-URL span's target wrapped. Inputs are
// never mutated. Spans must be sorted by offset and non-overlapping, which
// is how the source channel delivers them.
//
// Each insertion shifts the offsets of all later spans by the running
// correction; a rewritten bare-URL span grows by 2 and its new offset is its
// shifted start, covering the brackets themselves. Call once per message:
// wrapping already-wrapped output is out of scope.
func Rewrite(text string, spans []domain.TextSpan) (string, []domain.TextSpan) {
	if len(spans) == 0 {
		return text, spans
	}

	var sb strings.Builder
	sb.Grow(len(text) + 2*len(spans))

	out := make([]domain.TextSpan, 0, len(spans))
	pos := 0  // consumed bytes of the original text
	corr := 0 // bytes inserted so far

	for _, s := range spans {
		start, end := clampRange(len(text), s.Offset, s.Length)

		switch s.Kind {
		case domain.SpanURL:
			if start > pos {
				sb.WriteString(text[pos:start])
			}
			sb.WriteByte('<')
			sb.WriteString(text[start:end])
			sb.WriteByte('>')
			pos = end

			out = append(out, domain.TextSpan{
				Kind:   s.Kind,
				Offset: start + corr,
				Length: (end - start) + 2,
				URL:    s.URL,
			})
			corr += 2

		case domain.SpanTextURL:
			out = append(out, domain.TextSpan{
				Kind:   s.Kind,
				Offset: start + corr,
				Length: end - start,
				URL:    "<" + s.URL + ">",
			})

		default:
			out = append(out, domain.TextSpan{
				Kind:   s.Kind,
				Offset: start + corr,
				Length: end - start,
				URL:    s.URL,
			})
		}
	}

	if pos < len(text) {
		sb.WriteString(text[pos:])
	}
	return sb.String(), out
}

// clampRange bounds a span to the text so malformed offsets from the wire
// never index out of range.
func clampRange(textLen, offset, length int) (start, end int) {
	start = offset
	if start < 0 {
		start = 0
	}
	if start > textLen {
		start = textLen
	}
	end = start + length
	if end > textLen {
		end = textLen
	}
	return start, end
}
