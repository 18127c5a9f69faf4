package rewrite

import (
	"testing"

	"tgrelay/internal/domain"
)

func TestRender_PlainTextPassthrough(t *testing.T) {
	got := Render("no links here", nil)
	if got != "no links here" {
		t.Errorf("got %q", got)
	}
}

func TestRender_LabeledURL(t *testing.T) {
	text, spans := Rewrite("click here now", []domain.TextSpan{
		{Kind: domain.SpanTextURL, Offset: 6, Length: 4, URL: "https://x.test"},
	})
	got := Render(text, spans)
	if want := "click [here](<https://x.test>) now"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRender_BareURLStaysLiteral(t *testing.T) {
	text, spans := Rewrite("see https://x.test/a", []domain.TextSpan{
		{Kind: domain.SpanURL, Offset: 4, Length: 16},
	})
	got := Render(text, spans)
	if want := "see <https://x.test/a>"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRender_MixedSpans(t *testing.T) {
	// Bare URL before a labeled link: the render offsets must account for
	// the rewrite's insertions.
	text, spans := Rewrite("go https://a.test or docs now", []domain.TextSpan{
		{Kind: domain.SpanURL, Offset: 3, Length: 14},
		{Kind: domain.SpanTextURL, Offset: 21, Length: 4, URL: "https://d.test"},
	})
	got := Render(text, spans)
	if want := "go <https://a.test> or [docs](<https://d.test>) now"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRender_OtherSpansIgnored(t *testing.T) {
	got := Render("bold words", []domain.TextSpan{
		{Kind: domain.SpanOther, Offset: 0, Length: 4},
	})
	if got != "bold words" {
		t.Errorf("got %q", got)
	}
}
