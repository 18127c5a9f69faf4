package rewrite

import (
	"testing"

	"tgrelay/internal/domain"
)

func TestRewrite_NoSpans(t *testing.T) {
	text := "plain message with https://example.com but no annotations"
	got, spans := Rewrite(text, nil)
	if got != text {
		t.Errorf("text changed: %q", got)
	}
	if len(spans) != 0 {
		t.Errorf("expected no spans, got %d", len(spans))
	}
}

func TestRewrite_BareURL(t *testing.T) {
	text := "see https://x.test/a"
	spans := []domain.TextSpan{
		{Kind: domain.SpanURL, Offset: 4, Length: 16},
	}

	gotText, gotSpans := Rewrite(text, spans)

	if want := "see <https://x.test/a>"; gotText != want {
		t.Errorf("text = %q, want %q", gotText, want)
	}
	if gotSpans[0].Offset != 4 {
		t.Errorf("offset = %d, want 4", gotSpans[0].Offset)
	}
	if gotSpans[0].Length != 18 {
		t.Errorf("length = %d, want 18", gotSpans[0].Length)
	}
}

func TestRewrite_LabeledURL(t *testing.T) {
	text := "click here for details"
	spans := []domain.TextSpan{
		{Kind: domain.SpanTextURL, Offset: 6, Length: 4, URL: "https://example.com"},
	}

	gotText, gotSpans := Rewrite(text, spans)

	if gotText != text {
		t.Errorf("visible text changed: %q", gotText)
	}
	if want := "<https://example.com>"; gotSpans[0].URL != want {
		t.Errorf("url = %q, want %q", gotSpans[0].URL, want)
	}
	if gotSpans[0].Offset != 6 || gotSpans[0].Length != 4 {
		t.Errorf("span moved: offset=%d length=%d", gotSpans[0].Offset, gotSpans[0].Length)
	}
}

func TestRewrite_OffsetShifting(t *testing.T) {
	// Two bare URLs followed by a bold span. Each insertion shifts
	// everything after it by 2.
	text := "a http://a.test b http://b.test bold"
	spans := []domain.TextSpan{
		{Kind: domain.SpanURL, Offset: 2, Length: 13},
		{Kind: domain.SpanURL, Offset: 18, Length: 13},
		{Kind: domain.SpanOther, Offset: 32, Length: 4},
	}

	gotText, gotSpans := Rewrite(text, spans)

	if want := "a <http://a.test> b <http://b.test> bold"; gotText != want {
		t.Errorf("text = %q, want %q", gotText, want)
	}
	wantSpans := []domain.TextSpan{
		{Kind: domain.SpanURL, Offset: 2, Length: 15},
		{Kind: domain.SpanURL, Offset: 20, Length: 15},
		{Kind: domain.SpanOther, Offset: 36, Length: 4},
	}
	for i, want := range wantSpans {
		got := gotSpans[i]
		if got.Offset != want.Offset || got.Length != want.Length {
			t.Errorf("span %d = {offset:%d length:%d}, want {offset:%d length:%d}",
				i, got.Offset, got.Length, want.Offset, want.Length)
		}
	}

	// Each rewritten URL span must cover exactly "<url>" in the output.
	for i := 0; i < 2; i++ {
		s := gotSpans[i]
		seg := gotText[s.Offset : s.Offset+s.Length]
		if seg[0] != '<' || seg[len(seg)-1] != '>' {
			t.Errorf("span %d covers %q, want angle-bracketed URL", i, seg)
		}
	}
}

func TestRewrite_URLAtStart(t *testing.T) {
	text := "https://x.test trailing"
	spans := []domain.TextSpan{
		{Kind: domain.SpanURL, Offset: 0, Length: 14},
	}
	gotText, gotSpans := Rewrite(text, spans)
	if want := "<https://x.test> trailing"; gotText != want {
		t.Errorf("text = %q, want %q", gotText, want)
	}
	if gotSpans[0].Offset != 0 {
		t.Errorf("offset = %d, want 0", gotSpans[0].Offset)
	}
}

func TestRewrite_URLAtEnd(t *testing.T) {
	text := "go to https://x.test"
	spans := []domain.TextSpan{
		{Kind: domain.SpanURL, Offset: 6, Length: 14},
	}
	gotText, _ := Rewrite(text, spans)
	if want := "go to <https://x.test>"; gotText != want {
		t.Errorf("text = %q, want %q", gotText, want)
	}
}

func TestRewrite_WholeTextIsURL(t *testing.T) {
	text := "https://x.test"
	spans := []domain.TextSpan{
		{Kind: domain.SpanURL, Offset: 0, Length: len(text)},
	}
	gotText, gotSpans := Rewrite(text, spans)
	if want := "<https://x.test>"; gotText != want {
		t.Errorf("text = %q, want %q", gotText, want)
	}
	if gotSpans[0].Length != len(text)+2 {
		t.Errorf("length = %d, want %d", gotSpans[0].Length, len(text)+2)
	}
}

func TestRewrite_OutOfBoundsSpanClamped(t *testing.T) {
	text := "short"
	spans := []domain.TextSpan{
		{Kind: domain.SpanURL, Offset: 3, Length: 50},
	}
	gotText, _ := Rewrite(text, spans)
	if want := "sho<rt>"; gotText != want {
		t.Errorf("text = %q, want %q", gotText, want)
	}
}

func TestRewrite_InputNotMutated(t *testing.T) {
	spans := []domain.TextSpan{
		{Kind: domain.SpanURL, Offset: 0, Length: 14},
		{Kind: domain.SpanTextURL, Offset: 15, Length: 4, URL: "https://b.test"},
	}
	Rewrite("https://a.test link", spans)
	if spans[0].Length != 14 {
		t.Errorf("input span mutated: length = %d", spans[0].Length)
	}
	if spans[1].URL != "https://b.test" {
		t.Errorf("input span mutated: url = %q", spans[1].URL)
	}
}

func TestRewrite_OtherSpanBeforeURL(t *testing.T) {
	// Unhandled span before the URL must not shift anything.
	text := "bold https://x.test"
	spans := []domain.TextSpan{
		{Kind: domain.SpanOther, Offset: 0, Length: 4},
		{Kind: domain.SpanURL, Offset: 5, Length: 14},
	}
	gotText, gotSpans := Rewrite(text, spans)
	if want := "bold <https://x.test>"; gotText != want {
		t.Errorf("text = %q, want %q", gotText, want)
	}
	if gotSpans[0].Offset != 0 || gotSpans[1].Offset != 5 {
		t.Errorf("offsets = %d, %d; want 0, 5", gotSpans[0].Offset, gotSpans[1].Offset)
	}
}
