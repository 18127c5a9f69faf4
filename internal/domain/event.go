package domain

import (
	"context"
	"time"
)

// SpanKind classifies a text span annotation on a message.
type SpanKind string

const (
	// SpanURL marks a bare URL written directly in the message text.
	SpanURL SpanKind = "url"
	// SpanTextURL marks display text carrying a hidden link target.
	SpanTextURL SpanKind = "text_url"
	// SpanOther is any annotation the relay does not rewrite (bold,
	// mentions, code, ...). Carried through so offsets stay consistent.
	SpanOther SpanKind = "other"
)

// TextSpan annotates a byte range of a message's text. Offset and Length
// are byte positions in the UTF-8 text they were delivered with. Spans are
// delivered sorted by offset and non-overlapping.
type TextSpan struct {
	Kind   SpanKind
	Offset int
	Length int
	URL    string // link target for SpanTextURL, empty otherwise
}

// FetchFunc lazily retrieves binary content (attachment or photo bytes).
type FetchFunc func(ctx context.Context) ([]byte, error)

// Attachment describes a file carried by an event. Bytes are not fetched
// until Fetch is called, so oversize files can be dropped without download.
type Attachment struct {
	Filename string
	Size     int64
	Fetch    FetchFunc
}

// Event is one observed message, normalized by the source channel.
// It is an immutable snapshot consumed by exactly one relay cycle.
type Event struct {
	ChatID       int64
	ChatTitle    string
	SenderID     int64
	SenderHandle string // username without "@", empty when the sender has none
	Text         string
	Spans        []TextSpan
	Attachment   *Attachment

	// PhotoID is the content-addressed id of the chat's current profile
	// photo, empty when the chat has none. FetchPhoto downloads its bytes.
	PhotoID    string
	FetchPhoto FetchFunc

	Timestamp time.Time
}
