package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tgrelay/internal/domain"
)

// spansFromEntities converts Telegram message entities into relay spans.
// The Bot API addresses entities in UTF-16 code units; relay spans are byte
// offsets into the UTF-8 text, so every entity is re-measured here once and
// the rest of the pipeline never sees UTF-16 again.
func spansFromEntities(text string, entities []tgbotapi.MessageEntity) []domain.TextSpan {
	if len(entities) == 0 {
		return nil
	}
	spans := make([]domain.TextSpan, 0, len(entities))
	for _, e := range entities {
		start, end := byteRange(text, e.Offset, e.Length)
		if start >= end {
			continue
		}
		span := domain.TextSpan{
			Offset: start,
			Length: end - start,
		}
		switch e.Type {
		case "url":
			span.Kind = domain.SpanURL
		case "text_link":
			span.Kind = domain.SpanTextURL
			span.URL = e.URL
		default:
			span.Kind = domain.SpanOther
		}
		spans = append(spans, span)
	}
	return spans
}

// byteRange translates a UTF-16 (offset, length) pair into byte positions.
func byteRange(text string, offset, length int) (int, int) {
	start, end := -1, -1
	units := 0
	for i, r := range text {
		if start < 0 && units >= offset {
			start = i
		}
		if end < 0 && units >= offset+length {
			end = i
			break
		}
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
	}
	if start < 0 {
		start = len(text)
	}
	if end < 0 {
		end = len(text)
	}
	return start, end
}
