// Package dispatch posts one outbound payload to every webhook target of a
// resolved route. Targets are independent: one failing never aborts the
// others, and there are no retries.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"tgrelay/internal/domain"
)

// Fanout posts payloads to webhook targets concurrently.
type Fanout struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Config configures the fan-out.
type Config struct {
	HTTPClient *http.Client // optional, defaults to a 30s-timeout client
	Logger     *slog.Logger
}

func New(cfg Config) *Fanout {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fanout{httpClient: client, logger: cfg.Logger}
}

// Dispatch posts the payload to every target and returns one result per
// target, in target order. All targets are always attempted.
func (f *Fanout) Dispatch(ctx context.Context, payload domain.OutboundPayload, targets []string) []domain.TargetResult {
	body, contentType, err := encodePayload(payload)
	if err != nil {
		// Encoding never depends on the target, so fail them all alike.
		results := make([]domain.TargetResult, len(targets))
		for i, t := range targets {
			results[i] = domain.TargetResult{Target: t, Err: err}
		}
		return results
	}

	results := make([]domain.TargetResult, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			results[i] = f.post(ctx, target, body, contentType)
		}(i, target)
	}
	wg.Wait()
	return results
}

func (f *Fanout) post(ctx context.Context, target string, body []byte, contentType string) domain.TargetResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return domain.TargetResult{Target: target, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.TargetResult{Target: target, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent
	result := domain.TargetResult{Target: target, StatusCode: resp.StatusCode, OK: ok}
	if !ok {
		result.Err = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return result
}

// encodePayload builds the multipart body once; it is identical for every
// target so the same bytes are reused across the fan-out.
func encodePayload(p domain.OutboundPayload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("username", p.Username); err != nil {
		return nil, "", fmt.Errorf("encode payload: %w", err)
	}
	if err := w.WriteField("content", p.Content); err != nil {
		return nil, "", fmt.Errorf("encode payload: %w", err)
	}
	if p.AvatarURL != "" {
		if err := w.WriteField("avatar_url", p.AvatarURL); err != nil {
			return nil, "", fmt.Errorf("encode payload: %w", err)
		}
	}
	if p.FileBytes != nil {
		part, err := w.CreateFormFile(p.Filename, p.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("encode payload: %w", err)
		}
		if _, err := part.Write(p.FileBytes); err != nil {
			return nil, "", fmt.Errorf("encode payload: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode payload: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
