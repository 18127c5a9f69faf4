// Package relay wires filtering, rewriting, enrichment, and dispatch into
// the per-event handling pipeline.
package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"tgrelay/internal/dispatch"
	"tgrelay/internal/domain"
	"tgrelay/internal/metrics"
	"tgrelay/internal/rewrite"
	"tgrelay/internal/route"
	"tgrelay/internal/store"
)

// AvatarResolver resolves a public avatar URL, "" when unavailable.
type AvatarResolver interface {
	ResolveURL(ctx context.Context, entityID int64, photoID string, fetch domain.FetchFunc) string
}

// Dispatcher posts one payload to a route's targets.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload domain.OutboundPayload, targets []string) []domain.TargetResult
}

// Log records relayed events for the history command.
type Log interface {
	RecordRelay(ctx context.Context, rec store.RelayRecord) error
}

// Config wires the relay's collaborators.
type Config struct {
	Routes             []domain.Route
	Avatar             AvatarResolver // nil disables enrichment
	Dispatcher         Dispatcher
	Log                Log // optional
	Metrics            *metrics.Collector
	MaxAttachmentBytes int64
	Logger             *slog.Logger
}

// Relay processes events: one goroutine per event, independent except for
// the shared avatar cache behind the resolver.
type Relay struct {
	routes     []domain.Route
	avatar     AvatarResolver
	dispatcher Dispatcher
	log        Log
	maxBytes   int64
	logger     *slog.Logger

	relayed        *metrics.Counter
	droppedNoRoute *metrics.Counter
	droppedIgnored *metrics.Counter
	dispatchFailed *metrics.Counter
	oversize       *metrics.Counter
	avatarEnriched *metrics.Counter
}

func New(cfg Config) *Relay {
	col := cfg.Metrics
	if col == nil {
		col = metrics.NewCollector()
	}
	return &Relay{
		routes:     cfg.Routes,
		avatar:     cfg.Avatar,
		dispatcher: cfg.Dispatcher,
		log:        cfg.Log,
		maxBytes:   cfg.MaxAttachmentBytes,
		logger:     cfg.Logger,

		relayed:        col.Counter("tgrelay_events_relayed_total", "Events relayed to at least one target"),
		droppedNoRoute: col.Counter("tgrelay_events_dropped_no_route_total", "Events dropped because no route matched"),
		droppedIgnored: col.Counter("tgrelay_events_dropped_ignored_total", "Events dropped because the sender is ignored"),
		dispatchFailed: col.Counter("tgrelay_dispatch_failures_total", "Webhook posts that did not return 200/204"),
		oversize:       col.Counter("tgrelay_attachments_oversize_total", "Attachments dropped for exceeding the size limit"),
		avatarEnriched: col.Counter("tgrelay_avatar_enriched_total", "Events carrying a resolved avatar URL"),
	}
}

// Run consumes the bus until ctx is cancelled or the bus closes. Each event
// gets its own goroutine; in-flight work is abandoned on shutdown, not
// rolled back.
func (r *Relay) Run(ctx context.Context, bus domain.EventBus) {
	events := bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopping")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			go r.Handle(ctx, ev)
		}
	}
}

// Handle runs one event through filter -> rewrite -> enrich -> dispatch.
// The returned results are nil when the event was dropped.
func (r *Relay) Handle(ctx context.Context, ev domain.Event) []domain.TargetResult {
	matched, reason := route.Resolve(ev.ChatID, ev.SenderHandle, r.routes)
	switch reason {
	case route.ReasonNoRoute:
		r.droppedNoRoute.Inc()
		r.logger.Info("no route for chat, message dropped", "chat_id", ev.ChatID)
		return nil
	case route.ReasonIgnored:
		r.droppedIgnored.Inc()
		r.logger.Info("sender ignored, message dropped", "chat_id", ev.ChatID, "sender", ev.SenderHandle)
		return nil
	}

	text, spans := rewrite.Rewrite(ev.Text, ev.Spans)
	payload := domain.OutboundPayload{
		Username: displayName(ev),
		Content:  rewrite.Render(text, spans),
	}

	if r.avatar != nil {
		payload.AvatarURL = r.avatar.ResolveURL(ctx, ev.ChatID, ev.PhotoID, ev.FetchPhoto)
		if payload.AvatarURL != "" {
			r.avatarEnriched.Inc()
		}
	}

	if ev.Attachment != nil {
		r.attach(ctx, ev.Attachment, &payload)
	}

	results := r.dispatcher.Dispatch(ctx, payload, matched.Webhooks)
	succeeded, failed := 0, 0
	for _, res := range results {
		if res.OK {
			succeeded++
			r.logger.Info("forwarded message", "username", payload.Username, "target", res.Target)
			continue
		}
		failed++
		r.dispatchFailed.Inc()
		r.logger.Error("error forwarding message",
			"username", payload.Username,
			"target", res.Target,
			"status", res.StatusCode,
			"err", res.Err,
		)
	}
	r.relayed.Inc()

	r.record(ctx, ev, succeeded, failed, results)
	return results
}

// attach fetches the attachment bytes unless the declared size exceeds the
// limit. Fetch failures degrade the event like oversize does: the text is
// still relayed.
func (r *Relay) attach(ctx context.Context, att *domain.Attachment, payload *domain.OutboundPayload) {
	if att.Size > r.maxBytes {
		r.oversize.Inc()
		r.logger.Warn("attachment exceeds maximum size, omitted",
			"filename", att.Filename,
			"size", att.Size,
			"max", r.maxBytes,
		)
		return
	}
	data, err := att.Fetch(ctx)
	if err != nil {
		r.logger.Warn("attachment fetch failed, omitted", "filename", att.Filename, "err", err)
		return
	}
	payload.Filename = att.Filename
	payload.FileBytes = data
}

func (r *Relay) record(ctx context.Context, ev domain.Event, succeeded, failed int, results []domain.TargetResult) {
	if r.log == nil {
		return
	}
	rec := store.RelayRecord{
		ID:        uuid.NewString(),
		ChatID:    ev.ChatID,
		ChatTitle: ev.ChatTitle,
		Sender:    ev.SenderHandle,
		Succeeded: succeeded,
		Failed:    failed,
	}
	for _, res := range results {
		o := store.OutcomeRecord{Target: res.Target, StatusCode: res.StatusCode, OK: res.OK}
		if res.Err != nil {
			o.Error = res.Err.Error()
		}
		rec.Outcomes = append(rec.Outcomes, o)
	}
	if err := r.log.RecordRelay(ctx, rec); err != nil {
		r.logger.Warn("cannot record relay", "err", err)
	}
}

// displayName is the chat title with the sender handle appended, matching
// what readers on the destination side expect to see.
func displayName(ev domain.Event) string {
	if ev.SenderHandle != "" {
		return fmt.Sprintf("%s @%s", ev.ChatTitle, ev.SenderHandle)
	}
	return ev.ChatTitle
}

var _ Dispatcher = (*dispatch.Fanout)(nil)
