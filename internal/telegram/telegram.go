// Package telegram observes messages via the Telegram Bot API and publishes
// them as normalized relay events.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tgrelay/internal/domain"
)

// Source is the inbound event channel: it long-polls Telegram and turns
// every observed message into a domain.Event on the bus.
type Source struct {
	token       string
	pollTimeout int
	withPhotos  bool // look up chat profile photos for avatar enrichment

	bot        *tgbotapi.BotAPI
	httpClient *http.Client
	logger     *slog.Logger
}

// SourceConfig configures the Telegram source.
type SourceConfig struct {
	Token       string
	PollTimeout int  // seconds, long-poll timeout
	WithPhotos  bool // false skips the per-message chat lookup entirely
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

func NewSource(cfg SourceConfig) *Source {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Source{
		token:       cfg.Token,
		pollTimeout: cfg.PollTimeout,
		withPhotos:  cfg.WithPhotos,
		httpClient:  client,
		logger:      cfg.Logger,
	}
}

func (s *Source) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until ctx is cancelled.
func (s *Source) Start(ctx context.Context, bus domain.EventBus) error {
	bot, err := tgbotapi.NewBotAPI(s.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	s.bot = bot
	s.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = s.pollTimeout
	updates := bot.GetUpdatesChan(u)

	s.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("telegram source stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if msg := relayableMessage(update); msg != nil {
				bus.Publish(s.normalize(ctx, msg))
			}
		}
	}
}

// relayableMessage picks the message out of an update. Edits, callback
// queries, and service updates are not relayed.
func relayableMessage(update tgbotapi.Update) *tgbotapi.Message {
	switch {
	case update.Message != nil:
		return update.Message
	case update.ChannelPost != nil:
		return update.ChannelPost
	default:
		return nil
	}
}

// normalize converts a raw message into an immutable relay event. Media and
// photo bytes stay behind lazy accessors so dropped or oversize events
// never download anything.
func (s *Source) normalize(ctx context.Context, msg *tgbotapi.Message) domain.Event {
	text := msg.Text
	entities := msg.Entities
	if text == "" && msg.Caption != "" {
		text = msg.Caption
		entities = msg.CaptionEntities
	}

	ev := domain.Event{
		ChatID:     msg.Chat.ID,
		ChatTitle:  chatDisplayName(msg.Chat),
		Text:       text,
		Spans:      spansFromEntities(text, entities),
		Attachment: s.attachment(msg),
		Timestamp:  time.Unix(int64(msg.Date), 0),
	}
	if msg.From != nil {
		ev.SenderID = msg.From.ID
		ev.SenderHandle = msg.From.UserName
	}

	if s.withPhotos {
		ev.PhotoID, ev.FetchPhoto = s.chatPhoto(ctx, msg.Chat.ID)
	}
	return ev
}

// chatPhoto looks up the chat's current profile photo. The big size's
// unique file id is stable for the photo's content, which makes it the
// cache key half for avatar enrichment.
func (s *Source) chatPhoto(ctx context.Context, chatID int64) (string, domain.FetchFunc) {
	chat, err := s.bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		s.logger.Warn("chat lookup failed, skipping avatar", "chat_id", chatID, "err", err)
		return "", nil
	}
	if chat.Photo == nil || chat.Photo.BigFileUniqueID == "" {
		return "", nil
	}
	fileID := chat.Photo.BigFileID
	return chat.Photo.BigFileUniqueID, func(ctx context.Context) ([]byte, error) {
		return s.downloadFile(ctx, fileID)
	}
}

// attachment extracts at most one file from the message, preferring the
// explicit document over media variants.
func (s *Source) attachment(msg *tgbotapi.Message) *domain.Attachment {
	switch {
	case msg.Document != nil:
		d := msg.Document
		return s.lazyAttachment(fileNameOr(d.FileName, d.MimeType), int64(d.FileSize), d.FileID)
	case len(msg.Photo) > 0:
		// Telegram delivers multiple sizes; relay the largest.
		p := msg.Photo[len(msg.Photo)-1]
		return s.lazyAttachment("photo.jpg", int64(p.FileSize), p.FileID)
	case msg.Video != nil:
		v := msg.Video
		return s.lazyAttachment(fileNameOr(v.FileName, v.MimeType), int64(v.FileSize), v.FileID)
	case msg.Animation != nil:
		a := msg.Animation
		return s.lazyAttachment(fileNameOr(a.FileName, a.MimeType), int64(a.FileSize), a.FileID)
	case msg.Audio != nil:
		a := msg.Audio
		return s.lazyAttachment(fileNameOr(a.FileName, a.MimeType), int64(a.FileSize), a.FileID)
	case msg.Voice != nil:
		v := msg.Voice
		return s.lazyAttachment(fileNameOr("", v.MimeType), int64(v.FileSize), v.FileID)
	default:
		return nil
	}
}

func (s *Source) lazyAttachment(filename string, size int64, fileID string) *domain.Attachment {
	return &domain.Attachment{
		Filename: filename,
		Size:     size,
		Fetch: func(ctx context.Context) ([]byte, error) {
			return s.downloadFile(ctx, fileID)
		},
	}
}

func (s *Source) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := s.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(s.token), nil)
	if err != nil {
		return nil, fmt.Errorf("download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ChatSummary describes one reachable source chat for the chats command.
type ChatSummary struct {
	ID    int64
	Title string
	Type  string
}

// ListChats connects and drains the pending update backlog, reporting the
// distinct chats seen. The Bot API has no dialog listing, so only chats
// with recent activity show up; good enough to discover ids for
// routes.yaml.
func (s *Source) ListChats(ctx context.Context) ([]ChatSummary, error) {
	bot, err := tgbotapi.NewBotAPI(s.token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 1
	updates, err := bot.GetUpdates(u)
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}

	seen := make(map[int64]bool)
	var chats []ChatSummary
	for _, update := range updates {
		msg := relayableMessage(update)
		if msg == nil || seen[msg.Chat.ID] {
			continue
		}
		seen[msg.Chat.ID] = true
		chats = append(chats, ChatSummary{
			ID:    msg.Chat.ID,
			Title: chatDisplayName(msg.Chat),
			Type:  msg.Chat.Type,
		})
	}
	return chats, nil
}

// chatDisplayName mirrors what Telegram clients show as the chat name.
func chatDisplayName(chat *tgbotapi.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	if chat.LastName != "" {
		return chat.FirstName + " " + chat.LastName
	}
	return chat.FirstName
}

// fileNameOr synthesizes a filename from the declared mime type when the
// sender did not name the file.
func fileNameOr(name, mimeType string) string {
	if name != "" {
		return name
	}
	return "file" + extensionFor(mimeType)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
