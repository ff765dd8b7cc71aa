package channels

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/amberlynx/amberlynx/internal/bus"
	"github.com/amberlynx/amberlynx/internal/config"
	"github.com/amberlynx/amberlynx/internal/schema"
)

const (
	telegramMessageLimit = 4000
	// Albums arrive as separate updates sharing a MediaGroupID; wait this
	// long after the last part before publishing the aggregate.
	mediaGroupSettle = time.Second
)

// TelegramChannel talks to the Telegram Bot API via long polling.
type TelegramChannel struct {
	Base
	bot *tgbotapi.BotAPI
	cfg config.TelegramConfig

	mu     sync.Mutex
	albums map[string]*pendingAlbum
}

// pendingAlbum accumulates the photos of one media group until it settles.
type pendingAlbum struct {
	senderID string
	chatID   string
	urls     []string
	caption  string
	metadata map[string]any
	timer    *time.Timer
}

func NewTelegramChannel(b bus.Bus, cfg config.TelegramConfig) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &TelegramChannel{
		Base:   NewBase(b, cfg.AllowFrom),
		bot:    bot,
		cfg:    cfg,
		albums: make(map[string]*pendingAlbum),
	}, nil
}

func (c *TelegramChannel) Name() bus.ChannelType { return bus.ChannelTelegram }

// Start long-polls for updates until ctx is cancelled.
func (c *TelegramChannel) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := c.bot.GetUpdatesChan(u)
	slog.Info("telegram channel started", "bot", c.bot.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				c.handleMessage(update.Message)
			}
		}
	}
}

func (c *TelegramChannel) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	senderID := strconv.FormatInt(msg.From.ID, 10)
	if !c.IsAllowed(senderID, msg.From.UserName) {
		slog.Debug("telegram sender not in allowlist", "sender_id", senderID, "username", msg.From.UserName)
		return
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	metadata := map[string]any{
		"message_id": strconv.Itoa(msg.MessageID),
		"username":   msg.From.UserName,
	}

	switch {
	case len(msg.Photo) > 0:
		c.handlePhoto(msg, senderID, chatID, metadata)
	case msg.Sticker != nil:
		in := bus.NewInboundMessage(bus.ChannelTelegram, senderID, chatID,
			fmt.Sprintf("[sticker: %s]", msg.Sticker.Emoji))
		in.SetMetadata(metadata)
		c.Publish(in)
	case msg.Text != "":
		in := bus.NewInboundMessage(bus.ChannelTelegram, senderID, chatID, msg.Text)
		in.SetMetadata(metadata)
		c.Publish(in)
	}
}

func (c *TelegramChannel) handlePhoto(msg *tgbotapi.Message, senderID, chatID string, metadata map[string]any) {
	// Telegram sends several sizes per photo; take the largest.
	best := msg.Photo[len(msg.Photo)-1]
	url, err := c.fileURL(best.FileID)
	if err != nil {
		slog.Error("telegram photo url", "error", err)
		return
	}

	if msg.MediaGroupID == "" {
		in := bus.NewInboundPhoto(bus.ChannelTelegram, senderID, chatID, []string{url}, msg.Caption)
		in.SetMetadata(metadata)
		c.Publish(in)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	album, ok := c.albums[msg.MediaGroupID]
	if !ok {
		album = &pendingAlbum{senderID: senderID, chatID: chatID, metadata: metadata}
		c.albums[msg.MediaGroupID] = album
	}
	album.urls = append(album.urls, url)
	if msg.Caption != "" {
		album.caption = msg.Caption
	}
	if album.timer != nil {
		album.timer.Stop()
	}
	groupID := msg.MediaGroupID
	album.timer = time.AfterFunc(mediaGroupSettle, func() { c.flushAlbum(groupID) })
}

func (c *TelegramChannel) flushAlbum(groupID string) {
	c.mu.Lock()
	album, ok := c.albums[groupID]
	delete(c.albums, groupID)
	c.mu.Unlock()
	if !ok {
		return
	}
	in := bus.NewInboundPhoto(bus.ChannelTelegram, album.senderID, album.chatID, album.urls, album.caption)
	in.SetMetadata(album.metadata)
	c.Publish(in)
}

func (c *TelegramChannel) fileURL(fileID string) (string, error) {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", err
	}
	return file.Link(c.bot.Token), nil
}

// Send delivers a message, splitting at the Telegram length limit. Markdown
// delivery falls back to plain text when Telegram rejects the entities.
func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) (string, error) {
	chatID, err := parseChatID(msg.ChatID())
	if err != nil {
		return "", err
	}

	var lastID string
	for i, part := range splitMessage(msg.Content(), telegramMessageLimit) {
		m := tgbotapi.NewMessage(chatID, part)
		if i == 0 && msg.ReplyTo() != "" {
			if replyID, err := strconv.Atoi(msg.ReplyTo()); err == nil {
				m.ReplyToMessageID = replyID
			}
		}
		if msg.Markdown() {
			m.ParseMode = tgbotapi.ModeMarkdown
		}
		sent, err := c.bot.Send(m)
		if err != nil && msg.Markdown() {
			m.ParseMode = ""
			sent, err = c.bot.Send(m)
		}
		if err != nil {
			return "", fmt.Errorf("telegram send: %w", err)
		}
		lastID = strconv.Itoa(sent.MessageID)
	}
	return lastID, nil
}

// SendTyping shows the "typing..." chat action; it expires on its own
// after a few seconds.
func (c *TelegramChannel) SendTyping(ctx context.Context, chatID string) {
	id, err := parseChatID(chatID)
	if err != nil {
		return
	}
	if _, err := c.bot.Request(tgbotapi.NewChatAction(id, tgbotapi.ChatTyping)); err != nil {
		slog.Debug("telegram typing action", "error", err)
	}
}

// SendMarker posts a random sticker from the configured pool for kind and
// returns the sticker message id so it can be removed later.
func (c *TelegramChannel) SendMarker(ctx context.Context, chatID string, kind schema.MarkerKind) (string, error) {
	pool := c.cfg.Stickers[string(kind)]
	if len(pool) == 0 {
		return "", nil
	}
	id, err := parseChatID(chatID)
	if err != nil {
		return "", err
	}
	fileID := pool[rand.Intn(len(pool))]
	sent, err := c.bot.Send(tgbotapi.NewSticker(id, tgbotapi.FileID(fileID)))
	if err != nil {
		return "", fmt.Errorf("telegram sticker: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

// DeleteMarker removes a previously posted sticker marker.
func (c *TelegramChannel) DeleteMarker(ctx context.Context, chatID, markerID string) {
	id, err := parseChatID(chatID)
	if err != nil {
		return
	}
	msgID, err := strconv.Atoi(markerID)
	if err != nil {
		return
	}
	if _, err := c.bot.Request(tgbotapi.NewDeleteMessage(id, msgID)); err != nil {
		slog.Debug("telegram delete marker", "error", err)
	}
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q", s)
	}
	return id, nil
}
