// Package bot is the Telegram capture frontend: send the bot a link, it goes
// into the pipeline.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Capturer accepts a URL for asynchronous processing.
type Capturer interface {
	Capture(ctx context.Context, userID, rawURL string) (itemID string, existing bool, err error)
}

type Handler struct {
	bot      *tgbot.Bot
	capturer Capturer
}

func NewHandler(token string, capturer Capturer) (*Handler, error) {
	b, err := tgbot.New(token)
	if err != nil {
		return nil, fmt.Errorf("[BotHandler] failed to create Telegram bot: %w", err)
	}

	h := &Handler{bot: b, capturer: capturer}
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.startHandler)
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "", tgbot.MatchTypeContains, h.captureHandler)

	slog.Info("[BotHandler] Telegram bot handler initialized")
	return h, nil
}

// Start begins polling for updates. Blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	slog.Info("[BotHandler] Starting Telegram bot polling...")
	h.bot.Start(ctx)
	slog.Info("[BotHandler] Telegram bot polling stopped")
}

func (h *Handler) startHandler(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
	h.reply(ctx, update, "Send me a link and I'll capture it: short videos get transcribed, posts and articles get summarized, repos get catalogued.")
}

func (h *Handler) captureHandler(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	rawURL := urlPattern.FindString(update.Message.Text)
	if rawURL == "" {
		h.reply(ctx, update, "That doesn't look like a link. Send me a URL to capture.")
		return
	}

	userID := strconv.FormatInt(update.Message.From.ID, 10)
	itemID, existing, err := h.capturer.Capture(ctx, userID, rawURL)
	if err != nil {
		slog.Error("[BotHandler] Capture failed",
			slog.String("user_id", userID),
			slog.String("url", rawURL),
			slog.String("error", err.Error()))
		h.reply(ctx, update, "Couldn't capture that link, try again in a bit.")
		return
	}

	if existing {
		h.reply(ctx, update, "Already captured that one recently, I'll reuse it.")
		return
	}

	slog.Info("[BotHandler] Capture accepted",
		slog.String("user_id", userID),
		slog.String("item_id", itemID))
	h.reply(ctx, update, "Got it, processing now. I'll message you when it's done.")
}

func (h *Handler) reply(ctx context.Context, update *tgmodels.Update, text string) {
	if update.Message == nil {
		return
	}
	_, err := h.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   text,
	})
	if err != nil {
		slog.Warn("[BotHandler] Failed to send reply", slog.String("error", err.Error()))
	}
}
