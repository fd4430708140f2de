// Package notify delivers pipeline outcomes back to the capturing user.
package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbot "github.com/go-telegram/bot"
)

// TelegramNotifier sends result messages over the same bot the user captured
// with. Delivery is best effort; the pipeline outcome never depends on it.
type TelegramNotifier struct {
	bot *tgbot.Bot
}

func NewTelegramNotifier(b *tgbot.Bot) *TelegramNotifier {
	return &TelegramNotifier{bot: b}
}

func (n *TelegramNotifier) Send(ctx context.Context, userID, text string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("[TelegramNotifier] user id %q is not a chat id: %w", userID, err)
	}

	_, err = n.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("[TelegramNotifier] send failed: %w", err)
	}
	return nil
}
