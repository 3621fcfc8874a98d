// Package notify hands generated summary lines to the outside world: the
// system clipboard and, when auto-share is on, a Telegram chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/atotto/clipboard"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrClipboardUnsupported is returned when no clipboard utility exists.
var ErrClipboardUnsupported = errors.New("clipboard not available on this system")

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) Copy(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnsupported
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

// Telegram posts messages to one chat. The bot is created on first use
// so a missing network does not slow down startup.
type Telegram struct {
	token    string
	chatID   int64
	endpoint string
	client   *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegram returns a sharer for chatID. endpoint may be empty for the
// public Bot API; otherwise it is a format string like
// tgbotapi.APIEndpoint.
func NewTelegram(token string, chatID int64, endpoint string, client *http.Client) *Telegram {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Telegram{token: token, chatID: chatID, endpoint: endpoint, client: client}
}

// ctxClient binds every Bot API request to one context.
type ctxClient struct {
	ctx    context.Context
	client *http.Client
}

func (c ctxClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// Share sends text to the configured chat. Sends are serialized.
func (t *Telegram) Share(ctx context.Context, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot == nil {
		bot, err := tgbotapi.NewBotAPIWithClient(t.token, t.endpoint, ctxClient{ctx: ctx, client: t.client})
		if err != nil {
			return fmt.Errorf("telegram login: %w", err)
		}
		t.bot = bot
	}
	t.bot.Client = ctxClient{ctx: ctx, client: t.client}

	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
