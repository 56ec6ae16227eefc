package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram adapts the Bot API to Messenger and feeds updates to a handler.
type Telegram struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
	log        *slog.Logger
}

func NewTelegram(token string, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	log.Info("telegram bot authorized", "username", api.Self.UserName)
	return &Telegram{
		api:        api,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}, nil
}

// Run long-polls for updates until ctx is cancelled. Each update is
// handled on its own goroutine; Run waits for in-flight handlers before
// returning.
func (t *Telegram) Run(ctx context.Context, handle func(context.Context, Update)) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := t.api.GetUpdatesChan(cfg)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return
		case raw, ok := <-updates:
			if !ok {
				return
			}
			up, ok := convertUpdate(raw)
			if !ok {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				handle(ctx, up)
			}()
		}
	}
}

func convertUpdate(raw tgbotapi.Update) (Update, bool) {
	if cb := raw.CallbackQuery; cb != nil {
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return Update{}, false
		}
		return Update{
			UserID:   cb.From.ID,
			ChatID:   cb.Message.Chat.ID,
			Callback: &Callback{ID: cb.ID, Data: cb.Data},
		}, true
	}

	m := raw.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return Update{}, false
	}
	up := Update{UserID: m.From.ID, ChatID: m.Chat.ID, Text: m.Text}
	if d := m.Document; d != nil {
		up.Document = &File{ID: d.FileID, Name: d.FileName, Size: int64(d.FileSize)}
	}
	if n := len(m.Photo); n > 0 {
		// Sizes are ordered smallest first.
		p := m.Photo[n-1]
		up.Photo = &File{ID: p.FileID, Name: p.FileID + ".jpg", Size: int64(p.FileSize)}
	}
	return up, true
}

// Wire types for keyboards with web_app buttons.
type (
	webAppInfo struct {
		URL string `json:"url"`
	}
	replyButton struct {
		Text   string      `json:"text"`
		WebApp *webAppInfo `json:"web_app,omitempty"`
	}
	replyKeyboard struct {
		Keyboard       [][]replyButton `json:"keyboard"`
		ResizeKeyboard bool            `json:"resize_keyboard"`
	}
	inlineButton struct {
		Text         string      `json:"text"`
		WebApp       *webAppInfo `json:"web_app,omitempty"`
		CallbackData string      `json:"callback_data,omitempty"`
	}
	inlineKeyboard struct {
		InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
	}
)

func replyMarkup(kb *Keyboard) interface{} {
	switch {
	case kb == nil:
		return nil
	case kb.Remove:
		return tgbotapi.NewRemoveKeyboard(true)
	case kb.Inline:
		out := inlineKeyboard{InlineKeyboard: make([][]inlineButton, 0, len(kb.Rows))}
		for _, row := range kb.Rows {
			buttons := make([]inlineButton, 0, len(row))
			for _, b := range row {
				ib := inlineButton{Text: b.Text, CallbackData: b.Data}
				if b.WebAppURL != "" {
					ib.WebApp = &webAppInfo{URL: b.WebAppURL}
				}
				buttons = append(buttons, ib)
			}
			out.InlineKeyboard = append(out.InlineKeyboard, buttons)
		}
		return out
	default:
		out := replyKeyboard{Keyboard: make([][]replyButton, 0, len(kb.Rows)), ResizeKeyboard: true}
		for _, row := range kb.Rows {
			buttons := make([]replyButton, 0, len(row))
			for _, b := range row {
				rb := replyButton{Text: b.Text}
				if b.WebAppURL != "" {
					rb.WebApp = &webAppInfo{URL: b.WebAppURL}
				}
				buttons = append(buttons, rb)
			}
			out.Keyboard = append(out.Keyboard, buttons)
		}
		return out
	}
}

func (t *Telegram) Send(_ context.Context, msg Message) (int, error) {
	cfg := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	if msg.HTML {
		cfg.ParseMode = tgbotapi.ModeHTML
	}
	if markup := replyMarkup(msg.Keyboard); markup != nil {
		cfg.ReplyMarkup = markup
	}
	sent, err := t.api.Send(cfg)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

func (t *Telegram) Edit(_ context.Context, chatID int64, messageID int, text string) error {
	if _, err := t.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (t *Telegram) Delete(_ context.Context, chatID int64, messageID int) error {
	if _, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (t *Telegram) AnswerCallback(_ context.Context, callbackID string) error {
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// Download fetches an attachment through the file endpoint.
func (t *Telegram) Download(ctx context.Context, fileID string) ([]byte, error) {
	link, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
