package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// TelegramChannel posts plain-text messages to one chat through the Bot API.
type TelegramChannel struct {
	client *resty.Client
	token  string
	chatID string
}

func NewTelegramChannel(baseURL, token, chatID string) *TelegramChannel {
	return &TelegramChannel{
		client: resty.New().SetBaseURL(baseURL),
		token:  token,
		chatID: chatID,
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramChannel) Send(ctx context.Context, msg Message) error {
	var out telegramResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"chat_id": t.chatID, "text": msg.Body}).
		SetResult(&out).
		SetError(&out).
		Post("/bot" + t.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("telegram returned %s: %s", resp.Status(), out.Description)
	}
	return nil
}
