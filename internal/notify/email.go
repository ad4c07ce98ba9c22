package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// ErrNoRecipient is returned when the event data carries no email address.
var ErrNoRecipient = errors.New("no recipient email")

// EmailChannel sends HTML mail through the Resend HTTP API.
type EmailChannel struct {
	client *resty.Client
	from   string
}

// NewEmailChannel creates a Resend-backed channel. baseURL is normally https://api.resend.com.
func NewEmailChannel(baseURL, apiKey, from string) *EmailChannel {
	return &EmailChannel{
		client: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(apiKey).
			SetHeader("Content-Type", "application/json"),
		from: from,
	}
}

func (e *EmailChannel) Name() string { return "email" }

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Send delivers msg to the address in msg.Data["email"].
func (e *EmailChannel) Send(ctx context.Context, msg Message) error {
	to := msg.Data["email"]
	if to == "" {
		return ErrNoRecipient
	}

	var out resendResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(resendEmail{From: e.from, To: []string{to}, Subject: msg.Subject, HTML: msg.Body}).
		SetResult(&out).
		SetError(&out).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("resend request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("resend returned %s: %s", resp.Status(), out.Message)
	}
	return nil
}
