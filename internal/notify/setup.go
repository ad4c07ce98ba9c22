package notify

import (
	"marketplace/internal/config"
	"marketplace/internal/logging"
)

// NewFromConfig builds a dispatcher with the email and telegram channels that the
// configuration enables. Callers may register further channels.
func NewFromConfig(cfg *config.Config) (*Dispatcher, error) {
	log := logging.Component("notify")
	d := NewDispatcher(cfg.Orchestrator.NotifyTimeout)

	if cfg.Email.Enabled() {
		tpl, err := HTMLTemplates(EmailTemplates)
		if err != nil {
			return nil, err
		}
		d.Register(NewEmailChannel(cfg.Email.BaseURL, cfg.Email.ResendAPIKey, cfg.Email.From), tpl)
	} else {
		log.Warn().Msg("RESEND_API_KEY not set, email notifications disabled")
	}

	if cfg.Telegram.Enabled() {
		tpl, err := TextTemplates(TelegramTemplates)
		if err != nil {
			return nil, err
		}
		d.Register(NewTelegramChannel(cfg.Telegram.BaseURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID), tpl)
	} else {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, telegram notifications disabled")
	}

	return d, nil
}
