package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/Shra1V32/server-rental-assistant/planmanager"
)

// TelegramNotifierName is the identifier for the Telegram notifier adapter.
const TelegramNotifierName = "telegram-notifier"

type telegramSendMessageBody struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// TelegramNotifier builds a Notifier that delivers messages through the
// Telegram Bot API sendMessage method. The recipient ID is the chat ID.
// Returns nil when the bot token is empty so callers can fall back to a
// log-only notifier.
func TelegramNotifier(apiBaseURL, botToken string, connectTimeout time.Duration) planmanager.Notifier {
	if botToken == "" {
		return nil
	}
	if apiBaseURL == "" {
		apiBaseURL = "https://api.telegram.org"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	client := &http.Client{
		Transport: transport,
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", apiBaseURL, botToken)

	return func(ctx context.Context, recipient planmanager.Recipient, message string) error {
		chatMasked := maskChatID(recipient.ID)

		body, err := json.Marshal(telegramSendMessageBody{
			ChatID: recipient.ID,
			Text:   message,
		})
		if err != nil {
			log.Printf("notifier error notifier=%q chatMasked=%q error=%v", TelegramNotifierName, chatMasked, err)
			return err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			log.Printf("notifier error notifier=%q chatMasked=%q error=%v", TelegramNotifierName, chatMasked, err)
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		log.Printf(
			"notifier request notifier=%q kind=%s chatMasked=%q messageLen=%d",
			TelegramNotifierName,
			recipient.Kind,
			chatMasked,
			len(message),
		)
		resp, err := client.Do(httpReq)
		if err != nil {
			log.Printf("notifier error notifier=%q chatMasked=%q error=%v", TelegramNotifierName, chatMasked, err)
			return err
		}
		defer resp.Body.Close()

		log.Printf("notifier response notifier=%q chatMasked=%q status=%d", TelegramNotifierName, chatMasked, resp.StatusCode)
		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return nil
		}
		return errors.New("telegram non-2xx response")
	}
}

// LogNotifier writes messages to the process log. It stands in for the
// Telegram notifier when no bot token is configured.
func LogNotifier() planmanager.Notifier {
	return func(ctx context.Context, recipient planmanager.Recipient, message string) error {
		_ = ctx
		log.Printf("notifier log-only kind=%s recipient=%q message=%q", recipient.Kind, maskChatID(recipient.ID), message)
		return nil
	}
}
