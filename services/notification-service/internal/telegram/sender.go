package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, chatID string, text string) error
	ProviderID() string
}

// BotSender delivers messages through the Telegram Bot API sendMessage call.
// The base URL is configurable so tests and local stacks can point it at a
// stub server.
type BotSender struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewBotSender(baseURL string, token string) *BotSender {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &BotSender{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *BotSender) ProviderID() string {
	return "telegram-bot"
}

func (s *BotSender) Send(ctx context.Context, chatID string, text string) error {
	if s.token == "" {
		return errors.New("telegram bot token not configured")
	}
	if strings.TrimSpace(chatID) == "" {
		return errors.New("empty chat id")
	}
	payload := map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := s.baseURL + "/bot" + s.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram sendMessage returned %d", resp.StatusCode)
	}
	return nil
}

type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "telegram-noop"
}

func (s *NoopSender) Send(_ context.Context, _ string, _ string) error {
	return nil
}
