package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/obelousov/sntledger/internal/models"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier delivers messages through the Telegram Bot API. The
// recipient address is the chat id, which the community stores in the
// owner's phone field.
type TelegramNotifier struct {
	botToken string
	baseURL  string
	client   *http.Client
}

// NewTelegramNotifier creates a Telegram-backed notifier.
func NewTelegramNotifier(botToken string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		baseURL:  telegramAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// NewTelegramNotifierWithBase is used by tests to point the notifier at a
// local server.
func NewTelegramNotifierWithBase(botToken, baseURL string) *TelegramNotifier {
	n := NewTelegramNotifier(botToken)
	n.baseURL = baseURL
	return n
}

type telegramSendRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Send posts one sendMessage call. The subject line, when present, is
// prepended to the body since Telegram has no subject concept.
func (n *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	if msg.Channel != models.ChannelTelegram {
		return fmt.Errorf("telegram notifier cannot deliver %q messages", msg.Channel)
	}
	if n.botToken == "" {
		return fmt.Errorf("telegram bot token is not configured")
	}

	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}

	payload, err := json.Marshal(telegramSendRequest{ChatID: msg.Address, Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram rejected message: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
