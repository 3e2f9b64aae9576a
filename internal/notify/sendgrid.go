package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/obelousov/sntledger/internal/models"
)

// SendGridNotifier delivers email messages through the SendGrid API.
type SendGridNotifier struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
}

// NewSendGridNotifier creates a SendGrid-backed email notifier.
func NewSendGridNotifier(apiKey, fromName, fromAddr string) *SendGridNotifier {
	return &SendGridNotifier{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromAddr: fromAddr,
	}
}

// Send delivers one email. Non-2xx API responses are reported as errors so
// the dispatcher can record the recipient as failed.
func (n *SendGridNotifier) Send(ctx context.Context, msg Message) error {
	if msg.Channel != models.ChannelEmail {
		return fmt.Errorf("sendgrid notifier cannot deliver %q messages", msg.Channel)
	}

	from := mail.NewEmail(n.fromName, n.fromAddr)
	to := mail.NewEmail("", msg.Address)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")

	resp, err := n.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected message: status %d", resp.StatusCode)
	}
	return nil
}
