// Package notify holds the outbound message transports. The ledger core
// only depends on the Notifier interface; the adapters here are the external
// collaborators it is wired to in production.
package notify

import (
	"context"

	"github.com/obelousov/sntledger/internal/models"
)

// Message is one outbound notification, already rendered. Address is an
// email address or a Telegram chat id depending on the channel.
type Message struct {
	Channel models.NotificationChannel
	Address string
	Subject string
	Body    string
}

// Notifier delivers a single message. Implementations own transport-level
// retries and timeouts; the caller treats any returned error as a
// per-recipient failure, never as a batch abort.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
