package notify

import (
	"context"
	"fmt"

	"github.com/obelousov/sntledger/internal/models"
)

// Router fans messages out to the per-channel transport. A channel without
// a configured transport fails per recipient, not catastrophically.
type Router struct {
	email    Notifier
	telegram Notifier
}

// NewRouter creates a Router. Either notifier may be nil when the channel
// is not configured.
func NewRouter(email, telegram Notifier) *Router {
	return &Router{email: email, telegram: telegram}
}

func (r *Router) Send(ctx context.Context, msg Message) error {
	switch msg.Channel {
	case models.ChannelEmail:
		if r.email == nil {
			return fmt.Errorf("email transport is not configured")
		}
		return r.email.Send(ctx, msg)
	case models.ChannelTelegram:
		if r.telegram == nil {
			return fmt.Errorf("telegram transport is not configured")
		}
		return r.telegram.Send(ctx, msg)
	default:
		return fmt.Errorf("unknown notification channel %q", msg.Channel)
	}
}
