package ports

import (
	"context"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

// ChatReceiver pulls pending events from the chat transport
type ChatReceiver interface {
	// Receive returns the raw output of one receive call
	Receive(ctx context.Context) (*core.ReceiveResult, error)
}

// ChatSender posts messages through the chat transport
type ChatSender interface {
	// Send posts text and an optional attachment to a group or a user
	Send(ctx context.Context, post core.ChatPost) error
}

// Alerter delivers administrative alerts to the operator
type Alerter interface {
	// Alert notifies the operator about a processing anomaly
	Alert(ctx context.Context, text string)

	// AlertByMail sends the alert to the operator mail addresses
	AlertByMail(ctx context.Context, subject, body string)
}
