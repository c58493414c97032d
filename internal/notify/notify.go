// Package notify delivers short formatted messages to a chat channel.
package notify

import (
	"context"
	"errors"
)

// ErrDisabled is returned by gateways that are switched off.
var ErrDisabled = errors.New("notifications disabled")

// Notifier sends one message. format is one of the model.Format* constants.
type Notifier interface {
	Send(ctx context.Context, text, format string) error
}

// Nop drops every message.
type Nop struct{}

func (Nop) Send(context.Context, string, string) error { return ErrDisabled }
