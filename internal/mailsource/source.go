// Package mailsource fetches recent inbox messages from a mail provider.
package mailsource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"mailpilot/internal/model"
	"mailpilot/pkg/config"
)

// Providers.
const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

// ErrNoAccessToken is returned when a Gmail source is requested for a user without OAuth tokens.
var ErrNoAccessToken = errors.New("user has no access token")

// Source returns the newest messages of a mailbox, newest first.
type Source interface {
	Fetch(ctx context.Context, max int) ([]model.RawEmail, error)
}

// Factory builds a Source acting for one identity.
type Factory func(ctx context.Context, id model.Identity) (Source, error)

// NewFactory selects the provider configured in cfg.Provider.
func NewFactory(cfg config.MailConfig, logger *zap.Logger) (Factory, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGmail:
		return func(ctx context.Context, id model.Identity) (Source, error) {
			if id.AccessToken == "" {
				return nil, ErrNoAccessToken
			}
			return NewGmail(ctx, id.AccessToken, cfg.MaxBodyChars, logger)
		}, nil
	case ProviderIMAP:
		return func(context.Context, model.Identity) (Source, error) {
			return NewIMAP(cfg, logger), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

func clipBody(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
