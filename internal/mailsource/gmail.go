package mailsource

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"mailpilot/internal/model"
)

// gmailAPI is the slice of the Gmail API the source needs.
type gmailAPI interface {
	ListInbox(ctx context.Context, max int64) ([]string, error)
	Get(ctx context.Context, id string) (*gmail.Message, error)
}

type gmailService struct{ svc *gmail.Service }

func (g gmailService) ListInbox(ctx context.Context, max int64) ([]string, error) {
	res, err := g.svc.Users.Messages.List("me").LabelIds("INBOX").MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

func (g gmailService) Get(ctx context.Context, id string) (*gmail.Message, error) {
	return g.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
}

// Gmail reads a mailbox through the Gmail API.
type Gmail struct {
	api          gmailAPI
	maxBodyChars int
	logger       *zap.Logger
}

// NewGmail authenticates with a bearer access token.
func NewGmail(ctx context.Context, accessToken string, maxBodyChars int, logger *zap.Logger) (*Gmail, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return newGmail(gmailService{svc: svc}, maxBodyChars, logger), nil
}

func newGmail(api gmailAPI, maxBodyChars int, logger *zap.Logger) *Gmail {
	return &Gmail{api: api, maxBodyChars: maxBodyChars, logger: logger}
}

// Fetch lists the inbox and downloads each message. A message that fails
// to download is logged and skipped.
func (g *Gmail) Fetch(ctx context.Context, max int) ([]model.RawEmail, error) {
	if max <= 0 {
		max = 10
	}
	ids, err := g.api.ListInbox(ctx, int64(max))
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}

	emails := make([]model.RawEmail, 0, len(ids))
	for _, id := range ids {
		msg, err := g.api.Get(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return emails, ctx.Err()
			}
			g.logger.Warn("gmail message fetch failed", zap.String("message_id", id), zap.Error(err))
			continue
		}
		emails = append(emails, g.convert(msg))
	}
	return emails, nil
}

func (g *Gmail) convert(msg *gmail.Message) model.RawEmail {
	e := model.RawEmail{
		MessageID: msg.Id,
		ThreadID:  msg.ThreadId,
		Subject:   "No Subject",
		Sender:    "Unknown",
	}
	var date string
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				e.Subject = h.Value
			case "From":
				e.Sender = h.Value
			case "Date":
				date = h.Value
			}
		}
		e.Body = clipBody(plainText(msg.Payload), g.maxBodyChars)
	}

	if t, err := mail.ParseDate(date); err == nil {
		e.ReceivedAt = t.UTC()
	} else if msg.InternalDate > 0 {
		e.ReceivedAt = time.UnixMilli(msg.InternalDate).UTC()
	}
	return e
}

// plainText returns the first text/plain part, depth first, or the payload's
// own body when there are no parts.
func plainText(p *gmail.MessagePart) string {
	if len(p.Parts) == 0 {
		if p.Body == nil {
			return ""
		}
		return decodeBase64URL(p.Body.Data)
	}
	for _, part := range p.Parts {
		if strings.HasPrefix(part.MimeType, "text/plain") && part.Body != nil {
			return decodeBase64URL(part.Body.Data)
		}
		if strings.HasPrefix(part.MimeType, "multipart/") {
			if s := plainText(part); s != "" {
				return s
			}
		}
	}
	return ""
}

func decodeBase64URL(s string) string {
	if s == "" {
		return ""
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(s)
		if err != nil {
			return ""
		}
	}
	return string(b)
}
