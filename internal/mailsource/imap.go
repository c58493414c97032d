package mailsource

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"mailpilot/internal/model"
	"mailpilot/pkg/config"
)

// imapSession is the part of *client.Client the source uses.
type imapSession interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

type imapDialer func(ctx context.Context) (imapSession, error)

var bodySection = &imap.BodySectionName{Peek: true}

// IMAP reads the newest messages of one mailbox over IMAPS.
type IMAP struct {
	mailbox      string
	maxBodyChars int
	dial         imapDialer
	logger       *zap.Logger
}

func NewIMAP(cfg config.MailConfig, logger *zap.Logger) *IMAP {
	dial := func(ctx context.Context) (imapSession, error) {
		c, err := client.DialTLS(cfg.IMAPAddr, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", cfg.IMAPAddr, err)
		}
		if err := c.Login(cfg.IMAPUser, cfg.IMAPPassword); err != nil {
			_ = c.Logout()
			return nil, fmt.Errorf("imap login: %w", err)
		}
		return c, nil
	}
	return newIMAP(cfg.IMAPMailbox, cfg.MaxBodyChars, dial, logger)
}

func newIMAP(mailbox string, maxBodyChars int, dial imapDialer, logger *zap.Logger) *IMAP {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAP{mailbox: mailbox, maxBodyChars: maxBodyChars, dial: dial, logger: logger}
}

func (s *IMAP) Fetch(ctx context.Context, max int) ([]model.RawEmail, error) {
	if max <= 0 {
		max = 10
	}
	c, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Logout() }()

	mbox, err := c.Select(s.mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", s.mailbox, err)
	}
	if mbox.Messages == 0 {
		return []model.RawEmail{}, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(max) {
		from = mbox.Messages - uint32(max) + 1
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, mbox.Messages)

	messages := make(chan *imap.Message, max)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, bodySection.FetchItem()}, messages)
	}()

	emails := make([]model.RawEmail, 0, max)
	for msg := range messages {
		e, err := s.convert(msg)
		if err != nil {
			s.logger.Warn("imap message skipped", zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		emails = append(emails, e)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	// sequence numbers ascend with arrival; callers expect newest first
	for i, j := 0, len(emails)-1; i < j; i, j = i+1, j-1 {
		emails[i], emails[j] = emails[j], emails[i]
	}
	return emails, nil
}

func (s *IMAP) convert(msg *imap.Message) (model.RawEmail, error) {
	e := model.RawEmail{Subject: "No Subject", Sender: "Unknown"}
	if env := msg.Envelope; env != nil {
		e.MessageID = strings.Trim(env.MessageId, "<>")
		if env.Subject != "" {
			e.Subject = env.Subject
		}
		if len(env.From) > 0 {
			e.Sender = formatAddress(env.From[0])
		}
		e.ReceivedAt = env.Date.UTC()
		if env.InReplyTo != "" {
			e.ThreadID = strings.Trim(env.InReplyTo, "<>")
		}
	}
	if e.MessageID == "" {
		e.MessageID = fmt.Sprintf("%s-uid-%d", s.mailbox, msg.Uid)
	}
	if e.ThreadID == "" {
		e.ThreadID = e.MessageID
	}

	r := msg.GetBody(bodySection)
	if r == nil {
		return e, fmt.Errorf("message %s has no body", e.MessageID)
	}
	body, err := firstTextPart(r)
	if err != nil {
		return e, err
	}
	e.Body = clipBody(body, s.maxBodyChars)
	return e, nil
}

func formatAddress(a *imap.Address) string {
	addr := a.Address()
	if a.PersonalName == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", a.PersonalName, addr)
}

// firstTextPart returns the first text/plain inline part of a MIME message.
func firstTextPart(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("read part: %w", err)
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		if ct != "" && ct != "text/plain" {
			continue
		}
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		return string(b), nil
	}
}
