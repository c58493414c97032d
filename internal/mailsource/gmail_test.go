package mailsource

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
)

type fakeGmail struct {
	ids      []string
	messages map[string]*gmail.Message
	max      int64
}

func (f *fakeGmail) ListInbox(_ context.Context, max int64) ([]string, error) {
	f.max = max
	return f.ids, nil
}

func (f *fakeGmail) Get(_ context.Context, id string) (*gmail.Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, errors.New("404")
	}
	return m, nil
}

func b64(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

func TestGmail_FetchConvertsMessages(t *testing.T) {
	api := &fakeGmail{
		ids: []string{"g1", "missing", "g2"},
		messages: map[string]*gmail.Message{
			"g1": {
				Id: "g1", ThreadId: "t1",
				Payload: &gmail.MessagePart{
					MimeType: "multipart/alternative",
					Headers: []*gmail.MessagePartHeader{
						{Name: "Subject", Value: "Team Sync"},
						{Name: "From", Value: "Alice <alice@example.com>"},
						{Name: "Date", Value: "Fri, 16 Oct 2026 09:30:00 +0200"},
					},
					Parts: []*gmail.MessagePart{
						{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<p>html</p>")}},
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("Let's meet tomorrow at 3:00 PM.")}},
					},
				},
			},
			"g2": {
				Id: "g2", ThreadId: "t2", InternalDate: 1791000000000,
				Payload: &gmail.MessagePart{
					MimeType: "text/plain",
					Body:     &gmail.MessagePartBody{Data: b64("0123456789")},
				},
			},
		},
	}
	src := newGmail(api, 5, zap.NewNop())

	emails, err := src.Fetch(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), api.max)
	require.Len(t, emails, 2)

	assert.Equal(t, "g1", emails[0].MessageID)
	assert.Equal(t, "t1", emails[0].ThreadID)
	assert.Equal(t, "Team Sync", emails[0].Subject)
	assert.Equal(t, "Alice <alice@example.com>", emails[0].Sender)
	assert.Equal(t, "Let's", emails[0].Body)
	assert.Equal(t, 7, emails[0].ReceivedAt.Hour())

	assert.Equal(t, "No Subject", emails[1].Subject)
	assert.Equal(t, "Unknown", emails[1].Sender)
	assert.Equal(t, "01234", emails[1].Body)
	assert.Equal(t, int64(1791000000000), emails[1].ReceivedAt.UnixMilli())
}

func TestPlainText_NestedMultipart(t *testing.T) {
	p := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{MimeType: "multipart/alternative", Parts: []*gmail.MessagePart{
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("nested?"))}},
			}},
			{MimeType: "application/pdf", Body: &gmail.MessagePartBody{AttachmentId: "a1"}},
		},
	}
	assert.Equal(t, "nested?", plainText(p))
}
