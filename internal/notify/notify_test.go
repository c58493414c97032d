package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailpilot/internal/model"
	"mailpilot/pkg/config"
)

type mockBot struct {
	sent  []tgbotapi.MessageConfig
	err   error
	block chan struct{}
}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m.block != nil {
		<-m.block
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.sent = append(m.sent, msg)
	}
	return tgbotapi.Message{}, m.err
}

func factoryFor(bot Bot, calls *int) BotFactory {
	return func(string, *http.Client) (Bot, error) {
		*calls++
		return bot, nil
	}
}

func enabledConfig() config.TelegramConfig {
	return config.TelegramConfig{Enabled: true, BotToken: "t", ChatID: 42, TimeoutSeconds: 1}
}

func TestNewTelegram_DisabledReturnsNop(t *testing.T) {
	n := NewTelegram(config.TelegramConfig{Enabled: false, BotToken: "t", ChatID: 1}, zap.NewNop())
	assert.IsType(t, Nop{}, n)
	assert.ErrorIs(t, n.Send(context.Background(), "x", model.FormatHTML), ErrDisabled)

	n = NewTelegram(config.TelegramConfig{Enabled: true}, zap.NewNop())
	assert.IsType(t, Nop{}, n)
}

func TestTelegram_SendUsesChatAndFormat(t *testing.T) {
	bot := &mockBot{}
	calls := 0
	n := NewTelegramWithFactory(enabledConfig(), factoryFor(bot, &calls), zap.NewNop())

	require.NoError(t, n.Send(context.Background(), "<b>hi</b>", model.FormatHTML))
	require.NoError(t, n.Send(context.Background(), "again", model.FormatText))

	assert.Equal(t, 1, calls, "bot is created once")
	require.Len(t, bot.sent, 2)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, "HTML", bot.sent[0].ParseMode)
	assert.Equal(t, "", bot.sent[1].ParseMode)
}

func TestTelegram_SendError(t *testing.T) {
	calls := 0
	n := NewTelegramWithFactory(enabledConfig(), factoryFor(&mockBot{err: errors.New("chat not found")}, &calls), zap.NewNop())

	err := n.Send(context.Background(), "x", model.FormatHTML)
	assert.ErrorContains(t, err, "chat not found")
}

func TestTelegram_SendTimesOut(t *testing.T) {
	bot := &mockBot{block: make(chan struct{})}
	defer close(bot.block)
	calls := 0
	n := NewTelegramWithFactory(enabledConfig(), factoryFor(bot, &calls), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := n.Send(ctx, "x", model.FormatHTML)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewEmailMessage(t *testing.T) {
	email := model.RawEmail{Sender: "Alice <alice@example.com>", Subject: "Q3 & plans"}
	res := &model.EnrichmentResult{
		Summary:  strings.Repeat("s", 310),
		Intent:   model.IntentFollowUp,
		Priority: model.PriorityHigh,
	}

	msg := NewEmailMessage(email, res)

	assert.True(t, strings.HasPrefix(msg, "🔴 <b>New Email</b> 🔄"))
	assert.Contains(t, msg, "<b>From:</b> Alice &lt;alice@example.com&gt;")
	assert.Contains(t, msg, "<b>Subject:</b> Q3 &amp; plans")
	assert.Contains(t, msg, "<b>Priority:</b> HIGH")
	assert.Contains(t, msg, "<b>Type:</b> Follow Up")
	assert.True(t, strings.HasSuffix(msg, strings.Repeat("s", 300)+"..."))
}

func TestNewEmailMessage_SamePathForAllPriorities(t *testing.T) {
	email := model.RawEmail{Sender: "a", Subject: "b"}
	high := NewEmailMessage(email, &model.EnrichmentResult{Summary: "x", Intent: model.IntentTask, Priority: model.PriorityHigh})
	low := NewEmailMessage(email, &model.EnrichmentResult{Summary: "x", Intent: model.IntentTask, Priority: model.PriorityLow})

	assert.Equal(t, strings.Replace(high, "🔴", "🟢", 1), strings.Replace(low, "LOW", "HIGH", 1))
}

func TestMeetingDetectedMessage(t *testing.T) {
	email := model.RawEmail{Sender: "alice@example.com", Subject: "Team Sync"}

	msg := MeetingDetectedMessage(email, &model.MeetingInfo{Dates: []string{"tomorrow", "3:00 PM"}})
	assert.Contains(t, msg, "<b>Date/Time:</b> tomorrow, 3:00 PM")

	msg = MeetingDetectedMessage(email, &model.MeetingInfo{})
	assert.Contains(t, msg, "<b>Date/Time:</b> Not specified")
}

func TestDailyDigestMessage(t *testing.T) {
	msg := DailyDigestMessage(model.EmailStats{
		Total: 7, Unread: 3, HighPriority: 2,
		ByIntent: map[string]int{"meeting": 2, "follow_up": 5},
	})

	assert.Contains(t, msg, "<b>Total Emails:</b> 7")
	assert.Contains(t, msg, "<b>Unread:</b> 3")
	assert.Contains(t, msg, "<b>High Priority:</b> 2")
	assert.Less(t, strings.Index(msg, "Follow Up: 5"), strings.Index(msg, "Meeting: 2"))

	empty := DailyDigestMessage(model.EmailStats{})
	assert.Contains(t, empty, "No data")
}

func TestNewEmailMessage_ClipsBeforeEscaping(t *testing.T) {
	email := model.RawEmail{
		Sender:  strings.Repeat("<a>", 100),
		Subject: strings.Repeat("&", 5000),
	}
	res := &model.EnrichmentResult{Summary: strings.Repeat("<", 5000), Intent: model.IntentTask, Priority: model.PriorityLow}

	msg := NewEmailMessage(email, res)

	assert.Contains(t, msg, "<b>Subject:</b> "+strings.Repeat("&amp;", subjectRunes)+"\n")
	assert.Contains(t, msg, "<b>From:</b> "+strings.Repeat("&lt;a&gt;", senderRunes/3)+"\n")
	assert.True(t, strings.HasSuffix(msg, strings.Repeat("&lt;", summaryPreviewRunes)+"..."))
	assert.Less(t, utf8.RuneCountInString(msg), 4096)
}

func TestMeetingDetectedMessage_ClipsDates(t *testing.T) {
	info := &model.MeetingInfo{Dates: []string{strings.Repeat("&", 1000)}}

	msg := MeetingDetectedMessage(model.RawEmail{}, info)

	assert.Contains(t, msg, "<b>Date/Time:</b> "+strings.Repeat("&amp;", datesRunes)+"\n")
}

func TestTelegram_SendKeepsFormattedTextIntact(t *testing.T) {
	bot := &mockBot{}
	calls := 0
	n := NewTelegramWithFactory(enabledConfig(), factoryFor(bot, &calls), zap.NewNop())

	html := strings.Repeat("&amp;", 1000)
	require.NoError(t, n.Send(context.Background(), html, model.FormatHTML))
	require.NoError(t, n.Send(context.Background(), strings.Repeat("x", 5000), model.FormatText))

	require.Len(t, bot.sent, 2)
	assert.Equal(t, html, bot.sent[0].Text)
	assert.Equal(t, maxMessageRunes, utf8.RuneCountInString(bot.sent[1].Text))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "héllo", Preview("héllo", 5))
	assert.Equal(t, "hé...", Preview("héllo", 2))
}
