// Package telegrambot answers chat commands about the stored mailbox:
// statistics, filtered email lists, sync, upcoming meetings and cache reset.
package telegrambot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mailpilot/internal/calendar"
	"mailpilot/internal/model"
	"mailpilot/internal/service/mailsync"
	"mailpilot/pkg/config"
	"mailpilot/pkg/trace"
)

// Bot is the part of the Telegram API the command loop uses.
type Bot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory creates Bot instances.
type BotFactory func(token string, client *http.Client) (Bot, error)

var defaultBotFactory BotFactory = func(token string, client *http.Client) (Bot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

type EmailStore interface {
	List(ctx context.Context, f model.EmailFilter) ([]model.StoredEmail, error)
	Stats(ctx context.Context) (model.EmailStats, error)
}

type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type IdentityResolver interface {
	Identity(ctx context.Context, userID int64) (model.Identity, error)
}

type Syncer interface {
	Sync(ctx context.Context, id model.Identity, max int) (*mailsync.Report, error)
}

type CacheFlusher interface {
	FlushAll(ctx context.Context) bool
}

// Deps are the components commands read from. Calendars may be nil.
type Deps struct {
	Emails     EmailStore
	Users      UserLookup
	Identities IdentityResolver
	Syncer     Syncer
	Calendars  calendar.Factory
	Cache      CacheFlusher
}

var errNoOwner = errors.New("telegram.owner_email is not set")

const commandTimeout = 2 * time.Minute

// CommandBot polls for updates and replies to commands sent from the
// configured chat. Messages from other chats are ignored.
type CommandBot struct {
	token       string
	chatID      int64
	ownerEmail  string
	pollTimeout int
	maxResults  int
	loc         *time.Location
	deps        Deps
	factory     BotFactory
	logger      *zap.Logger
	now         func() time.Time

	done chan struct{}
}

func New(cfg config.TelegramConfig, deps Deps, maxResults int, loc *time.Location, logger *zap.Logger) *CommandBot {
	return NewWithFactory(cfg, deps, maxResults, loc, defaultBotFactory, logger)
}

func NewWithFactory(cfg config.TelegramConfig, deps Deps, maxResults int, loc *time.Location, factory BotFactory, logger *zap.Logger) *CommandBot {
	if loc == nil {
		loc = time.UTC
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	poll := cfg.PollTimeoutSeconds
	if poll <= 0 {
		poll = 30
	}
	return &CommandBot{
		token:       cfg.BotToken,
		chatID:      cfg.ChatID,
		ownerEmail:  cfg.OwnerEmail,
		pollTimeout: poll,
		maxResults:  maxResults,
		loc:         loc,
		deps:        deps,
		factory:     factory,
		logger:      logger,
		now:         time.Now,
		done:        make(chan struct{}),
	}
}

// Start connects and polls in the background until ctx is done.
func (b *CommandBot) Start(ctx context.Context) error {
	if b.token == "" || b.chatID == 0 {
		return errors.New("telegram bot_token and chat_id are required for commands")
	}
	// long polling holds the request open for pollTimeout seconds
	client := &http.Client{Timeout: time.Duration(b.pollTimeout+10) * time.Second}
	bot, err := b.factory(b.token, client)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := bot.GetUpdatesChan(u)

	go func() {
		defer close(b.done)
		defer bot.StopReceivingUpdates()
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil {
					continue
				}
				b.handle(ctx, bot, update.Message)
			case <-ctx.Done():
				return
			}
		}
	}()

	b.logger.Info("telegram command bot polling started", zap.Int64("chat_id", b.chatID))
	return nil
}

// Done is closed when the polling loop exits.
func (b *CommandBot) Done() <-chan struct{} {
	return b.done
}

func (b *CommandBot) handle(ctx context.Context, bot Bot, msg *tgbotapi.Message) {
	if msg.Chat == nil || msg.Chat.ID != b.chatID {
		b.logger.Warn("ignoring telegram message from unknown chat", zap.Int64("chat_id", chatIDOf(msg)))
		return
	}
	if !msg.IsCommand() {
		return
	}

	ctx, traceID := trace.Ensure(ctx)
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := msg.Command()
	log := b.logger.With(zap.String("trace_id", traceID), zap.String("command", cmd))
	log.Info("telegram command received")

	var reply string
	switch cmd {
	case "start", "help":
		reply = helpMessage
	case "status":
		reply = b.status(ctx)
	case "summary":
		reply = b.list(ctx, listSummary, model.EmailFilter{Limit: 5})
	case "recent":
		reply = b.list(ctx, listRecent, model.EmailFilter{Limit: 5})
	case "urgent":
		reply = b.list(ctx, listUrgent, model.EmailFilter{Intent: model.IntentUrgent, Limit: 10})
	case "high":
		reply = b.list(ctx, listHigh, model.EmailFilter{Priority: model.PriorityHigh, Limit: 10})
	case "meeting":
		reply = b.list(ctx, listMeeting, model.EmailFilter{Intent: model.IntentMeeting, Limit: 10})
	case "unread":
		reply = b.list(ctx, listUnread, model.EmailFilter{Unread: true, Limit: 10})
	case "sync":
		b.send(bot, "🔄 Syncing emails...", log)
		reply = b.sync(ctx, log)
	case "today":
		reply = b.meetingsOn(ctx, 0, log)
	case "tomorrow":
		reply = b.meetingsOn(ctx, 1, log)
	case "clear":
		reply = b.clear(ctx)
	default:
		reply = "❓ Unknown command. Send /start to see what I can do."
	}
	b.send(bot, reply, log)
}

func (b *CommandBot) send(bot Bot, text string, log *zap.Logger) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := bot.Send(msg); err != nil {
		log.Error("failed to send telegram reply", zap.Error(err))
	}
}

func (b *CommandBot) status(ctx context.Context) string {
	stats, err := b.deps.Emails.Stats(ctx)
	if err != nil {
		return "❌ Failed to load statistics"
	}
	return statusMessage(stats)
}

func (b *CommandBot) list(ctx context.Context, kind listKind, f model.EmailFilter) string {
	emails, err := b.deps.Emails.List(ctx, f)
	if err != nil {
		return "❌ Failed to load emails"
	}
	return listMessage(kind, emails)
}

func (b *CommandBot) owner(ctx context.Context) (model.Identity, error) {
	if b.ownerEmail == "" {
		return model.Identity{}, errNoOwner
	}
	u, err := b.deps.Users.GetByEmail(ctx, b.ownerEmail)
	if err != nil {
		return model.Identity{}, fmt.Errorf("lookup owner: %w", err)
	}
	return b.deps.Identities.Identity(ctx, u.ID)
}

func (b *CommandBot) sync(ctx context.Context, log *zap.Logger) string {
	id, err := b.owner(ctx)
	if err != nil {
		log.Warn("sync without mailbox owner", zap.Error(err))
		return "❌ No mailbox linked to this chat"
	}
	report, err := b.deps.Syncer.Sync(ctx, id, b.maxResults)
	if err != nil {
		log.Error("telegram sync failed", zap.Error(err))
		return "❌ Sync failed"
	}
	return syncMessage(report)
}

func (b *CommandBot) meetingsOn(ctx context.Context, offsetDays int, log *zap.Logger) string {
	label := dayLabel(offsetDays)
	if b.deps.Calendars == nil {
		return "📅 Calendar integration is disabled"
	}
	id, err := b.owner(ctx)
	if err != nil {
		log.Warn("calendar without mailbox owner", zap.Error(err))
		return "❌ No mailbox linked to this chat"
	}
	gw, err := b.deps.Calendars(ctx, id.AccessToken)
	if err != nil {
		log.Error("calendar gateway unavailable", zap.Error(err))
		return "❌ Failed to connect to calendar"
	}
	events, err := gw.ListUpcoming(ctx, 10)
	if err != nil {
		log.Error("list upcoming events failed", zap.Error(err))
		return "❌ Failed to load calendar events"
	}

	day := b.now().In(b.loc).AddDate(0, 0, offsetDays)
	var matched []scheduledEvent
	for _, ev := range events {
		start, allDay, ok := parseEventStart(ev.Start, b.loc)
		if !ok || !sameDay(start, day) {
			continue
		}
		matched = append(matched, scheduledEvent{UpcomingEvent: ev, start: start, allDay: allDay})
	}
	return meetingsMessage(label, matched)
}

func (b *CommandBot) clear(ctx context.Context) string {
	if !b.deps.Cache.FlushAll(ctx) {
		return "❌ Failed to clear the cache"
	}
	return "🧹 Cache cleared!"
}

func parseEventStart(s string, loc *time.Location) (time.Time, bool, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), false, true
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true, true
	}
	return time.Time{}, false, false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func dayLabel(offsetDays int) string {
	if offsetDays == 0 {
		return "Today"
	}
	return "Tomorrow"
}

func chatIDOf(msg *tgbotapi.Message) int64 {
	if msg.Chat == nil {
		return 0
	}
	return msg.Chat.ID
}
