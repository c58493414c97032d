package calendar

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"mailpilot/internal/model"
)

// eventsAPI is the slice of the Calendar API the gateway uses.
type eventsAPI interface {
	Insert(ctx context.Context, calendarID string, ev *gcal.Event) (*gcal.Event, error)
	List(ctx context.Context, calendarID string, timeMin time.Time, max int64) ([]*gcal.Event, error)
}

type serviceEvents struct {
	svc *gcal.Service
}

func (s serviceEvents) Insert(ctx context.Context, calendarID string, ev *gcal.Event) (*gcal.Event, error) {
	return s.svc.Events.Insert(calendarID, ev).SendUpdates("all").Context(ctx).Do()
}

func (s serviceEvents) List(ctx context.Context, calendarID string, timeMin time.Time, max int64) ([]*gcal.Event, error) {
	res, err := s.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		MaxResults(max).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// GoogleGateway writes to Google Calendar.
type GoogleGateway struct {
	events     eventsAPI
	calendarID string
	timeZone   string
	now        func() time.Time
	logger     *zap.Logger
}

// GoogleOptions configures NewGoogleFactory.
type GoogleOptions struct {
	CalendarID string
	TimeZone   string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewGoogleFactory returns a Factory that builds a gateway per access token.
func NewGoogleFactory(opts GoogleOptions) Factory {
	return func(ctx context.Context, accessToken string) (Gateway, error) {
		if accessToken == "" {
			return nil, ErrNotConfigured
		}
		httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
		httpClient.Timeout = opts.Timeout

		svc, err := gcal.NewService(ctx, option.WithHTTPClient(httpClient))
		if err != nil {
			return nil, fmt.Errorf("calendar service: %w", err)
		}
		return newGoogleGateway(serviceEvents{svc: svc}, opts), nil
	}
}

func newGoogleGateway(events eventsAPI, opts GoogleOptions) *GoogleGateway {
	if opts.CalendarID == "" {
		opts.CalendarID = "primary"
	}
	if opts.TimeZone == "" {
		opts.TimeZone = "UTC"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &GoogleGateway{
		events:     events,
		calendarID: opts.CalendarID,
		timeZone:   opts.TimeZone,
		now:        time.Now,
		logger:     opts.Logger,
	}
}

func (g *GoogleGateway) CreateEvent(ctx context.Context, in EventInput) (*model.CalendarEvent, error) {
	if in.Duration <= 0 {
		in.Duration = DefaultDuration
	}
	ev := &gcal.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Location:    in.Location,
		Start: &gcal.EventDateTime{
			DateTime: in.Start.Format(time.RFC3339),
			TimeZone: g.timeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: in.Start.Add(in.Duration).Format(time.RFC3339),
			TimeZone: g.timeZone,
		},
	}
	for _, a := range in.Attendees {
		addr, err := mail.ParseAddress(a)
		if err != nil {
			// entity extraction yields names; the API rejects anything but addresses
			g.logger.Debug("skipping attendee without email address", zap.String("attendee", a))
			continue
		}
		ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: addr.Address})
	}

	created, err := g.events.Insert(ctx, g.calendarID, ev)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	g.logger.Info("calendar event created",
		zap.String("event_id", created.Id),
		zap.String("summary", in.Summary),
	)
	return &model.CalendarEvent{
		EventID:   created.Id,
		EventLink: created.HtmlLink,
		Status:    "created",
	}, nil
}

func (g *GoogleGateway) ListUpcoming(ctx context.Context, max int) ([]model.UpcomingEvent, error) {
	if max <= 0 {
		max = 10
	}
	items, err := g.events.List(ctx, g.calendarID, g.now(), int64(max))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]model.UpcomingEvent, 0, len(items))
	for _, ev := range items {
		u := model.UpcomingEvent{ID: ev.Id, Summary: ev.Summary, Link: ev.HtmlLink}
		if ev.Start != nil {
			u.Start = firstNonEmpty(ev.Start.DateTime, ev.Start.Date)
		}
		if ev.End != nil {
			u.End = firstNonEmpty(ev.End.DateTime, ev.End.Date)
		}
		out = append(out, u)
	}
	return out, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
