// Package calendar creates events for meetings detected in email.
package calendar

import (
	"context"
	"errors"
	"time"

	"mailpilot/internal/model"
)

// DefaultDuration is the length of every event created from an email.
const DefaultDuration = 60 * time.Minute

// ErrNotConfigured is returned when the gateway cannot be built.
var ErrNotConfigured = errors.New("calendar gateway not configured")

// EventInput describes an event to create.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	Duration    time.Duration
	Attendees   []string
	Location    string
}

// Gateway is an external calendar.
type Gateway interface {
	CreateEvent(ctx context.Context, in EventInput) (*model.CalendarEvent, error)
	ListUpcoming(ctx context.Context, max int) ([]model.UpcomingEvent, error)
}

// Factory builds a Gateway acting with the given OAuth access token.
type Factory func(ctx context.Context, accessToken string) (Gateway, error)
