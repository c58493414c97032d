package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
)

type fakeEvents struct {
	inserted *gcal.Event
	calID    string
	items    []*gcal.Event
	max      int64
}

func (f *fakeEvents) Insert(_ context.Context, calendarID string, ev *gcal.Event) (*gcal.Event, error) {
	f.calID = calendarID
	f.inserted = ev
	return &gcal.Event{Id: "abc", HtmlLink: "https://calendar.google.com/abc"}, nil
}

func (f *fakeEvents) List(_ context.Context, calendarID string, _ time.Time, max int64) ([]*gcal.Event, error) {
	f.calID = calendarID
	f.max = max
	return f.items, nil
}

func TestGoogleGateway_CreateEvent(t *testing.T) {
	events := &fakeEvents{}
	gw := newGoogleGateway(events, GoogleOptions{TimeZone: "Europe/Berlin"})

	start := time.Date(2026, 10, 20, 15, 0, 0, 0, time.UTC)
	ev, err := gw.CreateEvent(context.Background(), EventInput{
		Summary:   "Team Sync",
		Start:     start,
		Attendees: []string{"Bob", "carol@example.com", "Dan <dan@example.com>"},
		Location:  "Room B",
	})
	require.NoError(t, err)

	assert.Equal(t, "abc", ev.EventID)
	assert.Equal(t, "created", ev.Status)
	assert.Equal(t, "primary", events.calID)

	got := events.inserted
	assert.Equal(t, "2026-10-20T15:00:00Z", got.Start.DateTime)
	assert.Equal(t, "2026-10-20T16:00:00Z", got.End.DateTime)
	assert.Equal(t, "Europe/Berlin", got.Start.TimeZone)
	require.Len(t, got.Attendees, 2)
	assert.Equal(t, "carol@example.com", got.Attendees[0].Email)
	assert.Equal(t, "dan@example.com", got.Attendees[1].Email)
}

func TestGoogleGateway_ListUpcoming(t *testing.T) {
	events := &fakeEvents{items: []*gcal.Event{
		{Id: "1", Summary: "Standup", Start: &gcal.EventDateTime{DateTime: "2026-10-17T09:00:00Z"}, End: &gcal.EventDateTime{DateTime: "2026-10-17T09:15:00Z"}},
		{Id: "2", Summary: "Offsite", Start: &gcal.EventDateTime{Date: "2026-10-20"}, End: &gcal.EventDateTime{Date: "2026-10-21"}},
	}}
	gw := newGoogleGateway(events, GoogleOptions{CalendarID: "team"})

	got, err := gw.ListUpcoming(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, int64(10), events.max)
	assert.Equal(t, "team", events.calID)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-10-17T09:00:00Z", got[0].Start)
	assert.Equal(t, "2026-10-20", got[1].Start)
	assert.Equal(t, "2026-10-21", got[1].End)
}

func TestGoogleFactory_RequiresToken(t *testing.T) {
	_, err := NewGoogleFactory(GoogleOptions{})(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
