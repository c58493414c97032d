package calendar

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"go.uber.org/zap"

	"mailpilot/internal/model"
)

const descriptionBodyChars = 500

var errClockOnly = errors.New("clock time without date")

// dateparse resolves bare clock times to year zero; those go to the relative parser
var clockOnly = regexp.MustCompile(`(?i)^\s*\d{1,2}(?::\d{2})?\s*(?:am|pm)?\s*$`)

var relative = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ResolveStart turns a free-form date string into an event start time.
// Absolute dates go through dateparse; relative phrases ("tomorrow",
// "next friday 3pm", "3:00 PM") are resolved against the day of now.
// A result at midnight means no clock time was given and becomes 09:00.
// A start before now moves forward by exactly one day, once.
func ResolveStart(dateStr string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)

	var (
		t   time.Time
		err = errClockOnly
	)
	if !clockOnly.MatchString(dateStr) {
		t, err = dateparse.ParseIn(dateStr, loc)
	}
	if err != nil {
		base := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		r, werr := relative.Parse(dateStr, base)
		if werr != nil || r == nil {
			return time.Time{}, fmt.Errorf("unparseable date %q", dateStr)
		}
		t = r.Time.In(loc)
	}

	if t.Hour() == 0 && t.Minute() == 0 {
		t = time.Date(t.Year(), t.Month(), t.Day(), 9, 0, 0, 0, t.Location())
	}
	if t.Before(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

// CreateFromEmail schedules the first candidate date of a detected meeting.
// It returns nil without error when the date cannot be resolved.
func CreateFromEmail(ctx context.Context, gw Gateway, email model.RawEmail, info *model.MeetingInfo, now time.Time, loc *time.Location, logger *zap.Logger) (*model.CalendarEvent, error) {
	if info == nil || len(info.Dates) == 0 {
		return nil, nil
	}

	start, err := ResolveStart(info.Dates[0], now, loc)
	if err != nil {
		logger.Warn("meeting date not resolvable, skipping calendar event",
			zap.String("message_id", email.MessageID),
			zap.String("date", info.Dates[0]),
			zap.Error(err),
		)
		return nil, nil
	}

	summary := email.Subject
	if summary == "" {
		summary = "Meeting"
	}

	return gw.CreateEvent(ctx, EventInput{
		Summary:     summary,
		Description: "From: " + email.Sender + "\n\n" + truncateRunes(email.Body, descriptionBodyChars),
		Start:       start,
		Duration:    DefaultDuration,
		Attendees:   info.Attendees,
		Location:    info.Location,
	})
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
