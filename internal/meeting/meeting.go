// Package meeting derives a candidate meeting from extracted entities,
// falling back to a pattern scan of the raw body.
package meeting

import (
	"regexp"

	"mailpilot/internal/model"
)

// Tried in order; the first pattern with any match wins.
var timePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d{1,2}:\d{2}\s*(?:AM|PM))`),
	regexp.MustCompile(`(?i)(\d{1,2}\s*(?:AM|PM))`),
	regexp.MustCompile(`(?i)(tomorrow|today|next \w+)`),
}

// Extract returns nil when no date can be found.
func Extract(body string, entities model.Entities) *model.MeetingInfo {
	dates := nonEmpty(entities.Dates)
	if len(dates) == 0 {
		if d := scan(body); d != "" {
			dates = []string{d}
		}
	}
	if len(dates) == 0 {
		return nil
	}

	info := &model.MeetingInfo{
		Dates:      dates,
		Attendees:  nonEmpty(entities.People),
		HasMeeting: true,
	}
	if locs := nonEmpty(entities.Locations); len(locs) > 0 {
		info.Location = locs[0]
	}
	return info
}

func scan(body string) string {
	for _, re := range timePatterns {
		if m := re.FindStringSubmatch(body); m != nil {
			return m[1]
		}
	}
	return ""
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
