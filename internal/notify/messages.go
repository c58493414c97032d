package notify

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode/utf8"

	"mailpilot/internal/model"
)

const (
	summaryPreviewRunes = 300
	senderRunes         = 120
	subjectRunes        = 200
	datesRunes          = 200
)

var priorityEmoji = map[model.Priority]string{
	model.PriorityHigh:   "🔴",
	model.PriorityMedium: "🟡",
	model.PriorityLow:    "🟢",
}

var intentEmoji = map[model.Intent]string{
	model.IntentMeeting:     "📅",
	model.IntentUrgent:      "⚡",
	model.IntentTask:        "✅",
	model.IntentFollowUp:    "🔄",
	model.IntentInformation: "ℹ️",
	model.IntentSocial:      "💬",
}

// PriorityEmoji marks a priority in chat messages.
func PriorityEmoji(p model.Priority) string {
	if e, ok := priorityEmoji[p]; ok {
		return e
	}
	return "⚪"
}

// IntentEmoji marks an intent in chat messages.
func IntentEmoji(i model.Intent) string {
	if e, ok := intentEmoji[i]; ok {
		return e
	}
	return "📧"
}

// NewEmailMessage renders the "new email" notification. All priorities
// share this template.
func NewEmailMessage(email model.RawEmail, res *model.EnrichmentResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>New Email</b> %s\n\n", PriorityEmoji(res.Priority), IntentEmoji(res.Intent))
	fmt.Fprintf(&b, "<b>From:</b> %s\n", Escape(Clip(orDefault(email.Sender, "Unknown"), senderRunes)))
	fmt.Fprintf(&b, "<b>Subject:</b> %s\n", Escape(Clip(orDefault(email.Subject, "No Subject"), subjectRunes)))
	fmt.Fprintf(&b, "<b>Priority:</b> %s\n", strings.ToUpper(string(res.Priority)))
	fmt.Fprintf(&b, "<b>Type:</b> %s\n\n", Titleize(string(res.Intent)))
	fmt.Fprintf(&b, "<b>Summary:</b>\n%s", Escape(Preview(res.Summary, summaryPreviewRunes)))
	return b.String()
}

// MeetingDetectedMessage renders the "meeting detected" notification.
func MeetingDetectedMessage(email model.RawEmail, info *model.MeetingInfo) string {
	dates := "Not specified"
	if info != nil && len(info.Dates) > 0 {
		dates = strings.Join(info.Dates, ", ")
	}

	var b strings.Builder
	b.WriteString("📅 <b>MEETING INVITATION DETECTED</b>\n\n")
	fmt.Fprintf(&b, "<b>From:</b> %s\n", Escape(Clip(orDefault(email.Sender, "Unknown"), senderRunes)))
	fmt.Fprintf(&b, "<b>Subject:</b> %s\n", Escape(Clip(orDefault(email.Subject, "No Subject"), subjectRunes)))
	fmt.Fprintf(&b, "<b>Date/Time:</b> %s\n\n", Escape(Clip(dates, datesRunes)))
	b.WriteString("<i>Check your calendar for details</i>")
	return b.String()
}

// DailyDigestMessage renders mailbox statistics.
func DailyDigestMessage(stats model.EmailStats) string {
	intents := make([]string, 0, len(stats.ByIntent))
	for k := range stats.ByIntent {
		intents = append(intents, k)
	}
	sort.Strings(intents)

	var b strings.Builder
	b.WriteString("📊 <b>Daily Email Summary</b>\n\n")
	fmt.Fprintf(&b, "<b>Total Emails:</b> %d\n", stats.Total)
	fmt.Fprintf(&b, "<b>Unread:</b> %d\n", stats.Unread)
	fmt.Fprintf(&b, "<b>High Priority:</b> %d\n\n", stats.HighPriority)
	b.WriteString("<b>By Type:</b>\n")
	if len(intents) == 0 {
		b.WriteString("  No data\n")
	}
	for _, k := range intents {
		fmt.Fprintf(&b, "  • %s: %d\n", Escape(Titleize(k)), stats.ByIntent[k])
	}
	b.WriteString("\nHave a productive day! 🚀")
	return b.String()
}

// Escape makes s safe inside a Telegram HTML message. Clip before escaping,
// never after, so an entity is not cut in half.
func Escape(s string) string { return html.EscapeString(s) }

// Clip keeps at most n runes of s.
func Clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Preview clips s to n runes and marks the cut with "...".
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return Clip(s, n) + "..."
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Titleize turns "follow_up" into "Follow Up".
func Titleize(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
