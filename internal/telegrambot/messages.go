package telegrambot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"mailpilot/internal/model"
	"mailpilot/internal/notify"
	"mailpilot/internal/service/mailsync"
)

const (
	subjectRunes = 50
	senderRunes  = 80
	titleRunes   = 120
)

const helpMessage = `🤖 <b>Welcome to mailpilot!</b>

📊 <b>General</b>
/start - Show this help message
/status - Show email statistics
/summary - Summaries of recent emails

📧 <b>Email Filtering</b>
/urgent - List urgent emails
/high - List high priority emails
/meeting - List meeting invitations
/unread - List unread emails
/recent - Last 5 emails

📅 <b>Calendar</b>
/today - Today's meetings
/tomorrow - Tomorrow's meetings

⚙️ <b>Actions</b>
/sync - Sync new emails from the mailbox
/clear - Clear the enrichment cache`

type listKind int

const (
	listSummary listKind = iota
	listRecent
	listUrgent
	listHigh
	listMeeting
	listUnread
)

type listStyle struct {
	title        string
	empty        string
	summaryRunes int
	counted      bool
}

var listStyles = map[listKind]listStyle{
	listSummary: {title: "📬 <b>Recent Email Summaries</b>", empty: "📭 No emails found", summaryRunes: 150},
	listRecent:  {title: "📨 <b>Last 5 Emails</b>", empty: "📭 No emails found", summaryRunes: 120},
	listUrgent:  {title: "⚡ <b>Urgent Emails</b>", empty: "✅ No urgent emails!", summaryRunes: 120, counted: true},
	listHigh:    {title: "🔴 <b>High Priority Emails</b>", empty: "✅ No high priority emails!", summaryRunes: 100, counted: true},
	listMeeting: {title: "📅 <b>Meeting Invitations</b>", empty: "📅 No meeting invitations found", summaryRunes: 100, counted: true},
	listUnread:  {title: "👁️ <b>Unread Emails</b>", empty: "✅ All emails read!", summaryRunes: 100, counted: true},
}

func statusMessage(stats model.EmailStats) string {
	var b strings.Builder
	b.WriteString("📊 <b>Email Statistics</b>\n\n")
	fmt.Fprintf(&b, "📧 <b>Total Emails:</b> %d\n", stats.Total)
	fmt.Fprintf(&b, "✅ <b>Processed:</b> %d\n", stats.Processed)
	fmt.Fprintf(&b, "🔴 <b>High Priority:</b> %d\n", stats.HighPriority)
	fmt.Fprintf(&b, "👁️ <b>Unread:</b> %d\n\n", stats.Unread)
	b.WriteString("<b>By Type:</b>\n")

	intents := make([]string, 0, len(stats.ByIntent))
	for k := range stats.ByIntent {
		intents = append(intents, k)
	}
	sort.Strings(intents)
	if len(intents) == 0 {
		b.WriteString("No data")
	}
	for _, k := range intents {
		fmt.Fprintf(&b, "%s %s: %d\n", notify.IntentEmoji(model.Intent(k)), notify.Escape(notify.Titleize(k)), stats.ByIntent[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

func listMessage(kind listKind, emails []model.StoredEmail) string {
	style := listStyles[kind]
	if len(emails) == 0 {
		return style.empty
	}

	var b strings.Builder
	b.WriteString(style.title)
	if style.counted {
		fmt.Fprintf(&b, " <b>(%d)</b>", len(emails))
	}
	b.WriteString("\n\n")

	for i, e := range emails {
		subject := notify.Escape(notify.Clip(orDefault(e.Subject, "No Subject"), subjectRunes))
		switch kind {
		case listRecent:
			fmt.Fprintf(&b, "%d. %s %s <b>%s</b>\n", i+1, notify.PriorityEmoji(e.Priority), notify.IntentEmoji(e.Intent), subject)
		case listUrgent, listHigh, listMeeting:
			fmt.Fprintf(&b, "%d. <b>%s</b>\n", i+1, subject)
		default:
			fmt.Fprintf(&b, "%d. %s <b>%s</b>\n", i+1, notify.PriorityEmoji(e.Priority), subject)
		}
		fmt.Fprintf(&b, "   From: %s\n", notify.Escape(notify.Clip(orDefault(e.Sender, "Unknown"), senderRunes)))

		switch kind {
		case listHigh:
			fmt.Fprintf(&b, "   Type: %s\n", notify.Titleize(string(e.Intent)))
		case listMeeting:
			if len(e.Entities.Dates) > 0 {
				fmt.Fprintf(&b, "   🕐 %s\n", notify.Escape(notify.Clip(strings.Join(e.Entities.Dates, ", "), titleRunes)))
			}
			if len(e.Entities.Locations) > 0 {
				fmt.Fprintf(&b, "   📍 %s\n", notify.Escape(notify.Clip(e.Entities.Locations[0], titleRunes)))
			}
		}

		summary := orDefault(e.Summary, "No summary")
		fmt.Fprintf(&b, "   📝 %s\n\n", notify.Escape(notify.Preview(summary, style.summaryRunes)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func syncMessage(r *mailsync.Report) string {
	msg := fmt.Sprintf("✅ Synced %d new emails!", r.Saved)
	if r.Skipped > 0 || r.Failed > 0 {
		msg += fmt.Sprintf("\n%d already stored, %d failed", r.Skipped, r.Failed)
	}
	return msg
}

type scheduledEvent struct {
	model.UpcomingEvent
	start  time.Time
	allDay bool
}

func meetingsMessage(label string, events []scheduledEvent) string {
	if len(events) == 0 {
		return fmt.Sprintf("📅 No meetings scheduled for %s", strings.ToLower(label))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 <b>%s's Meetings (%d)</b>\n\n", label, len(events))
	for i, ev := range events {
		when := ev.start.Format("03:04 PM")
		if ev.allDay {
			when = "All day"
		}
		fmt.Fprintf(&b, "%d. <b>%s</b>\n", i+1, notify.Escape(notify.Clip(orDefault(ev.Summary, "No title"), titleRunes)))
		fmt.Fprintf(&b, "   🕐 %s\n", when)
		if ev.Link != "" {
			fmt.Fprintf(&b, "   🔗 <a href=\"%s\">Open</a>\n", notify.Escape(ev.Link))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
