package model

// NotificationKind names a notification template.
type NotificationKind string

const (
	NotificationNewEmail        NotificationKind = "new_email"
	NotificationMeetingDetected NotificationKind = "meeting_detected"
	NotificationDailyDigest     NotificationKind = "daily_digest"
)

// Message formats understood by the notification gateway.
const (
	FormatHTML     = "HTML"
	FormatMarkdown = "Markdown"
	FormatText     = ""
)
