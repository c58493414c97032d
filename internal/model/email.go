package model

import "time"

// RawEmail is a message as fetched from the mail provider.
type RawEmail struct {
	MessageID  string    `json:"message_id"`
	ThreadID   string    `json:"thread_id"`
	Subject    string    `json:"subject"`
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Entities extracted from an email body.
type Entities struct {
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Dates         []string `json:"dates"`
	Locations     []string `json:"locations"`
	ActionItems   []string `json:"action_items"`
}

// EmptyEntities returns entities with non-nil empty lists so they encode as [].
func EmptyEntities() Entities {
	return Entities{
		People:        []string{},
		Organizations: []string{},
		Dates:         []string{},
		Locations:     []string{},
		ActionItems:   []string{},
	}
}

// Normalize replaces nil lists with empty ones.
func (e Entities) Normalize() Entities {
	orEmpty := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}
	return Entities{
		People:        orEmpty(e.People),
		Organizations: orEmpty(e.Organizations),
		Dates:         orEmpty(e.Dates),
		Locations:     orEmpty(e.Locations),
		ActionItems:   orEmpty(e.ActionItems),
	}
}

// Classification is the intent/priority verdict for an email.
type Classification struct {
	Intent    Intent   `json:"intent"`
	Priority  Priority `json:"priority"`
	Reasoning string   `json:"reasoning"`
}

// ReplySuggestion is one drafted reply.
type ReplySuggestion struct {
	Text string `json:"text"`
	Tone Tone   `json:"tone"`
}

// MeetingInfo is present only when a date could be found in a meeting email.
type MeetingInfo struct {
	Dates      []string `json:"dates"`
	Attendees  []string `json:"attendees"`
	Location   string   `json:"location,omitempty"`
	HasMeeting bool     `json:"has_meeting"`
}

// CalendarEvent records an event created from an email.
type CalendarEvent struct {
	EventID   string `json:"event_id"`
	EventLink string `json:"event_link"`
	Status    string `json:"status"`
}

// UpcomingEvent is a calendar entry returned by ListUpcoming.
type UpcomingEvent struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Link    string `json:"link"`
}

// EnrichmentResult is everything derived from one email.
type EnrichmentResult struct {
	MessageID        string            `json:"message_id"`
	Summary          string            `json:"summary"`
	Intent           Intent            `json:"intent"`
	Priority         Priority          `json:"priority"`
	Reasoning        string            `json:"reasoning"`
	Entities         Entities          `json:"entities"`
	ReplySuggestions []ReplySuggestion `json:"reply_suggestions"`
	MeetingInfo      *MeetingInfo      `json:"meeting_info,omitempty"`
	CalendarEvent    *CalendarEvent    `json:"calendar_event,omitempty"`
	Processed        bool              `json:"processed"`
}

// Clone returns a copy that shares no slices or pointers with r.
func (r *EnrichmentResult) Clone() *EnrichmentResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Entities = Entities{
		People:        cloneStrings(r.Entities.People),
		Organizations: cloneStrings(r.Entities.Organizations),
		Dates:         cloneStrings(r.Entities.Dates),
		Locations:     cloneStrings(r.Entities.Locations),
		ActionItems:   cloneStrings(r.Entities.ActionItems),
	}
	if r.ReplySuggestions != nil {
		out.ReplySuggestions = append([]ReplySuggestion(nil), r.ReplySuggestions...)
	}
	if r.MeetingInfo != nil {
		mi := *r.MeetingInfo
		mi.Dates = cloneStrings(mi.Dates)
		mi.Attendees = cloneStrings(mi.Attendees)
		out.MeetingInfo = &mi
	}
	if r.CalendarEvent != nil {
		ev := *r.CalendarEvent
		out.CalendarEvent = &ev
	}
	return &out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

// StoredEmail is a persisted email with its enrichment flattened in.
type StoredEmail struct {
	ID               int64             `json:"id"`
	UserID           *int64            `json:"user_id,omitempty"`
	MessageID        string            `json:"message_id"`
	ThreadID         string            `json:"thread_id"`
	Subject          string            `json:"subject"`
	Sender           string            `json:"sender"`
	Body             string            `json:"body"`
	ReceivedAt       *time.Time        `json:"received_at,omitempty"`
	Summary          string            `json:"summary"`
	Intent           Intent            `json:"intent"`
	Priority         Priority          `json:"priority"`
	Reasoning        string            `json:"reasoning"`
	Entities         Entities          `json:"entities"`
	ReplySuggestions []ReplySuggestion `json:"reply_suggestions"`
	MeetingInfo      *MeetingInfo      `json:"meeting_info,omitempty"`
	CalendarEvent    *CalendarEvent    `json:"calendar_event,omitempty"`
	IsRead           bool              `json:"is_read"`
	IsImportant      bool              `json:"is_important"`
	Processed        bool              `json:"processed"`
	ProcessedAt      *time.Time        `json:"processed_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// EmailFilter narrows List queries. Zero values mean no filter.
type EmailFilter struct {
	Priority Priority
	Intent   Intent
	Unread   bool
	Limit    int
}

// EmailStats summarizes the stored mailbox.
type EmailStats struct {
	Total        int            `json:"total"`
	Processed    int            `json:"processed"`
	Unread       int            `json:"unread"`
	HighPriority int            `json:"high_priority"`
	ByIntent     map[string]int `json:"by_intent"`
}
