package model

import "strings"

type Intent string

const (
	IntentMeeting     Intent = "meeting"
	IntentFollowUp    Intent = "follow_up"
	IntentInformation Intent = "information"
	IntentUrgent      Intent = "urgent"
	IntentTask        Intent = "task"
	IntentSocial      Intent = "social"
)

var intents = []Intent{IntentMeeting, IntentFollowUp, IntentInformation, IntentUrgent, IntentTask, IntentSocial}

// ParseIntent accepts case and separator variants ("Follow-Up", "follow up").
func ParseIntent(s string) (Intent, bool) {
	norm := normalizeLabel(s)
	for _, i := range intents {
		if string(i) == norm {
			return i, true
		}
	}
	return "", false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func ParsePriority(s string) (Priority, bool) {
	switch Priority(normalizeLabel(s)) {
	case PriorityHigh:
		return PriorityHigh, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityLow:
		return PriorityLow, true
	}
	return "", false
}

type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneBrief        Tone = "brief"
)

func ParseTone(s string) (Tone, bool) {
	switch Tone(normalizeLabel(s)) {
	case ToneProfessional:
		return ToneProfessional, true
	case ToneFriendly:
		return ToneFriendly, true
	case ToneBrief:
		return ToneBrief, true
	}
	return "", false
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}
