package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"mailpilot/internal/calendar"
	"mailpilot/internal/model"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dst any) bool {
	c.mu.Lock()
	raw, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (c *memoryCache) Set(_ context.Context, key string, v any, ttl time.Duration) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	c.ttls[key] = ttl
	return true
}

func (c *memoryCache) Delete(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return true
}

func (c *memoryCache) FlushAll(context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = map[string][]byte{}
	return true
}

type fakeLLM struct {
	mu    sync.Mutex
	calls map[string]int

	summary        string
	classification model.Classification
	entities       model.Entities
	replies        []model.ReplySuggestion
	err            error
	gate           chan struct{}
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		calls:          map[string]int{},
		summary:        "a summary",
		classification: model.Classification{Intent: model.IntentInformation, Priority: model.PriorityLow, Reasoning: "fyi"},
		entities:       model.EmptyEntities(),
		replies:        []model.ReplySuggestion{{Text: "Thanks!", Tone: model.ToneFriendly}},
	}
}

func (f *fakeLLM) record(op, subject string) {
	if subject == "boom" {
		panic("inference exploded")
	}
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeLLM) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeLLM) Summarize(_ context.Context, subject, _ string) (string, error) {
	f.record("summarize", subject)
	if f.gate != nil {
		<-f.gate
	}
	return f.summary, f.err
}

func (f *fakeLLM) Classify(_ context.Context, subject, _ string) (model.Classification, error) {
	f.record("classify", subject)
	return f.classification, f.err
}

func (f *fakeLLM) ExtractEntities(context.Context, string) (model.Entities, error) {
	f.record("entities", "")
	return f.entities, f.err
}

func (f *fakeLLM) SuggestReplies(_ context.Context, subject, _ string) ([]model.ReplySuggestion, error) {
	f.record("replies", subject)
	return f.replies, f.err
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []Notification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, pending []Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, pending...)
	return nil
}

func (d *recordingDispatcher) kinds() []model.NotificationKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.NotificationKind, 0, len(d.sent))
	for _, n := range d.sent {
		out = append(out, n.Kind)
	}
	return out
}

type fakeCalendar struct {
	mu      sync.Mutex
	created []calendar.EventInput
	tokens  []string
	err     error
}

func (c *fakeCalendar) factory(_ context.Context, token string) (calendar.Gateway, error) {
	c.mu.Lock()
	c.tokens = append(c.tokens, token)
	c.mu.Unlock()
	return c, nil
}

func (c *fakeCalendar) CreateEvent(_ context.Context, in calendar.EventInput) (*model.CalendarEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.created = append(c.created, in)
	return &model.CalendarEvent{EventID: "evt-1", EventLink: "https://calendar/evt-1", Status: "created"}, nil
}

func (c *fakeCalendar) ListUpcoming(context.Context, int) ([]model.UpcomingEvent, error) {
	return nil, errors.New("not implemented")
}
