package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntent(t *testing.T) {
	cases := map[string]Intent{
		"meeting":     IntentMeeting,
		"Follow-Up":   IntentFollowUp,
		"follow up":   IntentFollowUp,
		" URGENT ":    IntentUrgent,
		"social":      IntentSocial,
		"task":        IntentTask,
		"information": IntentInformation,
	}
	for in, want := range cases {
		got, ok := ParseIntent(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseIntent("spam")
	assert.False(t, ok)
}

func TestParsePriorityAndTone(t *testing.T) {
	p, ok := ParsePriority("High")
	assert.True(t, ok)
	assert.Equal(t, PriorityHigh, p)
	_, ok = ParsePriority("critical")
	assert.False(t, ok)

	tone, ok := ParseTone("Friendly")
	assert.True(t, ok)
	assert.Equal(t, ToneFriendly, tone)
	_, ok = ParseTone("sarcastic")
	assert.False(t, ok)
}

func TestEntitiesEncodeAsEmptyLists(t *testing.T) {
	b, err := json.Marshal(Entities{People: []string{"Alice"}}.Normalize())
	require.NoError(t, err)
	assert.JSONEq(t, `{"people":["Alice"],"organizations":[],"dates":[],"locations":[],"action_items":[]}`, string(b))
}
