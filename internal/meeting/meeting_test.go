package meeting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailpilot/internal/model"
)

func TestExtract_EntityDatesTakePrecedence(t *testing.T) {
	entities := model.Entities{
		Dates:     []string{"Friday 2 PM"},
		People:    []string{"Alice", "Bob"},
		Locations: []string{"Room B", "Lobby"},
	}

	info := Extract("see you at 3:00 PM tomorrow", entities)

	require.NotNil(t, info)
	assert.Equal(t, []string{"Friday 2 PM"}, info.Dates)
	assert.Equal(t, []string{"Alice", "Bob"}, info.Attendees)
	assert.Equal(t, "Room B", info.Location)
	assert.True(t, info.HasMeeting)
}

func TestExtract_PatternOrder(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{"Let's meet tomorrow at 3:00 PM in Room B.", "3:00 PM"},
		{"call at 10am, or maybe 11:30 am", "11:30 am"},
		{"ping me tomorrow around 4 PM", "4 PM"},
		{"Can we sync Next Tuesday?", "Next Tuesday"},
		{"TODAY works", "TODAY"},
	}
	for _, tc := range cases {
		info := Extract(tc.body, model.EmptyEntities())
		require.NotNil(t, info, tc.body)
		assert.Equal(t, []string{tc.want}, info.Dates, tc.body)
	}
}

func TestExtract_NoDate(t *testing.T) {
	assert.Nil(t, Extract("Let's catch up sometime", model.EmptyEntities()))
	assert.Nil(t, Extract("", model.Entities{Dates: []string{""}}))
}

func TestExtract_NoLocation(t *testing.T) {
	info := Extract("at 9:15 am", model.Entities{})
	require.NotNil(t, info)
	assert.Empty(t, info.Location)
	assert.Equal(t, []string{}, info.Attendees)
}
