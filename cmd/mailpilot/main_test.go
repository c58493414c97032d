package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmails_SingleObject(t *testing.T) {
	emails, err := parseEmails([]byte(`
	{"message_id":"m1","subject":"Team Sync","sender":"a@example.com","body":"Meeting at 3:00 PM"}`))
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "m1", emails[0].MessageID)
	assert.Equal(t, "Team Sync", emails[0].Subject)
}

func TestParseEmails_Array(t *testing.T) {
	emails, err := parseEmails([]byte(`[{"message_id":"m1","body":"a"},{"message_id":"m2","body":"b"}]`))
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "m2", emails[1].MessageID)
}

func TestParseEmails_Invalid(t *testing.T) {
	_, err := parseEmails([]byte("  "))
	assert.Error(t, err)

	_, err = parseEmails([]byte(`{"message_id":`))
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"migrate"},
		{"sync"},
		{"process"},
		{"cache", "stats"},
		{"cache", "clear"},
		{"outbox", "replay"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
		assert.NotNil(t, cmd.RunE, path)
	}

	assert.NotNil(t, syncCmd.Flags().Lookup("user"))
	assert.NotNil(t, processCmd.Flags().Lookup("file"))
}
