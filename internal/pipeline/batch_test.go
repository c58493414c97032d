package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailpilot/internal/model"
)

func batchInput() []model.RawEmail {
	return []model.RawEmail{
		{MessageID: "a", Subject: "first", Body: "hello"},
		{MessageID: "", Subject: "no id", Body: "hello"},
		{MessageID: "c", Subject: "boom", Body: "explodes"},
		{MessageID: "d", Subject: "last", Body: "bye"},
	}
}

func TestProcessAll_IsolatesFailures(t *testing.T) {
	for _, concurrency := range []int{0, 1, 3} {
		h := newHarness(enabledConfig())

		items := h.enricher.ProcessAll(context.Background(), batchInput(), Options{}, concurrency)

		require.Len(t, items, 4)
		assert.Equal(t, "a", items[0].MessageID)
		assert.True(t, items[0].Processed)
		require.NotNil(t, items[0].Result)
		assert.Equal(t, "a summary", items[0].Result.Summary)

		assert.False(t, items[1].Processed)
		assert.Equal(t, ErrMissingMessageID.Error(), items[1].Error)

		assert.Equal(t, "c", items[2].MessageID)
		assert.False(t, items[2].Processed)
		assert.Nil(t, items[2].Result)
		assert.Contains(t, items[2].Error, "panic")

		assert.Equal(t, "d", items[3].MessageID)
		assert.True(t, items[3].Processed)
	}
}

func TestProcessAll_Empty(t *testing.T) {
	h := newHarness(enabledConfig())
	assert.Empty(t, h.enricher.ProcessAll(context.Background(), nil, Options{}, 2))
}
