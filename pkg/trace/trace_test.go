package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsure_KeepsExistingID(t *testing.T) {
	ctx := WithContext(context.Background(), "abc")

	ctx, id := Ensure(ctx)

	assert.Equal(t, "abc", id)
	assert.Equal(t, "abc", FromContext(ctx))
}

func TestEnsure_GeneratesID(t *testing.T) {
	ctx, id := Ensure(context.Background())

	assert.NotEmpty(t, id)
	assert.Equal(t, id, FromContext(ctx))
}
