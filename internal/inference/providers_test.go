package inference

import (
	"context"
	"errors"
	"net/http"
	"testing"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailpilot/pkg/config"
	"mailpilot/pkg/util"
)

type fakeChat struct {
	resp   *openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (f *fakeChat) New(_ context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.params = params
	return f.resp, f.err
}

func TestOpenAICompleter_ReturnsFirstChoice(t *testing.T) {
	chat := &fakeChat{resp: &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "summary"}}},
	}}
	c := &OpenAICompleter{completions: chat, model: "llama-3.3-70b-versatile", temperature: 0.3, maxTokens: 1024}

	out, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "summary", out)
	assert.Len(t, chat.params.Messages, 2)
	assert.Equal(t, "llama-3.3-70b-versatile", string(chat.params.Model))
}

func TestOpenAICompleter_EmptyAndAPIErrors(t *testing.T) {
	c := &OpenAICompleter{completions: &fakeChat{resp: &openai.ChatCompletion{}}}
	_, err := c.Complete(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, ErrEmptyCompletion)

	c = &OpenAICompleter{completions: &fakeChat{err: &openai.Error{StatusCode: http.StatusTooManyRequests}}}
	_, err = c.Complete(context.Background(), "sys", "user")
	var statusErr *util.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

type fakeMessages struct {
	msg    *anthropicsdk.Message
	err    error
	params anthropicsdk.MessageNewParams
}

func (f *fakeMessages) New(_ context.Context, params anthropicsdk.MessageNewParams, _ ...anthropicoption.RequestOption) (*anthropicsdk.Message, error) {
	f.params = params
	return f.msg, f.err
}

func TestAnthropicCompleter_JoinsTextBlocks(t *testing.T) {
	msgs := &fakeMessages{msg: &anthropicsdk.Message{Content: []anthropicsdk.ContentBlockUnion{
		{Type: "text", Text: `{"intent":`},
		{Type: "text", Text: `"task"}`},
	}}}
	c := &AnthropicCompleter{msgs: msgs, model: "claude-test", maxTokens: 1024, temperature: 0.3}

	out, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"task"}`, out)
	require.Len(t, msgs.params.System, 1)
	assert.Equal(t, "sys", msgs.params.System[0].Text)
}

func TestAnthropicCompleter_APIError(t *testing.T) {
	c := &AnthropicCompleter{msgs: &fakeMessages{err: &anthropicsdk.Error{StatusCode: http.StatusServiceUnavailable}}}
	_, err := c.Complete(context.Background(), "sys", "user")
	retryable, _ := util.IsRetryableError(err)
	assert.True(t, retryable)
}

func TestNewFromConfig(t *testing.T) {
	_, err := NewFromConfig(config.LLMConfig{Provider: "openai"}, zap.NewNop())
	assert.Error(t, err, "missing api key")

	_, err = NewFromConfig(config.LLMConfig{Provider: "mystery", APIKey: "k"}, zap.NewNop())
	assert.Error(t, err)

	c, err := NewFromConfig(config.LLMConfig{Provider: "anthropic", APIKey: "k", Model: "m", TimeoutSeconds: 5}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, c)
}
