package safety

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lumacms/lumacms/pkg/openrouter"
)

type fakeChat struct {
	configured bool
	result     openrouter.CompletionResult
	called     bool
	lastReq    openrouter.CompletionRequest
}

func (f *fakeChat) Configured() bool { return f.configured }

func (f *fakeChat) Complete(_ context.Context, req openrouter.CompletionRequest) openrouter.CompletionResult {
	f.called = true
	f.lastReq = req
	return f.result
}

func TestAssessNotConfigured(t *testing.T) {
	chat := &fakeChat{configured: false}
	c := NewClassifier(chat, zaptest.NewLogger(t))

	res := c.Assess(context.Background(), LLMInput{Comment: "hello"})

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Err)
	assert.False(t, chat.called)
}

func TestAssessTimeoutCeiling(t *testing.T) {
	tests := []struct {
		name      string
		timeoutMs int
		want      time.Duration
	}{
		{"above ceiling clamps", 5000, 1500 * time.Millisecond},
		{"below ceiling passes through", 800, 800 * time.Millisecond},
		{"zero falls back to ceiling", 0, 1500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &fakeChat{
				configured: true,
				result: openrouter.CompletionResult{
					Success: true,
					Content: `{"risk_level":"low","confidence":0.9,"reason":"ok"}`,
				},
			}
			c := NewClassifier(chat, zaptest.NewLogger(t))

			res := c.Assess(context.Background(), LLMInput{
				Comment:  "hello",
				Settings: Settings{TimeoutMs: tt.timeoutMs, ModelID: "test-model"},
			})

			require.True(t, res.Success)
			assert.Equal(t, tt.want, chat.lastReq.Timeout)
			assert.Equal(t, "test-model", chat.lastReq.Model)
		})
	}
}

func TestAssessRedactsBeforeSending(t *testing.T) {
	chat := &fakeChat{
		configured: true,
		result: openrouter.CompletionResult{
			Success: true,
			Content: `{"risk_level":"low","confidence":0.8,"reason":"ok"}`,
		},
	}
	c := NewClassifier(chat, zaptest.NewLogger(t))

	res := c.Assess(context.Background(), LLMInput{
		Comment:  "mail me at a@b.com",
		Settings: Settings{TimeoutMs: 1000},
	})

	require.True(t, res.Success)
	assert.Equal(t, "mail me at [EMAIL]", res.RedactedText)
	require.Len(t, chat.lastReq.Messages, 2)
	assert.NotContains(t, chat.lastReq.Messages[1].Content, "a@b.com")
	assert.Contains(t, chat.lastReq.Messages[1].Content, "[EMAIL]")
}

func TestAssessCallFailure(t *testing.T) {
	chat := &fakeChat{
		configured: true,
		result:     openrouter.CompletionResult{Success: false, Err: "upstream timeout"},
	}
	c := NewClassifier(chat, zaptest.NewLogger(t))

	res := c.Assess(context.Background(), LLMInput{Comment: "hello"})

	assert.False(t, res.Success)
	assert.Equal(t, "upstream timeout", res.Err)
	assert.Nil(t, res.Response)
}

func TestAssessEmptyContent(t *testing.T) {
	chat := &fakeChat{
		configured: true,
		result:     openrouter.CompletionResult{Success: true, Content: ""},
	}
	c := NewClassifier(chat, zaptest.NewLogger(t))

	res := c.Assess(context.Background(), LLMInput{Comment: "hello"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Err, "empty response")
}

func TestAssessParseFailure(t *testing.T) {
	chat := &fakeChat{
		configured: true,
		result:     openrouter.CompletionResult{Success: true, Content: "not json at all"},
	}
	c := NewClassifier(chat, zaptest.NewLogger(t))

	res := c.Assess(context.Background(), LLMInput{Comment: "hello"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Err, "failed to parse LLM response")
}

func TestAssessSuccess(t *testing.T) {
	chat := &fakeChat{
		configured: true,
		result: openrouter.CompletionResult{
			Success: true,
			Model:   "test-model",
			Content: `{"risk_level":"high","confidence":0.95,"reason":"scam pattern"}`,
		},
	}
	c := NewClassifier(chat, zaptest.NewLogger(t))

	res := c.Assess(context.Background(), LLMInput{Comment: "hello", Settings: Settings{TimeoutMs: 1000}})

	require.True(t, res.Success)
	require.NotNil(t, res.Response)
	assert.Equal(t, RiskHigh, res.Response.RiskLevel)
	assert.Equal(t, 0.95, res.Response.Confidence)
	assert.Equal(t, "test-model", res.Model)
}
