package safety

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lumacms/lumacms/pkg/metrics"
	"github.com/lumacms/lumacms/pkg/openrouter"
)

const (
	// maxLLMTimeout is a hard ceiling on the classifier call, independent
	// of configuration. The whole pipeline must answer within 2000ms.
	maxLLMTimeout = 1500 * time.Millisecond

	// Low temperature favors deterministic verdicts.
	assessTemperature = 0.3

	// The verdict is a compact JSON object, not prose.
	assessMaxTokens = 256
)

// ChatClient is the external chat-completion capability.
type ChatClient interface {
	Configured() bool
	Complete(ctx context.Context, req openrouter.CompletionRequest) openrouter.CompletionResult
}

// LLMInput carries one classification request.
type LLMInput struct {
	Comment    string
	RAGContext []RAGContext
	Settings   Settings
}

// LLMResult is the classifier outcome. Failures are in-band: Success=false
// with Err set, so the decision engine can apply fail-closed policy.
type LLMResult struct {
	Success      bool
	Response     *Verdict
	Model        string
	LatencyMs    int64
	Err          string
	RedactedText string
}

// Classifier is the Layer 3 LLM risk classifier.
type Classifier struct {
	chat ChatClient
	log  *zap.Logger
}

// NewClassifier wires a classifier over a chat-completion client.
func NewClassifier(chat ChatClient, log *zap.Logger) *Classifier {
	return &Classifier{chat: chat, log: log.With(zap.String("module", "safety.classifier"))}
}

// Available reports whether the external provider is configured.
func (c *Classifier) Available() bool {
	return c.chat != nil && c.chat.Configured()
}

// Assess redacts the comment, composes the prompt with RAG context, invokes
// the chat-completion provider under the timeout ceiling, and parses the
// structured verdict. Latency is reported whenever the external call ran.
func (c *Classifier) Assess(ctx context.Context, in LLMInput) LLMResult {
	if !c.Available() {
		metrics.ClassifierFailures.WithLabelValues("not_configured").Inc()
		return LLMResult{Success: false, Err: "chat completion provider not configured"}
	}

	// Only redacted text crosses the trust boundary to the provider.
	redacted := Redact(in.Comment).Text
	messages := PromptMessages(redacted, in.RAGContext)

	timeout := maxLLMTimeout
	if in.Settings.TimeoutMs > 0 {
		if configured := time.Duration(in.Settings.TimeoutMs) * time.Millisecond; configured < timeout {
			timeout = configured
		}
	}

	start := time.Now()
	result := c.chat.Complete(ctx, openrouter.CompletionRequest{
		Messages:    messages,
		Model:       in.Settings.ModelID,
		Timeout:     timeout,
		Temperature: assessTemperature,
		MaxTokens:   assessMaxTokens,
	})
	latency := time.Since(start)
	metrics.ClassifierLatency.Observe(latency.Seconds())

	if !result.Success || result.Content == "" {
		errMsg := result.Err
		if errMsg == "" {
			errMsg = "LLM returned empty response"
		}
		metrics.ClassifierFailures.WithLabelValues("call_failed").Inc()
		c.log.Warn("classifier call failed",
			zap.String("error", errMsg),
			zap.Duration("latency", latency),
		)
		return LLMResult{
			Success:      false,
			Err:          errMsg,
			LatencyMs:    latency.Milliseconds(),
			RedactedText: redacted,
		}
	}

	verdict, err := ParseVerdict(result.Content)
	if err != nil {
		metrics.ClassifierFailures.WithLabelValues("parse_failed").Inc()
		c.log.Warn("classifier response unparseable",
			zap.Error(err),
			zap.String("model", result.Model),
		)
		return LLMResult{
			Success:      false,
			Err:          "failed to parse LLM response: " + err.Error(),
			Model:        result.Model,
			LatencyMs:    latency.Milliseconds(),
			RedactedText: redacted,
		}
	}

	return LLMResult{
		Success:      true,
		Response:     verdict,
		Model:        result.Model,
		LatencyMs:    latency.Milliseconds(),
		RedactedText: redacted,
	}
}
