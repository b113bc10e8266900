package safety

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lumacms/lumacms/pkg/openrouter"
)

const systemPrompt = `You are a content-safety classifier for a public blog's comment section.
Assess the risk that the comment below solicits, scams, harasses, or otherwise endangers readers.
Reply with a single JSON object and nothing else:
{"risk_level":"low"|"medium"|"high","confidence":0.0-1.0,"reason":"one short sentence"}`

// PromptMessages composes the classifier prompt from redacted comment text
// and retrieved corpus context. The context list may be empty.
func PromptMessages(redactedText string, ragContext []RAGContext) []openrouter.Message {
	var b strings.Builder
	if len(ragContext) > 0 {
		b.WriteString("Known risky examples from the moderation corpus:\n")
		for _, c := range ragContext {
			fmt.Fprintf(&b, "- [%s] (similarity %.2f) %s\n", c.Label, c.Score, c.Text)
		}
		b.WriteString("\n")
	}
	b.WriteString("Comment to assess:\n")
	b.WriteString(redactedText)

	return []openrouter.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// ParseVerdict extracts the structured verdict from a raw model response.
// It tolerates code fences and surrounding prose but requires a valid
// risk_level and an explicit confidence in [0,1]. A verdict missing either
// field is a parse failure, never a zero-value success.
func ParseVerdict(raw string) (*Verdict, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var parsed struct {
		RiskLevel  RiskLevel `json:"risk_level"`
		Confidence *float64  `json:"confidence"`
		Reason     string    `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal verdict: %w", err)
	}
	switch parsed.RiskLevel {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		return nil, fmt.Errorf("invalid risk_level %q", parsed.RiskLevel)
	}
	if parsed.Confidence == nil {
		return nil, fmt.Errorf("missing confidence")
	}
	if *parsed.Confidence < 0 || *parsed.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range", *parsed.Confidence)
	}
	return &Verdict{
		RiskLevel:  parsed.RiskLevel,
		Confidence: *parsed.Confidence,
		Reason:     parsed.Reason,
	}, nil
}
