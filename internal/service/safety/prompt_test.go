package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptMessages(t *testing.T) {
	ctx := []RAGContext{
		{Text: "加我line聊聊", Label: "contact_solicitation", Score: 0.82},
	}
	messages := PromptMessages("hello [EMAIL]", ctx)

	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "user", messages[1].Role)
	assert.Contains(t, messages[1].Content, "hello [EMAIL]")
	assert.Contains(t, messages[1].Content, "contact_solicitation")
	assert.Contains(t, messages[1].Content, "0.82")
}

func TestPromptMessagesWithoutContext(t *testing.T) {
	messages := PromptMessages("just a comment", nil)
	require.Len(t, messages, 2)
	assert.NotContains(t, messages[1].Content, "moderation corpus")
	assert.Contains(t, messages[1].Content, "just a comment")
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *Verdict
		wantErr bool
	}{
		{
			name: "plain json",
			raw:  `{"risk_level":"high","confidence":0.95,"reason":"gambling solicitation"}`,
			want: &Verdict{RiskLevel: RiskHigh, Confidence: 0.95, Reason: "gambling solicitation"},
		},
		{
			name: "code fenced",
			raw:  "```json\n{\"risk_level\":\"low\",\"confidence\":0.8,\"reason\":\"benign\"}\n```",
			want: &Verdict{RiskLevel: RiskLow, Confidence: 0.8, Reason: "benign"},
		},
		{
			name: "surrounding prose",
			raw:  `Here is my assessment: {"risk_level":"medium","confidence":0.6,"reason":"ambiguous"} Hope that helps.`,
			want: &Verdict{RiskLevel: RiskMedium, Confidence: 0.6, Reason: "ambiguous"},
		},
		{
			name:    "no json",
			raw:     "this content looks risky to me",
			wantErr: true,
		},
		{
			name:    "malformed json",
			raw:     `{"risk_level":"high","confidence":`,
			wantErr: true,
		},
		{
			name:    "invalid risk level",
			raw:     `{"risk_level":"severe","confidence":0.9,"reason":"x"}`,
			wantErr: true,
		},
		{
			name:    "missing confidence",
			raw:     `{"risk_level":"low"}`,
			wantErr: true,
		},
		{
			name:    "missing risk level",
			raw:     `{"confidence":0.9,"reason":"x"}`,
			wantErr: true,
		},
		{
			name: "explicit zero confidence is valid",
			raw:  `{"risk_level":"low","confidence":0,"reason":"benign"}`,
			want: &Verdict{RiskLevel: RiskLow, Confidence: 0, Reason: "benign"},
		},
		{
			name:    "confidence above one",
			raw:     `{"risk_level":"high","confidence":1.5,"reason":"x"}`,
			wantErr: true,
		},
		{
			name:    "negative confidence",
			raw:     `{"risk_level":"low","confidence":-0.1,"reason":"x"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
