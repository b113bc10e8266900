package safety

import (
	"context"

	"go.uber.org/zap"

	"github.com/lumacms/lumacms/pkg/metrics"
)

// rejectConfidence is the confidence above which a high-risk verdict rejects
// outright instead of holding for review. Tunable; kept deliberately high so
// borderline content lands in the human queue.
const rejectConfidence = 0.9

// User-facing messages, distinct per decision.
const (
	msgApproved = "Comment posted successfully!"
	msgHeld     = "Your comment has been submitted and is pending review."
	msgRejected = "Your comment could not be posted."
)

// corpusRetriever is Layer 2 as seen by the engine.
type corpusRetriever interface {
	SearchCorpus(ctx context.Context, deidentifiedText string, opts RAGOptions) []RAGContext
}

// riskAssessor is Layer 3 as seen by the engine.
type riskAssessor interface {
	Assess(ctx context.Context, in LLMInput) LLMResult
}

// Engine orchestrates the three safety layers and applies fail-closed
// policy: any uncertainty biases toward HELD, never silent approval.
type Engine struct {
	log       *zap.Logger
	rules     *RuleSet
	retriever corpusRetriever
	assessor  riskAssessor
}

// NewEngine wires the decision engine. The settings value is passed into
// each check by the caller, keeping the engine free of hidden shared state.
func NewEngine(rules *RuleSet, retriever corpusRetriever, assessor riskAssessor, log *zap.Logger) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{
		log:       log.With(zap.String("module", "safety.engine")),
		rules:     rules,
		retriever: retriever,
		assessor:  assessor,
	}
}

// RunSafetyCheck evaluates content through all three layers and resolves to
// exactly one of APPROVED, HELD, or REJECTED. It never returns an error;
// anything unexpected inside the layers maps to HELD by policy.
func (e *Engine) RunSafetyCheck(ctx context.Context, content string, settings Settings) (result CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("safety check panicked, failing closed", zap.Any("panic", r))
			result = CheckResult{
				Decision:        DecisionHeld,
				IsApproved:      false,
				Message:         msgHeld,
				AssessmentDraft: &AssessmentDraft{Decision: DecisionHeld},
			}
		}
		metrics.SafetyDecisions.WithLabelValues(string(result.Decision)).Inc()
	}()

	// Layer 1: deterministic rule match. Advisory evidence only.
	layer1Hit := e.rules.Match(content)

	// Layer 2: corpus retrieval over the redacted text.
	redacted := Redact(content).Text
	ragContext := e.retriever.SearchCorpus(ctx, redacted, DefaultRAGOptions())

	// Layer 3: LLM classification.
	llmResult := e.assessor.Assess(ctx, LLMInput{
		Comment:    content,
		RAGContext: ragContext,
		Settings:   settings,
	})

	draft := &AssessmentDraft{
		Layer1Hit:     layer1Hit,
		Layer2Context: ragContext,
		LatencyMs:     llmResult.LatencyMs,
	}

	if !llmResult.Success {
		// Fail closed: unavailable or untrustworthy classifier output
		// never approves and never rejects.
		e.log.Warn("classifier unavailable, holding comment",
			zap.String("error", llmResult.Err),
			zap.String("layer1_hit", layer1Hit),
		)
		draft.AIReason = llmResult.Err
		draft.Decision = DecisionHeld
		return CheckResult{
			Decision:        DecisionHeld,
			IsApproved:      false,
			Message:         msgHeld,
			AssessmentDraft: draft,
		}
	}

	verdict := llmResult.Response
	confidence := verdict.Confidence
	draft.AIRiskLevel = verdict.RiskLevel
	draft.Confidence = &confidence
	draft.AIReason = verdict.Reason

	decision := DecisionHeld
	switch verdict.RiskLevel {
	case RiskHigh:
		if verdict.Confidence >= rejectConfidence {
			decision = DecisionRejected
		}
	case RiskMedium:
		decision = DecisionHeld
	case RiskLow:
		decision = DecisionApproved
		// A rule hit escalates a low verdict to review rather than
		// letting the classifier overrule the blocklist outright.
		if layer1Hit != "" {
			decision = DecisionHeld
		}
	}
	draft.Decision = decision

	e.log.Info("safety check complete",
		zap.String("decision", string(decision)),
		zap.String("risk_level", string(verdict.RiskLevel)),
		zap.Float64("confidence", verdict.Confidence),
		zap.String("layer1_hit", layer1Hit),
		zap.Int64("latency_ms", llmResult.LatencyMs),
	)

	return CheckResult{
		Decision:        decision,
		IsApproved:      decision == DecisionApproved,
		Message:         messageFor(decision),
		AssessmentDraft: draft,
	}
}

func messageFor(d Decision) string {
	switch d {
	case DecisionApproved:
		return msgApproved
	case DecisionRejected:
		return msgRejected
	default:
		return msgHeld
	}
}
