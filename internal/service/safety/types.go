// Package safety implements the comment content-risk pipeline: PII
// redaction, corpus retrieval, LLM classification, and the fail-closed
// decision engine that gates user comments before they become visible.
package safety

import "time"

// Decision is the safety engine verdict for a comment.
type Decision string

const (
	// DecisionApproved means the comment is visible immediately.
	DecisionApproved Decision = "APPROVED"
	// DecisionHeld means the comment is stored but hidden pending review.
	DecisionHeld Decision = "HELD"
	// DecisionRejected means the comment is not stored at all.
	DecisionRejected Decision = "REJECTED"
)

// RiskLevel is the classifier's assessed risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// HumanLabel is a reviewer's verdict on an assessment.
type HumanLabel string

const (
	LabelTruePositive  HumanLabel = "True_Positive"
	LabelFalsePositive HumanLabel = "False_Positive"
	LabelTrueNegative  HumanLabel = "True_Negative"
	LabelFalseNegative HumanLabel = "False_Negative"
)

// ValidHumanLabel reports whether l is one of the four review labels.
func ValidHumanLabel(l HumanLabel) bool {
	switch l {
	case LabelTruePositive, LabelFalsePositive, LabelTrueNegative, LabelFalseNegative:
		return true
	}
	return false
}

// RAGContext is one weighted corpus match fed into the classifier prompt.
type RAGContext struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Verdict is the parsed structured response from the LLM classifier.
type Verdict struct {
	RiskLevel  RiskLevel `json:"risk_level"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
}

// Settings is the safety engine configuration, read before every check.
type Settings struct {
	Enabled   bool   `json:"enabled"`
	ModelID   string `json:"modelId"`
	TimeoutMs int    `json:"timeoutMs"`
}

// AssessmentDraft captures one evaluation run. It is built by the decision
// engine and persisted by the caller.
type AssessmentDraft struct {
	Layer1Hit     string
	Layer2Context []RAGContext
	AIRiskLevel   RiskLevel
	Confidence    *float64
	AIReason      string
	LatencyMs     int64
	Decision      Decision
}

// CheckResult is the outcome of a full safety check.
type CheckResult struct {
	Decision        Decision
	IsApproved      bool
	Message         string
	AssessmentDraft *AssessmentDraft
}

// CorpusKind distinguishes the two corpus partitions.
type CorpusKind string

const (
	CorpusKindSlang CorpusKind = "slang"
	CorpusKindCase  CorpusKind = "case"
)

// Corpus item statuses. Only active items participate in retrieval.
const (
	CorpusStatusDraft    = "draft"
	CorpusStatusActive   = "active"
	CorpusStatusArchived = "archived"
)

// CorpusItem is a curated labeled example used for Layer 2 retrieval.
type CorpusItem struct {
	ID        string
	Kind      CorpusKind
	Label     string
	Content   string
	Status    string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assessment is a persisted evaluation record. Immutable except HumanLabel.
type Assessment struct {
	ID            string
	CommentID     string
	Layer1Hit     string
	Layer2Context []RAGContext
	AIRiskLevel   RiskLevel
	Confidence    *float64
	AIReason      string
	LatencyMs     int64
	Decision      Decision
	HumanLabel    HumanLabel
	LabeledBy     string
	CreatedAt     time.Time
}

// QueueItem is a HELD comment joined with its latest assessment.
type QueueItem struct {
	CommentID      string
	Content        string
	TargetType     string
	TargetID       string
	UserID         string
	SubmittedAt    time.Time
	AssessmentID   string
	AIRiskLevel    RiskLevel
	Confidence     *float64
	Layer1Hit      string
	HumanLabel     HumanLabel
	AssessmentTime time.Time
}

// QueueFilters narrows the review queue.
type QueueFilters struct {
	RiskLevel  RiskLevel
	Unlabeled  bool
	TargetType string
	Limit      int
	Offset     int
}
