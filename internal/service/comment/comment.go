// Package comment implements the comment write path: the spam gate, the
// safety decision engine, and persistence are sequenced here. No comment
// becomes publicly visible before both gates have completed.
package comment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lumacms/lumacms/internal/service/safety"
	"github.com/lumacms/lumacms/internal/service/spam"
	"github.com/lumacms/lumacms/pkg/metrics"
)

// TargetKind discriminates what a comment is attached to.
type TargetKind string

const (
	TargetPost        TargetKind = "post"
	TargetGalleryItem TargetKind = "gallery_item"
)

// Target is the polymorphic comment parent as a tagged variant.
type Target struct {
	Kind TargetKind
	ID   string
}

// Valid reports whether the target names a known kind and an ID.
func (t Target) Valid() bool {
	switch t.Kind {
	case TargetPost, TargetGalleryItem:
		return t.ID != ""
	}
	return false
}

// Comment is one persisted user comment.
type Comment struct {
	ID              string
	TargetType      TargetKind
	TargetID        string
	UserID          string
	UserDisplayName string
	UserAvatarURL   string
	Content         string
	ParentID        *string
	IsSpam          bool
	IsApproved      bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateParams describes one submission from the web layer.
type CreateParams struct {
	Target          Target
	UserID          string
	UserDisplayName string
	UserAvatarURL   string
	UserEmail       string
	Content         string
	ParentID        string
	UserAgent       string
	RemoteIP        string
	Honeypot        string
}

// Result is the caller-facing outcome of a write operation.
type Result struct {
	Success        bool
	Comment        *Comment
	Decision       string
	SafetyDecision safety.Decision
	Err            string
	Message        string
}

// ModerationRecord is the best-effort auxiliary row stored beside a comment.
type ModerationRecord struct {
	CommentID  string
	EmailHash  string
	IPHash     string
	SpamScore  *float64
	SpamReason *string
	LinkCount  int
}

// Repository is the persistence surface for comments.
type Repository interface {
	Insert(ctx context.Context, c *Comment) error
	InsertModeration(ctx context.Context, rec ModerationRecord) error
	UpdateOwn(ctx context.Context, commentID, userID, content string) (*Comment, error)
	DeleteOwn(ctx context.Context, commentID, userID string) error
	SetApproved(ctx context.Context, commentID string, approved bool) error
	Delete(ctx context.Context, commentID string) error
	GetByID(ctx context.Context, commentID string) (*Comment, error)
}

// safetyChecker is the decision engine as seen by the orchestrator.
type safetyChecker interface {
	RunSafetyCheck(ctx context.Context, content string, settings safety.Settings) safety.CheckResult
}

// settingsSource yields the current safety settings, read before every check.
type settingsSource interface {
	Get(ctx context.Context) safety.Settings
}

// assessmentSink persists assessment drafts and links them to their comment.
type assessmentSink interface {
	PersistAssessment(ctx context.Context, commentID string, draft safety.AssessmentDraft) (string, error)
}

// Service sequences spam gate, safety engine, and persistence.
type Service struct {
	log         *zap.Logger
	repo        Repository
	gate        spam.Checker
	engine      safetyChecker
	settings    settingsSource
	assessments assessmentSink
}

// NewService wires the comment write orchestrator.
func NewService(repo Repository, gate spam.Checker, engine safetyChecker, settings settingsSource, assessments assessmentSink, log *zap.Logger) *Service {
	return &Service{
		log:         log.With(zap.String("module", "comment")),
		repo:        repo,
		gate:        gate,
		engine:      engine,
		settings:    settings,
		assessments: assessments,
	}
}

// CreateComment runs the full pipeline. Steps execute strictly in order;
// each step's output feeds the next.
func (s *Service) CreateComment(ctx context.Context, params CreateParams) Result {
	if !params.Target.Valid() {
		return Result{Success: false, Err: "invalid target", Message: "Invalid comment target."}
	}

	// Phase 1: spam gate.
	spamResult, err := s.gate.Check(ctx, spam.Params{
		Content:     params.Content,
		DisplayName: params.UserDisplayName,
		Email:       params.UserEmail,
		TargetType:  string(params.Target.Kind),
		TargetID:    params.Target.ID,
		UserID:      params.UserID,
		UserAgent:   params.UserAgent,
		RemoteIP:    params.RemoteIP,
		Honeypot:    params.Honeypot,
	})
	if err != nil {
		// Gate infrastructure failure: treat as pending rather than
		// letting unchecked content straight through.
		s.log.Error("spam gate failed, treating submission as pending", zap.Error(err))
		spamResult.Decision = spam.DecisionPending
		spamResult.Content = params.Content
		spamResult.IsApproved = false
	}

	switch spamResult.Decision {
	case spam.DecisionReject:
		metrics.CommentSubmissions.WithLabelValues("reject").Inc()
		return Result{
			Success:  false,
			Decision: string(spam.DecisionReject),
			Err:      "Comment rejected",
			Message:  "Your comment could not be submitted. Please try again.",
		}
	case spam.DecisionRateLimited:
		metrics.CommentSubmissions.WithLabelValues("rate_limited").Inc()
		return Result{
			Success:  false,
			Decision: string(spam.DecisionRateLimited),
			Err:      "Rate limited",
			Message:  "You are commenting too frequently. Please wait a moment and try again.",
		}
	}

	// Phase 2: safety check, only when spam allows and the engine is on.
	var safetyResult *safety.CheckResult
	finalIsApproved := spamResult.IsApproved

	if spamResult.Decision == spam.DecisionAllow {
		settings := s.settings.Get(ctx)
		if settings.Enabled {
			res := s.engine.RunSafetyCheck(ctx, spamResult.Content, settings)
			safetyResult = &res

			if res.Decision == safety.DecisionRejected {
				// Nothing is persisted for a rejected comment.
				metrics.CommentSubmissions.WithLabelValues("safety_rejected").Inc()
				return Result{
					Success:        false,
					Decision:       string(spam.DecisionReject),
					SafetyDecision: safety.DecisionRejected,
					Err:            "Content rejected by safety check",
					Message:        res.Message,
				}
			}
			finalIsApproved = res.IsApproved
		}
	}

	// Phase 3: insert the comment row. This is the only fatal write.
	c := &Comment{
		TargetType:      params.Target.Kind,
		TargetID:        params.Target.ID,
		UserID:          params.UserID,
		UserDisplayName: params.UserDisplayName,
		UserAvatarURL:   params.UserAvatarURL,
		Content:         spamResult.Content,
		IsSpam:          spamResult.IsSpam,
		IsApproved:      finalIsApproved,
	}
	if params.ParentID != "" {
		parentID := params.ParentID
		c.ParentID = &parentID
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		s.log.Error("failed to insert comment", zap.Error(err))
		return Result{
			Success: false,
			Err:     err.Error(),
			Message: "Failed to submit comment. Please try again.",
		}
	}

	// Phase 4: auxiliary records, best-effort. The comment row is the
	// durable source of truth.
	if err := s.repo.InsertModeration(ctx, ModerationRecord{
		CommentID:  c.ID,
		EmailHash:  spam.HashToken(params.UserEmail),
		IPHash:     spamResult.IPHash,
		SpamScore:  spamResult.SpamScore,
		SpamReason: spamResult.SpamReason,
		LinkCount:  spamResult.LinkCount,
	}); err != nil {
		s.log.Error("failed to insert moderation record", zap.String("comment_id", c.ID), zap.Error(err))
	}

	if safetyResult != nil && safetyResult.AssessmentDraft != nil {
		if _, err := s.assessments.PersistAssessment(ctx, c.ID, *safetyResult.AssessmentDraft); err != nil {
			// Comment stays effectively held; the visible decision is
			// never upgraded retroactively.
			s.log.Error("failed to persist safety assessment, comment remains held",
				zap.String("comment_id", c.ID),
				zap.Error(err),
			)
		}
	}

	// Phase 5: response. Safety HELD messaging takes precedence over the
	// spam gate's pending messaging; safety review is the stricter gate.
	message := "Comment posted successfully!"
	responseDecision := string(spamResult.Decision)
	var safetyDecision safety.Decision
	if safetyResult != nil {
		safetyDecision = safetyResult.Decision
	}

	switch {
	case safetyResult != nil && safetyResult.Decision == safety.DecisionHeld:
		message = safetyResult.Message
		responseDecision = string(spam.DecisionPending)
	case spamResult.Decision == spam.DecisionPending:
		message = "Your comment has been submitted and is awaiting moderation."
	case spamResult.Decision == spam.DecisionSpam:
		message = "Your comment has been submitted for review."
	}

	metrics.CommentSubmissions.WithLabelValues(responseDecision).Inc()

	return Result{
		Success:        true,
		Comment:        c,
		Decision:       responseDecision,
		SafetyDecision: safetyDecision,
		Message:        message,
	}
}

// UpdateComment edits a comment; users may only edit their own.
func (s *Service) UpdateComment(ctx context.Context, commentID, userID, content string) Result {
	if commentID == "" || userID == "" {
		return Result{Success: false, Err: "comment id and user id are required"}
	}
	updated, err := s.repo.UpdateOwn(ctx, commentID, userID, content)
	if err != nil {
		s.log.Error("failed to update comment", zap.String("comment_id", commentID), zap.Error(err))
		return Result{Success: false, Err: err.Error(), Message: "Failed to update comment."}
	}
	return Result{Success: true, Comment: updated, Message: "Comment updated successfully!"}
}

// DeleteComment removes a comment; users may only delete their own.
func (s *Service) DeleteComment(ctx context.Context, commentID, userID string) Result {
	if commentID == "" || userID == "" {
		return Result{Success: false, Err: "comment id and user id are required"}
	}
	if err := s.repo.DeleteOwn(ctx, commentID, userID); err != nil {
		s.log.Error("failed to delete comment", zap.String("comment_id", commentID), zap.Error(err))
		return Result{Success: false, Err: err.Error(), Message: "Failed to delete comment."}
	}
	return Result{Success: true, Message: "Comment deleted successfully!"}
}
