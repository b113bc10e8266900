package safety

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lumacms/lumacms/internal/service/search"
)

// CommentModerator is the slice of the comment store the admin surface
// needs: flip visibility of a held comment, or delete it outright.
type CommentModerator interface {
	SetApproved(ctx context.Context, commentID string, approved bool) error
	Delete(ctx context.Context, commentID string) error
}

// PromoteInput creates a corpus item from labeled text.
type PromoteInput struct {
	Text     string
	Label    string
	Kind     CorpusKind
	Activate bool
}

// AdminService is the moderation surface used by human reviewers: queue
// inspection, labeling, approve/reject of held comments, and corpus curation.
type AdminService struct {
	log      *zap.Logger
	repo     Repository
	comments CommentModerator
	index    search.Indexer
}

// NewAdminService wires the admin surface.
func NewAdminService(repo Repository, comments CommentModerator, index search.Indexer, log *zap.Logger) *AdminService {
	return &AdminService{
		log:      log.With(zap.String("module", "safety.admin")),
		repo:     repo,
		comments: comments,
		index:    index,
	}
}

// FetchQueue returns HELD comments with their latest assessment.
func (s *AdminService) FetchQueue(ctx context.Context, filters QueueFilters) ([]QueueItem, int, error) {
	items, total, err := s.repo.QueueItems(ctx, filters)
	if err != nil {
		s.log.Error("failed to fetch safety queue", zap.Error(err))
		return nil, 0, err
	}
	return items, total, nil
}

// GetAssessmentDetail fetches one assessment for the review screen.
func (s *AdminService) GetAssessmentDetail(ctx context.Context, assessmentID string) (*Assessment, error) {
	if assessmentID == "" {
		return nil, fmt.Errorf("assessment id is required")
	}
	return s.repo.GetAssessment(ctx, assessmentID)
}

// LabelAssessment records reviewer feedback. Re-labeling overwrites;
// last write wins.
func (s *AdminService) LabelAssessment(ctx context.Context, assessmentID string, label HumanLabel, labeledBy string) error {
	if !ValidHumanLabel(label) {
		return fmt.Errorf("invalid human label %q", label)
	}
	if err := s.repo.LabelAssessment(ctx, assessmentID, label, labeledBy); err != nil {
		s.log.Error("failed to label assessment",
			zap.String("assessment_id", assessmentID),
			zap.Error(err),
		)
		return err
	}
	s.log.Info("assessment labeled",
		zap.String("assessment_id", assessmentID),
		zap.String("label", string(label)),
		zap.String("labeled_by", labeledBy),
	)
	return nil
}

// ApproveComment transitions a HELD comment to publicly visible.
func (s *AdminService) ApproveComment(ctx context.Context, commentID string) error {
	if commentID == "" {
		return fmt.Errorf("comment id is required")
	}
	if err := s.comments.SetApproved(ctx, commentID, true); err != nil {
		s.log.Error("failed to approve comment", zap.String("comment_id", commentID), zap.Error(err))
		return err
	}
	s.log.Info("held comment approved", zap.String("comment_id", commentID))
	return nil
}

// RejectComment deletes a HELD comment.
func (s *AdminService) RejectComment(ctx context.Context, commentID string) error {
	if commentID == "" {
		return fmt.Errorf("comment id is required")
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		s.log.Error("failed to reject comment", zap.String("comment_id", commentID), zap.Error(err))
		return err
	}
	s.log.Info("held comment rejected", zap.String("comment_id", commentID))
	return nil
}

// PromoteToCorpus creates a corpus item from labeled text, draft unless
// Activate is set. Active items are indexed for retrieval immediately.
func (s *AdminService) PromoteToCorpus(ctx context.Context, in PromoteInput, createdBy string) (string, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" || in.Label == "" {
		return "", fmt.Errorf("text and label are required")
	}
	if in.Kind != CorpusKindSlang && in.Kind != CorpusKindCase {
		return "", fmt.Errorf("invalid corpus kind %q", in.Kind)
	}

	status := CorpusStatusDraft
	if in.Activate {
		status = CorpusStatusActive
	}

	// Corpus entries must never carry PII into the embedding index.
	redacted := Redact(text).Text

	id, err := s.repo.InsertCorpusItem(ctx, CorpusItem{
		Kind:      in.Kind,
		Label:     in.Label,
		Content:   redacted,
		Status:    status,
		CreatedBy: createdBy,
	})
	if err != nil {
		s.log.Error("failed to insert corpus item", zap.Error(err))
		return "", err
	}

	if status == CorpusStatusActive {
		if err := s.index.Index(ctx, targetTypeFor(in.Kind), id, redacted); err != nil {
			// Item exists but is unsearchable; surface for re-index.
			s.log.Error("failed to index corpus item",
				zap.String("item_id", id),
				zap.Error(err),
			)
		}
	}

	s.log.Info("corpus item created",
		zap.String("item_id", id),
		zap.String("kind", string(in.Kind)),
		zap.String("status", status),
	)
	return id, nil
}

// UpdateCorpusItem rewrites an item and refreshes or removes its index entry
// according to the new status.
func (s *AdminService) UpdateCorpusItem(ctx context.Context, item CorpusItem) error {
	if item.ID == "" {
		return fmt.Errorf("corpus item id is required")
	}
	item.Content = Redact(item.Content).Text
	if err := s.repo.UpdateCorpusItem(ctx, item); err != nil {
		s.log.Error("failed to update corpus item", zap.String("item_id", item.ID), zap.Error(err))
		return err
	}
	if item.Status == CorpusStatusActive {
		if err := s.index.Index(ctx, targetTypeFor(item.Kind), item.ID, item.Content); err != nil {
			s.log.Error("failed to re-index corpus item", zap.String("item_id", item.ID), zap.Error(err))
		}
	} else {
		if err := s.index.Remove(ctx, targetTypeFor(item.Kind), item.ID); err != nil {
			s.log.Warn("failed to drop corpus item from index", zap.String("item_id", item.ID), zap.Error(err))
		}
	}
	return nil
}

// DeleteCorpusItem removes an item and its index entry.
func (s *AdminService) DeleteCorpusItem(ctx context.Context, id string, kind CorpusKind) error {
	if id == "" {
		return fmt.Errorf("corpus item id is required")
	}
	if err := s.repo.DeleteCorpusItem(ctx, id); err != nil {
		s.log.Error("failed to delete corpus item", zap.String("item_id", id), zap.Error(err))
		return err
	}
	if err := s.index.Remove(ctx, targetTypeFor(kind), id); err != nil {
		s.log.Warn("failed to drop corpus item from index", zap.String("item_id", id), zap.Error(err))
	}
	return nil
}

// ListCorpusItems pages the corpus for the admin screen.
func (s *AdminService) ListCorpusItems(ctx context.Context, kind, status string, limit, offset int) ([]CorpusItem, int, error) {
	return s.repo.ListCorpusItems(ctx, kind, status, limit, offset)
}

func targetTypeFor(kind CorpusKind) string {
	if kind == CorpusKindCase {
		return TargetTypeCase
	}
	return TargetTypeSlang
}
