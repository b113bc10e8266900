package safety

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Repository is the persistence surface for assessments and corpus items.
type Repository interface {
	PersistAssessment(ctx context.Context, commentID string, draft AssessmentDraft) (string, error)
	LabelAssessment(ctx context.Context, assessmentID string, label HumanLabel, labeledBy string) error
	GetAssessment(ctx context.Context, assessmentID string) (*Assessment, error)
	QueueItems(ctx context.Context, filters QueueFilters) ([]QueueItem, int, error)

	GetActiveCorpusItems(ctx context.Context, ids []string) (map[string]CorpusItem, error)
	InsertCorpusItem(ctx context.Context, item CorpusItem) (string, error)
	UpdateCorpusItem(ctx context.Context, item CorpusItem) error
	SetCorpusItemStatus(ctx context.Context, id, status string) error
	DeleteCorpusItem(ctx context.Context, id string) error
	ListCorpusItems(ctx context.Context, kind, status string, limit, offset int) ([]CorpusItem, int, error)
}

// PostgresRepository implements Repository over Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// PersistAssessment inserts an assessment row and points the comment's
// moderation record at it as the latest assessment.
func (r *PostgresRepository) PersistAssessment(ctx context.Context, commentID string, draft AssessmentDraft) (string, error) {
	contextJSON, err := json.Marshal(draft.Layer2Context)
	if err != nil {
		return "", errors.Wrap(err, "marshal layer2 context")
	}

	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO safety_assessments
			(id, comment_id, layer1_hit, layer2_context, ai_risk_level, confidence, ai_reason, latency_ms, decision, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, $9, now())`,
		id, commentID, draft.Layer1Hit, contextJSON, string(draft.AIRiskLevel),
		draft.Confidence, draft.AIReason, draft.LatencyMs, string(draft.Decision))
	if err != nil {
		return "", errors.Wrap(err, "insert assessment")
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE comment_moderation SET latest_assessment_id = $1, updated_at = now() WHERE comment_id = $2`,
		id, commentID)
	if err != nil {
		return id, errors.Wrap(err, "set latest assessment pointer")
	}
	return id, nil
}

// LabelAssessment overwrites the human label; last write wins.
func (r *PostgresRepository) LabelAssessment(ctx context.Context, assessmentID string, label HumanLabel, labeledBy string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE safety_assessments SET human_label = $1, labeled_by = $2 WHERE id = $3`,
		string(label), labeledBy, assessmentID)
	if err != nil {
		return errors.Wrap(err, "label assessment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetAssessment fetches one assessment by ID.
func (r *PostgresRepository) GetAssessment(ctx context.Context, assessmentID string) (*Assessment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, comment_id, COALESCE(layer1_hit, ''), layer2_context,
		       COALESCE(ai_risk_level, ''), confidence, COALESCE(ai_reason, ''),
		       latency_ms, decision, COALESCE(human_label, ''), COALESCE(labeled_by, ''), created_at
		FROM safety_assessments WHERE id = $1`, assessmentID)

	var a Assessment
	var contextJSON []byte
	var riskLevel, decision, humanLabel string
	if err := row.Scan(&a.ID, &a.CommentID, &a.Layer1Hit, &contextJSON, &riskLevel,
		&a.Confidence, &a.AIReason, &a.LatencyMs, &decision, &humanLabel, &a.LabeledBy, &a.CreatedAt); err != nil {
		return nil, errors.Wrap(err, "get assessment")
	}
	a.AIRiskLevel = RiskLevel(riskLevel)
	a.Decision = Decision(decision)
	a.HumanLabel = HumanLabel(humanLabel)
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &a.Layer2Context); err != nil {
			a.Layer2Context = nil
		}
	}
	return &a, nil
}

// QueueItems returns HELD comments joined with their latest assessment.
// Filters are optional and composed dynamically.
func (r *PostgresRepository) QueueItems(ctx context.Context, filters QueueFilters) ([]QueueItem, int, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	base := psql.Select().
		From("comments c").
		Join("comment_moderation m ON m.comment_id = c.id").
		Join("safety_assessments a ON a.id = m.latest_assessment_id").
		Where(sq.Eq{"c.is_approved": false}).
		Where(sq.Eq{"a.decision": string(DecisionHeld)})

	if filters.RiskLevel != "" {
		base = base.Where(sq.Eq{"a.ai_risk_level": string(filters.RiskLevel)})
	}
	if filters.Unlabeled {
		base = base.Where("a.human_label IS NULL")
	}
	if filters.TargetType != "" {
		base = base.Where(sq.Eq{"c.target_type": filters.TargetType})
	}

	countSQL, countArgs, err := base.Columns("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "build count query")
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count queue items")
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	listSQL, listArgs, err := base.Columns(
		"c.id", "c.content", "c.target_type", "c.target_id", "c.user_id", "c.created_at",
		"a.id", "COALESCE(a.ai_risk_level, '')", "a.confidence",
		"COALESCE(a.layer1_hit, '')", "COALESCE(a.human_label, '')", "a.created_at").
		OrderBy("c.created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(filters.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "build queue query")
	}

	rows, err := r.db.QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "query queue items")
	}
	defer rows.Close()

	var items []QueueItem
	for rows.Next() {
		var it QueueItem
		var riskLevel, humanLabel string
		if err := rows.Scan(&it.CommentID, &it.Content, &it.TargetType, &it.TargetID,
			&it.UserID, &it.SubmittedAt, &it.AssessmentID, &riskLevel,
			&it.Confidence, &it.Layer1Hit, &humanLabel, &it.AssessmentTime); err != nil {
			return nil, 0, errors.Wrap(err, "scan queue item")
		}
		it.AIRiskLevel = RiskLevel(riskLevel)
		it.HumanLabel = HumanLabel(humanLabel)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate queue items")
	}
	return items, total, nil
}

// GetActiveCorpusItems resolves corpus items by ID, active only.
func (r *PostgresRepository) GetActiveCorpusItems(ctx context.Context, ids []string) (map[string]CorpusItem, error) {
	result := make(map[string]CorpusItem)
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, label, content, status, COALESCE(created_by, ''), created_at, updated_at
		FROM safety_corpus_items
		WHERE id = ANY($1) AND status = $2`,
		pq.Array(ids), CorpusStatusActive)
	if err != nil {
		return nil, errors.Wrap(err, "query corpus items")
	}
	defer rows.Close()

	for rows.Next() {
		var item CorpusItem
		var kind string
		if err := rows.Scan(&item.ID, &kind, &item.Label, &item.Content,
			&item.Status, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan corpus item")
		}
		item.Kind = CorpusKind(kind)
		result[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate corpus items")
	}
	return result, nil
}

// InsertCorpusItem creates a new corpus item and returns its ID.
func (r *PostgresRepository) InsertCorpusItem(ctx context.Context, item CorpusItem) (string, error) {
	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO safety_corpus_items (id, kind, label, content, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		id, string(item.Kind), item.Label, item.Content, item.Status, item.CreatedBy)
	if err != nil {
		return "", errors.Wrap(err, "insert corpus item")
	}
	return id, nil
}

// UpdateCorpusItem rewrites label, content, and status.
func (r *PostgresRepository) UpdateCorpusItem(ctx context.Context, item CorpusItem) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE safety_corpus_items
		SET label = $1, content = $2, status = $3, updated_at = now()
		WHERE id = $4`,
		item.Label, item.Content, item.Status, item.ID)
	return errors.Wrap(err, "update corpus item")
}

// SetCorpusItemStatus changes only the status.
func (r *PostgresRepository) SetCorpusItemStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE safety_corpus_items SET status = $1, updated_at = now() WHERE id = $2`,
		status, id)
	return errors.Wrap(err, "set corpus item status")
}

// DeleteCorpusItem removes a corpus item row.
func (r *PostgresRepository) DeleteCorpusItem(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM safety_corpus_items WHERE id = $1`, id)
	return errors.Wrap(err, "delete corpus item")
}

// ListCorpusItems pages through corpus items, optionally filtered.
func (r *PostgresRepository) ListCorpusItems(ctx context.Context, kind, status string, limit, offset int) ([]CorpusItem, int, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	base := psql.Select().From("safety_corpus_items")
	if kind != "" {
		base = base.Where(sq.Eq{"kind": kind})
	}
	if status != "" {
		base = base.Where(sq.Eq{"status": status})
	}

	countSQL, countArgs, err := base.Columns("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "build count query")
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count corpus items")
	}

	if limit <= 0 {
		limit = 20
	}
	listSQL, listArgs, err := base.Columns(
		"id", "kind", "label", "content", "status", "COALESCE(created_by, '')", "created_at", "updated_at").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "build list query")
	}

	rows, err := r.db.QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "query corpus items")
	}
	defer rows.Close()

	var items []CorpusItem
	for rows.Next() {
		var item CorpusItem
		var k string
		if err := rows.Scan(&item.ID, &k, &item.Label, &item.Content,
			&item.Status, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, 0, errors.Wrap(err, "scan corpus item")
		}
		item.Kind = CorpusKind(k)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate corpus items")
	}
	return items, total, nil
}
