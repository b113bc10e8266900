package comment

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a comment does not exist or does not belong to
// the acting user.
var ErrNotFound = errors.New("comment not found")

// PostgresRepository stores comments and their moderation records.
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a comment repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new comment and fills in its generated fields.
func (r *PostgresRepository) Insert(ctx context.Context, c *Comment) error {
	c.ID = uuid.New().String()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO comments (
			id, target_type, target_id, user_id, user_display_name,
			user_avatar_url, content, parent_id, is_spam, is_approved,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING created_at, updated_at`,
		c.ID, c.TargetType, c.TargetID, c.UserID, c.UserDisplayName,
		c.UserAvatarURL, c.Content, c.ParentID, c.IsSpam, c.IsApproved,
	)
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return errors.Wrap(err, "failed to insert comment")
	}
	return nil
}

// InsertModeration stores the moderation sidecar row for a comment.
func (r *PostgresRepository) InsertModeration(ctx context.Context, rec ModerationRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO comment_moderation (
			comment_id, email_hash, ip_hash, spam_score, spam_reason,
			link_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (comment_id)
		DO UPDATE SET email_hash = $2, ip_hash = $3, spam_score = $4,
			spam_reason = $5, link_count = $6`,
		rec.CommentID, rec.EmailHash, rec.IPHash, rec.SpamScore,
		rec.SpamReason, rec.LinkCount,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert moderation record")
	}
	return nil
}

// UpdateOwn rewrites a comment's content if it belongs to userID.
func (r *PostgresRepository) UpdateOwn(ctx context.Context, commentID, userID, content string) (*Comment, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE comments
		SET content = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING id, target_type, target_id, user_id, user_display_name,
			user_avatar_url, content, parent_id, is_spam, is_approved,
			created_at, updated_at`,
		commentID, userID, content,
	)
	c, err := scanComment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to update comment")
	}
	return c, nil
}

// DeleteOwn removes a comment if it belongs to userID.
func (r *PostgresRepository) DeleteOwn(ctx context.Context, commentID, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM comments WHERE id = $1 AND user_id = $2`,
		commentID, userID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to delete comment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to delete comment")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetApproved flips a comment's visibility. Used by the moderation surface.
func (r *PostgresRepository) SetApproved(ctx context.Context, commentID string, approved bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE comments SET is_approved = $2, updated_at = now() WHERE id = $1`,
		commentID, approved,
	)
	if err != nil {
		return errors.Wrap(err, "failed to set comment approval")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to set comment approval")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a comment unconditionally. Used by the moderation surface.
func (r *PostgresRepository) Delete(ctx context.Context, commentID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return errors.Wrap(err, "failed to delete comment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to delete comment")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID fetches one comment.
func (r *PostgresRepository) GetByID(ctx context.Context, commentID string) (*Comment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, target_type, target_id, user_id, user_display_name,
			user_avatar_url, content, parent_id, is_spam, is_approved,
			created_at, updated_at
		FROM comments WHERE id = $1`,
		commentID,
	)
	c, err := scanComment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get comment")
	}
	return c, nil
}

func scanComment(row *sql.Row) (*Comment, error) {
	var c Comment
	err := row.Scan(
		&c.ID, &c.TargetType, &c.TargetID, &c.UserID, &c.UserDisplayName,
		&c.UserAvatarURL, &c.Content, &c.ParentID, &c.IsSpam, &c.IsApproved,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
