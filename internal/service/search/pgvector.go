package search

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PgSearcher runs cosine-similarity queries against a pgvector embeddings
// table and maintains the index for admin writes.
type PgSearcher struct {
	db    *sql.DB
	embed Embedder
	log   *zap.Logger
}

var (
	_ Searcher = (*PgSearcher)(nil)
	_ Indexer  = (*PgSearcher)(nil)
)

// NewPgSearcher wires a searcher over a sql.DB and an embedder.
func NewPgSearcher(db *sql.DB, embed Embedder, log *zap.Logger) *PgSearcher {
	return &PgSearcher{db: db, embed: embed, log: log.With(zap.String("module", "search"))}
}

// vectorLiteral renders a vector in pgvector's input syntax.
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// Search embeds the query and returns matches at or above the similarity
// threshold, best first.
func (s *PgSearcher) Search(ctx context.Context, q Query) ([]Match, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, nil
	}
	if q.Limit <= 0 {
		q.Limit = 3
	}

	vec, err := s.embed.Embed(ctx, q.Query)
	if err != nil {
		return nil, errors.Wrap(err, "embed query")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT target_id, 1 - (embedding <=> $1::vector) AS similarity
		FROM embeddings
		WHERE target_type = ANY($2)
		  AND 1 - (embedding <=> $1::vector) >= $3
		ORDER BY embedding <=> $1::vector
		LIMIT $4`,
		vectorLiteral(vec), pq.Array(q.TargetTypes), q.Threshold, q.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "similarity query")
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.TargetID, &m.Similarity); err != nil {
			return nil, errors.Wrap(err, "scan match")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate matches")
	}
	return matches, nil
}

// Index embeds content and upserts its vector. Transient embedding failures
// are retried with exponential backoff; this runs on admin paths only, never
// on the comment-submission path.
func (s *PgSearcher) Index(ctx context.Context, targetType, targetID, content string) error {
	var vec []float32
	op := func() error {
		var err error
		vec, err = s.embed.Embed(ctx, content)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return errors.Wrap(err, "embed content")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (target_type, target_id, content, embedding, updated_at)
		VALUES ($1, $2, $3, $4::vector, now())
		ON CONFLICT (target_type, target_id)
		DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding, updated_at = now()`,
		targetType, targetID, content, vectorLiteral(vec))
	if err != nil {
		return errors.Wrap(err, "upsert embedding")
	}
	s.log.Debug("indexed embedding",
		zap.String("target_type", targetType),
		zap.String("target_id", targetID),
	)
	return nil
}

// Remove deletes the embedding row for a target.
func (s *PgSearcher) Remove(ctx context.Context, targetType, targetID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE target_type = $1 AND target_id = $2`,
		targetType, targetID)
	if err != nil {
		return errors.Wrap(err, "delete embedding")
	}
	return nil
}
