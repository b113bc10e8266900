package safety

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/lumacms/lumacms/internal/service/search"
)

const (
	defaultRAGLimit     = 3
	defaultRAGThreshold = 0.5

	// Embedding partitions for the two corpus kinds.
	TargetTypeSlang = "safety_slang"
	TargetTypeCase  = "safety_case"
)

// RAGOptions bounds a corpus retrieval.
type RAGOptions struct {
	Limit     int
	Threshold float64
}

// DefaultRAGOptions returns the standard retrieval bounds.
func DefaultRAGOptions() RAGOptions {
	return RAGOptions{Limit: defaultRAGLimit, Threshold: defaultRAGThreshold}
}

// CorpusReader resolves corpus items by ID, active items only.
type CorpusReader interface {
	GetActiveCorpusItems(ctx context.Context, ids []string) (map[string]CorpusItem, error)
}

// Retriever performs Layer 2 retrieval against the safety corpus.
type Retriever struct {
	searcher search.Searcher
	corpus   CorpusReader
	log      *zap.Logger
}

// NewRetriever wires a retriever over a similarity searcher and corpus store.
func NewRetriever(searcher search.Searcher, corpus CorpusReader, log *zap.Logger) *Retriever {
	return &Retriever{
		searcher: searcher,
		corpus:   corpus,
		log:      log.With(zap.String("module", "safety.rag")),
	}
}

// SearchCorpus retrieves weighted context for the classifier prompt. The
// input must already be PII-redacted by the caller. Every failure path
// returns an empty slice: Layer 3 can still run without retrieved context,
// so retrieval errors are swallowed, never propagated.
func (r *Retriever) SearchCorpus(ctx context.Context, deidentifiedText string, opts RAGOptions) []RAGContext {
	if strings.TrimSpace(deidentifiedText) == "" {
		return nil
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultRAGLimit
	}
	if opts.Threshold <= 0 {
		opts.Threshold = defaultRAGThreshold
	}

	matches, err := r.searcher.Search(ctx, search.Query{
		Query:       deidentifiedText,
		TargetTypes: []string{TargetTypeSlang, TargetTypeCase},
		Limit:       opts.Limit,
		Threshold:   opts.Threshold,
	})
	if err != nil {
		r.log.Warn("corpus search failed, continuing with empty context", zap.Error(err))
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.TargetID)
	}
	items, err := r.corpus.GetActiveCorpusItems(ctx, ids)
	if err != nil {
		r.log.Warn("corpus resolve failed, continuing with empty context", zap.Error(err))
		return nil
	}

	// Keep the searcher's order; matches whose item is not active are
	// silently dropped.
	var out []RAGContext
	for _, m := range matches {
		item, ok := items[m.TargetID]
		if !ok {
			continue
		}
		out = append(out, RAGContext{
			Text:  item.Content,
			Label: item.Label,
			Score: m.Similarity,
		})
	}
	return out
}
