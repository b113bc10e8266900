package safety

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lumacms/lumacms/internal/service/search"
)

type fakeSearcher struct {
	matches []search.Match
	err     error
	called  bool
	lastQ   search.Query
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) ([]search.Match, error) {
	f.called = true
	f.lastQ = q
	return f.matches, f.err
}

type fakeCorpusReader struct {
	items map[string]CorpusItem
	err   error
}

func (f *fakeCorpusReader) GetActiveCorpusItems(_ context.Context, _ []string) (map[string]CorpusItem, error) {
	return f.items, f.err
}

func TestSearchCorpus(t *testing.T) {
	searcher := &fakeSearcher{
		matches: []search.Match{
			{TargetID: "a", Similarity: 0.9},
			{TargetID: "b", Similarity: 0.7},
		},
	}
	corpus := &fakeCorpusReader{
		items: map[string]CorpusItem{
			"a": {ID: "a", Label: "gambling", Content: "娛樂城註冊送", Status: CorpusStatusActive},
			"b": {ID: "b", Label: "benign", Content: "good recipe", Status: CorpusStatusActive},
		},
	}
	r := NewRetriever(searcher, corpus, zaptest.NewLogger(t))

	out := r.SearchCorpus(context.Background(), "some redacted text", DefaultRAGOptions())

	require.Len(t, out, 2)
	// Searcher order is preserved.
	assert.Equal(t, "娛樂城註冊送", out[0].Text)
	assert.Equal(t, 0.9, out[0].Score)
	assert.Equal(t, "good recipe", out[1].Text)

	assert.Equal(t, 3, searcher.lastQ.Limit)
	assert.Equal(t, 0.5, searcher.lastQ.Threshold)
	assert.ElementsMatch(t, []string{TargetTypeSlang, TargetTypeCase}, searcher.lastQ.TargetTypes)
}

func TestSearchCorpusEmptyInput(t *testing.T) {
	searcher := &fakeSearcher{}
	r := NewRetriever(searcher, &fakeCorpusReader{}, zaptest.NewLogger(t))

	out := r.SearchCorpus(context.Background(), "   ", DefaultRAGOptions())

	assert.Nil(t, out)
	assert.False(t, searcher.called)
}

func TestSearchCorpusSearchErrorSwallowed(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("pgvector down")}
	r := NewRetriever(searcher, &fakeCorpusReader{}, zaptest.NewLogger(t))

	out := r.SearchCorpus(context.Background(), "text", DefaultRAGOptions())

	assert.Nil(t, out)
}

func TestSearchCorpusResolveErrorSwallowed(t *testing.T) {
	searcher := &fakeSearcher{matches: []search.Match{{TargetID: "a", Similarity: 0.8}}}
	corpus := &fakeCorpusReader{err: errors.New("db down")}
	r := NewRetriever(searcher, corpus, zaptest.NewLogger(t))

	out := r.SearchCorpus(context.Background(), "text", DefaultRAGOptions())

	assert.Nil(t, out)
}

func TestSearchCorpusDropsInactiveItems(t *testing.T) {
	searcher := &fakeSearcher{
		matches: []search.Match{
			{TargetID: "active", Similarity: 0.9},
			{TargetID: "archived", Similarity: 0.8},
		},
	}
	// The reader only returns active items; the archived match resolves to
	// nothing and is dropped without error.
	corpus := &fakeCorpusReader{
		items: map[string]CorpusItem{
			"active": {ID: "active", Label: "gambling", Content: "x", Status: CorpusStatusActive},
		},
	}
	r := NewRetriever(searcher, corpus, zaptest.NewLogger(t))

	out := r.SearchCorpus(context.Background(), "text", DefaultRAGOptions())

	require.Len(t, out, 1)
	assert.Equal(t, "gambling", out[0].Label)
}
