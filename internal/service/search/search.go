// Package search provides semantic similarity search over embedded content.
// The safety pipeline uses it for corpus retrieval; corpus admin actions use
// it to index and remove items.
package search

import "context"

// Match is one similarity-search hit.
type Match struct {
	TargetID   string
	Similarity float64
}

// Query scopes a similarity search to one or more target partitions.
type Query struct {
	Query       string
	TargetTypes []string
	Limit       int
	Threshold   float64
}

// Searcher performs semantic similarity search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Match, error)
}

// Indexer maintains the embedding index for a target partition.
type Indexer interface {
	Index(ctx context.Context, targetType, targetID, content string) error
	Remove(ctx context.Context, targetType, targetID string) error
}
