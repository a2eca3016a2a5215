package search

import "context"

// GuideDoc is the searchable projection of a guide.
type GuideDoc struct {
	ID       string `json:"id"`
	VoteID   string `json:"vote_id"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

// Query describes a guide search.
type Query struct {
	Text     string
	Category string // empty = all categories
	Limit    int
	Offset   int
}

// Hit is a single ranked guide.
type Hit struct {
	ID       string  `json:"id"`
	VoteID   string  `json:"vote_id"`
	Category string  `json:"category"`
	Title    string  `json:"title"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score,omitempty"`
}

// Response is the envelope returned by Service.Search.
type Response struct {
	Hits    []Hit  `json:"hits"`
	Total   int    `json:"total"`
	Query   string `json:"query"`
	Backend string `json:"backend"`
}

// Indexer is the write side the consistency propagator drives.
type Indexer interface {
	IndexGuide(ctx context.Context, doc GuideDoc) error
	DeleteGuide(ctx context.Context, id string) error
	ReindexAll(ctx context.Context, docs []GuideDoc) error
}

const defaultLimit = 20

func (q Query) limit() int {
	if q.Limit <= 0 {
		return defaultLimit
	}
	return q.Limit
}
