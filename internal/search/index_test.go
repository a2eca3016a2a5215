package search

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func seedIndex(t *testing.T, opts ...Option) *MemoryIndex {
	t.Helper()
	idx := NewMemoryIndex(opts...)
	ctx := context.Background()
	docs := []GuideDoc{
		{ID: "g1", VoteID: "v1", Category: "travel", Title: "Best beach in summer", Content: "Most voters picked the **beach**."},
		{ID: "g2", VoteID: "v2", Category: "travel", Title: "Mountain trips", Content: "| option | votes |\n|---|---|\n| mountain | 7 |"},
		{ID: "g3", VoteID: "v3", Category: "food", Title: "Summer dessert", Content: "Ice cream won the summer vote."},
	}
	for _, d := range docs {
		if err := idx.IndexGuide(ctx, d); err != nil {
			t.Fatalf("IndexGuide: %v", err)
		}
	}
	return idx
}

func TestOptionsAndDefaults(t *testing.T) {
	def := defaultConfig()
	if def.stopwords != nil || def.snippetRunes != 200 {
		t.Fatalf("defaultConfig unexpected: %#v", def)
	}
	cfg := def
	WithStopwords([]string{"  The ", "", "An"})(&cfg)
	if _, ok := cfg.stopwords["the"]; !ok {
		t.Fatalf("WithStopwords failed: %#v", cfg.stopwords)
	}
	cfg2 := def
	WithStopwords(nil)(&cfg2)
	if cfg2.stopwords != nil {
		t.Fatalf("empty stopwords should remain nil")
	}
	WithSnippetRunes(-1)(&cfg)
	if cfg.snippetRunes != 200 {
		t.Fatalf("non-positive snippet size should be ignored")
	}
}

func TestMemoryIndex_SearchRanksAndFilters(t *testing.T) {
	idx := seedIndex(t)

	hits, total := idx.Search(Query{Text: "summer"})
	if total != 2 || len(hits) != 2 {
		t.Fatalf("want 2 summer hits, got %d (%+v)", total, hits)
	}
	for _, h := range hits {
		if h.Score <= 0 {
			t.Fatalf("score must be positive: %+v", h)
		}
	}

	hits, total = idx.Search(Query{Text: "summer", Category: "food"})
	if total != 1 || hits[0].ID != "g3" {
		t.Fatalf("category filter failed: %+v", hits)
	}

	// table rows are flattened into searchable text
	hits, _ = idx.Search(Query{Text: "mountain 7"})
	if len(hits) == 0 || hits[0].ID != "g2" {
		t.Fatalf("table content not indexed: %+v", hits)
	}

	if hits, total := idx.Search(Query{Text: "???"}); hits != nil || total != 0 {
		t.Fatalf("punctuation-only query should match nothing")
	}
}

func TestMemoryIndex_BlankQueryListsCategoryByTitle(t *testing.T) {
	idx := seedIndex(t)
	hits, total := idx.Search(Query{Category: "travel"})
	if total != 2 || hits[0].ID != "g1" || hits[1].ID != "g2" {
		t.Fatalf("unexpected listing: %+v", hits)
	}
}

func TestMemoryIndex_Pagination(t *testing.T) {
	idx := seedIndex(t)
	hits, total := idx.Search(Query{Limit: 2, Offset: 2})
	if total != 3 || len(hits) != 1 {
		t.Fatalf("page 2 want 1 of 3, got %d of %d", len(hits), total)
	}
	hits, total = idx.Search(Query{Offset: 10})
	if total != 3 || hits == nil || len(hits) != 0 {
		t.Fatalf("offset past end should return empty page: %v %d", hits, total)
	}
}

func TestMemoryIndex_UpsertDeleteReindex(t *testing.T) {
	ctx := context.Background()
	idx := seedIndex(t)

	_ = idx.IndexGuide(ctx, GuideDoc{ID: "g1", Category: "travel", Title: "Lakes", Content: "lake"})
	if hits, _ := idx.Search(Query{Text: "beach"}); len(hits) != 0 {
		t.Fatalf("upsert should replace old tokens: %+v", hits)
	}
	_ = idx.DeleteGuide(ctx, "g3")
	_ = idx.DeleteGuide(ctx, "missing")
	if idx.Len() != 2 {
		t.Fatalf("Len = %d", idx.Len())
	}
	_ = idx.ReindexAll(ctx, []GuideDoc{{ID: "x", Title: "only"}})
	if idx.Len() != 1 {
		t.Fatalf("ReindexAll should replace everything, Len = %d", idx.Len())
	}
}

func TestMemoryIndex_StopwordsAndSnippet(t *testing.T) {
	idx := NewMemoryIndex(WithStopwords([]string{"the"}), WithSnippetRunes(5))
	_ = idx.IndexGuide(context.Background(), GuideDoc{ID: "a", Title: "the cats", Content: "abcdefghij"})
	if hits, _ := idx.Search(Query{Text: "the"}); len(hits) != 0 {
		t.Fatalf("stopword-only query should match nothing")
	}
	hits, _ := idx.Search(Query{Text: "cats"})
	if len(hits) != 1 || hits[0].Snippet != "abcde…" {
		t.Fatalf("snippet not truncated: %+v", hits)
	}
}

func TestMemoryIndex_ConcurrentAccess(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = idx.IndexGuide(ctx, GuideDoc{ID: fmt.Sprint(i), Title: "guide", Content: "shared words"})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = idx.Search(Query{Text: "shared"})
		}()
	}
	wg.Wait()
	if _, total := idx.Search(Query{Text: "shared", Limit: 100}); total != 16 {
		t.Fatalf("total = %d", total)
	}
}

func TestHelpers(t *testing.T) {
	if got := normalizeWhitespace("a \t\n b"); got != "a b" {
		t.Fatalf("normalizeWhitespace = %q", got)
	}
	if overlap(nil, map[string]struct{}{"a": {}}) != 0 {
		t.Fatalf("overlap with empty set must be 0")
	}
	if got := truncateRunes("héllo", 10); got != "héllo" {
		t.Fatalf("short strings must be kept: %q", got)
	}
}
