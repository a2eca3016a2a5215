// Package search keeps the guide search index in sync with the vote store.
//
// Two backends exist: Meilisearch, when configured and reachable, and an
// in-process index that is always maintained and serves as the fallback.
// Both are written through the same Indexer surface so the propagator does
// not care which one answers queries.
//
// The in-process index scores with Jaccard similarity between the query token
// set and each guide's token set: score = |Q ∩ G| / |Q ∪ G|. Ordering is
// deterministic (score, then shorter title, then ID).
package search

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tbourn/go-vote-backend/internal/utils"
)

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords    map[string]struct{}
	snippetRunes int
}

func defaultConfig() config {
	return config{
		stopwords:    nil,
		snippetRunes: 200,
	}
}

func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithSnippetRunes caps the snippet cut from guide content.
func WithSnippetRunes(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.snippetRunes = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	GuideDoc
	text   string
	tokens map[string]struct{}
}

// MemoryIndex is a mutable, concurrency-safe guide index. The zero value is
// not usable; use NewMemoryIndex.
type MemoryIndex struct {
	cfg config

	mu   sync.RWMutex
	docs map[string]doc
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex(opts ...Option) *MemoryIndex {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &MemoryIndex{cfg: cfg, docs: make(map[string]doc)}
}

func (i *MemoryIndex) build(g GuideDoc) doc {
	text := strings.TrimSpace(normalizeWhitespace(flattenMarkdown(g.Content)))
	return doc{
		GuideDoc: g,
		text:     text,
		tokens:   tokenize(g.Title+" "+text, i.cfg.stopwords),
	}
}

// IndexGuide inserts or replaces one guide.
func (i *MemoryIndex) IndexGuide(_ context.Context, g GuideDoc) error {
	d := i.build(g)
	i.mu.Lock()
	i.docs[g.ID] = d
	i.mu.Unlock()
	return nil
}

// DeleteGuide removes a guide; unknown IDs are ignored.
func (i *MemoryIndex) DeleteGuide(_ context.Context, id string) error {
	i.mu.Lock()
	delete(i.docs, id)
	i.mu.Unlock()
	return nil
}

// ReindexAll atomically replaces the whole index with docs.
func (i *MemoryIndex) ReindexAll(_ context.Context, docs []GuideDoc) error {
	next := make(map[string]doc, len(docs))
	for _, g := range docs {
		next[g.ID] = i.build(g)
	}
	i.mu.Lock()
	i.docs = next
	i.mu.Unlock()
	return nil
}

// Len reports the number of indexed guides.
func (i *MemoryIndex) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// Search ranks guides against q. A blank query text lists guides in the
// requested category ordered by title.
func (i *MemoryIndex) Search(q Query) ([]Hit, int) {
	qTokens := tokenize(q.Text, i.cfg.stopwords)
	blank := strings.TrimSpace(q.Text) == ""
	if !blank && len(qTokens) == 0 {
		return nil, 0
	}

	type scored struct {
		d     doc
		score float64
	}

	i.mu.RLock()
	buf := make([]scored, 0, len(i.docs))
	for _, d := range i.docs {
		if q.Category != "" && d.Category != q.Category {
			continue
		}
		if blank {
			buf = append(buf, scored{d: d})
			continue
		}
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(len(qTokens) + len(d.tokens) - over)
		if union <= 0 {
			continue
		}
		buf = append(buf, scored{d: d, score: float64(over) / union})
	}
	i.mu.RUnlock()

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		la, lb := utf8.RuneCountInString(buf[a].d.Title), utf8.RuneCountInString(buf[b].d.Title)
		if !blank && la != lb {
			return la < lb
		}
		if buf[a].d.Title != buf[b].d.Title {
			return buf[a].d.Title < buf[b].d.Title
		}
		return buf[a].d.ID < buf[b].d.ID
	})

	total := len(buf)
	start, end := utils.Window(total, q.Offset, q.limit())
	if start == end {
		return []Hit{}, total
	}
	out := make([]Hit, 0, end-start)
	for _, s := range buf[start:end] {
		out = append(out, Hit{
			ID:       s.d.ID,
			VoteID:   s.d.VoteID,
			Category: s.d.Category,
			Title:    s.d.Title,
			Snippet:  truncateRunes(s.d.text, i.cfg.snippetRunes),
			Score:    s.score,
		})
	}
	return out, total
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	s = strings.ToLower(s)
	words := wordRE.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
