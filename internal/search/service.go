package search

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Backend names reported in Response.Backend.
const (
	BackendMeili  = "meilisearch"
	BackendMemory = "memory"
)

// Service is the facade that writes every backend and answers queries from
// Meilisearch when healthy, falling back to the in-process index.
type Service struct {
	meili  *Meili
	memory *MemoryIndex
	logger zerolog.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, memory *MemoryIndex) *Service {
	if memory == nil {
		memory = NewMemoryIndex()
	}
	return &Service{
		meili:  meili,
		memory: memory,
		logger: log.With().Str("component", "search").Logger(),
	}
}

func (s *Service) meiliUp() bool { return s.meili != nil && s.meili.Healthy() }

// Search tries Meilisearch if healthy, otherwise the in-process index.
func (s *Service) Search(_ context.Context, q Query) Response {
	if s.meiliUp() {
		hits, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Hits: nonNil(hits), Total: total, Query: q.Text, Backend: BackendMeili}
		}
		s.logger.Warn().Err(err).Msg("meilisearch error, falling back to memory index")
	}
	hits, total := s.memory.Search(q)
	return Response{Hits: nonNil(hits), Total: total, Query: q.Text, Backend: BackendMemory}
}

// IndexGuide upserts doc in every backend. The in-process index is always
// updated; a Meilisearch failure is returned for the caller to log.
func (s *Service) IndexGuide(ctx context.Context, doc GuideDoc) error {
	_ = s.memory.IndexGuide(ctx, doc)
	if !s.meiliUp() {
		return nil
	}
	return s.meili.IndexGuide(ctx, doc)
}

// DeleteGuide removes a guide from every backend.
func (s *Service) DeleteGuide(ctx context.Context, id string) error {
	_ = s.memory.DeleteGuide(ctx, id)
	if !s.meiliUp() {
		return nil
	}
	return s.meili.DeleteGuide(ctx, id)
}

// ReindexAll replaces the contents of every backend with docs.
func (s *Service) ReindexAll(ctx context.Context, docs []GuideDoc) error {
	_ = s.memory.ReindexAll(ctx, docs)
	if !s.meiliUp() {
		return nil
	}
	if err := s.meili.ReindexAll(ctx, docs); err != nil {
		return errors.Join(errors.New("meilisearch reindex"), err)
	}
	return nil
}

// Close stops background work of the Meilisearch client.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

var _ Indexer = (*Service)(nil)
var _ Indexer = (*MemoryIndex)(nil)
var _ Indexer = (*Meili)(nil)

func nonNil(h []Hit) []Hit {
	if h == nil {
		return []Hit{}
	}
	return h
}
