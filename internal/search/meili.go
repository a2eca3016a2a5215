package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrUnhealthy is returned by Meili operations while the server is
// unreachable.
var ErrUnhealthy = errors.New("meilisearch unhealthy")

// Meili stores guides in a Meilisearch index.
type Meili struct {
	client  meili.ServiceManager
	uid     string
	healthy atomic.Bool
	done    chan struct{}
	logger  zerolog.Logger
}

// NewMeili creates a client for the index uid and configures it. An
// unreachable server is not an error: the health loop keeps probing and
// reconfigures the index once it recovers.
func NewMeili(url, apiKey, uid string) *Meili {
	return newMeili(meili.New(url, meili.WithAPIKey(apiKey)), uid, 10*time.Second)
}

func newMeili(client meili.ServiceManager, uid string, probe time.Duration) *Meili {
	m := &Meili{
		client: client,
		uid:    uid,
		done:   make(chan struct{}),
		logger: log.With().Str("component", "search").Str("index", uid).Logger(),
	}

	if _, err := client.Health(); err != nil {
		m.logger.Warn().Err(err).Msg("meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop(probe)
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        m.uid,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug().Err(err).Msg("create index (may already exist)")
	}

	index := m.client.Index(m.uid)
	filterable := []interface{}{"category", "vote_id"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn().Err(err).Msg("update filterable attributes")
	}
	searchable := []string{"title", "content"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn().Err(err).Msg("update searchable attributes")
	}
}

func (m *Meili) healthLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info().Msg("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexGuide adds or replaces one guide document.
func (m *Meili) IndexGuide(_ context.Context, doc GuideDoc) error {
	if !m.Healthy() {
		return ErrUnhealthy
	}
	_, err := m.client.Index(m.uid).AddDocuments([]GuideDoc{doc}, nil)
	return err
}

// DeleteGuide removes a guide document.
func (m *Meili) DeleteGuide(_ context.Context, id string) error {
	if !m.Healthy() {
		return ErrUnhealthy
	}
	_, err := m.client.Index(m.uid).DeleteDocument(id, nil)
	return err
}

// ReindexAll drops every document and pushes docs in one batch.
func (m *Meili) ReindexAll(_ context.Context, docs []GuideDoc) error {
	if !m.Healthy() {
		return ErrUnhealthy
	}
	index := m.client.Index(m.uid)
	if _, err := index.DeleteAllDocuments(nil); err != nil {
		return fmt.Errorf("meilisearch clear: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}
	_, err := index.AddDocuments(docs, nil)
	return err
}

// Search runs q against the guide index.
func (m *Meili) Search(q Query) ([]Hit, int, error) {
	if !m.Healthy() {
		return nil, 0, ErrUnhealthy
	}

	sr := &meili.SearchRequest{
		IndexUID: m.uid,
		Query:    q.Text,
		Limit:    int64(q.limit()),
		Offset:   int64(q.Offset),
	}
	if q.Category != "" {
		sr.Filter = []string{fmt.Sprintf("category = %q", q.Category)}
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{sr},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var hits []Hit
	total := 0
	for _, r := range resp.Results {
		total += int(r.EstimatedTotalHits)
		for _, h := range r.Hits {
			hits = append(hits, Hit{
				ID:       decodeString(h, "id"),
				VoteID:   decodeString(h, "vote_id"),
				Category: decodeString(h, "category"),
				Title:    decodeString(h, "title"),
				Snippet:  truncateRunes(strings.TrimSpace(decodeString(h, "content")), 200),
			})
		}
	}
	return hits, total, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
