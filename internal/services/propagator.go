package services

import (
	"context"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-vote-backend/internal/cache"
	"github.com/tbourn/go-vote-backend/internal/domain"
	"github.com/tbourn/go-vote-backend/internal/events"
	"github.com/tbourn/go-vote-backend/internal/repo"
	"github.com/tbourn/go-vote-backend/internal/search"
)

const rebuildBatch = 500

// Propagator keeps the search index and the cache consistent with guide
// changes. It is best-effort: failures are logged and the scheduled rebuild
// converges the index.
type Propagator struct {
	DB    *gorm.DB
	Index search.Indexer
	Cache cache.Cache
}

// Register subscribes the propagator to guide events.
func (p *Propagator) Register(bus *events.Bus) {
	bus.Subscribe(events.TopicGuideCreated, "search.index", p.onGuideCreated)
	bus.Subscribe(events.TopicGuideDeleted, "search.delete", p.onGuideDeleted)
	bus.Subscribe(events.TopicGuideBulkChanged, "search.rebuild", p.onBulkChanged)
}

func (p *Propagator) onGuideCreated(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.GuideCreated)
	if !ok {
		return nil
	}
	// The vote view carries guideGenerated.
	p.invalidate(ctx, cache.VoteKey(e.VoteID))

	g, err := repo.GetGuide(ctx, p.DB, e.GuideID)
	if err != nil {
		return err
	}
	return p.Index.IndexGuide(ctx, guideDoc(g))
}

func (p *Propagator) onGuideDeleted(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.GuideDeleted)
	if !ok {
		return nil
	}
	p.invalidate(ctx, cache.GuideKey(e.GuideID), cache.VoteKey(e.VoteID))
	return p.Index.DeleteGuide(ctx, e.GuideID)
}

func (p *Propagator) onBulkChanged(ctx context.Context, ev events.Event) error {
	if p.Cache != nil {
		if _, err := p.Cache.Flush(ctx); err != nil {
			logger(ctx).Warn().Err(err).Msg("cache flush failed")
		}
	}
	return p.Rebuild(ctx)
}

// Rebuild replaces the index with every stored guide. It also serves as the
// startup and scheduled reconciliation.
func (p *Propagator) Rebuild(ctx context.Context) error {
	tr := otel.Tracer("services/Propagator")
	ctx, span := tr.Start(ctx, "Rebuild")
	defer span.End()

	var docs []search.GuideDoc
	for offset := 0; ; offset += rebuildBatch {
		page, err := repo.ListGuidesPage(ctx, p.DB, offset, rebuildBatch)
		if err != nil {
			span.RecordError(err)
			return err
		}
		for i := range page {
			docs = append(docs, guideDoc(&page[i]))
		}
		if len(page) < rebuildBatch {
			break
		}
	}
	span.SetAttributes(attribute.Int("search.docs", len(docs)))
	if err := p.Index.ReindexAll(ctx, docs); err != nil {
		span.RecordError(err)
		return err
	}
	logger(ctx).Info().Str("component", "search").Int("docs", len(docs)).Msg("search index rebuilt")
	return nil
}

func (p *Propagator) invalidate(ctx context.Context, keys ...string) {
	if p.Cache == nil {
		return
	}
	if err := p.Cache.Delete(ctx, keys...); err != nil {
		logger(ctx).Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

func guideDoc(g *domain.Guide) search.GuideDoc {
	return search.GuideDoc{
		ID:       g.ID,
		VoteID:   g.VoteID,
		Category: g.Category,
		Title:    g.Title,
		Content:  g.Content,
	}
}
