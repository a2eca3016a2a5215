package services

import (
	"time"

	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-vote-backend/internal/ai"
	"github.com/tbourn/go-vote-backend/internal/cache"
	"github.com/tbourn/go-vote-backend/internal/config"
	"github.com/tbourn/go-vote-backend/internal/events"
	"github.com/tbourn/go-vote-backend/internal/search"
)

// EngineDeps are the collaborators of the lifecycle engine.
type EngineDeps struct {
	DB       *gorm.DB
	Bus      *events.Bus
	Cache    cache.Cache
	Search   *search.Service
	AI       ai.Generator
	Notifier Notifier
	Config   config.Config

	// Now overrides the wall clock (tests).
	Now func() time.Time
}

// Engine bundles the services and wires their event subscriptions:
//
//	VoteClosed   -> guide generation, owner notification
//	GuideCreated -> search upsert, cache invalidation, owner notification
//	GuideDeleted -> search delete, cache invalidation
//	GuideBulkChanged -> cache flush, full search rebuild
//	RevoteResolved   -> requester notification
type Engine struct {
	Votes      *VoteService
	Responses  *ResponseService
	Closure    *ClosureService
	Guides     *GuideService
	Quota      *QuotaService
	Revotes    *RevoteService
	Propagator *Propagator
	Bus        *events.Bus
}

// NewEngine builds the services and registers subscriptions on d.Bus. A nil
// bus delivers inline.
func NewEngine(d EngineDeps) *Engine {
	c := d.Cache
	if c == nil {
		c = cache.Noop{}
	}
	bus := d.Bus
	if bus == nil {
		bus = events.NewBus(nil)
	}
	idx := d.Search
	if idx == nil {
		idx = search.NewService(nil, nil)
	}
	gen := d.AI
	if gen == nil {
		gen = ai.Disabled{}
	}
	clock := Clock{Now: d.Now, Location: d.Config.Scheduler.Location}

	e := &Engine{
		Votes: &VoteService{DB: d.DB, Cache: c, Clock: clock, DefaultDays: d.Config.VoteDefaultDays},
		Responses: &ResponseService{
			DB: d.DB, Cache: c, Bus: bus, Clock: clock,
			IdempotencyTTL: d.Config.IdempotencyTTL,
		},
		Closure: &ClosureService{DB: d.DB, Bus: bus, Cache: c, Clock: clock},
		Guides: &GuideService{
			DB: d.DB, AI: gen, Bus: bus, Cache: c, Searcher: idx,
			Timeout: d.Config.AI.Timeout, TitleLocale: language.English,
		},
		Quota: &QuotaService{
			DB: d.DB, AI: gen, Clock: clock,
			Limit: d.Config.AI.DailyQuota, Timeout: d.Config.AI.Timeout,
		},
		Revotes:    &RevoteService{DB: d.DB, Bus: bus},
		Propagator: &Propagator{DB: d.DB, Index: idx, Cache: c},
		Bus:        bus,
	}

	bus.Subscribe(events.TopicVoteClosed, "guides.generate", e.Guides.HandleVoteClosed)
	e.Propagator.Register(bus)
	if d.Notifier != nil {
		(&NotificationSubscriber{DB: d.DB, Notifier: d.Notifier}).Register(bus)
	}
	return e
}
