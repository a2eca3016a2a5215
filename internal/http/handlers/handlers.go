// Package handlers exposes the HTTP surface of the vote engine.
//
// Handlers are transport-thin: they bind input, resolve the caller identity
// set by middleware, call application services and translate results (and
// service error kinds) into HTTP responses.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-vote-backend/internal/domain"
	"github.com/tbourn/go-vote-backend/internal/http/middleware"
	"github.com/tbourn/go-vote-backend/internal/search"
	"github.com/tbourn/go-vote-backend/internal/services"
	"github.com/tbourn/go-vote-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// VoteService defines vote lifecycle operations consumed by HTTP handlers.
type VoteService interface {
	Create(ctx context.Context, userID string, in services.CreateVoteInput) (*domain.Vote, error)
	Get(ctx context.Context, id string) (*services.VoteView, error)
	// ETag returns a validator that changes whenever the vote view changes.
	ETag(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, userID, id string) error
}

// ResponseService records a user's choice on a vote.
type ResponseService interface {
	// SubmitIdempotent records a response; with a non-empty key a retry
	// returns the stored response and replay=true.
	SubmitIdempotent(ctx context.Context, userID, voteID, optionID, key string) (*domain.VoteResponse, bool, error)
}

// GuideService defines guide reads, search and admin deletion.
type GuideService interface {
	Get(ctx context.Context, id string) (*domain.Guide, error)
	Search(ctx context.Context, q search.Query) search.Response
	Delete(ctx context.Context, id services.Identity, guideID string) error
	DeleteByCategory(ctx context.Context, id services.Identity, category string) (int64, error)
}

// RevoteService defines revote request operations.
type RevoteService interface {
	Create(ctx context.Context, userID, guideID, reason string, detail *string) (*domain.RevoteRequest, error)
	List(ctx context.Context, id services.Identity, guideID string, status domain.RevoteStatus) ([]domain.RevoteRequest, error)
	Resolve(ctx context.Context, id services.Identity, requestID string, approve bool) (*domain.RevoteRequest, error)
}

// QuotaService defines the quota-gated AI endpoints.
type QuotaService interface {
	Status(ctx context.Context, userID string) (services.QuotaStatus, error)
	SimilarOptions(ctx context.Context, userID, question string, existing []string, n int) ([]string, services.QuotaStatus, error)
}

// ClosureRunner triggers a closure sweep on demand.
type ClosureRunner interface {
	RunClosureCheck(ctx context.Context) (int, error)
}

//
// Handler wiring
//

// Services bundles the collaborators a Handlers needs.
type Services struct {
	Votes     VoteService
	Responses ResponseService
	Guides    GuideService
	Revotes   RevoteService
	Quota     QuotaService
	Closure   ClosureRunner
}

// Handlers groups HTTP endpoints for votes, guides, AI helpers and admin
// operations.
type Handlers struct {
	votes     VoteService
	responses ResponseService
	guides    GuideService
	revotes   RevoteService
	quota     QuotaService
	closure   ClosureRunner
}

// New constructs a Handlers bound to the given services.
func New(s Services) *Handlers {
	return &Handlers{
		votes:     s.Votes,
		responses: s.Responses,
		guides:    s.Guides,
		revotes:   s.Revotes,
		quota:     s.Quota,
		closure:   s.Closure,
	}
}

// FromEngine adapts a wired engine to the handler contracts.
func FromEngine(e *services.Engine) *Handlers {
	return New(Services{
		Votes:     e.Votes,
		Responses: e.Responses,
		Guides:    e.Guides,
		Revotes:   e.Revotes,
		Quota:     e.Quota,
		Closure:   e.Closure,
	})
}

// identity resolves the caller as seen by the guards in services.
func identity(c *gin.Context) services.Identity {
	return services.Identity{UserID: middleware.UserID(c), Admin: middleware.IsAdmin(c)}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

func newPagination(p utils.Page, total int) Pagination {
	pages := p.TotalPages(total)
	return Pagination{
		Page:       p.Number,
		PageSize:   p.Size,
		Total:      total,
		TotalPages: pages,
		HasNext:    p.Number < pages,
	}
}

// pageQuery reads page and page_size, defaulting to 20 items and capping at 100.
func pageQuery(c *gin.Context) utils.Page {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"), 20, 100)
}
