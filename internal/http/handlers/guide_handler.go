// Guide HTTP handlers.
//
//   - GET    /guides               (search, paginated)
//   - GET    /guides/{id}          (read)
//   - POST   /guides/{id}/revotes  (request a revote)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-vote-backend/internal/http/middleware"
	"github.com/tbourn/go-vote-backend/internal/search"
)

// SearchGuidesResponse wraps a page of ranked guides.
type SearchGuidesResponse struct {
	Hits       []search.Hit `json:"hits"`
	Query      string       `json:"query"`
	Backend    string       `json:"backend" example:"meilisearch"`
	Pagination Pagination   `json:"pagination"`
}

// CreateRevoteRequest is the JSON payload for challenging a guide.
type CreateRevoteRequest struct {
	Reason string  `json:"reason" binding:"required" example:"OUTDATED"`
	Detail *string `json:"detail,omitempty" example:"Prices changed since the vote closed"`
}

// SearchGuides godoc
// @ID          searchGuides
// @Summary     Search guides
// @Description Full-text search over generated guides, optionally restricted to one category.
// @Tags        Guides
// @Produce     json
//
// @Param       q          query  string  false  "Search text"     example(pizza)
// @Param       category   query  string  false  "Category filter" example(food)
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.SearchGuidesResponse
// @Router      /guides [get]
func (h *Handlers) SearchGuides(c *gin.Context) {
	pg := pageQuery(c)
	res := h.guides.Search(c.Request.Context(), search.Query{
		Text:     strings.TrimSpace(c.Query("q")),
		Category: strings.TrimSpace(c.Query("category")),
		Limit:    pg.Size,
		Offset:   pg.Offset(),
	})
	hits := res.Hits
	if hits == nil {
		hits = []search.Hit{}
	}
	ok(c, http.StatusOK, SearchGuidesResponse{
		Hits:       hits,
		Query:      res.Query,
		Backend:    res.Backend,
		Pagination: newPagination(pg, res.Total),
	})
}

// GetGuide godoc
// @ID          getGuide
// @Summary     Get a guide
// @Tags        Guides
// @Produce     json
//
// @Param       id  path  string  true  "Guide ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Guide
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Guide not found"
// @Router      /guides/{id} [get]
func (h *Handlers) GetGuide(c *gin.Context) {
	id, okID := uuidParam(c, "id", "guide")
	if !okID {
		return
	}
	g, err := h.guides.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, g)
}

// CreateRevote godoc
// @ID          createRevote
// @Summary     Request a revote
// @Description Files a revote request against a guide. One request per user and guide.
// @Tags        Guides
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"          example(user123)
// @Param       id         path    string  true  "Guide ID (UUID)"  format(uuid)
// @Param       body       body    handlers.CreateRevoteRequest  true  "Reason"
//
// @Success     201  {object}  domain.RevoteRequest
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing user"
// @Failure     404  {object}  handlers.ErrorResponse  "Guide not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already requested"
// @Router      /guides/{id}/revotes [post]
func (h *Handlers) CreateRevote(c *gin.Context) {
	guideID, okID := uuidParam(c, "id", "guide")
	if !okID {
		return
	}
	var req CreateRevoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reason required")
		return
	}
	r, err := h.revotes.Create(c.Request.Context(), middleware.UserID(c), guideID, req.Reason, req.Detail)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, r)
}
