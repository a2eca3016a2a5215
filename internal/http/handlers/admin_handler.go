// Admin HTTP handlers.
//
// Routes live under /admin and require the X-Admin-Token header. The guards
// in services make the final decision; handlers only forward the identity.
//   - POST   /admin/closures/run
//   - DELETE /admin/guides/{id}
//   - DELETE /admin/guides?category=
//   - GET    /admin/revotes
//   - POST   /admin/revotes/{id}/approve
//   - POST   /admin/revotes/{id}/reject
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-vote-backend/internal/domain"
	"github.com/tbourn/go-vote-backend/internal/services"
)

// ClosureRunResponse reports the outcome of a manual sweep.
type ClosureRunResponse struct {
	Closed int `json:"closed" example:"2"`
}

// BulkDeleteResponse reports how many guides a bulk delete removed.
type BulkDeleteResponse struct {
	Category string `json:"category" example:"food"`
	Deleted  int64  `json:"deleted" example:"4"`
}

// ListRevotesResponse wraps revote requests.
type ListRevotesResponse struct {
	Requests []domain.RevoteRequest `json:"requests"`
}

// RunClosures godoc
// @ID          runClosures
// @Summary     Run the closure sweep now
// @Description Closes every due vote and retries guide generation for closed votes without a guide.
// @Tags        Admin
// @Produce     json
//
// @Param       X-Admin-Token  header  string  true  "Admin token"
//
// @Success     200  {object}  handlers.ClosureRunResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an admin"
// @Failure     500  {object}  handlers.ErrorResponse  "Sweep failed"
// @Router      /admin/closures/run [post]
func (h *Handlers) RunClosures(c *gin.Context) {
	if err := services.RequireAdmin(identity(c)); err != nil {
		failErr(c, err)
		return
	}
	n, err := h.closure.RunClosureCheck(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ClosureRunResponse{Closed: n})
}

// DeleteGuide godoc
// @ID          deleteGuide
// @Summary     Delete a guide
// @Tags        Admin
//
// @Param       X-Admin-Token  header  string  true  "Admin token"
// @Param       id             path    string  true  "Guide ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an admin"
// @Failure     404  {object}  handlers.ErrorResponse  "Guide not found"
// @Router      /admin/guides/{id} [delete]
func (h *Handlers) DeleteGuide(c *gin.Context) {
	id, okID := uuidParam(c, "id", "guide")
	if !okID {
		return
	}
	if err := h.guides.Delete(c.Request.Context(), identity(c), id); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// DeleteGuidesByCategory godoc
// @ID          deleteGuidesByCategory
// @Summary     Delete every guide in a category
// @Tags        Admin
// @Produce     json
//
// @Param       X-Admin-Token  header  string  true  "Admin token"
// @Param       category       query   string  true  "Category"  example(food)
//
// @Success     200  {object}  handlers.BulkDeleteResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing category"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an admin"
// @Router      /admin/guides [delete]
func (h *Handlers) DeleteGuidesByCategory(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))
	if category == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "category required")
		return
	}
	n, err := h.guides.DeleteByCategory(c.Request.Context(), identity(c), category)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, BulkDeleteResponse{Category: category, Deleted: n})
}

// ListRevotes godoc
// @ID          listRevotes
// @Summary     List revote requests
// @Tags        Admin
// @Produce     json
//
// @Param       X-Admin-Token  header  string  true   "Admin token"
// @Param       guide_id       query   string  false  "Guide filter"   format(uuid)
// @Param       status         query   string  false  "Status filter"  Enums(PENDING, APPROVED, REJECTED)
//
// @Success     200  {object}  handlers.ListRevotesResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad filter"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an admin"
// @Router      /admin/revotes [get]
func (h *Handlers) ListRevotes(c *gin.Context) {
	status := domain.RevoteStatus(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	items, err := h.revotes.List(c.Request.Context(), identity(c), strings.TrimSpace(c.Query("guide_id")), status)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.RevoteRequest{}
	}
	ok(c, http.StatusOK, ListRevotesResponse{Requests: items})
}

// ApproveRevote godoc
// @ID          approveRevote
// @Summary     Approve a revote request
// @Tags        Admin
// @Produce     json
//
// @Param       X-Admin-Token  header  string  true  "Admin token"
// @Param       id             path    string  true  "Request ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.RevoteRequest
// @Failure     403  {object}  handlers.ErrorResponse  "Not an admin"
// @Failure     404  {object}  handlers.ErrorResponse  "Request not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already resolved"
// @Router      /admin/revotes/{id}/approve [post]
func (h *Handlers) ApproveRevote(c *gin.Context) { h.resolveRevote(c, true) }

// RejectRevote godoc
// @ID          rejectRevote
// @Summary     Reject a revote request
// @Tags        Admin
// @Produce     json
//
// @Param       X-Admin-Token  header  string  true  "Admin token"
// @Param       id             path    string  true  "Request ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.RevoteRequest
// @Failure     403  {object}  handlers.ErrorResponse  "Not an admin"
// @Failure     404  {object}  handlers.ErrorResponse  "Request not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already resolved"
// @Router      /admin/revotes/{id}/reject [post]
func (h *Handlers) RejectRevote(c *gin.Context) { h.resolveRevote(c, false) }

func (h *Handlers) resolveRevote(c *gin.Context, approve bool) {
	id, okID := uuidParam(c, "id", "revote request")
	if !okID {
		return
	}
	r, err := h.revotes.Resolve(c.Request.Context(), identity(c), id, approve)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}
