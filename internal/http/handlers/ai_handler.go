// AI helper HTTP handlers. Both endpoints draw on the caller's daily quota.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-vote-backend/internal/http/middleware"
	"github.com/tbourn/go-vote-backend/internal/services"
)

const (
	defaultSuggestions = 3
	maxSuggestions     = 10
)

// SimilarOptionsRequest is the JSON payload for option suggestions.
type SimilarOptionsRequest struct {
	Question string   `json:"question" binding:"required" example:"Best pizza topping?"`
	Existing []string `json:"existing" example:"Cheese,Pepperoni"`
	Count    int      `json:"count" example:"3"`
}

// SimilarOptionsResponse carries suggestions and the quota left after the call.
type SimilarOptionsResponse struct {
	Options []string             `json:"options"`
	Quota   services.QuotaStatus `json:"quota"`
}

// GetQuota godoc
// @ID          getQuota
// @Summary     AI quota status
// @Description Returns today's AI usage for the caller. Counters reset at local midnight.
// @Tags        AI
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"  example(user123)
//
// @Success     200  {object}  services.QuotaStatus
// @Failure     401  {object}  handlers.ErrorResponse  "Missing user"
// @Router      /ai/quota [get]
func (h *Handlers) GetQuota(c *gin.Context) {
	st, err := h.quota.Status(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// SimilarOptions godoc
// @ID          similarOptions
// @Summary     Suggest vote options
// @Description Generates additional options for a question. Consumes one unit of the daily quota.
// @Tags        AI
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"  example(user123)
// @Param       body       body    handlers.SimilarOptionsRequest  true  "Question and known options"
//
// @Success     200  {object}  handlers.SimilarOptionsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing user"
// @Failure     429  {object}  handlers.ErrorResponse  "Daily quota exhausted"
// @Failure     503  {object}  handlers.ErrorResponse  "AI unavailable"
// @Router      /ai/similar-options [post]
func (h *Handlers) SimilarOptions(c *gin.Context) {
	var req SimilarOptionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question required")
		return
	}
	n := req.Count
	if n <= 0 {
		n = defaultSuggestions
	}
	if n > maxSuggestions {
		n = maxSuggestions
	}
	opts, st, err := h.quota.SimilarOptions(c.Request.Context(), middleware.UserID(c), req.Question, req.Existing, n)
	if err != nil {
		failErr(c, err)
		return
	}
	if opts == nil {
		opts = []string{}
	}
	ok(c, http.StatusOK, SimilarOptionsResponse{Options: opts, Quota: st})
}
