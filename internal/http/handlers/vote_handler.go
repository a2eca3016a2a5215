// Vote HTTP handlers.
//
// This file exposes REST endpoints for votes and their responses:
//   - POST   /votes                 (create)
//   - GET    /votes/{id}            (detail with tallies, ETag support)
//   - DELETE /votes/{id}            (owner delete)
//   - POST   /votes/{id}/responses  (submit, Idempotency-Key support)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-vote-backend/internal/domain"
	"github.com/tbourn/go-vote-backend/internal/http/middleware"
	"github.com/tbourn/go-vote-backend/internal/services"
)

// HeaderReplayed marks a response served from a stored idempotent result.
const HeaderReplayed = "Idempotent-Replayed"

const dateLayout = "2006-01-02"

// CreateVoteRequest is the JSON payload for creating a vote.
type CreateVoteRequest struct {
	Question string   `json:"question" example:"Best pizza topping?"`
	Category string   `json:"category" example:"food"`
	Options  []string `json:"options"  example:"Cheese,Pepperoni,Mushroom"`
	// ClosureType defaults to DEFAULT when empty.
	ClosureType string `json:"closure_type,omitempty" enums:"DEFAULT,CUSTOM_DAYS,PARTICIPANT_COUNT" example:"CUSTOM_DAYS"`
	// FinishedAt is the last day responses are accepted (YYYY-MM-DD).
	FinishedAt           string `json:"finished_at,omitempty" example:"2024-01-10"`
	ParticipantThreshold *int   `json:"participant_threshold,omitempty" example:"5"`
}

// SubmitResponseRequest is the JSON payload for answering a vote.
type SubmitResponseRequest struct {
	OptionID string `json:"option_id" binding:"required" example:"0f8fad5b-d9cb-469f-a165-70867728950e"`
}

// CreateVote godoc
// @ID          createVote
// @Summary     Create a vote
// @Description Creates a vote with its options. The closure type decides when it closes.
// @Tags        Votes
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"  example(user123)
// @Param       body       body    handlers.CreateVoteRequest  true  "Vote payload"
//
// @Success     201  {object}  domain.Vote
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing user"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /votes [post]
func (h *Handlers) CreateVote(c *gin.Context) {
	var req CreateVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	in := services.CreateVoteInput{
		Question:             req.Question,
		Category:             req.Category,
		Options:              req.Options,
		ClosureType:          domain.ClosureType(strings.ToUpper(strings.TrimSpace(req.ClosureType))),
		ParticipantThreshold: req.ParticipantThreshold,
	}
	if s := strings.TrimSpace(req.FinishedAt); s != "" {
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "finished_at must be YYYY-MM-DD")
			return
		}
		in.FinishedAt = &d
	}

	v, err := h.votes.Create(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, v)
}

// GetVote godoc
// @ID          getVote
// @Summary     Get a vote
// @Description Returns a vote with per-option counts. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Votes
// @Produce     json
//
// @Param       id             path    string  true   "Vote ID (UUID)"              format(uuid)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"abc123\")
//
// @Success     200  {object}  services.VoteView
// @Header      200  {string}  ETag  "Weak ETag for the current view"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Vote not found"
// @Router      /votes/{id} [get]
func (h *Handlers) GetVote(c *gin.Context) {
	id, okID := uuidParam(c, "id", "vote")
	if !okID {
		return
	}
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if etag, err := h.votes.ETag(ctx, id); err == nil {
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	view, err := h.votes.Get(ctx, id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

// DeleteVote godoc
// @ID          deleteVote
// @Summary     Delete a vote
// @Description Deletes a vote owned by the caller together with its options and responses.
// @Tags        Votes
//
// @Param       X-User-ID  header  string  true  "User ID"         example(user123)
// @Param       id         path    string  true  "Vote ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing user"
// @Failure     404  {object}  handlers.ErrorResponse  "Vote not found"
// @Router      /votes/{id} [delete]
func (h *Handlers) DeleteVote(c *gin.Context) {
	id, okID := uuidParam(c, "id", "vote")
	if !okID {
		return
	}
	if err := h.votes.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// SubmitResponse godoc
// @ID          submitResponse
// @Summary     Answer a vote
// @Description Records the caller's choice. Each user answers a vote once; a retry carrying the same Idempotency-Key returns the stored response with 200.
// @Tags        Votes
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  true   "User ID"          example(user123)
// @Param       Idempotency-Key  header  string  false  "Retry key"        example(6f1c2a7e-retry-1)
// @Param       id               path    string  true   "Vote ID (UUID)"   format(uuid)
// @Param       body             body    handlers.SubmitResponseRequest  true  "Chosen option"
//
// @Success     201  {object}  domain.VoteResponse
// @Success     200  {object}  domain.VoteResponse  "Idempotent replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or option not in vote"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing user"
// @Failure     404  {object}  handlers.ErrorResponse  "Vote not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already voted, vote closed or deadline passed"
// @Router      /votes/{id}/responses [post]
func (h *Handlers) SubmitResponse(c *gin.Context) {
	voteID, okID := uuidParam(c, "id", "vote")
	if !okID {
		return
	}
	var req SubmitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.OptionID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "option_id required")
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	resp, replay, err := h.responses.SubmitIdempotent(c.Request.Context(), middleware.UserID(c), voteID, strings.TrimSpace(req.OptionID), key)
	if err != nil {
		failErr(c, err)
		return
	}
	if replay {
		c.Header(HeaderReplayed, "true")
		ok(c, http.StatusOK, resp)
		return
	}
	ok(c, http.StatusCreated, resp)
}

// uuidParam reads a UUID path parameter, writing a 400 when it is malformed.
func uuidParam(c *gin.Context, name, what string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" id must be a UUID")
		return "", false
	}
	return id, true
}
