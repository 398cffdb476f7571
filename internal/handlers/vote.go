package handlers

import (
	"errors"
	"net/http"

	"rankedbyus/internal/db"
	"rankedbyus/internal/middleware"
	"rankedbyus/internal/services"
	"rankedbyus/internal/utils"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct{}

func NewVoteHandler() *VoteHandler {
	return &VoteHandler{}
}

// voteRequest is the POST /api/vote body. Value is a pointer so an
// explicit null ("clear my vote") survives decoding; anything outside
// {1, -1, null} is rejected by the ledger.
type voteRequest struct {
	ItemID uint `json:"item_id"`
	Value  *int `json:"value"`
}

// Submit casts, flips or retracts the caller's vote on one tool and answers
// with the authoritative aggregates:
//
//	{"new_score": <int>, "vote_count": <int>, "user_vote": 1|-1|null}
//
// The client treats its locally predicted numbers as a latency hint only and
// replaces them with this response.
func (h *VoteHandler) Submit(c *gin.Context) {
	voterKey, ok := middleware.VoterKey(c)
	if !ok {
		JSONError(c, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, "malformed vote request")
		return
	}
	if req.ItemID == 0 {
		JSONError(c, http.StatusBadRequest, "item_id is required")
		return
	}

	result, err := services.ApplyVote(db.DB, req.ItemID, voterKey, req.Value)
	switch {
	case errors.Is(err, services.ErrInvalidVote):
		JSONError(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, services.ErrUnknownTool):
		JSONError(c, http.StatusNotFound, "the registry could not ingest your vote")
		return
	case err != nil:
		JSONError(c, http.StatusInternalServerError, "vote could not be recorded")
		return
	}

	// The listing rank decays on its own schedule; nudge it after a vote.
	// Cached listing pages carry no per-voter state and expire on their own
	// short TTL, so a vote does not invalidate them eagerly.
	services.GetRankingService().ScheduleUpdate(req.ItemID)

	c.JSON(http.StatusOK, gin.H{
		"new_score":  result.Score,
		"vote_count": result.VoteCount,
		"user_vote":  result.UserVote,
	})
}

// Current answers GET /api/vote?item_id=<id> with the caller's stance:
//
//	{"user_vote": 1|-1|null}
func (h *VoteHandler) Current(c *gin.Context) {
	voterKey, ok := middleware.VoterKey(c)
	if !ok {
		JSONError(c, http.StatusUnauthorized, "unauthenticated")
		return
	}

	itemID := utils.StringToInt(c.Query("item_id"))
	if itemID <= 0 {
		JSONError(c, http.StatusBadRequest, "item_id is required")
		return
	}

	stance, err := services.UserVote(db.DB, uint(itemID), voterKey)
	switch {
	case errors.Is(err, services.ErrUnknownTool):
		JSONError(c, http.StatusNotFound, "unknown item")
		return
	case err != nil:
		JSONError(c, http.StatusInternalServerError, "vote lookup failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_vote": stance})
}
