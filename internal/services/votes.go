package services

import (
	"errors"
	"fmt"
	"time"

	"rankedbyus/internal/metrics"
	"rankedbyus/internal/models"

	"gorm.io/gorm"
)

// Vote ledger errors, translated to HTTP statuses at the handler boundary.
var (
	ErrUnknownTool = errors.New("unknown tool")
	ErrInvalidVote = errors.New("vote value must be 1, -1 or null")
)

// errVoteConflict signals a lost create race inside the transaction. Unique
// violations abort the surrounding transaction on Postgres, so the decision
// about what the conflict means has to happen outside it.
var errVoteConflict = errors.New("concurrent vote write")

// VoteResult is the authoritative post-mutation state returned to the caller
// so the client can reconcile its optimistic numbers.
type VoteResult struct {
	Score     int  `json:"new_score"`
	VoteCount int  `json:"vote_count"`
	UserVote  *int `json:"user_vote"`
}

type voteAction int

const (
	voteNoop voteAction = iota
	voteCreate
	voteFlip
	voteRetract
)

// resolveVote applies the toggle rule: first cast creates, repeating the
// current value retracts, a differing value flips in place, and null clears
// (a no-op when nothing is there to clear).
func resolveVote(existing *models.Vote, value *int) voteAction {
	switch {
	case value == nil && existing == nil:
		return voteNoop
	case value == nil:
		return voteRetract
	case existing == nil:
		return voteCreate
	case existing.Value == *value:
		return voteRetract
	default:
		return voteFlip
	}
}

// ApplyVote reconciles a voter's requested value for one tool against any
// existing vote and returns the fresh aggregates. The vote mutation and the
// aggregate delta commit as a single transaction; partial writes cannot
// happen. value is +1, -1, or nil to clear.
//
// Concurrent duplicates never double-count: a lost create race for the same
// value collapses into an idempotent no-op, while conditioned UPDATE/DELETE
// statements make racing flips and retractions apply at most once.
func ApplyVote(gdb *gorm.DB, toolID uint, voterKey string, value *int) (*VoteResult, error) {
	if value != nil && *value != 1 && *value != -1 {
		metrics.VoteProcessed("invalid")
		return nil, ErrInvalidVote
	}
	if err := ensureToolExists(gdb, toolID); err != nil {
		metrics.VoteProcessed("unknown_tool")
		return nil, err
	}

	start := time.Now()
	// Two attempts: the second runs only after a lost create race where the
	// concurrent winner wrote a different value, which re-resolves as a flip.
	for attempt := 0; attempt < 2; attempt++ {
		result, outcome, err := applyVoteOnce(gdb, toolID, voterKey, value)
		if errors.Is(err, errVoteConflict) {
			snapshot, retry, err := resolveCreateConflict(gdb, toolID, voterKey, value)
			if err != nil {
				metrics.VoteProcessed("error")
				return nil, err
			}
			if !retry {
				metrics.VoteProcessed("duplicate")
				return snapshot, nil
			}
			continue
		}
		if err != nil {
			metrics.VoteProcessed("error")
			return nil, err
		}
		metrics.VoteProcessed(outcome)
		metrics.VoteDuration(time.Since(start))
		return result, nil
	}
	metrics.VoteProcessed("conflict")
	return nil, fmt.Errorf("vote for tool %d: %w", toolID, errVoteConflict)
}

// resolveCreateConflict decides what a lost create race means, reading the
// committed winner from outside the aborted transaction. A winner holding the
// same value makes the request a double submission: the first write already
// holds, so the current state is reported unchanged. Any other winner (or none
// after a racing retraction) means retry, where the request re-resolves
// against the fresh row.
func resolveCreateConflict(gdb *gorm.DB, toolID uint, voterKey string, value *int) (*VoteResult, bool, error) {
	existing, err := currentVote(gdb, toolID, voterKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil && value != nil && existing.Value == *value {
		snapshot, err := voteSnapshot(gdb, toolID, voterKey)
		return snapshot, false, err
	}
	return nil, true, nil
}

func applyVoteOnce(gdb *gorm.DB, toolID uint, voterKey string, value *int) (*VoteResult, string, error) {
	var result *VoteResult
	outcome := "noop"

	err := gdb.Transaction(func(tx *gorm.DB) error {
		var existing *models.Vote
		var row models.Vote
		err := tx.Where("tool_id = ? AND voter_key = ?", toolID, voterKey).First(&row).Error
		switch {
		case err == nil:
			existing = &row
		case errors.Is(err, gorm.ErrRecordNotFound):
			existing = nil
		default:
			return err
		}

		scoreDelta, countDelta := 0, 0

		switch resolveVote(existing, value) {
		case voteNoop:
			// clearing a vote that does not exist is not an error

		case voteCreate:
			vote := models.Vote{ToolID: toolID, VoterKey: voterKey, Value: *value}
			if err := tx.Create(&vote).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return errVoteConflict
				}
				return err
			}
			scoreDelta, countDelta = *value, 1
			outcome = "created"

		case voteRetract:
			res := tx.Where("id = ? AND value = ?", existing.ID, existing.Value).Delete(&models.Vote{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				scoreDelta, countDelta = -existing.Value, -1
				outcome = "retracted"
			}

		case voteFlip:
			res := tx.Model(&models.Vote{}).
				Where("id = ? AND value = ?", existing.ID, existing.Value).
				Updates(map[string]interface{}{"value": *value, "created_at": time.Now()})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				scoreDelta = *value - existing.Value
				outcome = "flipped"
			}
		}

		if scoreDelta != 0 || countDelta != 0 {
			if err := tx.Model(&models.Tool{}).Where("id = ?", toolID).
				UpdateColumns(map[string]interface{}{
					"score":      gorm.Expr("score + ?", scoreDelta),
					"vote_count": gorm.Expr("vote_count + ?", countDelta),
				}).Error; err != nil {
				return err
			}
		}

		snapshot, err := snapshotTx(tx, toolID, voterKey)
		if err != nil {
			return err
		}
		result = snapshot
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return result, outcome, nil
}

// UserVote returns the caller's current stance on a tool: +1, -1, or nil.
func UserVote(gdb *gorm.DB, toolID uint, voterKey string) (*int, error) {
	if err := ensureToolExists(gdb, toolID); err != nil {
		return nil, err
	}
	vote, err := currentVote(gdb, toolID, voterKey)
	if err != nil {
		return nil, err
	}
	if vote == nil {
		return nil, nil
	}
	v := vote.Value
	return &v, nil
}

// UserVotes returns the caller's stance for each of the given tools, keyed by
// tool id. Tools the voter never voted on are absent.
func UserVotes(gdb *gorm.DB, toolIDs []uint, voterKey string) (map[uint]int, error) {
	stances := make(map[uint]int, len(toolIDs))
	if len(toolIDs) == 0 || voterKey == "" {
		return stances, nil
	}
	var votes []models.Vote
	if err := gdb.Where("voter_key = ? AND tool_id IN ?", voterKey, toolIDs).Find(&votes).Error; err != nil {
		return nil, err
	}
	for _, v := range votes {
		stances[v.ToolID] = v.Value
	}
	return stances, nil
}

// ClaimVoter reattributes anonymous-session activity (votes, reviews,
// submissions) to an authenticated user, in one transaction. Where both keys
// already acted on the same tool the authenticated key's record wins and the
// anonymous one is discarded with its aggregate delta reversed.
func ClaimVoter(gdb *gorm.DB, anonKey string, user *models.User) error {
	if anonKey == "" || user == nil {
		return nil
	}
	userKey := fmt.Sprintf("u:%d", user.ID)

	return gdb.Transaction(func(tx *gorm.DB) error {
		var anonVotes []models.Vote
		if err := tx.Where("voter_key = ?", anonKey).Find(&anonVotes).Error; err != nil {
			return err
		}
		for _, vote := range anonVotes {
			var existing models.Vote
			err := tx.Where("tool_id = ? AND voter_key = ?", vote.ToolID, userKey).First(&existing).Error
			switch {
			case err == nil:
				// Both keys voted here; keep the authenticated vote.
				if err := tx.Delete(&models.Vote{}, vote.ID).Error; err != nil {
					return err
				}
				if err := tx.Model(&models.Tool{}).Where("id = ?", vote.ToolID).
					UpdateColumns(map[string]interface{}{
						"score":      gorm.Expr("score - ?", vote.Value),
						"vote_count": gorm.Expr("vote_count - 1"),
					}).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Model(&models.Vote{}).Where("id = ?", vote.ID).
					UpdateColumn("voter_key", userKey).Error; err != nil {
					return err
				}
			default:
				return err
			}
		}

		var anonReviews []models.Review
		if err := tx.Where("voter_key = ?", anonKey).Find(&anonReviews).Error; err != nil {
			return err
		}
		for _, review := range anonReviews {
			var count int64
			if err := tx.Model(&models.Review{}).
				Where("tool_id = ? AND voter_key = ?", review.ToolID, userKey).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				if err := tx.Delete(&models.Review{}, review.ID).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Model(&models.Review{}).Where("id = ?", review.ID).
				UpdateColumns(map[string]interface{}{"voter_key": userKey, "user_id": user.ID}).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Submission{}).Where("voter_key = ?", anonKey).
			UpdateColumns(map[string]interface{}{"voter_key": userKey, "user_id": user.ID}).Error
	})
}

// RecountTool recomputes one tool's aggregates from a full vote scan. Repair
// path only; the steady-state write path always moves aggregates inside the
// vote transaction.
func RecountTool(gdb *gorm.DB, toolID uint) (changed bool, err error) {
	err = gdb.Transaction(func(tx *gorm.DB) error {
		var agg struct {
			Score int
			Count int
		}
		if err := tx.Model(&models.Vote{}).
			Select("COALESCE(SUM(value),0) AS score, COUNT(*) AS count").
			Where("tool_id = ?", toolID).
			Scan(&agg).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Tool{}).
			Where("id = ? AND (score <> ? OR vote_count <> ?)", toolID, agg.Score, agg.Count).
			UpdateColumns(map[string]interface{}{"score": agg.Score, "vote_count": agg.Count})
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0
		return nil
	})
	return changed, err
}

// RecountAll runs RecountTool over every tool and returns how many rows had
// drifted.
func RecountAll(gdb *gorm.DB) (int, error) {
	var ids []uint
	if err := gdb.Model(&models.Tool{}).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	repaired := 0
	for _, id := range ids {
		changed, err := RecountTool(gdb, id)
		if err != nil {
			return repaired, err
		}
		if changed {
			repaired++
		}
	}
	return repaired, nil
}

func ensureToolExists(gdb *gorm.DB, toolID uint) error {
	var count int64
	if err := gdb.Model(&models.Tool{}).Where("id = ?", toolID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrUnknownTool
	}
	return nil
}

func currentVote(gdb *gorm.DB, toolID uint, voterKey string) (*models.Vote, error) {
	var row models.Vote
	err := gdb.Where("tool_id = ? AND voter_key = ?", toolID, voterKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func voteSnapshot(gdb *gorm.DB, toolID uint, voterKey string) (*VoteResult, error) {
	return snapshotTx(gdb, toolID, voterKey)
}

func snapshotTx(tx *gorm.DB, toolID uint, voterKey string) (*VoteResult, error) {
	var tool models.Tool
	if err := tx.Select("score", "vote_count").First(&tool, toolID).Error; err != nil {
		return nil, err
	}
	result := &VoteResult{Score: tool.Score, VoteCount: tool.VoteCount}

	vote, err := currentVote(tx, toolID, voterKey)
	if err != nil {
		return nil, err
	}
	if vote != nil {
		v := vote.Value
		result.UserVote = &v
	}
	return result, nil
}
