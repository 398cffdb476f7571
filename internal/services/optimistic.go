package services

import (
	"errors"
)

// VoteUIState tracks where an optimistic vote sits in its lifecycle.
type VoteUIState int

const (
	VoteUIIdle VoteUIState = iota
	VoteUIPending
	VoteUICommitted
	VoteUIRolledBack
)

func (s VoteUIState) String() string {
	switch s {
	case VoteUIPending:
		return "pending"
	case VoteUICommitted:
		return "committed"
	case VoteUIRolledBack:
		return "rolled-back"
	default:
		return "idle"
	}
}

// ErrVoteInFlight rejects a second submission for the same item while one is
// still unresolved; the UI disables the control for the same reason.
var ErrVoteInFlight = errors.New("a vote for this item is already in flight")

// OptimisticVote is the client-side reconciliation contract for one item's
// vote widget: apply the predicted effect of the toggle rule immediately,
// then either replace the numbers with the server's authoritative response or
// roll back exactly the predicted delta on failure. The browser client
// (web/static/js/vote.js) mirrors this machine; having it in Go keeps the
// compensation path testable without network timing.
type OptimisticVote struct {
	state VoteUIState

	// last numbers confirmed by the server
	baseScore, baseCount int
	baseStance           *int

	// numbers currently displayed
	shownScore, shownCount int
	shownStance            *int
}

// NewOptimisticVote starts from the last server-confirmed state.
func NewOptimisticVote(score, count int, stance *int) *OptimisticVote {
	return &OptimisticVote{
		state:      VoteUIIdle,
		baseScore:  score,
		baseCount:  count,
		baseStance: copyStance(stance),
		shownScore: score,
		shownCount: count,
		shownStance: copyStance(stance),
	}
}

// PredictVote applies the toggle rule to a known stance without touching
// storage, returning the score delta, the vote-count delta and the resulting
// stance. Shared by the optimistic machine and by anything rendering a
// "what happens if you click" affordance.
func PredictVote(current *int, requested *int) (scoreDelta, countDelta int, next *int) {
	switch {
	case requested == nil && current == nil:
		return 0, 0, nil
	case requested == nil:
		return -*current, -1, nil
	case current == nil:
		return *requested, 1, copyStance(requested)
	case *current == *requested:
		return -*current, -1, nil
	default:
		return *requested - *current, 0, copyStance(requested)
	}
}

// Begin applies the predicted effect of submitting value and moves to pending.
func (o *OptimisticVote) Begin(value *int) error {
	if o.state == VoteUIPending {
		return ErrVoteInFlight
	}

	scoreDelta, countDelta, next := PredictVote(o.shownStance, value)
	o.shownScore += scoreDelta
	o.shownCount += countDelta
	o.shownStance = next
	o.state = VoteUIPending
	return nil
}

// Commit replaces the displayed numbers with the server's authoritative
// response. The optimistic prediction is a latency hint only; the server
// values always win, matching or not.
func (o *OptimisticVote) Commit(result *VoteResult) {
	o.baseScore = result.Score
	o.baseCount = result.VoteCount
	o.baseStance = copyStance(result.UserVote)
	o.shownScore = result.Score
	o.shownCount = result.VoteCount
	o.shownStance = copyStance(result.UserVote)
	o.state = VoteUICommitted
}

// Rollback restores the pre-submission numbers after a failed request.
func (o *OptimisticVote) Rollback() {
	o.shownScore = o.baseScore
	o.shownCount = o.baseCount
	o.shownStance = copyStance(o.baseStance)
	o.state = VoteUIRolledBack
}

// Displayed returns what the widget should currently show.
func (o *OptimisticVote) Displayed() (score, count int, stance *int) {
	return o.shownScore, o.shownCount, copyStance(o.shownStance)
}

// State returns the lifecycle state.
func (o *OptimisticVote) State() VoteUIState {
	return o.state
}

func copyStance(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
