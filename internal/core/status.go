package core

import "github.com/shopspring/decimal"

// GoalStatus is the lifecycle state of a goal. The transition table below is
// closed: anything outside it is rejected with ErrInvalidStatus.
type GoalStatus string

const (
	StatusActive    GoalStatus = "active"
	StatusPaused    GoalStatus = "paused"
	StatusCompleted GoalStatus = "completed"
)

// goalTransitions maps each status to the statuses reachable from it.
// completed → active covers both an explicit resume and the automatic
// reversion after a contribution is deleted.
var goalTransitions = map[GoalStatus][]GoalStatus{
	StatusActive:    {StatusPaused, StatusCompleted},
	StatusPaused:    {StatusActive},
	StatusCompleted: {StatusActive},
}

// Goal event names recorded when an automatic transition fires.
const (
	EventGoalCompleted = "goal_completed"
	EventGoalReverted  = "goal_reverted"
)

// ParseStatus validates a raw status string.
func ParseStatus(s string) (GoalStatus, error) {
	switch GoalStatus(s) {
	case StatusActive, StatusPaused, StatusCompleted:
		return GoalStatus(s), nil
	}
	return "", ErrInvalidStatus
}

func (s GoalStatus) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// CanTransition reports whether moving from s to next is permitted.
// A no-op transition (same status) is always allowed.
func (s GoalStatus) CanTransition(next GoalStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range goalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NextStatusAfterContribution applies the auto-complete rule: an active goal
// whose ledger total reaches its target flips to completed. The second return
// reports whether the status changed. Callers must evaluate this inside the
// same transaction that recomputed total.
func NextStatusAfterContribution(current GoalStatus, total, target decimal.Decimal) (GoalStatus, bool) {
	if current == StatusActive && total.GreaterThanOrEqual(target) {
		return StatusCompleted, true
	}
	return current, false
}

// NextStatusAfterDeletion applies the auto-revert rule: a completed goal whose
// ledger total falls back below its target returns to active. This is the one
// transition the engine performs without explicit user intent, keeping status
// consistent with the ledger as the source of truth.
func NextStatusAfterDeletion(current GoalStatus, total, target decimal.Decimal) (GoalStatus, bool) {
	if current == StatusCompleted && total.LessThan(target) {
		return StatusActive, true
	}
	return current, false
}
