package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"risparmio/internal/core"
)

// LedgerResult describes the outcome of a ledger mutation. Total is the
// recomputed contribution total for the goal and Status the goal status after
// any automatic transition. StatusChanged is true when the mutation flipped
// the status, in which case EventID identifies the recorded goal event.
type LedgerResult struct {
	GoalID        uuid.UUID
	Total         decimal.Decimal
	Status        core.GoalStatus
	StatusChanged bool
	EventID       int64
}

// GoalStore persists savings goals.
type GoalStore interface {
	CreateGoal(ctx context.Context, goal core.Goal) error
	GetGoal(ctx context.Context, userID, goalID uuid.UUID) (core.Goal, error)
	ListGoals(ctx context.Context, userID uuid.UUID) ([]core.Goal, error)
	UpdateGoal(ctx context.Context, goal core.Goal) error
	DeleteGoal(ctx context.Context, userID, goalID uuid.UUID) error
	SetGoalStatus(ctx context.Context, userID, goalID uuid.UUID, status core.GoalStatus, now time.Time) error
	CountActiveGoals(ctx context.Context, userID uuid.UUID) (int, error)
}

// ContributionLedger is the append-only record of money set aside toward
// goals. Append and Remove recompute the goal total and apply automatic
// status transitions in the same unit of work.
type ContributionLedger interface {
	Append(ctx context.Context, contribution core.Contribution) (LedgerResult, error)
	Remove(ctx context.Context, userID, contributionID uuid.UUID) (LedgerResult, error)
	ListContributions(ctx context.Context, userID, goalID uuid.UUID) ([]core.Contribution, error)
	TotalForGoal(ctx context.Context, userID, goalID uuid.UUID) (decimal.Decimal, error)
	TotalForUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// IncomeReader aggregates recorded income for projections.
type IncomeReader interface {
	MonthlyIncome(ctx context.Context, userID uuid.UUID, year int, month time.Month) (decimal.Decimal, error)
}

// IncomeStore records income entries.
type IncomeStore interface {
	IncomeReader
	AddIncome(ctx context.Context, income core.Income) error
}

// EventPublisher notifies downstream consumers about goal lifecycle events.
type EventPublisher interface {
	PublishGoalEvent(ctx context.Context, eventID int64, event string) error
}
