package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidTarget      = errors.New("target amount must be positive")
	ErrInvalidSavingsRate = errors.New("savings rate must be between 0.01 and 1.00")
	ErrInvalidStatus      = errors.New("invalid goal status")
	ErrGoalNotActive      = errors.New("goal is not active")
	ErrEmptyTitle         = errors.New("empty title")
	ErrNotFound           = errors.New("not found")
)

// DefaultSavingsRate is applied when a goal is created without an explicit rate.
var DefaultSavingsRate = decimal.New(20, -2) // 0.20

var (
	minSavingsRate = decimal.New(1, -2)   // 0.01
	maxSavingsRate = decimal.New(100, -2) // 1.00
)

type (
	// Goal is a user-defined savings target with a configured rate and a
	// lifecycle status. CreatedAt doubles as the goal's start date.
	Goal struct {
		ID           uuid.UUID
		UserID       uuid.UUID
		Title        string
		TargetAmount decimal.Decimal
		SavingsRate  decimal.Decimal
		Status       GoalStatus
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// Contribution is money actually set aside toward one goal.
	// Immutable once recorded except for deletion.
	Contribution struct {
		ID     uuid.UUID
		GoalID uuid.UUID
		UserID uuid.UUID
		Amount decimal.Decimal
		Date   time.Time
	}

	// Income is a recorded income amount. The engine only ever reads it.
	Income struct {
		ID     uuid.UUID
		UserID uuid.UUID
		Amount decimal.Decimal
		Source string
		Date   time.Time
	}
)

// NewGoal builds an active goal with defaults filled in. A zero rate takes
// DefaultSavingsRate; validation still happens in Validate.
func NewGoal(userID uuid.UUID, title string, target, rate decimal.Decimal, now time.Time) Goal {
	if rate.IsZero() {
		rate = DefaultSavingsRate
	}
	return Goal{
		ID:           uuid.New(),
		UserID:       userID,
		Title:        strings.TrimSpace(title),
		TargetAmount: target,
		SavingsRate:  rate,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (g Goal) Validate() error {
	if len(strings.TrimSpace(g.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(g.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if !g.TargetAmount.IsPositive() {
		return ErrInvalidTarget
	}
	if g.SavingsRate.LessThan(minSavingsRate) || g.SavingsRate.GreaterThan(maxSavingsRate) {
		return ErrInvalidSavingsRate
	}
	if !g.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (c Contribution) Validate() error {
	if !c.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if c.GoalID == uuid.Nil {
		return errors.New("contribution missing goal")
	}
	if c.UserID == uuid.Nil {
		return errors.New("contribution missing user")
	}
	return nil
}

func (i Income) Validate() error {
	if !i.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if i.UserID == uuid.Nil {
		return errors.New("income missing user")
	}
	return nil
}
