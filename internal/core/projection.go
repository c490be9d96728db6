package core

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.New(100, 0)

type (
	// Projection is the derived progress view for one goal: how much is
	// saved, how much remains and how long completion will take at the
	// suggested monthly pace. Its field set is the contract other layers
	// depend on.
	Projection struct {
		MonthlyIncome       decimal.Decimal
		TotalSavingsPool    decimal.Decimal
		ActiveGoalsCount    int
		MonthlyAllocation   decimal.Decimal
		TotalContributed    decimal.Decimal
		RemainingAmount     decimal.Decimal
		MonthsNeeded        int
		EstimatedCompletion *time.Time
		ProgressPercent     decimal.Decimal
		Achievable          bool
	}

	// GoalProgress pairs a goal with its projection.
	GoalProgress struct {
		Goal       Goal
		Projection Projection
	}

	// Portfolio is the all-goals view computed on a single income and
	// active-count snapshot.
	Portfolio struct {
		MonthlyIncome    decimal.Decimal
		TotalSavingsPool decimal.Decimal
		ActiveGoalsCount int
		TotalContributed decimal.Decimal
		Goals            []GoalProgress
	}
)

// ProjectGoal computes the progress projection for a single goal. It is a
// pure function: income, active-goal count and the contributed total are
// supplied by the caller, and now anchors the completion estimate.
//
// Zero income and zero active goals are defined fallback branches, not
// errors: no income means nothing to allocate (achievable = false), and the
// active count is floored at 1 to guard the division when the goal under
// evaluation is not yet visible to the counter.
func ProjectGoal(g Goal, monthlyIncome decimal.Decimal, activeGoals int, contributed decimal.Decimal, now time.Time) Projection {
	target := g.TargetAmount

	remaining := target.Sub(contributed)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	if !monthlyIncome.IsPositive() {
		return Projection{
			MonthlyIncome:     decimal.Zero.Round(2),
			TotalSavingsPool:  decimal.Zero.Round(2),
			ActiveGoalsCount:  activeGoals,
			MonthlyAllocation: decimal.Zero.Round(2),
			TotalContributed:  contributed.Round(2),
			RemainingAmount:   remaining.Round(2),
			MonthsNeeded:      0,
			ProgressPercent:   progressPercent(contributed, target),
			Achievable:        false,
		}
	}

	effectiveCount := activeGoals
	if effectiveCount < 1 {
		effectiveCount = 1
	}

	pool := monthlyIncome.Mul(g.SavingsRate)
	allocation := pool.Div(decimal.New(int64(effectiveCount), 0))

	p := Projection{
		MonthlyIncome:     monthlyIncome.Round(2),
		TotalSavingsPool:  pool.Round(2),
		ActiveGoalsCount:  effectiveCount,
		MonthlyAllocation: allocation.Round(2),
		TotalContributed:  contributed.Round(2),
		RemainingAmount:   remaining.Round(2),
		ProgressPercent:   progressPercent(contributed, target),
		Achievable:        true,
	}

	switch {
	case allocation.IsPositive() && remaining.IsPositive():
		months := int(remaining.Div(allocation).Ceil().IntPart())
		est := now.AddDate(0, months, 0)
		p.MonthsNeeded = months
		p.EstimatedCompletion = &est
	case !remaining.IsPositive():
		// Already fully funded by real contributions.
		est := now
		p.MonthsNeeded = 0
		p.EstimatedCompletion = &est
	default:
		// allocation ≤ 0 with money still remaining: only reachable with a
		// zero rate, which validation forbids upstream.
		p.MonthsNeeded = 0
	}

	return p
}

// progressPercent is min(contributed, target) / target × 100, rounded to two
// places. Clamping keeps the result in [0, 100] even when the ledger exceeds
// the target. A non-positive target yields 0.
func progressPercent(contributed, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero.Round(2)
	}
	saved := contributed
	if saved.GreaterThan(target) {
		saved = target
	}
	if saved.IsNegative() {
		saved = decimal.Zero
	}
	return saved.Div(target).Mul(hundred).Round(2)
}
