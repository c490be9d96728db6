package http

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"risparmio/internal/core"
)

// Monetary fields are serialized as decimal strings to keep amounts exact on
// the wire. Dates use YYYY-MM-DD, timestamps RFC 3339.

type goalResponse struct {
	ID           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	SavingsRate  decimal.Decimal `json:"savings_rate"`
	Status       string          `json:"status"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

type projectionResponse struct {
	MonthlyIncome       decimal.Decimal `json:"monthly_income"`
	TotalSavingsPool    decimal.Decimal `json:"total_savings_pool"`
	ActiveGoalsCount    int             `json:"active_goals_count"`
	MonthlyAllocation   decimal.Decimal `json:"your_monthly_allocation"`
	TotalContributed    decimal.Decimal `json:"total_contributed"`
	RemainingAmount     decimal.Decimal `json:"remaining_amount"`
	MonthsNeeded        int             `json:"months_needed"`
	EstimatedCompletion *string         `json:"estimated_completion_date"`
	ProgressPercentage  decimal.Decimal `json:"progress_percentage"`
	IsAchievable        bool            `json:"is_achievable"`
}

type goalProgressResponse struct {
	Goal     goalResponse       `json:"goal"`
	Progress projectionResponse `json:"progress"`
}

type portfolioResponse struct {
	MonthlyIncome    decimal.Decimal        `json:"monthly_income"`
	TotalSavingsPool decimal.Decimal        `json:"total_savings_pool"`
	ActiveGoalsCount int                    `json:"active_goals_count"`
	TotalContributed decimal.Decimal        `json:"total_contributed"`
	Goals            []goalProgressResponse `json:"goals"`
}

type contributionResponse struct {
	ID     uuid.UUID       `json:"id"`
	GoalID uuid.UUID       `json:"goal_id"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
}

type contributeResponse struct {
	Goal          goalResponse       `json:"goal"`
	Progress      projectionResponse `json:"progress"`
	GoalCompleted bool               `json:"goal_completed"`
}

type incomeResponse struct {
	ID     uuid.UUID       `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Source string          `json:"source"`
	Date   string          `json:"date"`
}

type monthIncomeResponse struct {
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	MonthlyIncome decimal.Decimal `json:"monthly_income"`
}

type savingsSummaryResponse struct {
	TotalSaved decimal.Decimal `json:"total_saved"`
}

func newGoalResponse(goal core.Goal) goalResponse {
	return goalResponse{
		ID:           goal.ID,
		Title:        goal.Title,
		TargetAmount: goal.TargetAmount.Round(2),
		SavingsRate:  goal.SavingsRate,
		Status:       string(goal.Status),
		CreatedAt:    goal.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    goal.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func newProjectionResponse(p core.Projection) projectionResponse {
	var estimated *string
	if p.EstimatedCompletion != nil {
		formatted := p.EstimatedCompletion.UTC().Format("2006-01-02")
		estimated = &formatted
	}
	return projectionResponse{
		MonthlyIncome:       p.MonthlyIncome,
		TotalSavingsPool:    p.TotalSavingsPool,
		ActiveGoalsCount:    p.ActiveGoalsCount,
		MonthlyAllocation:   p.MonthlyAllocation,
		TotalContributed:    p.TotalContributed,
		RemainingAmount:     p.RemainingAmount,
		MonthsNeeded:        p.MonthsNeeded,
		EstimatedCompletion: estimated,
		ProgressPercentage:  p.ProgressPercent,
		IsAchievable:        p.Achievable,
	}
}

func newGoalProgressResponse(gp core.GoalProgress) goalProgressResponse {
	return goalProgressResponse{
		Goal:     newGoalResponse(gp.Goal),
		Progress: newProjectionResponse(gp.Projection),
	}
}

func newPortfolioResponse(p core.Portfolio) portfolioResponse {
	goals := make([]goalProgressResponse, 0, len(p.Goals))
	for _, gp := range p.Goals {
		goals = append(goals, newGoalProgressResponse(gp))
	}
	return portfolioResponse{
		MonthlyIncome:    p.MonthlyIncome,
		TotalSavingsPool: p.TotalSavingsPool,
		ActiveGoalsCount: p.ActiveGoalsCount,
		TotalContributed: p.TotalContributed,
		Goals:            goals,
	}
}

func newContributionResponse(c core.Contribution) contributionResponse {
	return contributionResponse{
		ID:     c.ID,
		GoalID: c.GoalID,
		Amount: c.Amount.Round(2),
		Date:   c.Date.UTC().Format("2006-01-02"),
	}
}

func newIncomeResponse(i core.Income) incomeResponse {
	return incomeResponse{
		ID:     i.ID,
		Amount: i.Amount.Round(2),
		Source: i.Source,
		Date:   i.Date.UTC().Format("2006-01-02"),
	}
}
