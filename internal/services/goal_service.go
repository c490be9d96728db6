// Package services contains the goal progress orchestrator: the use-case
// layer that ties stores, the contribution ledger and the income aggregator
// together and applies the lifecycle rules from core.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"risparmio/internal/core"
	"risparmio/internal/log"
)

// GoalService coordinates goal CRUD, contributions and progress projections.
// The event publisher is optional: a nil publisher disables notifications
// without touching the rest of the flow.
type GoalService struct {
	goals   GoalStore
	ledger  ContributionLedger
	incomes IncomeStore
	events  EventPublisher
	logger  *log.Logger
	now     func() time.Time
}

func NewGoalService(goals GoalStore, ledger ContributionLedger, incomes IncomeStore, events EventPublisher, logger *log.Logger) *GoalService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &GoalService{
		goals:   goals,
		ledger:  ledger,
		incomes: incomes,
		events:  events,
		logger:  logger.WithComponent(log.ComponentGoals),
		now:     time.Now,
	}
}

// CreateGoal validates and persists a new active goal.
func (s *GoalService) CreateGoal(ctx context.Context, userID uuid.UUID, title string, target, rate decimal.Decimal) (core.Goal, error) {
	goal := core.NewGoal(userID, title, target, rate, s.now().UTC())
	if err := goal.Validate(); err != nil {
		return core.Goal{}, err
	}
	if err := s.goals.CreateGoal(ctx, goal); err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	s.logger.InfoContext(ctx, "goal created",
		log.FieldGoalID, goal.ID,
		log.FieldUserID, userID,
		log.FieldAmount, goal.TargetAmount)
	return goal, nil
}

// GetGoal returns a single goal without its projection.
func (s *GoalService) GetGoal(ctx context.Context, userID, goalID uuid.UUID) (core.Goal, error) {
	return s.goals.GetGoal(ctx, userID, goalID)
}

// GoalUpdate carries the optional fields of a goal update. Nil pointers leave
// the current value in place.
type GoalUpdate struct {
	Title        *string
	TargetAmount *decimal.Decimal
	SavingsRate  *decimal.Decimal
	Status       *core.GoalStatus
}

// UpdateGoal applies a partial update. Status changes go through the
// transition table; a target lowered below the contributed total does not
// retroactively complete the goal, the next ledger mutation reconciles it.
func (s *GoalService) UpdateGoal(ctx context.Context, userID, goalID uuid.UUID, upd GoalUpdate) (core.Goal, error) {
	goal, err := s.goals.GetGoal(ctx, userID, goalID)
	if err != nil {
		return core.Goal{}, err
	}
	if upd.Title != nil {
		goal.Title = *upd.Title
	}
	if upd.TargetAmount != nil {
		goal.TargetAmount = *upd.TargetAmount
	}
	if upd.SavingsRate != nil {
		goal.SavingsRate = *upd.SavingsRate
	}
	if upd.Status != nil && *upd.Status != goal.Status {
		if !goal.Status.CanTransition(*upd.Status) {
			return core.Goal{}, fmt.Errorf("%w: %s -> %s", core.ErrInvalidStatus, goal.Status, *upd.Status)
		}
		goal.Status = *upd.Status
	}
	goal.UpdatedAt = s.now().UTC()
	if err := goal.Validate(); err != nil {
		return core.Goal{}, err
	}
	if err := s.goals.UpdateGoal(ctx, goal); err != nil {
		return core.Goal{}, fmt.Errorf("update goal: %w", err)
	}
	return goal, nil
}

// DeleteGoal removes a goal and, through the store, its contributions.
func (s *GoalService) DeleteGoal(ctx context.Context, userID, goalID uuid.UUID) error {
	if err := s.goals.DeleteGoal(ctx, userID, goalID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "goal deleted", log.FieldGoalID, goalID, log.FieldUserID, userID)
	return nil
}

// PauseGoal suspends an active goal.
func (s *GoalService) PauseGoal(ctx context.Context, userID, goalID uuid.UUID) (core.Goal, error) {
	return s.transition(ctx, userID, goalID, core.StatusPaused)
}

// ResumeGoal reactivates a paused or completed goal.
func (s *GoalService) ResumeGoal(ctx context.Context, userID, goalID uuid.UUID) (core.Goal, error) {
	return s.transition(ctx, userID, goalID, core.StatusActive)
}

// CompleteGoal marks an active goal completed regardless of its ledger total.
func (s *GoalService) CompleteGoal(ctx context.Context, userID, goalID uuid.UUID) (core.Goal, error) {
	return s.transition(ctx, userID, goalID, core.StatusCompleted)
}

func (s *GoalService) transition(ctx context.Context, userID, goalID uuid.UUID, next core.GoalStatus) (core.Goal, error) {
	goal, err := s.goals.GetGoal(ctx, userID, goalID)
	if err != nil {
		return core.Goal{}, err
	}
	if goal.Status == next {
		return goal, nil
	}
	if !goal.Status.CanTransition(next) {
		return core.Goal{}, fmt.Errorf("%w: %s -> %s", core.ErrInvalidStatus, goal.Status, next)
	}
	now := s.now().UTC()
	if err := s.goals.SetGoalStatus(ctx, userID, goalID, next, now); err != nil {
		return core.Goal{}, fmt.Errorf("set goal status: %w", err)
	}
	goal.Status = next
	goal.UpdatedAt = now
	s.logger.InfoContext(ctx, "goal status changed",
		log.FieldGoalID, goalID,
		log.FieldUserID, userID,
		log.FieldStatus, next)
	return goal, nil
}

// Contribute records money set aside toward an active goal and returns the
// refreshed progress view. The second return reports whether the
// contribution completed the goal.
func (s *GoalService) Contribute(ctx context.Context, userID, goalID uuid.UUID, amount decimal.Decimal, date time.Time) (core.GoalProgress, bool, error) {
	goal, err := s.goals.GetGoal(ctx, userID, goalID)
	if err != nil {
		return core.GoalProgress{}, false, err
	}
	if goal.Status != core.StatusActive {
		return core.GoalProgress{}, false, core.ErrGoalNotActive
	}
	if date.IsZero() {
		date = s.now().UTC()
	}
	contribution := core.Contribution{
		ID:     uuid.New(),
		GoalID: goalID,
		UserID: userID,
		Amount: amount,
		Date:   date,
	}
	if err := contribution.Validate(); err != nil {
		return core.GoalProgress{}, false, err
	}

	result, err := s.ledger.Append(ctx, contribution)
	if err != nil {
		return core.GoalProgress{}, false, fmt.Errorf("append contribution: %w", err)
	}
	goal.Status = result.Status

	s.logger.InfoContext(ctx, "contribution recorded",
		log.FieldGoalID, goalID,
		log.FieldUserID, userID,
		log.FieldAmount, amount,
		log.FieldStatus, result.Status)

	if result.StatusChanged {
		s.publishEvent(ctx, result.EventID, core.EventGoalCompleted)
	}

	progress, err := s.progressFor(ctx, goal, result.Total)
	if err != nil {
		return core.GoalProgress{}, false, err
	}
	return progress, result.StatusChanged, nil
}

// DeleteContribution removes a ledger entry. A completed goal whose total
// drops below target reverts to active.
func (s *GoalService) DeleteContribution(ctx context.Context, userID, contributionID uuid.UUID) error {
	result, err := s.ledger.Remove(ctx, userID, contributionID)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "contribution deleted",
		log.FieldGoalID, result.GoalID,
		log.FieldUserID, userID,
		log.FieldStatus, result.Status)
	if result.StatusChanged {
		s.publishEvent(ctx, result.EventID, core.EventGoalReverted)
	}
	return nil
}

// ListContributions returns a goal's ledger entries, newest first.
func (s *GoalService) ListContributions(ctx context.Context, userID, goalID uuid.UUID) ([]core.Contribution, error) {
	if _, err := s.goals.GetGoal(ctx, userID, goalID); err != nil {
		return nil, err
	}
	return s.ledger.ListContributions(ctx, userID, goalID)
}

// GoalProgress returns one goal with its projection computed on the current
// month's income and active-goal count.
func (s *GoalService) GoalProgress(ctx context.Context, userID, goalID uuid.UUID) (core.GoalProgress, error) {
	goal, err := s.goals.GetGoal(ctx, userID, goalID)
	if err != nil {
		return core.GoalProgress{}, err
	}
	total, err := s.ledger.TotalForGoal(ctx, userID, goalID)
	if err != nil {
		return core.GoalProgress{}, fmt.Errorf("contribution total: %w", err)
	}
	return s.progressFor(ctx, goal, total)
}

func (s *GoalService) progressFor(ctx context.Context, goal core.Goal, total decimal.Decimal) (core.GoalProgress, error) {
	now := s.now().UTC()
	income, err := s.incomes.MonthlyIncome(ctx, goal.UserID, now.Year(), now.Month())
	if err != nil {
		return core.GoalProgress{}, fmt.Errorf("monthly income: %w", err)
	}
	active, err := s.goals.CountActiveGoals(ctx, goal.UserID)
	if err != nil {
		return core.GoalProgress{}, fmt.Errorf("count active goals: %w", err)
	}
	return core.GoalProgress{
		Goal:       goal,
		Projection: core.ProjectGoal(goal, income, active, total, now),
	}, nil
}

// AllGoalsProgress returns the user's goals with their projections, newest
// first, plus portfolio-level aggregates. Paused and completed goals are
// hidden unless includeInactive is set. Income and the active count are read
// once and shared across all projections.
func (s *GoalService) AllGoalsProgress(ctx context.Context, userID uuid.UUID, includeInactive bool) (core.Portfolio, error) {
	now := s.now().UTC()
	goals, err := s.goals.ListGoals(ctx, userID)
	if err != nil {
		return core.Portfolio{}, fmt.Errorf("list goals: %w", err)
	}
	if !includeInactive {
		filtered := goals[:0]
		for _, goal := range goals {
			if goal.Status == core.StatusActive {
				filtered = append(filtered, goal)
			}
		}
		goals = filtered
	}
	income, err := s.incomes.MonthlyIncome(ctx, userID, now.Year(), now.Month())
	if err != nil {
		return core.Portfolio{}, fmt.Errorf("monthly income: %w", err)
	}
	active, err := s.goals.CountActiveGoals(ctx, userID)
	if err != nil {
		return core.Portfolio{}, fmt.Errorf("count active goals: %w", err)
	}

	portfolio := core.Portfolio{
		MonthlyIncome:    income.Round(2),
		ActiveGoalsCount: active,
		TotalContributed: decimal.Zero,
		Goals:            make([]core.GoalProgress, 0, len(goals)),
	}

	// The aggregate pool follows the first listed goal's rate.
	poolRate := core.DefaultSavingsRate
	if len(goals) > 0 {
		poolRate = goals[0].SavingsRate
	}
	if income.IsPositive() {
		portfolio.TotalSavingsPool = income.Mul(poolRate).Round(2)
	} else {
		portfolio.TotalSavingsPool = decimal.Zero.Round(2)
	}

	for _, goal := range goals {
		total, err := s.ledger.TotalForGoal(ctx, userID, goal.ID)
		if err != nil {
			return core.Portfolio{}, fmt.Errorf("contribution total: %w", err)
		}
		portfolio.TotalContributed = portfolio.TotalContributed.Add(total)
		portfolio.Goals = append(portfolio.Goals, core.GoalProgress{
			Goal:       goal,
			Projection: core.ProjectGoal(goal, income, active, total, now),
		})
	}
	portfolio.TotalContributed = portfolio.TotalContributed.Round(2)
	return portfolio, nil
}

// TotalSaved returns the sum of all contributions across a user's goals.
func (s *GoalService) TotalSaved(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	total, err := s.ledger.TotalForUser(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("total saved: %w", err)
	}
	return total.Round(2), nil
}

// AddIncome records an income entry for a user.
func (s *GoalService) AddIncome(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, source string, date time.Time) (core.Income, error) {
	if date.IsZero() {
		date = s.now().UTC()
	}
	income := core.Income{
		ID:     uuid.New(),
		UserID: userID,
		Amount: amount,
		Source: source,
		Date:   date,
	}
	if err := income.Validate(); err != nil {
		return core.Income{}, err
	}
	if err := s.incomes.AddIncome(ctx, income); err != nil {
		return core.Income{}, fmt.Errorf("add income: %w", err)
	}
	return income, nil
}

// MonthlyIncome aggregates the user's income for one calendar month.
func (s *GoalService) MonthlyIncome(ctx context.Context, userID uuid.UUID, year int, month time.Month) (decimal.Decimal, error) {
	income, err := s.incomes.MonthlyIncome(ctx, userID, year, month)
	if err != nil {
		return decimal.Zero, fmt.Errorf("monthly income: %w", err)
	}
	return income.Round(2), nil
}

func (s *GoalService) publishEvent(ctx context.Context, eventID int64, event string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishGoalEvent(ctx, eventID, event); err != nil {
		// Notification is best-effort, the sweep worker retries pending rows.
		s.logger.WarnContext(ctx, "failed to publish goal event",
			log.FieldEventID, eventID,
			log.FieldEvent, event,
			log.FieldError, err)
	}
}
