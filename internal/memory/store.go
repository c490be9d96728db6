// Package memory is the in-memory backend: a mutex-guarded implementation of
// the service ports used for tests and for running without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"risparmio/internal/core"
	"risparmio/internal/services"
)

// Event is a recorded goal lifecycle event awaiting notification.
type Event struct {
	ID        int64
	GoalID    uuid.UUID
	Event     string
	CreatedAt time.Time
	Notified  bool
}

// Store keeps all data in process memory. Safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	goals         map[uuid.UUID]core.Goal
	contributions map[uuid.UUID]core.Contribution
	incomes       map[uuid.UUID]core.Income
	events        map[int64]Event
	nextEventID   int64
}

func NewStore() *Store {
	return &Store{
		goals:         make(map[uuid.UUID]core.Goal),
		contributions: make(map[uuid.UUID]core.Contribution),
		incomes:       make(map[uuid.UUID]core.Income),
		events:        make(map[int64]Event),
	}
}

func (s *Store) CreateGoal(_ context.Context, goal core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[goal.ID] = goal
	return nil
}

func (s *Store) GetGoal(_ context.Context, userID, goalID uuid.UUID) (core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	goal, ok := s.goals[goalID]
	if !ok || goal.UserID != userID {
		return core.Goal{}, core.ErrNotFound
	}
	return goal, nil
}

func (s *Store) ListGoals(_ context.Context, userID uuid.UUID) ([]core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	goals := make([]core.Goal, 0)
	for _, goal := range s.goals {
		if goal.UserID == userID {
			goals = append(goals, goal)
		}
	}
	sort.Slice(goals, func(i, j int) bool {
		if !goals[i].CreatedAt.Equal(goals[j].CreatedAt) {
			return goals[i].CreatedAt.After(goals[j].CreatedAt)
		}
		return goals[i].ID.String() > goals[j].ID.String()
	})
	return goals, nil
}

func (s *Store) UpdateGoal(_ context.Context, goal core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.goals[goal.ID]
	if !ok || existing.UserID != goal.UserID {
		return core.ErrNotFound
	}
	s.goals[goal.ID] = goal
	return nil
}

func (s *Store) DeleteGoal(_ context.Context, userID, goalID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	goal, ok := s.goals[goalID]
	if !ok || goal.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.goals, goalID)
	// Contributions cascade with their goal.
	for id, c := range s.contributions {
		if c.GoalID == goalID {
			delete(s.contributions, id)
		}
	}
	return nil
}

func (s *Store) SetGoalStatus(_ context.Context, userID, goalID uuid.UUID, status core.GoalStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	goal, ok := s.goals[goalID]
	if !ok || goal.UserID != userID {
		return core.ErrNotFound
	}
	goal.Status = status
	goal.UpdatedAt = now
	s.goals[goalID] = goal
	return nil
}

func (s *Store) CountActiveGoals(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, goal := range s.goals {
		if goal.UserID == userID && goal.Status == core.StatusActive {
			count++
		}
	}
	return count, nil
}

func (s *Store) Append(_ context.Context, contribution core.Contribution) (services.LedgerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	goal, ok := s.goals[contribution.GoalID]
	if !ok || goal.UserID != contribution.UserID {
		return services.LedgerResult{}, core.ErrNotFound
	}
	s.contributions[contribution.ID] = contribution

	total := s.totalForGoalLocked(goal.ID)
	result := services.LedgerResult{GoalID: goal.ID, Total: total, Status: goal.Status}
	if next, changed := core.NextStatusAfterContribution(goal.Status, total, goal.TargetAmount); changed {
		goal.Status = next
		goal.UpdatedAt = contribution.Date
		s.goals[goal.ID] = goal
		result.Status = next
		result.StatusChanged = true
		result.EventID = s.recordEventLocked(goal.ID, core.EventGoalCompleted)
	}
	return result, nil
}

func (s *Store) Remove(_ context.Context, userID, contributionID uuid.UUID) (services.LedgerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contribution, ok := s.contributions[contributionID]
	if !ok || contribution.UserID != userID {
		return services.LedgerResult{}, core.ErrNotFound
	}
	delete(s.contributions, contributionID)

	goal, ok := s.goals[contribution.GoalID]
	if !ok {
		return services.LedgerResult{GoalID: contribution.GoalID, Total: decimal.Zero}, nil
	}
	total := s.totalForGoalLocked(goal.ID)
	result := services.LedgerResult{GoalID: goal.ID, Total: total, Status: goal.Status}
	if next, changed := core.NextStatusAfterDeletion(goal.Status, total, goal.TargetAmount); changed {
		goal.Status = next
		goal.UpdatedAt = time.Now().UTC()
		s.goals[goal.ID] = goal
		result.Status = next
		result.StatusChanged = true
		result.EventID = s.recordEventLocked(goal.ID, core.EventGoalReverted)
	}
	return result, nil
}

func (s *Store) ListContributions(_ context.Context, userID, goalID uuid.UUID) ([]core.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contributions := make([]core.Contribution, 0)
	for _, c := range s.contributions {
		if c.UserID == userID && c.GoalID == goalID {
			contributions = append(contributions, c)
		}
	}
	sort.Slice(contributions, func(i, j int) bool {
		if !contributions[i].Date.Equal(contributions[j].Date) {
			return contributions[i].Date.After(contributions[j].Date)
		}
		return contributions[i].ID.String() > contributions[j].ID.String()
	})
	return contributions, nil
}

func (s *Store) TotalForGoal(_ context.Context, userID, goalID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	goal, ok := s.goals[goalID]
	if !ok || goal.UserID != userID {
		return decimal.Zero, core.ErrNotFound
	}
	return s.totalForGoalLocked(goalID), nil
}

func (s *Store) TotalForUser(_ context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, c := range s.contributions {
		if c.UserID == userID {
			total = total.Add(c.Amount)
		}
	}
	return total, nil
}

func (s *Store) AddIncome(_ context.Context, income core.Income) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incomes[income.ID] = income
	return nil
}

func (s *Store) MonthlyIncome(_ context.Context, userID uuid.UUID, year int, month time.Month) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, income := range s.incomes {
		date := income.Date.UTC()
		if income.UserID == userID && date.Year() == year && date.Month() == month {
			total = total.Add(income.Amount)
		}
	}
	return total, nil
}

// Events returns recorded lifecycle events ordered by ID.
func (s *Store) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events
}

func (s *Store) totalForGoalLocked(goalID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, c := range s.contributions {
		if c.GoalID == goalID {
			total = total.Add(c.Amount)
		}
	}
	return total
}

func (s *Store) recordEventLocked(goalID uuid.UUID, event string) int64 {
	s.nextEventID++
	s.events[s.nextEventID] = Event{
		ID:        s.nextEventID,
		GoalID:    goalID,
		Event:     event,
		CreatedAt: time.Now().UTC(),
	}
	return s.nextEventID
}
