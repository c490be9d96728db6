package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"risparmio/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "risparmio.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func seedGoal(t *testing.T, repo *SQLiteRepository, userID uuid.UUID, target string) core.Goal {
	t.Helper()
	goal := core.NewGoal(userID, "Vacanze", dec(t, target), dec(t, "0.20"), time.Now().UTC())
	if err := repo.CreateGoal(context.Background(), goal); err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	return goal
}

func TestGoalRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	goal := seedGoal(t, repo, userID, "1234.56")

	got, err := repo.GetGoal(ctx, userID, goal.ID)
	if err != nil {
		t.Fatalf("GetGoal() error = %v", err)
	}
	if got.Title != goal.Title {
		t.Errorf("Title = %q, want %q", got.Title, goal.Title)
	}
	if !got.TargetAmount.Equal(dec(t, "1234.56")) {
		t.Errorf("TargetAmount = %s, want 1234.56", got.TargetAmount)
	}
	if !got.SavingsRate.Equal(dec(t, "0.20")) {
		t.Errorf("SavingsRate = %s, want 0.20", got.SavingsRate)
	}
	if got.Status != core.StatusActive {
		t.Errorf("Status = %s, want %s", got.Status, core.StatusActive)
	}

	if _, err := repo.GetGoal(ctx, uuid.New(), goal.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetGoal() with wrong user error = %v, want %v", err, core.ErrNotFound)
	}
}

func TestAppendAutoCompletesInOneTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	goal := seedGoal(t, repo, userID, "500")

	contribute := func(amount string) (total decimal.Decimal, changed bool, eventID int64) {
		t.Helper()
		result, err := repo.Append(ctx, core.Contribution{
			ID:     uuid.New(),
			GoalID: goal.ID,
			UserID: userID,
			Amount: dec(t, amount),
			Date:   time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		return result.Total, result.StatusChanged, result.EventID
	}

	total, changed, _ := contribute("200")
	if changed {
		t.Error("Append() changed status before target reached")
	}
	if !total.Equal(dec(t, "200")) {
		t.Errorf("Total = %s, want 200", total)
	}

	total, changed, eventID := contribute("300")
	if !changed {
		t.Fatal("Append() did not flip goal to completed at target")
	}
	if !total.Equal(dec(t, "500")) {
		t.Errorf("Total = %s, want 500", total)
	}

	got, err := repo.GetGoal(ctx, userID, goal.ID)
	if err != nil {
		t.Fatalf("GetGoal() error = %v", err)
	}
	if got.Status != core.StatusCompleted {
		t.Errorf("Status = %s, want %s", got.Status, core.StatusCompleted)
	}

	event, err := repo.GetGoalEvent(ctx, eventID)
	if err != nil {
		t.Fatalf("GetGoalEvent() error = %v", err)
	}
	if event.Event != core.EventGoalCompleted || event.GoalID != goal.ID {
		t.Errorf("event = %+v, want %s for goal %s", event, core.EventGoalCompleted, goal.ID)
	}
	if event.NotifiedAt != nil {
		t.Error("new event already marked notified")
	}
}

func TestRemoveRevertsCompletedGoal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	goal := seedGoal(t, repo, userID, "100")

	contribution := core.Contribution{
		ID:     uuid.New(),
		GoalID: goal.ID,
		UserID: userID,
		Amount: dec(t, "100"),
		Date:   time.Now().UTC(),
	}
	if _, err := repo.Append(ctx, contribution); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	result, err := repo.Remove(ctx, userID, contribution.ID)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !result.StatusChanged || result.Status != core.StatusActive {
		t.Errorf("Remove() = %+v, want revert to active", result)
	}
	if !result.Total.IsZero() {
		t.Errorf("Total = %s, want 0", result.Total)
	}

	event, err := repo.GetGoalEvent(ctx, result.EventID)
	if err != nil {
		t.Fatalf("GetGoalEvent() error = %v", err)
	}
	if event.Event != core.EventGoalReverted {
		t.Errorf("event = %q, want %q", event.Event, core.EventGoalReverted)
	}
}

func TestRemoveUnknownContribution(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.Remove(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Remove() error = %v, want %v", err, core.ErrNotFound)
	}
}

func TestDeleteGoalCascadesContributions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	goal := seedGoal(t, repo, userID, "1000")

	if _, err := repo.Append(ctx, core.Contribution{
		ID: uuid.New(), GoalID: goal.ID, UserID: userID,
		Amount: dec(t, "50"), Date: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := repo.DeleteGoal(ctx, userID, goal.ID); err != nil {
		t.Fatalf("DeleteGoal() error = %v", err)
	}
	total, err := repo.TotalForUser(ctx, userID)
	if err != nil {
		t.Fatalf("TotalForUser() error = %v", err)
	}
	if !total.IsZero() {
		t.Errorf("TotalForUser() = %s after cascade delete, want 0", total)
	}
}

func TestMonthlyIncomeBoundaries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	add := func(amount string, date time.Time) {
		t.Helper()
		err := repo.AddIncome(ctx, core.Income{
			ID: uuid.New(), UserID: userID, Amount: dec(t, amount), Source: "stipendio", Date: date,
		})
		if err != nil {
			t.Fatalf("AddIncome() error = %v", err)
		}
	}
	add("2000", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	add("150.25", time.Date(2026, 4, 30, 23, 59, 0, 0, time.UTC))
	add("2000", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	total, err := repo.MonthlyIncome(ctx, userID, 2026, time.April)
	if err != nil {
		t.Fatalf("MonthlyIncome() error = %v", err)
	}
	if !total.Equal(dec(t, "2150.25")) {
		t.Errorf("MonthlyIncome() = %s, want 2150.25", total)
	}
}

func TestPendingEventsLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	goal := seedGoal(t, repo, userID, "10")

	result, err := repo.Append(ctx, core.Contribution{
		ID: uuid.New(), GoalID: goal.ID, UserID: userID,
		Amount: dec(t, "10"), Date: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	pending, err := repo.GetPendingEvents(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingEvents() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != result.EventID {
		t.Fatalf("pending = %+v, want event %d", pending, result.EventID)
	}

	if err := repo.MarkEventNotified(ctx, result.EventID, time.Now().UTC()); err != nil {
		t.Fatalf("MarkEventNotified() error = %v", err)
	}
	pending, err = repo.GetPendingEvents(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingEvents() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after mark = %d events, want 0", len(pending))
	}
}
