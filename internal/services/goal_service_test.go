package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"risparmio/internal/core"
	"risparmio/internal/memory"
	"risparmio/internal/services"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *capturePublisher) PublishGoalEvent(_ context.Context, _ int64, event string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func newService(t *testing.T) (*services.GoalService, *memory.Store, *capturePublisher) {
	t.Helper()
	store := memory.NewStore()
	publisher := &capturePublisher{}
	svc := services.NewGoalService(store, store, store, publisher, nil)
	return svc, store, publisher
}

func TestCreateGoalValidation(t *testing.T) {
	svc, _, _ := newService(t)
	userID := uuid.New()

	tests := []struct {
		name    string
		title   string
		target  string
		rate    string
		wantErr error
	}{
		{"empty title", "  ", "1000", "0.20", core.ErrEmptyTitle},
		{"zero target", "Vacanze", "0", "0.20", core.ErrInvalidTarget},
		{"negative target", "Vacanze", "-50", "0.20", core.ErrInvalidTarget},
		{"rate too high", "Vacanze", "1000", "1.5", core.ErrInvalidSavingsRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateGoal(context.Background(), userID, tt.title, dec(t, tt.target), dec(t, tt.rate))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateGoal() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateGoalDefaultsRate(t *testing.T) {
	svc, _, _ := newService(t)
	goal, err := svc.CreateGoal(context.Background(), uuid.New(), "Fondo emergenza", dec(t, "5000"), decimal.Zero)
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	if !goal.SavingsRate.Equal(core.DefaultSavingsRate) {
		t.Errorf("SavingsRate = %s, want %s", goal.SavingsRate, core.DefaultSavingsRate)
	}
	if goal.Status != core.StatusActive {
		t.Errorf("Status = %s, want %s", goal.Status, core.StatusActive)
	}
}

func TestContributeComputesProgress(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	userID := uuid.New()

	goal, err := svc.CreateGoal(ctx, userID, "Vacanze", dec(t, "1000"), dec(t, "0.20"))
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	if _, err := svc.AddIncome(ctx, userID, dec(t, "5000"), "stipendio", time.Now().UTC()); err != nil {
		t.Fatalf("AddIncome() error = %v", err)
	}

	progress, completed, err := svc.Contribute(ctx, userID, goal.ID, dec(t, "300"), time.Time{})
	if err != nil {
		t.Fatalf("Contribute() error = %v", err)
	}
	if completed {
		t.Error("Contribute() completed = true, want false")
	}
	p := progress.Projection
	if !p.MonthlyAllocation.Equal(dec(t, "1000")) {
		t.Errorf("MonthlyAllocation = %s, want 1000", p.MonthlyAllocation)
	}
	if !p.TotalContributed.Equal(dec(t, "300")) {
		t.Errorf("TotalContributed = %s, want 300", p.TotalContributed)
	}
	if !p.RemainingAmount.Equal(dec(t, "700")) {
		t.Errorf("RemainingAmount = %s, want 700", p.RemainingAmount)
	}
	if !p.ProgressPercent.Equal(dec(t, "30")) {
		t.Errorf("ProgressPercent = %s, want 30", p.ProgressPercent)
	}
	if p.MonthsNeeded != 1 {
		t.Errorf("MonthsNeeded = %d, want 1", p.MonthsNeeded)
	}
	if !p.Achievable {
		t.Error("Achievable = false, want true")
	}
}

func TestContributeAutoCompletes(t *testing.T) {
	svc, store, publisher := newService(t)
	ctx := context.Background()
	userID := uuid.New()

	goal, err := svc.CreateGoal(ctx, userID, "Bici nuova", dec(t, "500"), dec(t, "0.10"))
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}

	if _, _, err := svc.Contribute(ctx, userID, goal.ID, dec(t, "200"), time.Time{}); err != nil {
		t.Fatalf("Contribute() error = %v", err)
	}
	progress, completed, err := svc.Contribute(ctx, userID, goal.ID, dec(t, "300"), time.Time{})
	if err != nil {
		t.Fatalf("Contribute() error = %v", err)
	}
	if !completed {
		t.Fatal("Contribute() completed = false, want true")
	}
	if progress.Goal.Status != core.StatusCompleted {
		t.Errorf("Status = %s, want %s", progress.Goal.Status, core.StatusCompleted)
	}
	if !progress.Projection.ProgressPercent.Equal(dec(t, "100")) {
		t.Errorf("ProgressPercent = %s, want 100", progress.Projection.ProgressPercent)
	}

	events := store.Events()
	if len(events) != 1 || events[0].Event != core.EventGoalCompleted {
		t.Fatalf("events = %+v, want one %s", events, core.EventGoalCompleted)
	}
	if got := publisher.published(); len(got) != 1 || got[0] != core.EventGoalCompleted {
		t.Errorf("published = %v, want [%s]", got, core.EventGoalCompleted)
	}

	// Completed goals stop accepting contributions.
	if _, _, err := svc.Contribute(ctx, userID, goal.ID, dec(t, "10"), time.Time{}); !errors.Is(err, core.ErrGoalNotActive) {
		t.Errorf("Contribute() error = %v, want %v", err, core.ErrGoalNotActive)
	}
}

func TestContributeRejectsPausedGoal(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	userID := uuid.New()

	goal, err := svc.CreateGoal(ctx, userID, "Auto", dec(t, "8000"), dec(t, "0.25"))
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	if _, err := svc.PauseGoal(ctx, userID, goal.ID); err != nil {
		t.Fatalf("PauseGoal() error = %v", err)
	}
	if _, _, err := svc.Contribute(ctx, userID, goal.ID, dec(t, "100"), time.Time{}); !errors.Is(err, core.ErrGoalNotActive) {
		t.Errorf("Contribute() error = %v, want %v", err, core.ErrGoalNotActive)
	}
}

func TestDeleteContributionRevertsCompletedGoal(t *testing.T) {
	svc, _, publisher := newService(t)
	ctx := context.Background()
	userID := uuid.New()

	goal, err := svc.CreateGoal(ctx, userID, "Tastiera", dec(t, "100"), dec(t, "0.05"))
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	if _, completed, err := svc.Contribute(ctx, userID, goal.ID, dec(t, "100"), time.Time{}); err != nil || !completed {
		t.Fatalf("Contribute() = completed %v, err %v; want true, nil", completed, err)
	}

	contributions, err := svc.ListContributions(ctx, userID, goal.ID)
	if err != nil || len(contributions) != 1 {
		t.Fatalf("ListContributions() = %d entries, err %v", len(contributions), err)
	}
	if err := svc.DeleteContribution(ctx, userID, contributions[0].ID); err != nil {
		t.Fatalf("DeleteContribution() error = %v", err)
	}

	got, err := svc.GetGoal(ctx, userID, goal.ID)
	if err != nil {
		t.Fatalf("GetGoal() error = %v", err)
	}
	if got.Status != core.StatusActive {
		t.Errorf("Status = %s, want %s", got.Status, core.StatusActive)
	}
	events := publisher.published()
	if len(events) != 2 || events[1] != core.EventGoalReverted {
		t.Errorf("published = %v, want [... %s]", events, core.EventGoalReverted)
	}
}

func TestDeleteContributionNotFound(t *testing.T) {
	svc, _, _ := newService(t)
	err := svc.DeleteContribution(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteContribution() error = %v, want %v", err, core.ErrNotFound)
	}
}

func TestAllGoalsProgressSplitsPool(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.CreateGoal(ctx, userID, "Vacanze", dec(t, "1000"), dec(t, "0.20"))
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	if _, err := svc.CreateGoal(ctx, userID, "Fondo emergenza", dec(t, "3000"), dec(t, "0.20")); err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	if _, err := svc.AddIncome(ctx, userID, dec(t, "4000"), "stipendio", time.Now().UTC()); err != nil {
		t.Fatalf("AddIncome() error = %v", err)
	}
	if _, _, err := svc.Contribute(ctx, userID, first.ID, dec(t, "250"), time.Time{}); err != nil {
		t.Fatalf("Contribute() error = %v", err)
	}

	portfolio, err := svc.AllGoalsProgress(ctx, userID, false)
	if err != nil {
		t.Fatalf("AllGoalsProgress() error = %v", err)
	}
	if portfolio.ActiveGoalsCount != 2 {
		t.Errorf("ActiveGoalsCount = %d, want 2", portfolio.ActiveGoalsCount)
	}
	if !portfolio.TotalSavingsPool.Equal(dec(t, "800")) {
		t.Errorf("TotalSavingsPool = %s, want 800", portfolio.TotalSavingsPool)
	}
	if !portfolio.TotalContributed.Equal(dec(t, "250")) {
		t.Errorf("TotalContributed = %s, want 250", portfolio.TotalContributed)
	}
	if len(portfolio.Goals) != 2 {
		t.Fatalf("len(Goals) = %d, want 2", len(portfolio.Goals))
	}
	for _, gp := range portfolio.Goals {
		if !gp.Projection.MonthlyAllocation.Equal(dec(t, "400")) {
			t.Errorf("MonthlyAllocation = %s, want 400 (pool split across 2 goals)", gp.Projection.MonthlyAllocation)
		}
	}
}

func TestAllGoalsProgressEmpty(t *testing.T) {
	svc, _, _ := newService(t)
	portfolio, err := svc.AllGoalsProgress(context.Background(), uuid.New(), false)
	if err != nil {
		t.Fatalf("AllGoalsProgress() error = %v", err)
	}
	if len(portfolio.Goals) != 0 {
		t.Errorf("len(Goals) = %d, want 0", len(portfolio.Goals))
	}
	if !portfolio.TotalSavingsPool.IsZero() {
		t.Errorf("TotalSavingsPool = %s, want 0", portfolio.TotalSavingsPool)
	}
}

func TestAllGoalsProgressHidesInactive(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	userID := uuid.New()

	active, err := svc.CreateGoal(ctx, userID, "Attivo", dec(t, "500"), dec(t, "0.20"))
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	paused, err := svc.CreateGoal(ctx, userID, "In pausa", dec(t, "500"), dec(t, "0.20"))
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	if _, err := svc.PauseGoal(ctx, userID, paused.ID); err != nil {
		t.Fatalf("PauseGoal() error = %v", err)
	}

	portfolio, err := svc.AllGoalsProgress(ctx, userID, false)
	if err != nil {
		t.Fatalf("AllGoalsProgress() error = %v", err)
	}
	if len(portfolio.Goals) != 1 || portfolio.Goals[0].Goal.ID != active.ID {
		t.Errorf("default listing = %d goals, want only the active one", len(portfolio.Goals))
	}

	portfolio, err = svc.AllGoalsProgress(ctx, userID, true)
	if err != nil {
		t.Fatalf("AllGoalsProgress(include inactive) error = %v", err)
	}
	if len(portfolio.Goals) != 2 {
		t.Errorf("inclusive listing = %d goals, want 2", len(portfolio.Goals))
	}
}

func TestUpdateGoalTransitions(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	userID := uuid.New()

	goal, err := svc.CreateGoal(ctx, userID, "Monitor", dec(t, "400"), dec(t, "0.15"))
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	if _, err := svc.CompleteGoal(ctx, userID, goal.ID); err != nil {
		t.Fatalf("CompleteGoal() error = %v", err)
	}

	paused := core.StatusPaused
	if _, err := svc.UpdateGoal(ctx, userID, goal.ID, services.GoalUpdate{Status: &paused}); !errors.Is(err, core.ErrInvalidStatus) {
		t.Errorf("UpdateGoal(completed -> paused) error = %v, want %v", err, core.ErrInvalidStatus)
	}

	resumed, err := svc.ResumeGoal(ctx, userID, goal.ID)
	if err != nil {
		t.Fatalf("ResumeGoal() error = %v", err)
	}
	if resumed.Status != core.StatusActive {
		t.Errorf("Status = %s, want %s", resumed.Status, core.StatusActive)
	}

	newTitle := "Monitor 4K"
	newTarget := dec(t, "550")
	updated, err := svc.UpdateGoal(ctx, userID, goal.ID, services.GoalUpdate{Title: &newTitle, TargetAmount: &newTarget})
	if err != nil {
		t.Fatalf("UpdateGoal() error = %v", err)
	}
	if updated.Title != newTitle || !updated.TargetAmount.Equal(newTarget) {
		t.Errorf("UpdateGoal() = %q/%s, want %q/%s", updated.Title, updated.TargetAmount, newTitle, newTarget)
	}
}

func TestGoalProgressNoIncome(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	userID := uuid.New()

	goal, err := svc.CreateGoal(ctx, userID, "Viaggio", dec(t, "2000"), dec(t, "0.30"))
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	progress, err := svc.GoalProgress(ctx, userID, goal.ID)
	if err != nil {
		t.Fatalf("GoalProgress() error = %v", err)
	}
	p := progress.Projection
	if p.Achievable {
		t.Error("Achievable = true, want false with no income")
	}
	if !p.MonthlyAllocation.IsZero() {
		t.Errorf("MonthlyAllocation = %s, want 0", p.MonthlyAllocation)
	}
	if p.EstimatedCompletion != nil {
		t.Errorf("EstimatedCompletion = %v, want nil", p.EstimatedCompletion)
	}
}

func TestTotalSaved(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	userID := uuid.New()

	a, _ := svc.CreateGoal(ctx, userID, "A", dec(t, "1000"), dec(t, "0.20"))
	b, _ := svc.CreateGoal(ctx, userID, "B", dec(t, "1000"), dec(t, "0.20"))
	if _, _, err := svc.Contribute(ctx, userID, a.ID, dec(t, "120.50"), time.Time{}); err != nil {
		t.Fatalf("Contribute() error = %v", err)
	}
	if _, _, err := svc.Contribute(ctx, userID, b.ID, dec(t, "79.50"), time.Time{}); err != nil {
		t.Fatalf("Contribute() error = %v", err)
	}

	total, err := svc.TotalSaved(ctx, userID)
	if err != nil {
		t.Fatalf("TotalSaved() error = %v", err)
	}
	if !total.Equal(dec(t, "200")) {
		t.Errorf("TotalSaved() = %s, want 200", total)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()

	goal, err := svc.CreateGoal(ctx, owner, "Privato", dec(t, "100"), dec(t, "0.10"))
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	if _, err := svc.GetGoal(ctx, other, goal.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetGoal() error = %v, want %v", err, core.ErrNotFound)
	}
	if _, _, err := svc.Contribute(ctx, other, goal.ID, dec(t, "10"), time.Time{}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Contribute() error = %v, want %v", err, core.ErrNotFound)
	}
}
