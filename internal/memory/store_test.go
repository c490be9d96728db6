package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"risparmio/internal/core"
)

func TestListGoalsNewestFirst(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, title := range []string{"vecchio", "medio", "nuovo"} {
		goal := core.NewGoal(userID, title, decimal.New(100, 0), decimal.New(20, -2), base.AddDate(0, 0, i))
		if err := store.CreateGoal(ctx, goal); err != nil {
			t.Fatalf("CreateGoal() error = %v", err)
		}
	}

	goals, err := store.ListGoals(ctx, userID)
	if err != nil {
		t.Fatalf("ListGoals() error = %v", err)
	}
	want := []string{"nuovo", "medio", "vecchio"}
	for i, goal := range goals {
		if goal.Title != want[i] {
			t.Errorf("goals[%d].Title = %q, want %q", i, goal.Title, want[i])
		}
	}
}

func TestMonthlyIncomeFiltersByMonth(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	userID := uuid.New()

	add := func(amount string, date time.Time) {
		t.Helper()
		d, _ := decimal.NewFromString(amount)
		income := core.Income{ID: uuid.New(), UserID: userID, Amount: d, Source: "stipendio", Date: date}
		if err := store.AddIncome(ctx, income); err != nil {
			t.Fatalf("AddIncome() error = %v", err)
		}
	}
	add("2500", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	add("300.50", time.Date(2026, 5, 28, 0, 0, 0, 0, time.UTC))
	add("2500", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	total, err := store.MonthlyIncome(ctx, userID, 2026, time.May)
	if err != nil {
		t.Fatalf("MonthlyIncome() error = %v", err)
	}
	if want, _ := decimal.NewFromString("2800.50"); !total.Equal(want) {
		t.Errorf("MonthlyIncome() = %s, want %s", total, want)
	}

	other, err := store.MonthlyIncome(ctx, uuid.New(), 2026, time.May)
	if err != nil {
		t.Fatalf("MonthlyIncome() error = %v", err)
	}
	if !other.IsZero() {
		t.Errorf("MonthlyIncome() for other user = %s, want 0", other)
	}
}
