// Package storage is the SQLite persistence layer. Monetary amounts are
// stored as integer cents so SQL sums stay exact; savings rates are stored as
// decimal strings and never aggregated in SQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"risparmio/internal/core"
	"risparmio/internal/services"

	_ "modernc.org/sqlite"
)

// GoalEvent is a recorded lifecycle event row. NotifiedAt is nil while the
// event still awaits delivery to the message broker.
type GoalEvent struct {
	ID         int64
	GoalID     uuid.UUID
	Event      string
	CreatedAt  time.Time
	NotifiedAt *time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, goal core.Goal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (id, user_id, title, target_cents, savings_rate, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		goal.ID.String(), goal.UserID.String(), goal.Title,
		core.Cents(goal.TargetAmount), goal.SavingsRate.String(), string(goal.Status),
		goal.CreatedAt.UTC().Format(time.RFC3339Nano), goal.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, userID, goalID uuid.UUID) (core.Goal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, target_cents, savings_rate, status, created_at, updated_at
		 FROM goals WHERE id = ? AND user_id = ?`,
		goalID.String(), userID.String())
	return scanGoal(row)
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID uuid.UUID) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, target_cents, savings_rate, status, created_at, updated_at
		 FROM goals WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID.String())
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	goals := make([]core.Goal, 0)
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, goal)
	}
	return goals, rows.Err()
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, goal core.Goal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET title = ?, target_cents = ?, savings_rate = ?, status = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		goal.Title, core.Cents(goal.TargetAmount), goal.SavingsRate.String(), string(goal.Status),
		goal.UpdatedAt.UTC().Format(time.RFC3339Nano),
		goal.ID.String(), goal.UserID.String())
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, userID, goalID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM goals WHERE id = ? AND user_id = ?`,
		goalID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) SetGoalStatus(ctx context.Context, userID, goalID uuid.UUID, status core.GoalStatus, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		string(status), now.UTC().Format(time.RFC3339Nano), goalID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("set goal status: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) CountActiveGoals(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM goals WHERE user_id = ? AND status = ?`,
		userID.String(), string(core.StatusActive)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active goals: %w", err)
	}
	return count, nil
}

// Append inserts a contribution and, in the same transaction, recomputes the
// goal total and applies the auto-complete rule. The returned result reflects
// the committed state.
func (r *SQLiteRepository) Append(ctx context.Context, contribution core.Contribution) (services.LedgerResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return services.LedgerResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	goal, err := getGoalTx(ctx, tx, contribution.UserID, contribution.GoalID)
	if err != nil {
		return services.LedgerResult{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO contributions (id, goal_id, user_id, amount_cents, contributed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		contribution.ID.String(), contribution.GoalID.String(), contribution.UserID.String(),
		core.Cents(contribution.Amount), contribution.Date.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return services.LedgerResult{}, fmt.Errorf("insert contribution: %w", err)
	}

	total, err := goalTotalTx(ctx, tx, contribution.GoalID)
	if err != nil {
		return services.LedgerResult{}, err
	}

	result := services.LedgerResult{GoalID: goal.ID, Total: total, Status: goal.Status}
	if next, changed := core.NextStatusAfterContribution(goal.Status, total, goal.TargetAmount); changed {
		eventID, err := flipStatusTx(ctx, tx, goal, next, core.EventGoalCompleted, contribution.Date)
		if err != nil {
			return services.LedgerResult{}, err
		}
		result.Status = next
		result.StatusChanged = true
		result.EventID = eventID
	}

	if err := tx.Commit(); err != nil {
		return services.LedgerResult{}, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// Remove deletes a contribution and applies the auto-revert rule in the same
// transaction.
func (r *SQLiteRepository) Remove(ctx context.Context, userID, contributionID uuid.UUID) (services.LedgerResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return services.LedgerResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var goalIDRaw string
	err = tx.QueryRowContext(ctx,
		`SELECT goal_id FROM contributions WHERE id = ? AND user_id = ?`,
		contributionID.String(), userID.String()).Scan(&goalIDRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return services.LedgerResult{}, core.ErrNotFound
	}
	if err != nil {
		return services.LedgerResult{}, fmt.Errorf("find contribution: %w", err)
	}
	goalID, err := uuid.Parse(goalIDRaw)
	if err != nil {
		return services.LedgerResult{}, fmt.Errorf("parse goal id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM contributions WHERE id = ?`, contributionID.String()); err != nil {
		return services.LedgerResult{}, fmt.Errorf("delete contribution: %w", err)
	}

	goal, err := getGoalTx(ctx, tx, userID, goalID)
	if err != nil {
		return services.LedgerResult{}, err
	}
	total, err := goalTotalTx(ctx, tx, goalID)
	if err != nil {
		return services.LedgerResult{}, err
	}

	result := services.LedgerResult{GoalID: goalID, Total: total, Status: goal.Status}
	if next, changed := core.NextStatusAfterDeletion(goal.Status, total, goal.TargetAmount); changed {
		eventID, err := flipStatusTx(ctx, tx, goal, next, core.EventGoalReverted, time.Now().UTC())
		if err != nil {
			return services.LedgerResult{}, err
		}
		result.Status = next
		result.StatusChanged = true
		result.EventID = eventID
	}

	if err := tx.Commit(); err != nil {
		return services.LedgerResult{}, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) ListContributions(ctx context.Context, userID, goalID uuid.UUID) ([]core.Contribution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, goal_id, user_id, amount_cents, contributed_at
		 FROM contributions WHERE user_id = ? AND goal_id = ?
		 ORDER BY contributed_at DESC, id DESC`,
		userID.String(), goalID.String())
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	contributions := make([]core.Contribution, 0)
	for rows.Next() {
		var (
			c                    core.Contribution
			id, goalRaw, userRaw string
			cents                int64
			date                 string
		)
		if err := rows.Scan(&id, &goalRaw, &userRaw, &cents, &date); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse contribution id: %w", err)
		}
		if c.GoalID, err = uuid.Parse(goalRaw); err != nil {
			return nil, fmt.Errorf("parse goal id: %w", err)
		}
		if c.UserID, err = uuid.Parse(userRaw); err != nil {
			return nil, fmt.Errorf("parse user id: %w", err)
		}
		c.Amount = core.FromCents(cents)
		if c.Date, err = time.Parse(time.RFC3339Nano, date); err != nil {
			return nil, fmt.Errorf("parse contribution date: %w", err)
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}

func (r *SQLiteRepository) TotalForGoal(ctx context.Context, userID, goalID uuid.UUID) (decimal.Decimal, error) {
	if _, err := r.GetGoal(ctx, userID, goalID); err != nil {
		return decimal.Zero, err
	}
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM contributions WHERE goal_id = ?`,
		goalID.String()).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum contributions: %w", err)
	}
	return core.FromCents(cents), nil
}

func (r *SQLiteRepository) TotalForUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM contributions WHERE user_id = ?`,
		userID.String()).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum contributions: %w", err)
	}
	return core.FromCents(cents), nil
}

func (r *SQLiteRepository) AddIncome(ctx context.Context, income core.Income) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (id, user_id, amount_cents, source, received_at)
		 VALUES (?, ?, ?, ?, ?)`,
		income.ID.String(), income.UserID.String(), core.Cents(income.Amount),
		income.Source, income.Date.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert income: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MonthlyIncome(ctx context.Context, userID uuid.UUID, year int, month time.Month) (decimal.Decimal, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM incomes
		 WHERE user_id = ? AND received_at >= ? AND received_at < ?`,
		userID.String(), start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano)).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum incomes: %w", err)
	}
	return core.FromCents(cents), nil
}

// GetGoalEvent fetches one lifecycle event by ID.
func (r *SQLiteRepository) GetGoalEvent(ctx context.Context, eventID int64) (GoalEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, goal_id, event, created_at, notified_at FROM goal_events WHERE id = ?`, eventID)
	return scanEvent(row)
}

// GetPendingEvents returns events not yet notified, oldest first.
func (r *SQLiteRepository) GetPendingEvents(ctx context.Context, limit int) ([]GoalEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, goal_id, event, created_at, notified_at FROM goal_events
		 WHERE notified_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending events: %w", err)
	}
	defer rows.Close()

	events := make([]GoalEvent, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// MarkEventNotified stamps an event as delivered.
func (r *SQLiteRepository) MarkEventNotified(ctx context.Context, eventID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goal_events SET notified_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano), eventID)
	if err != nil {
		return fmt.Errorf("mark event notified: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (core.Goal, error) {
	var (
		goal                      core.Goal
		id, userRaw, rate, status string
		cents                     int64
		createdAt, updatedAt      string
	)
	err := row.Scan(&id, &userRaw, &goal.Title, &cents, &rate, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, core.ErrNotFound
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("scan goal: %w", err)
	}
	if goal.ID, err = uuid.Parse(id); err != nil {
		return core.Goal{}, fmt.Errorf("parse goal id: %w", err)
	}
	if goal.UserID, err = uuid.Parse(userRaw); err != nil {
		return core.Goal{}, fmt.Errorf("parse user id: %w", err)
	}
	goal.TargetAmount = core.FromCents(cents)
	if goal.SavingsRate, err = decimal.NewFromString(rate); err != nil {
		return core.Goal{}, fmt.Errorf("parse savings rate: %w", err)
	}
	goal.Status = core.GoalStatus(status)
	if goal.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return core.Goal{}, fmt.Errorf("parse created_at: %w", err)
	}
	if goal.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return core.Goal{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return goal, nil
}

func scanEvent(row rowScanner) (GoalEvent, error) {
	var (
		event      GoalEvent
		goalRaw    string
		createdAt  string
		notifiedAt sql.NullString
	)
	err := row.Scan(&event.ID, &goalRaw, &event.Event, &createdAt, &notifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return GoalEvent{}, core.ErrNotFound
	}
	if err != nil {
		return GoalEvent{}, fmt.Errorf("scan event: %w", err)
	}
	if event.GoalID, err = uuid.Parse(goalRaw); err != nil {
		return GoalEvent{}, fmt.Errorf("parse goal id: %w", err)
	}
	if event.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return GoalEvent{}, fmt.Errorf("parse created_at: %w", err)
	}
	if notifiedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, notifiedAt.String)
		if err != nil {
			return GoalEvent{}, fmt.Errorf("parse notified_at: %w", err)
		}
		event.NotifiedAt = &t
	}
	return event, nil
}

func getGoalTx(ctx context.Context, tx *sql.Tx, userID, goalID uuid.UUID) (core.Goal, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, user_id, title, target_cents, savings_rate, status, created_at, updated_at
		 FROM goals WHERE id = ? AND user_id = ?`,
		goalID.String(), userID.String())
	return scanGoal(row)
}

func goalTotalTx(ctx context.Context, tx *sql.Tx, goalID uuid.UUID) (decimal.Decimal, error) {
	var cents int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM contributions WHERE goal_id = ?`,
		goalID.String()).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum contributions: %w", err)
	}
	return core.FromCents(cents), nil
}

func flipStatusTx(ctx context.Context, tx *sql.Tx, goal core.Goal, next core.GoalStatus, event string, at time.Time) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`UPDATE goals SET status = ?, updated_at = ? WHERE id = ?`,
		string(next), at.UTC().Format(time.RFC3339Nano), goal.ID.String())
	if err != nil {
		return 0, fmt.Errorf("flip goal status: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO goal_events (goal_id, event, created_at) VALUES (?, ?, ?)`,
		goal.ID.String(), event, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("record goal event: %w", err)
	}
	eventID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("event id: %w", err)
	}
	return eventID, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
