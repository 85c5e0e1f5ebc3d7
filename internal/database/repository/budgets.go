package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// BudgetRepo handles monthly category budgets and their per-month overrides.
type BudgetRepo struct {
	db DBTX
}

func NewBudgetRepo(db DBTX) *BudgetRepo {
	return &BudgetRepo{db: db}
}

// WithTx returns a copy of the repo bound to tx.
func (r *BudgetRepo) WithTx(tx *sql.Tx) *BudgetRepo {
	return &BudgetRepo{db: tx}
}

// Upsert sets the limit for b.CategoryID. A category has at most one budget;
// an existing row keeps its ID.
func (r *BudgetRepo) Upsert(ctx context.Context, b Budget) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO budgets(id, category_id, amount, created_at, updated_at)
	VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(category_id) DO UPDATE SET
	 amount=excluded.amount,
	 updated_at=CURRENT_TIMESTAMP;
	`, b.ID, b.CategoryID, b.AmountCents)
	return err
}

const budgetColumns = `id, category_id, amount, created_at, updated_at`

func (r *BudgetRepo) List(ctx context.Context) ([]Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.CategoryID, &b.AmountCents, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ByCategory returns nil when the category has no budget.
func (r *BudgetRepo) ByCategory(ctx context.Context, categoryID string) (*Budget, error) {
	var b Budget
	err := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE category_id = ?`, categoryID).
		Scan(&b.ID, &b.CategoryID, &b.AmountCents, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// SetOverride replaces the limit of one budget for one month ("2006-01").
func (r *BudgetRepo) SetOverride(ctx context.Context, budgetID, month string, amount int64) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO budget_overrides(budget_id, month, amount) VALUES (?, ?, ?)
	ON CONFLICT(budget_id, month) DO UPDATE SET amount=excluded.amount;
	`, budgetID, month, amount)
	return err
}

// Overrides returns the overridden limits for month keyed by budget ID.
func (r *BudgetRepo) Overrides(ctx context.Context, month string) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT budget_id, amount FROM budget_overrides WHERE month = ?`, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var id string
		var amount int64
		if err := rows.Scan(&id, &amount); err != nil {
			return nil, err
		}
		out[id] = amount
	}
	return out, rows.Err()
}

// SpendByCategory sums expense debits dated in [start, end) per category, as
// positive cents. Uncategorised spend is left out.
func (r *TransactionRepo) SpendByCategory(ctx context.Context, start, end time.Time) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT category_id, COALESCE(SUM(-amount), 0)
	FROM transactions
	WHERE amount < 0
	  AND kind = ?
	  AND date >= ?
	  AND date < ?
	  AND category_id IS NOT NULL
	GROUP BY category_id
	`, KindExpense, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var id string
		var spent int64
		if err := rows.Scan(&id, &spent); err != nil {
			return nil, err
		}
		out[id] = spent
	}
	return out, rows.Err()
}
