package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/zerr"

	"github.com/jask/pocketbook/internal/database/repository"
)

// MonthLayout is the key format of a budget month.
const MonthLayout = "2006-01"

// BudgetLine is one category's spend against its limit for a month.
type BudgetLine struct {
	CategoryID   string
	CategoryName string
	Budgeted     int64
	Spent        int64
	Remaining    int64
	OverBudget   bool
}

// ParseMonth returns the UTC range [start, end) covered by a "2006-01" key.
func ParseMonth(month string) (start, end time.Time, err error) {
	start, err = time.Parse(MonthLayout, strings.TrimSpace(month))
	if err != nil {
		return time.Time{}, time.Time{}, zerr.With(zerr.Wrap(ErrInvalidMonth, err.Error()), "month", month)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// CurrentMonth is the budget month containing Now.
func (s *Service) CurrentMonth() string {
	return s.Now().UTC().Format(MonthLayout)
}

// SetBudget sets the default monthly limit of the named category.
func (s *Service) SetBudget(ctx context.Context, categoryName string, limit int64) (repository.Budget, error) {
	if limit < 0 {
		return repository.Budget{}, zerr.With(zerr.Wrap(ErrInvalidAmount, "set budget"), "limit", limit)
	}
	cat, err := s.ResolveCategory(ctx, categoryName)
	if err != nil {
		return repository.Budget{}, err
	}
	if err := s.Budgets.Upsert(ctx, repository.Budget{ID: uuid.NewString(), CategoryID: cat.ID, AmountCents: limit}); err != nil {
		return repository.Budget{}, zerr.Wrap(err, "save budget")
	}
	b, err := s.Budgets.ByCategory(ctx, cat.ID)
	if err != nil {
		return repository.Budget{}, zerr.Wrap(err, "load budget")
	}
	s.Log.Info("budget set", "category", cat.Name, "limit", FormatCents(limit))
	return *b, nil
}

// SetBudgetOverride replaces the named category's limit for a single month.
// The category must already have a budget.
func (s *Service) SetBudgetOverride(ctx context.Context, categoryName, month string, limit int64) error {
	start, _, err := ParseMonth(month)
	if err != nil {
		return err
	}
	if limit < 0 {
		return zerr.With(zerr.Wrap(ErrInvalidAmount, "set budget override"), "limit", limit)
	}
	cat, err := s.ResolveCategory(ctx, categoryName)
	if err != nil {
		return err
	}
	b, err := s.Budgets.ByCategory(ctx, cat.ID)
	if err != nil {
		return zerr.Wrap(err, "load budget")
	}
	if b == nil {
		return zerr.With(zerr.Wrap(ErrBudgetNotFound, "set budget override"), "category", cat.Name)
	}
	if err := s.Budgets.SetOverride(ctx, b.ID, start.Format(MonthLayout), limit); err != nil {
		return zerr.Wrap(err, "save budget override")
	}
	return nil
}

// BudgetLines computes spend against limit for every budgeted category in
// month, in category order. Only expense debits count as spend.
func (s *Service) BudgetLines(ctx context.Context, month string) ([]BudgetLine, error) {
	start, end, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}
	key := start.Format(MonthLayout)

	budgets, err := s.Budgets.List(ctx)
	if err != nil {
		return nil, zerr.Wrap(err, "list budgets")
	}
	overrides, err := s.Budgets.Overrides(ctx, key)
	if err != nil {
		return nil, zerr.Wrap(err, "list budget overrides")
	}
	spent, err := s.Transactions.SpendByCategory(ctx, start, end)
	if err != nil {
		return nil, zerr.Wrap(err, "aggregate spend")
	}
	cats, err := s.Categories.List(ctx)
	if err != nil {
		return nil, zerr.Wrap(err, "list categories")
	}

	byCategory := make(map[string]repository.Budget, len(budgets))
	for _, b := range budgets {
		byCategory[b.CategoryID] = b
	}
	lines := make([]BudgetLine, 0, len(budgets))
	for _, c := range cats {
		b, ok := byCategory[c.ID]
		if !ok {
			continue
		}
		limit := b.AmountCents
		if ov, ok := overrides[b.ID]; ok {
			limit = ov
		}
		remaining := limit - spent[c.ID]
		lines = append(lines, BudgetLine{
			CategoryID:   c.ID,
			CategoryName: c.Name,
			Budgeted:     limit,
			Spent:        spent[c.ID],
			Remaining:    remaining,
			OverBudget:   remaining < 0,
		})
	}
	return lines, nil
}
