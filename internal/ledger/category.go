package ledger

import (
	"context"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.trai.ch/zerr"

	"github.com/jask/pocketbook/internal/database/repository"
)

// maxCategoryDistance is the largest edit distance accepted as a typo.
const maxCategoryDistance = 2

// ResolveCategory finds a category by exact (case-insensitive) name, falling
// back to the closest name within a small edit distance.
func (s *Service) ResolveCategory(ctx context.Context, name string) (repository.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return repository.Category{}, zerr.Wrap(ErrCategoryNotFound, "empty category name")
	}
	exact, err := s.Categories.ByName(ctx, name)
	if err != nil {
		return repository.Category{}, zerr.Wrap(err, "lookup category")
	}
	if exact != nil {
		return *exact, nil
	}

	all, err := s.Categories.List(ctx)
	if err != nil {
		return repository.Category{}, zerr.Wrap(err, "list categories")
	}
	best, bestDist := -1, maxCategoryDistance+1
	needle := strings.ToLower(name)
	for i, c := range all {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(c.Name))
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	// a match must keep at least one character of the input
	if best < 0 || bestDist >= len([]rune(needle)) {
		return repository.Category{}, zerr.With(zerr.Wrap(ErrCategoryNotFound, "resolve category"), "name", name)
	}
	return all[best], nil
}

// Categorize assigns a category to an existing transaction by name.
func (s *Service) Categorize(ctx context.Context, transactionID, categoryName string) (repository.Category, error) {
	cat, err := s.ResolveCategory(ctx, categoryName)
	if err != nil {
		return repository.Category{}, err
	}
	txn, err := s.Transactions.Get(ctx, transactionID)
	if err != nil {
		return repository.Category{}, zerr.Wrap(err, "load transaction")
	}
	if txn == nil {
		return repository.Category{}, zerr.With(zerr.Wrap(ErrTxnNotFound, "categorize"), "transaction", transactionID)
	}
	if err := s.Transactions.UpdateCategory(ctx, txn.ID, &cat.ID); err != nil {
		return repository.Category{}, zerr.Wrap(err, "update category")
	}
	s.invalidate()
	return cat, nil
}
