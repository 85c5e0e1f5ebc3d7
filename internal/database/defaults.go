package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/jask/pocketbook/internal/database/repository"
)

// DefaultCategories lists the category tree created for new databases.
// "Parent > Child" entries create the parent on the way.
var DefaultCategories = []string{
	"Income",
	"Food > Groceries",
	"Food > Restaurants",
	"Transport",
	"Shopping",
	"Housing",
	"Utilities",
	"Subscriptions",
	"Savings",
	"Health",
	"Entertainment",
}

// CategoryID returns the deterministic ID used for a seeded category name.
func CategoryID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("cat:"+strings.ToLower(name))).String()
}

// SeedDefaults ensures baseline categories exist for new databases.
// It is idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	return SeedCategories(ctx, repository.NewCategoryRepo(db))
}

// SeedCategories writes DefaultCategories through repo unless categories already exist.
func SeedCategories(ctx context.Context, repo *repository.CategoryRepo) error {
	existing, err := repo.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for idx, path := range DefaultCategories {
		var parentID *string
		for _, raw := range strings.Split(path, ">") {
			name := strings.TrimSpace(raw)
			id := CategoryID(name)
			cat := repository.Category{ID: id, Name: name, ParentID: parentID, SortOrder: idx}
			if err := repo.Upsert(ctx, cat); err != nil {
				return err
			}
			parentID = &id
		}
	}
	return nil
}
