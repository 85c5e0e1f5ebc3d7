package testdata

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/zerr"

	"github.com/jask/pocketbook/internal/database"
	"github.com/jask/pocketbook/internal/database/repository"
)

// ErrAlreadySeeded is returned when the sample accounts already exist.
var ErrAlreadySeeded = zerr.New("sample data already present")

// Repos bundles repos used by Seed.
type Repos struct {
	Accounts     *repository.AccountRepo
	Categories   *repository.CategoryRepo
	Transactions *repository.TransactionRepo
}

// Result counts what Seed wrote.
type Result struct {
	Accounts     int
	Transactions int
}

type sample struct {
	desc     string
	category string
	min, max int64 // cents, inclusive
	income   bool
}

var samples = []sample{
	{desc: "UBER EATS* SUSHI", category: "Restaurants", min: 1800, max: 6500},
	{desc: "WOOLWORTHS", category: "Groceries", min: 2500, max: 18000},
	{desc: "SPOTIFY", category: "Subscriptions", min: 1299, max: 1299},
	{desc: "METRO TRAINS MYKI", category: "Transport", min: 500, max: 5000},
	{desc: "CHEMIST WAREHOUSE", category: "Health", min: 900, max: 7500},
	{desc: "SALARY ACME", category: "Income", min: 310000, max: 310000, income: true},
}

// AccountID is the deterministic ID of a sample account.
func AccountID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("acct:"+strings.ToLower(name))).String()
}

// Seed creates default categories, two sample accounts and days worth of
// transactions ending at now. The same seed always produces the same amounts
// and dates.
func Seed(ctx context.Context, repos Repos, now time.Time, days int, seed uint64) (Result, error) {
	var res Result
	if days <= 0 {
		days = 10
	}
	checking := repository.Account{
		ID: AccountID("Sample Checking"), Name: "Sample Checking", Institution: "Sample Bank",
		AccountType: repository.AccountChecking, BalanceCents: 250000, Number: "062-000 12345678",
	}
	credit := repository.Account{
		ID: AccountID("Sample Credit"), Name: "Sample Credit", Institution: "Sample Bank",
		AccountType: repository.AccountCredit,
	}

	existing, err := repos.Accounts.Get(ctx, checking.ID)
	if err != nil {
		return res, err
	}
	if existing != nil {
		return res, ErrAlreadySeeded
	}
	if err := database.SeedCategories(ctx, repos.Categories); err != nil {
		return res, zerr.Wrap(err, "seed categories")
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var txns []repository.Transaction
	for day := range days {
		date := now.AddDate(0, 0, -day).Truncate(time.Hour)
		for range 2 {
			sm := samples[rng.IntN(len(samples))]
			acct := &checking
			if !sm.income && rng.IntN(3) == 0 {
				acct = &credit
			}
			amount := sm.min
			if sm.max > sm.min {
				amount += rng.Int64N(sm.max - sm.min + 1)
			}
			if !sm.income {
				amount = -amount
			}
			cat := database.CategoryID(sm.category)
			kind := repository.KindExpense
			if sm.income {
				kind = repository.KindIncome
			}
			txns = append(txns, repository.Transaction{
				ID:             uuid.NewString(),
				AccountID:      acct.ID,
				Date:           date,
				AmountCents:    amount,
				RawDescription: sm.desc,
				CategoryID:     &cat,
				Kind:           kind,
			})
			acct.BalanceCents += amount
		}
	}

	for _, a := range []repository.Account{checking, credit} {
		if err := repos.Accounts.Upsert(ctx, a); err != nil {
			return res, zerr.With(zerr.Wrap(err, "insert sample account"), "account", a.Name)
		}
		res.Accounts++
	}
	for _, t := range txns {
		if err := repos.Transactions.Insert(ctx, t); err != nil {
			return res, zerr.Wrap(err, "insert sample transaction")
		}
		res.Transactions++
	}
	return res, nil
}
