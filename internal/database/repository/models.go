package repository

import "time"

// Account types. Credit accounts may run a negative balance.
const (
	AccountChecking = "checking"
	AccountSavings  = "savings"
	AccountCredit   = "credit"
	AccountCash     = "cash"
)

// Transaction kinds.
const (
	KindExpense    = "expense"
	KindIncome     = "income"
	KindAdjustment = "adjustment"
	KindTransfer   = "transfer"
)

// Account represents an account row. Number is stored encrypted.
type Account struct {
	ID           string
	Name         string
	Institution  string
	AccountType  string
	BalanceCents int64
	Number       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Category represents a category row.
type Category struct {
	ID        string
	ParentID  *string
	Name      string
	Icon      *string
	SortOrder int
}

// Transaction represents a transaction row. Note is stored encrypted.
type Transaction struct {
	ID             string
	AccountID      string
	Date           time.Time
	AmountCents    int64
	RawDescription string
	CategoryID     *string
	Kind           string
	TransferID     *string
	Note           string
	SourceHash     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Budget is a monthly spending limit for one category.
type Budget struct {
	ID          string
	CategoryID  string
	AmountCents int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
