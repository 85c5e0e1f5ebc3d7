package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// TransactionFilters defines list filters.
type TransactionFilters struct {
	AccountID  string
	CategoryID string
	Kind       string
	Month      time.Time // use first day of month; zero time = no month filter
	Search     string
}

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db     DBTX
	cipher FieldCipher
}

func NewTransactionRepo(db DBTX, cipher FieldCipher) *TransactionRepo {
	return &TransactionRepo{db: db, cipher: cipherOrPlain(cipher)}
}

// WithTx returns a copy of the repo bound to tx.
func (r *TransactionRepo) WithTx(tx *sql.Tx) *TransactionRepo {
	return &TransactionRepo{db: tx, cipher: r.cipher}
}

func (r *TransactionRepo) Insert(ctx context.Context, t Transaction) error {
	note, err := r.cipher.Seal(t.Note)
	if err != nil {
		return err
	}
	kind := t.Kind
	if kind == "" {
		kind = KindExpense
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO transactions(
	 id, account_id, date, amount, description, category_id, kind, transfer_id, note_enc, source_hash, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`,
		t.ID, t.AccountID, t.Date.UTC(), t.AmountCents, t.RawDescription,
		t.CategoryID, kind, t.TransferID, note, t.SourceHash)
	return err
}

func (r *TransactionRepo) UpdateCategory(ctx context.Context, id string, categoryID *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET category_id = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, categoryID, id)
	return err
}

const transactionColumns = `id, account_id, date, amount, description, category_id, kind, transfer_id, note_enc, source_hash, created_at, updated_at`

func (r *TransactionRepo) List(ctx context.Context, f TransactionFilters) ([]Transaction, error) {
	var where []string
	var args []any

	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if !f.Month.IsZero() {
		start := time.Date(f.Month.Year(), f.Month.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		where = append(where, "date >= ? AND date < ?")
		args = append(args, start, end)
	}
	if f.Search != "" {
		where = append(where, "description LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC"
	return r.query(ctx, query, args...)
}

// Between returns transactions dated in [start, end), newest first.
func (r *TransactionRepo) Between(ctx context.Context, start, end time.Time) ([]Transaction, error) {
	return r.query(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE date >= ? AND date < ? ORDER BY date DESC, created_at DESC",
		start.UTC(), end.UTC())
}

// ByTransfer returns both legs of a transfer.
func (r *TransactionRepo) ByTransfer(ctx context.Context, transferID string) ([]Transaction, error) {
	return r.query(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE transfer_id = ? ORDER BY amount", transferID)
}

// Get returns nil when the transaction does not exist.
func (r *TransactionRepo) Get(ctx context.Context, id string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	t, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepo) query(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// scan handles nullable fields and decrypts the note.
func (r *TransactionRepo) scan(row scanner) (Transaction, error) {
	var t Transaction
	var category, transfer, source sql.NullString
	var note string
	if err := row.Scan(&t.ID, &t.AccountID, &t.Date, &t.AmountCents, &t.RawDescription,
		&category, &t.Kind, &transfer, &note, &source, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	if category.Valid {
		t.CategoryID = &category.String
	}
	if transfer.Valid {
		t.TransferID = &transfer.String
	}
	if source.Valid {
		t.SourceHash = &source.String
	}
	plain, err := r.cipher.Open(note)
	if err != nil {
		return Transaction{}, err
	}
	t.Note = plain
	return t, nil
}
