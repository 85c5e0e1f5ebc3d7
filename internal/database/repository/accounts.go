package repository

import (
	"context"
	"database/sql"
	"errors"
)

// AccountRepo handles accounts.
type AccountRepo struct {
	db     DBTX
	cipher FieldCipher
}

func NewAccountRepo(db DBTX, cipher FieldCipher) *AccountRepo {
	return &AccountRepo{db: db, cipher: cipherOrPlain(cipher)}
}

// WithTx returns a copy of the repo bound to tx.
func (r *AccountRepo) WithTx(tx *sql.Tx) *AccountRepo {
	return &AccountRepo{db: tx, cipher: r.cipher}
}

func (r *AccountRepo) Upsert(ctx context.Context, a Account) error {
	number, err := r.cipher.Seal(a.Number)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO accounts(id, name, institution, account_type, balance, number_enc, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 institution=excluded.institution,
	 account_type=excluded.account_type,
	 number_enc=excluded.number_enc,
	 updated_at=CURRENT_TIMESTAMP;
	`, a.ID, a.Name, a.Institution, a.AccountType, a.BalanceCents, number)
	return err
}

const accountColumns = `id, name, institution, account_type, balance, number_enc, created_at, updated_at`

func (r *AccountRepo) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Get returns nil when the account does not exist.
func (r *AccountRepo) Get(ctx context.Context, id string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// ByName matches case-insensitively and returns nil when nothing matches.
func (r *AccountRepo) ByName(ctx context.Context, name string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE name = ? COLLATE NOCASE`, name)
	a, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// AddBalance shifts the stored balance by delta cents.
func (r *AccountRepo) AddBalance(ctx context.Context, id string, delta int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET balance = balance + ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, delta, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *AccountRepo) scan(row scanner) (Account, error) {
	var a Account
	var number string
	if err := row.Scan(&a.ID, &a.Name, &a.Institution, &a.AccountType, &a.BalanceCents, &number, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	plain, err := r.cipher.Open(number)
	if err != nil {
		return Account{}, err
	}
	a.Number = plain
	return a, nil
}
