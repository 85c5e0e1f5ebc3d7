package repository

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repos can join a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// FieldCipher seals sensitive column values before they reach the database.
type FieldCipher interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

type plaintext struct{}

func (plaintext) Seal(s string) (string, error) { return s, nil }
func (plaintext) Open(s string) (string, error) { return s, nil }

func cipherOrPlain(c FieldCipher) FieldCipher {
	if c == nil {
		return plaintext{}
	}
	return c
}

// scanner handles both Row and Rows.
type scanner interface {
	Scan(dest ...any) error
}
