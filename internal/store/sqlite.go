package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.io/infrasutra/chainmail/internal/store/migrations"
)

const defaultListLimit = 50

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	inMemory := false
	if trimmed == "" {
		trimmed = ":memory:"
		inMemory = true
	}
	if strings.Contains(trimmed, "mode=memory") || trimmed == ":memory:" || trimmed == "file::memory:" {
		inMemory = true
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// RecordTransaction inserts the row or updates it in place when the id is
// already known. CreatedAt of an existing row is kept.
func (s *Store) RecordTransaction(ctx context.Context, tx Transaction) error {
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = time.Now()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = tx.UpdatedAt
	}
	var emailID sql.NullInt64
	if tx.EmailID != nil {
		emailID = sql.NullInt64{Int64: int64(*tx.EmailID), Valid: true}
	}
	query := `INSERT INTO transactions
        (id, account, method, email_id, tx_hash, status, error, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            email_id = COALESCE(excluded.email_id, transactions.email_id),
            tx_hash = CASE WHEN excluded.tx_hash = '' THEN transactions.tx_hash ELSE excluded.tx_hash END,
            status = excluded.status,
            error = excluded.error,
            updated_at = excluded.updated_at;`
	_, err := s.db.ExecContext(ctx, query,
		tx.ID,
		tx.Account,
		tx.Method,
		emailID,
		tx.TxHash,
		string(tx.Status),
		tx.Error,
		tx.CreatedAt.UnixNano(),
		tx.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the account's most recent journal rows, newest first.
func (s *Store) ListTransactions(ctx context.Context, account string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, account, method, email_id, tx_hash, status, error, created_at, updated_at
        FROM transactions
        WHERE account = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ?;`, account, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var (
			tx        Transaction
			emailID   sql.NullInt64
			status    string
			createdAt int64
			updatedAt int64
		)
		if err := rows.Scan(
			&tx.ID,
			&tx.Account,
			&tx.Method,
			&emailID,
			&tx.TxHash,
			&status,
			&tx.Error,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if emailID.Valid {
			id := uint64(emailID.Int64)
			tx.EmailID = &id
		}
		tx.Status = TxStatus(status)
		tx.CreatedAt = time.Unix(0, createdAt)
		tx.UpdatedAt = time.Unix(0, updatedAt)
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
