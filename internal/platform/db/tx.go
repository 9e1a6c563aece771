package db

import (
	"context"
	"database/sql"
	"errors"
	"log"
)

// DBTX: *sql.DB と *sql.Tx の共通部分。Store はどちらでも動く。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RunInTx: fn が nil を返せば COMMIT、エラーなら ROLLBACK。
// ROLLBACK 自体の失敗はログに残し、fn のエラーを優先して返す。
func RunInTx(ctx context.Context, conn *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Printf("[WARN] rollback failed: %v", rbErr)
		}
		return err
	}
	return tx.Commit()
}
