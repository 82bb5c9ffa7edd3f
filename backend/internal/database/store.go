package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/user/papertrade/backend/internal/auth"
	"github.com/user/papertrade/backend/internal/ledger"
	"github.com/user/papertrade/backend/internal/models"
)

// PgxQuerier is satisfied by *pgxpool.Pool, pgx.Tx and their mocks.
type PgxQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// Pool is a PgxQuerier that can start transactions.
type Pool interface {
	PgxQuerier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the postgres ledger and user store.
type Store struct {
	db Pool
}

// New creates a store using db, usually a *pgxpool.Pool.
func New(db Pool) *Store {
	return &Store{db: db}
}

var (
	_ ledger.Store   = (*Store)(nil)
	_ auth.UserStore = (*Store)(nil)
)

// Begin implements ledger.Store.
func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	return &orderTx{tx: tx}, nil
}

// Cash implements ledger.Store.
func (s *Store) Cash(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return readCash(ctx, s.db, `SELECT cash FROM users WHERE id = $1`, userID)
}

// Lots implements ledger.Store.
func (s *Store) Lots(ctx context.Context, userID uuid.UUID) ([]models.Lot, error) {
	return readLots(ctx, s.db, userID)
}

// History implements ledger.Store.
func (s *Store) History(ctx context.Context, userID uuid.UUID) ([]models.HistoryRecord, error) {
	records := make([]models.HistoryRecord, 0)
	query := `SELECT id, user_id, symbol, price, shares, transacted_at
			  FROM history WHERE user_id = $1
			  ORDER BY transacted_at, id`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying history for user %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Symbol, &rec.Price, &rec.Shares, &rec.TransactedAt); err != nil {
			return nil, fmt.Errorf("error scanning history row for user %s: %w", userID, err)
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating history rows for user %s: %w", userID, rows.Err())
	}
	return records, nil
}

func readCash(ctx context.Context, q PgxQuerier, query string, userID uuid.UUID) (decimal.Decimal, error) {
	var cash decimal.Decimal
	if err := q.QueryRow(ctx, query, userID).Scan(&cash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ledger.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("error getting cash for user %s: %w", userID, err)
	}
	return cash, nil
}

func readLots(ctx context.Context, q PgxQuerier, userID uuid.UUID) ([]models.Lot, error) {
	lots := make([]models.Lot, 0)
	query := `SELECT id, user_id, symbol, company_name, shares
			  FROM holdings WHERE user_id = $1 ORDER BY id`

	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying holdings for user %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var lot models.Lot
		if err := rows.Scan(&lot.ID, &lot.UserID, &lot.Symbol, &lot.CompanyName, &lot.Shares); err != nil {
			return nil, fmt.Errorf("error scanning holding row for user %s: %w", userID, err)
		}
		lots = append(lots, lot)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating holding rows for user %s: %w", userID, rows.Err())
	}
	return lots, nil
}

// orderTx adapts a pgx transaction to ledger.Tx.
type orderTx struct {
	tx pgx.Tx
}

// LockCash locks the user's row until the transaction ends.
func (t *orderTx) LockCash(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return readCash(ctx, t.tx, `SELECT cash FROM users WHERE id = $1 FOR UPDATE`, userID)
}

func (t *orderTx) SetCash(ctx context.Context, userID uuid.UUID, cash decimal.Decimal) error {
	cmdTag, err := t.tx.Exec(ctx, `UPDATE users SET cash = $1 WHERE id = $2`, cash, userID)
	if err != nil {
		return fmt.Errorf("error updating cash for user %s: %w", userID, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return ledger.ErrUserNotFound
	}
	return nil
}

func (t *orderTx) Lots(ctx context.Context, userID uuid.UUID) ([]models.Lot, error) {
	return readLots(ctx, t.tx, userID)
}

func (t *orderTx) AddLot(ctx context.Context, lot *models.Lot) error {
	query := `INSERT INTO holdings (user_id, symbol, company_name, shares)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`

	err := t.tx.QueryRow(ctx, query, lot.UserID, lot.Symbol, lot.CompanyName, lot.Shares).Scan(&lot.ID)
	if err != nil {
		return fmt.Errorf("error inserting %s lot for user %s: %w", lot.Symbol, lot.UserID, err)
	}
	return nil
}

func (t *orderTx) ReplaceLots(ctx context.Context, userID uuid.UUID, symbol string, keep *models.Lot) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM holdings WHERE user_id = $1 AND symbol = $2`, userID, symbol); err != nil {
		return fmt.Errorf("error deleting %s lots for user %s: %w", symbol, userID, err)
	}
	if keep == nil {
		return nil
	}
	return t.AddLot(ctx, keep)
}

func (t *orderTx) AppendHistory(ctx context.Context, rec *models.HistoryRecord) error {
	query := `INSERT INTO history (user_id, symbol, price, shares, transacted_at)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`

	err := t.tx.QueryRow(ctx, query, rec.UserID, rec.Symbol, rec.Price, rec.Shares, rec.TransactedAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("error inserting history for user %s: %w", rec.UserID, err)
	}
	return nil
}

func (t *orderTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *orderTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
