package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/papertrade/backend/internal/auth"
	"github.com/user/papertrade/backend/internal/ledger"
	"github.com/user/papertrade/backend/internal/models"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock)
}

func TestOrderTxAppliesBuy(t *testing.T) {
	ctx := context.Background()
	mock, store := newMock(t)
	userID := uuid.New()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT cash FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"cash"}).AddRow(decimal.RequireFromString("10000")))
	mock.ExpectExec(`UPDATE users SET cash`).
		WithArgs(pgxmock.AnyArg(), userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO holdings`).
		WithArgs(userID, "AAA", "AAA Corp", int64(10)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery(`INSERT INTO history`).
		WithArgs(userID, "AAA", pgxmock.AnyArg(), int64(10), now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectCommit()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	cash, err := tx.LockCash(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "10000", cash.String())

	require.NoError(t, tx.SetCash(ctx, userID, decimal.RequireFromString("9500")))

	lot := &models.Lot{UserID: userID, Symbol: "AAA", CompanyName: "AAA Corp", Shares: 10}
	require.NoError(t, tx.AddLot(ctx, lot))
	assert.EqualValues(t, 7, lot.ID)

	rec := &models.HistoryRecord{UserID: userID, Symbol: "AAA", Price: decimal.RequireFromString("50"), Shares: 10, TransactedAt: now}
	require.NoError(t, tx.AppendHistory(ctx, rec))
	assert.EqualValues(t, 42, rec.ID)

	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderTxLockUnknownUser(t *testing.T) {
	ctx := context.Background()
	mock, store := newMock(t)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT cash FROM users`).WithArgs(userID).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.LockCash(ctx, userID)
	assert.ErrorIs(t, err, ledger.ErrUserNotFound)
	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceLots(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("delete only", func(t *testing.T) {
		mock, store := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM holdings`).
			WithArgs(userID, "AAA").
			WillReturnResult(pgxmock.NewResult("DELETE", 2))

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.ReplaceLots(ctx, userID, "AAA", nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("consolidate", func(t *testing.T) {
		mock, store := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM holdings`).
			WithArgs(userID, "AAA").
			WillReturnResult(pgxmock.NewResult("DELETE", 2))
		mock.ExpectQuery(`INSERT INTO holdings`).
			WithArgs(userID, "AAA", "AAA Corp", int64(5)).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		keep := &models.Lot{UserID: userID, Symbol: "AAA", CompanyName: "AAA Corp", Shares: 5}
		require.NoError(t, tx.ReplaceLots(ctx, userID, "AAA", keep))
		assert.EqualValues(t, 9, keep.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSetCashUnknownUser(t *testing.T) {
	ctx := context.Background()
	mock, store := newMock(t)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET cash`).
		WithArgs(pgxmock.AnyArg(), userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, tx.SetCash(ctx, userID, decimal.Zero), ledger.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLotsAndHistory(t *testing.T) {
	ctx := context.Background()
	mock, store := newMock(t)
	userID := uuid.New()
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, user_id, symbol, company_name, shares\s+FROM holdings`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "symbol", "company_name", "shares"}).
			AddRow(int64(1), userID, "AAA", "AAA Corp", int64(3)).
			AddRow(int64(2), userID, "AAA", "AAA Corp", int64(4)))
	mock.ExpectQuery(`SELECT id, user_id, symbol, price, shares, transacted_at\s+FROM history`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "symbol", "price", "shares", "transacted_at"}).
			AddRow(int64(1), userID, "AAA", decimal.RequireFromString("12.5"), int64(7), at).
			AddRow(int64(2), userID, "AAA", decimal.RequireFromString("13"), int64(-7), at))

	lots, err := store.Lots(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []models.Holding{{Symbol: "AAA", CompanyName: "AAA Corp", Shares: 7}}, ledger.Aggregate(lots))

	history, err := store.History(ctx, userID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.EqualValues(t, -7, history[1].Shares)
	assert.Equal(t, "13", history[1].Price.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		mock, store := newMock(t)
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(pgxmock.AnyArg(), "alice", "hash", pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

		user, err := store.CreateUser(ctx, "alice", "hash", decimal.NewFromInt(10000))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.Equal(t, created, user.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate username", func(t *testing.T) {
		mock, store := newMock(t)
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(pgxmock.AnyArg(), "alice", "hash", pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: uniqueViolation})

		_, err := store.CreateUser(ctx, "alice", "hash", decimal.NewFromInt(10000))
		assert.ErrorIs(t, err, auth.ErrUsernameTaken)
	})

	t.Run("other failure", func(t *testing.T) {
		mock, store := newMock(t)
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(pgxmock.AnyArg(), "alice", "hash", pgxmock.AnyArg()).
			WillReturnError(errors.New("connection reset"))

		_, err := store.CreateUser(ctx, "alice", "hash", decimal.NewFromInt(10000))
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrUsernameTaken)
	})
}

func TestGetUserByUsernameNotFound(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectQuery(`FROM users WHERE lower\(username\) = lower\(\$1\)`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	user, err := store.GetUserByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	mock, _ := newMock(t)
	for range schema {
		mock.ExpectExec(`CREATE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}
