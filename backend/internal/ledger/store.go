package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/user/papertrade/backend/internal/models"
)

// Store is the durable home of users' cash, lots and history.
type Store interface {
	// Begin starts a transaction scoped to one order.
	Begin(ctx context.Context) (Tx, error)

	// Cash, Lots and History are plain reads outside any order transaction.
	Cash(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	Lots(ctx context.Context, userID uuid.UUID) ([]models.Lot, error)
	History(ctx context.Context, userID uuid.UUID) ([]models.HistoryRecord, error)
}

// Tx is one order's view of the store. Nothing written through a Tx is
// visible to others until Commit; Rollback after Commit is a no-op.
type Tx interface {
	// LockCash reads the user's cash and holds the user's row until the
	// transaction ends, serialising concurrent orders of the same user.
	// It returns ErrUserNotFound for unknown users.
	LockCash(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	SetCash(ctx context.Context, userID uuid.UUID, cash decimal.Decimal) error

	Lots(ctx context.Context, userID uuid.UUID) ([]models.Lot, error)
	AddLot(ctx context.Context, lot *models.Lot) error
	// ReplaceLots removes every lot of symbol and, when keep is non-nil,
	// inserts it as the only remaining lot of that symbol.
	ReplaceLots(ctx context.Context, userID uuid.UUID, symbol string, keep *models.Lot) error

	AppendHistory(ctx context.Context, rec *models.HistoryRecord) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
