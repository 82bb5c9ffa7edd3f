// Package memstore is an in-memory ledger and user store. It backs
// STORAGE=memory and the engine tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/user/papertrade/backend/internal/auth"
	"github.com/user/papertrade/backend/internal/ledger"
	"github.com/user/papertrade/backend/internal/models"
)

// ErrTxDone is returned by operations on a finished transaction.
var ErrTxDone = errors.New("memstore: transaction already finished")

type account struct {
	user    models.User
	lots    []models.Lot
	history []models.HistoryRecord
	// held for the life of an order transaction
	orderMu sync.Mutex
}

// Store keeps everything in process memory.
type Store struct {
	mu        sync.RWMutex
	accounts  map[uuid.UUID]*account
	usernames map[string]uuid.UUID
	nextLotID int64
	nextRecID int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts:  make(map[uuid.UUID]*account),
		usernames: make(map[string]uuid.UUID),
	}
}

var (
	_ ledger.Store   = (*Store)(nil)
	_ auth.UserStore = (*Store)(nil)
)

func (s *Store) account(userID uuid.UUID) (*account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return nil, ledger.ErrUserNotFound
	}
	return acc, nil
}

// CreateUser implements auth.UserStore.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, cash decimal.Decimal) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	if _, taken := s.usernames[key]; taken {
		return nil, auth.ErrUsernameTaken
	}
	user := models.User{
		ID:        uuid.New(),
		Username:  username,
		Password:  passwordHash,
		Cash:      cash,
		CreatedAt: time.Now().UTC(),
	}
	s.accounts[user.ID] = &account{user: user}
	s.usernames[key] = user.ID
	return &user, nil
}

// GetUserByUsername implements auth.UserStore.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	id, ok := s.usernames[strings.ToLower(username)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByID implements auth.UserStore.
func (s *Store) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return nil, nil
	}
	user := acc.user
	return &user, nil
}

// UpdatePassword implements auth.UserStore.
func (s *Store) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return ledger.ErrUserNotFound
	}
	acc.user.Password = passwordHash
	return nil
}

// Cash implements ledger.Store.
func (s *Store) Cash(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return decimal.Zero, ledger.ErrUserNotFound
	}
	return acc.user.Cash, nil
}

// Lots implements ledger.Store.
func (s *Store) Lots(ctx context.Context, userID uuid.UUID) ([]models.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return nil, ledger.ErrUserNotFound
	}
	return append([]models.Lot(nil), acc.lots...), nil
}

// History implements ledger.Store.
func (s *Store) History(ctx context.Context, userID uuid.UUID) ([]models.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return nil, ledger.ErrUserNotFound
	}
	return append([]models.HistoryRecord(nil), acc.history...), nil
}

// nextID hands out ids like a database sequence: ids of rolled back
// transactions are not reused.
func (s *Store) nextID(seq *int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*seq++
	return *seq
}

// Begin implements ledger.Store.
func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{store: s}, nil
}

// tx stages the changes of one user's order and publishes them on Commit.
type tx struct {
	store *Store
	acc   *account
	done  bool

	cash    decimal.Decimal
	lots    []models.Lot
	history []models.HistoryRecord
}

func (t *tx) staged(userID uuid.UUID) error {
	if t.done {
		return ErrTxDone
	}
	if t.acc == nil {
		return errors.New("memstore: LockCash must be called first")
	}
	if t.acc.user.ID != userID {
		return errors.New("memstore: transaction is bound to another user")
	}
	return nil
}

func (t *tx) LockCash(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	if t.done {
		return decimal.Zero, ErrTxDone
	}
	if t.acc != nil {
		if t.acc.user.ID != userID {
			return decimal.Zero, errors.New("memstore: transaction is bound to another user")
		}
		return t.cash, nil
	}

	acc, err := t.store.account(userID)
	if err != nil {
		return decimal.Zero, err
	}
	acc.orderMu.Lock()
	t.acc = acc

	t.store.mu.RLock()
	t.cash = acc.user.Cash
	t.lots = append([]models.Lot(nil), acc.lots...)
	t.store.mu.RUnlock()
	return t.cash, nil
}

func (t *tx) SetCash(ctx context.Context, userID uuid.UUID, cash decimal.Decimal) error {
	if err := t.staged(userID); err != nil {
		return err
	}
	if cash.IsNegative() {
		return errors.New("memstore: cash must not be negative")
	}
	t.cash = cash
	return nil
}

func (t *tx) Lots(ctx context.Context, userID uuid.UUID) ([]models.Lot, error) {
	if err := t.staged(userID); err != nil {
		return nil, err
	}
	return append([]models.Lot(nil), t.lots...), nil
}

func (t *tx) AddLot(ctx context.Context, lot *models.Lot) error {
	if err := t.staged(lot.UserID); err != nil {
		return err
	}
	if lot.Shares <= 0 {
		return errors.New("memstore: lot shares must be positive")
	}
	lot.ID = t.store.nextID(&t.store.nextLotID)
	t.lots = append(t.lots, *lot)
	return nil
}

func (t *tx) ReplaceLots(ctx context.Context, userID uuid.UUID, symbol string, keep *models.Lot) error {
	if err := t.staged(userID); err != nil {
		return err
	}
	kept := make([]models.Lot, 0, len(t.lots))
	for _, lot := range t.lots {
		if lot.Symbol != symbol {
			kept = append(kept, lot)
		}
	}
	if keep != nil {
		if keep.Shares <= 0 {
			return errors.New("memstore: lot shares must be positive")
		}
		keep.ID = t.store.nextID(&t.store.nextLotID)
		kept = append(kept, *keep)
	}
	t.lots = kept
	return nil
}

func (t *tx) AppendHistory(ctx context.Context, rec *models.HistoryRecord) error {
	if err := t.staged(rec.UserID); err != nil {
		return err
	}
	rec.ID = t.store.nextID(&t.store.nextRecID)
	t.history = append(t.history, *rec)
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if t.acc == nil {
		return nil
	}
	defer t.acc.orderMu.Unlock()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	sort.SliceStable(t.lots, func(i, j int) bool { return t.lots[i].ID < t.lots[j].ID })

	t.acc.user.Cash = t.cash
	t.acc.lots = t.lots
	t.acc.history = append(t.acc.history, t.history...)
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if t.acc != nil {
		t.acc.orderMu.Unlock()
	}
	return nil
}
