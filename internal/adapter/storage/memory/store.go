// Package memory is an in-process implementation of the storage ports.
// Writes are staged on a transaction and validated against committed state
// under a single lock at commit, mirroring the optimistic checks the
// PostgreSQL adapter performs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"micro-savings-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory store: transaction was not started by this store")

type walletKey struct {
	userID   uuid.UUID
	currency string
}

// Store holds committed state.
type Store struct {
	mu sync.RWMutex

	users       map[uuid.UUID]domain.User
	emails      map[string]uuid.UUID
	wallets     map[uuid.UUID]domain.Wallet
	walletIndex map[walletKey]uuid.UUID
	txns        map[uuid.UUID]domain.Transaction
	txnOrder    []uuid.UUID
	keys        map[string]uuid.UUID
	withdrawals map[uuid.UUID]domain.Withdrawal
	audit       []domain.AuditLogEntry

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:       make(map[uuid.UUID]domain.User),
		emails:      make(map[string]uuid.UUID),
		wallets:     make(map[uuid.UUID]domain.Wallet),
		walletIndex: make(map[walletKey]uuid.UUID),
		txns:        make(map[uuid.UUID]domain.Transaction),
		keys:        make(map[string]uuid.UUID),
		withdrawals: make(map[uuid.UUID]domain.Withdrawal),
		now:         time.Now,
	}
}

// Begin starts a transaction; it implements ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{
		store:        s,
		walletWrites: make(map[uuid.UUID]*walletWrite),
		txnUpdates:   make(map[uuid.UUID]domain.Transaction),
	}, nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "memory"
}

type walletWrite struct {
	baseVersion int64 // committed version the first mutation was based on
	wallet      domain.Wallet
	created     bool
}

// memTx stages writes until Commit. Only Commit and Rollback are
// implemented; the repositories never issue SQL against it.
type memTx struct {
	pgx.Tx

	store *Store
	done  bool

	users        []domain.User
	walletWrites map[uuid.UUID]*walletWrite
	walletOrder  []uuid.UUID
	txns         []domain.Transaction
	txnUpdates   map[uuid.UUID]domain.Transaction
	withdrawals  []domain.Withdrawal
	audit        []domain.AuditLogEntry
}

func asMemTx(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok {
		return nil, errForeignTx
	}
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

func (t *memTx) stageWallet(w *walletWrite) {
	if _, ok := t.walletWrites[w.wallet.ID]; !ok {
		t.walletOrder = append(t.walletOrder, w.wallet.ID)
	}
	t.walletWrites[w.wallet.ID] = w
}

func (t *memTx) stagedTxn(id uuid.UUID) (int, bool) {
	for i := range t.txns {
		if t.txns[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// Commit validates staged writes against committed state and applies them
// all, or none.
func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.validate(); err != nil {
		return err
	}

	for _, u := range t.users {
		s.users[u.ID] = u
		s.emails[u.Email] = u.ID
	}
	for _, id := range t.walletOrder {
		w := t.walletWrites[id].wallet
		s.wallets[w.ID] = w
		s.walletIndex[walletKey{w.UserID, w.Currency}] = w.ID
	}
	for _, txn := range t.txns {
		s.txns[txn.ID] = txn
		s.txnOrder = append(s.txnOrder, txn.ID)
		s.keys[txn.IdempotencyKey] = txn.ID
	}
	for id, txn := range t.txnUpdates {
		s.txns[id] = txn
	}
	for _, w := range t.withdrawals {
		s.withdrawals[w.ID] = w
	}
	s.audit = append(s.audit, t.audit...)
	return nil
}

// validate runs with s.mu held.
func (t *memTx) validate() error {
	s := t.store
	for _, u := range t.users {
		if _, taken := s.emails[u.Email]; taken {
			return fmt.Errorf("commit user %s: %w", u.Email, domain.ErrDuplicateEmail)
		}
	}
	for _, id := range t.walletOrder {
		ww := t.walletWrites[id]
		current, exists := s.wallets[id]
		if ww.created {
			if _, taken := s.walletIndex[walletKey{ww.wallet.UserID, ww.wallet.Currency}]; taken || exists {
				return fmt.Errorf("commit wallet %s: %w", id, domain.ErrDuplicateWallet)
			}
			continue
		}
		if !exists {
			return fmt.Errorf("commit wallet %s: %w", id, domain.ErrWalletNotFound)
		}
		if current.Version != ww.baseVersion {
			return fmt.Errorf("commit wallet %s at version %d, based on %d: %w",
				id, current.Version, ww.baseVersion, domain.ErrVersionConflict)
		}
	}
	for _, txn := range t.txns {
		if _, taken := s.keys[txn.IdempotencyKey]; taken {
			return fmt.Errorf("commit transaction %s: %w", txn.IdempotencyKey, domain.ErrDuplicateIdempotencyKey)
		}
	}
	return nil
}

// Rollback discards staged writes.
func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	return nil
}

// newestFirst orders by CreatedAt descending; ties keep the given order.
func newestFirst[T any](items []T, createdAt func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdAt(items[i]).After(createdAt(items[j]))
	})
}
