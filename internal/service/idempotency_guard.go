package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"micro-savings-wallet/internal/core/domain"
	"micro-savings-wallet/internal/core/ports"
	"micro-savings-wallet/pkg/apperror"

	"github.com/rs/zerolog"
)

// IdempotencyGuard resolves idempotency keys to previously committed
// transactions. The cache is optional; the transaction table is the
// source of truth.
type IdempotencyGuard struct {
	txRepo ports.TransactionRepository
	cache  ports.IdempotencyCache
	ttl    time.Duration
	log    zerolog.Logger
}

// NewIdempotencyGuard creates a guard. cache may be nil.
func NewIdempotencyGuard(txRepo ports.TransactionRepository, cache ports.IdempotencyCache, ttl time.Duration, log zerolog.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{txRepo: txRepo, cache: cache, ttl: ttl, log: log}
}

// Lookup returns the transaction already recorded under key, or nil.
// A hit of another operation type is an error.
func (g *IdempotencyGuard) Lookup(ctx context.Context, key string, op domain.TransactionType) (*domain.Transaction, error) {
	// Layer 1: cache
	if g.cache != nil {
		cached, err := g.cache.Get(ctx, key)
		if err != nil {
			g.log.Warn().Err(err).Str("key", key).Msg("idempotency cache lookup failed, falling through to DB")
		}
		if cached != nil {
			var txn domain.Transaction
			if err := json.Unmarshal(cached, &txn); err != nil {
				g.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable idempotency cache entry")
			} else {
				return g.matchType(&txn, key, op)
			}
		}
	}

	// Layer 2: transaction table
	txn, err := g.txRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if txn == nil {
		return nil, nil
	}
	g.Remember(ctx, txn)
	return g.matchType(txn, key, op)
}

// Resolve returns the transaction that won a race for key after the store
// rejected our insert as a duplicate.
func (g *IdempotencyGuard) Resolve(ctx context.Context, key string, op domain.TransactionType) (*domain.Transaction, error) {
	txn, err := g.txRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve idempotency key: %w", err))
	}
	if txn == nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency key %q rejected as duplicate but not found", key))
	}
	g.Remember(ctx, txn)
	return g.matchType(txn, key, op)
}

// Remember caches txn under its key. Failures are logged only.
func (g *IdempotencyGuard) Remember(ctx context.Context, txn *domain.Transaction) {
	if g.cache == nil {
		return
	}
	payload, err := json.Marshal(txn)
	if err != nil {
		g.log.Warn().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to encode transaction for idempotency cache")
		return
	}
	if err := g.cache.Set(ctx, txn.IdempotencyKey, payload, g.ttl); err != nil {
		g.log.Warn().Err(err).Str("key", txn.IdempotencyKey).Msg("failed to cache idempotency key")
	}
}

func (g *IdempotencyGuard) matchType(txn *domain.Transaction, key string, op domain.TransactionType) (*domain.Transaction, error) {
	if txn.Type != op {
		return nil, apperror.ErrIdempotencyKeyReuse(key)
	}
	return txn, nil
}
