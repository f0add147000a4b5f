package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bankcards/internal/cards/domain"
	"bankcards/internal/common/metrics"
)

// DataStore is the Postgres-backed unit of work for the cards context.
type DataStore struct {
	pool             *pgxpool.Pool
	cardRepo         *CardRepository
	transferRepo     *TransferRepository
	userRepo         *UserRepository
	idempotencyStore *IdempotencyStore
	outboxRepo       *OutboxRepository
}

// NewDataStore creates a new DataStore with the given connection pool.
func NewDataStore(pool *pgxpool.Pool) *DataStore {
	return &DataStore{
		pool:             pool,
		cardRepo:         NewCardRepository(pool),
		transferRepo:     NewTransferRepository(pool),
		userRepo:         NewUserRepository(pool),
		idempotencyStore: NewIdempotencyStore(pool),
		outboxRepo:       NewOutboxRepository(pool),
	}
}

// Cards returns the card repository.
func (ds *DataStore) Cards() domain.CardRepository {
	return ds.cardRepo
}

// Transfers returns the transfer repository.
func (ds *DataStore) Transfers() domain.TransferRepository {
	return ds.transferRepo
}

// Users returns the user repository.
func (ds *DataStore) Users() domain.UserRepository {
	return ds.userRepo
}

// IdempotencyStore returns the idempotency store.
func (ds *DataStore) IdempotencyStore() domain.IdempotencyStore {
	return ds.idempotencyStore
}

// Outbox returns the outbox repository.
func (ds *DataStore) Outbox() domain.OutboxRepository {
	return ds.outboxRepo
}

// Ping checks that the database is reachable.
func (ds *DataStore) Ping(ctx context.Context) error {
	return ds.pool.Ping(ctx)
}

// withTx creates a DataStore whose repositories share the transaction.
func (ds *DataStore) withTx(tx pgx.Tx) *DataStore {
	return &DataStore{
		pool:             ds.pool,
		cardRepo:         NewCardRepository(tx),
		transferRepo:     NewTransferRepository(tx),
		userRepo:         NewUserRepository(tx),
		idempotencyStore: NewIdempotencyStore(tx),
		outboxRepo:       NewOutboxRepository(tx),
	}
}

// Atomic executes the callback within a READ COMMITTED transaction.
// If the callback returns nil, the transaction is committed.
// If the callback returns an error or panics, the transaction is rolled back.
// Lost updates are prevented by the version check in CardRepository.Save.
func (ds *DataStore) Atomic(ctx context.Context, fn domain.AtomicCallback) (err error) {
	start := time.Now()
	tx, err := ds.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
			}
			metrics.RecordTransactionDuration("rollback", time.Since(start))
			return
		}
		if err = tx.Commit(ctx); err != nil {
			err = fmt.Errorf("commit transaction: %w", err)
			metrics.RecordTransactionDuration("rollback", time.Since(start))
			return
		}
		metrics.RecordTransactionDuration("commit", time.Since(start))
	}()

	err = fn(ds.withTx(tx))
	return
}

// Verify interface implementations.
var (
	_ domain.AtomicExecutor = (*DataStore)(nil)
	_ domain.Repositories   = (*DataStore)(nil)
)
