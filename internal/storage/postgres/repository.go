package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lot-watcher/internal/observability"
	"lot-watcher/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS sent_lots (
	seq BIGSERIAL,
	lot_id TEXT PRIMARY KEY,
	sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// Repository: хранилище отправленных лотов в PostgreSQL.
type Repository struct {
	pool           *pgxpool.Pool
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &Repository{pool: pool, commandTimeout: commandTimeout, logger: logger}, nil
}

func (r *Repository) Load(ctx context.Context) (*storage.KeySet, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT lot_id FROM sent_lots ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sent lots: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read sent lots: %w", err)
	}

	return storage.NewKeySet(ids...), nil
}

// Save заменяет таблицу целиком: DELETE + batch INSERT в одной транзакции.
func (r *Repository) Save(ctx context.Context, set *storage.KeySet) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM sent_lots`); err != nil {
		return fmt.Errorf("failed to clear sent lots: %w", err)
	}

	ids := set.Items()
	if len(ids) > 0 {
		batch := &pgx.Batch{}
		for _, id := range ids {
			batch.Queue(`INSERT INTO sent_lots (lot_id) VALUES ($1)`, id)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert sent lots: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.Debug("Saved seen lots", "driver", "postgres", "count", len(ids))
	return nil
}

func (r *Repository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}
