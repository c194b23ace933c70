package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"lot-watcher/internal/observability"
	"lot-watcher/internal/storage"
)

const schema = `
IF OBJECT_ID(N'TblSentLots', N'U') IS NULL
CREATE TABLE TblSentLots (
	[Seq]    INT IDENTITY(1,1) NOT NULL,
	[LotID]  NVARCHAR(256) NOT NULL PRIMARY KEY,
	[SentAt] DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
);`

// Repository хранит отправленные лоты в таблице TblSentLots.
type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

func (r *Repository) Load(ctx context.Context) (*storage.KeySet, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT [LotID] FROM TblSentLots ORDER BY [Seq]`)
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("Failed to close rows", "error", err.Error())
		}
	}()

	set := storage.NewKeySet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		set.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return set, nil
}

// Save заменяет содержимое таблицы в одной транзакции.
func (r *Repository) Save(ctx context.Context, set *storage.KeySet) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM TblSentLots`); err != nil {
		return fmt.Errorf("failed to clear sent lots: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO TblSentLots ([LotID]) VALUES (@LotID)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	for _, id := range set.Items() {
		if _, err := stmt.ExecContext(ctx, sql.Named("LotID", id)); err != nil {
			return fmt.Errorf("failed to insert lot %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Close закрывает соединение с БД
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
