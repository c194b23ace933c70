package app

import (
	"fmt"

	"lot-watcher/internal/config"
	"lot-watcher/internal/observability"
	"lot-watcher/internal/pacing"
	"lot-watcher/internal/storage"
	"lot-watcher/internal/storage/jsonfile"
	"lot-watcher/internal/storage/mssql"
	"lot-watcher/internal/storage/postgres"
)

// OpenSentStore выбирает хранилище отправленных лотов по storage.driver.
func OpenSentStore(cfg *config.Config, logger *observability.Logger) (storage.SentStore, error) {
	switch cfg.Storage.Driver {
	case "file":
		return jsonfile.NewStore(cfg.Storage.Path, logger), nil
	case "mssql":
		repo, err := mssql.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "postgres":
		repo, err := postgres.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

// NewPacer строит политику пауз между отправками.
func NewPacer(cfg *config.Config) pacing.Pacer {
	if cfg.Notify.Pacing == "token_bucket" {
		return pacing.NewTokenBucket(cfg.Notify.RatePerMinute, cfg.Notify.Burst)
	}
	return pacing.NewFixedDelay(cfg.GetMessageDelay())
}
