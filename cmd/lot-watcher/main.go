package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"lot-watcher/internal/app"
	"lot-watcher/internal/config"
	"lot-watcher/internal/fetcher"
	"lot-watcher/internal/notify"
	"lot-watcher/internal/observability"
	"lot-watcher/internal/pacing"
	"lot-watcher/internal/scraper"
	"lot-watcher/internal/source"
)

const defaultConfigPath = "configs/config.yaml"

var (
	configPath string
	once       bool
	dumpDir    string
	dryRun     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lot-watcher",
		Short: "Watch an auction listing and send matching lots to Telegram",
		Long: `lot-watcher walks the paginated auction listing, extracts every lot,
keeps the ones whose license plate starts with the configured prefix and sends
each of them to a Telegram chat exactly once across runs.`,
		Args:          cobra.NoArgs,
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML config (optional when the default is missing)")
	rootCmd.Flags().BoolVar(&once, "once", false, "Run a single pass regardless of scheduler.mode")
	rootCmd.Flags().StringVar(&dumpDir, "dump-dir", "", "Directory for raw HTML of pages without cards")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Extract and filter lots without sending or persisting")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	path := configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if dryRun {
		cfg.DryRun = true
	}
	if dumpDir != "" {
		cfg.Debug.DumpDir = dumpDir
	}
	if once {
		cfg.Scheduler.Mode = "oneshot"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation error: %w", err)
	}

	selectors, err := cfg.LoadSelectors()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.Options{
		LogPath:    cfg.Observability.LogPath,
		LogLevel:   cfg.Observability.LogLevel,
		MaxSizeMB:  cfg.Observability.MaxSizeMB,
		MaxBackups: cfg.Observability.MaxBackups,
		MaxAgeDays: cfg.Observability.MaxAgeDays,
	})
	defer func() {
		_ = logger.Close()
	}()

	ctx, cancel := app.GracefulShutdown(context.Background(), logger)
	defer cancel()

	src, closeSource, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	store, err := app.OpenSentStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close store", "error", err.Error())
		}
	}()

	extractor, err := scraper.NewExtractor(selectors, cfg.Listing.BaseURL)
	if err != nil {
		return err
	}
	detail, err := scraper.NewDetailExtractor(selectors)
	if err != nil {
		return err
	}

	var pacer pacing.Pacer = pacing.Nop{}
	var deliverer app.Deliverer
	if !cfg.DryRun {
		channel := notify.NewTelegram(cfg.Telegram.APIBaseURL, cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.GetTelegramTimeout())
		images := notify.NewHTTPImages(cfg.HTTP.UserAgent, cfg.GetTotalTimeout())
		deliverer = notify.NewNotifier(channel, images, cfg.Notify.DownloadAttempts, cfg.GetDownloadBackoff(), logger)
		pacer = app.NewPacer(cfg)
	}

	orch := app.NewOrchestrator(app.Options{
		CardSelectors: selectors.CardSelectors,
		MaxPages:      cfg.Pagination.MaxPages,
		WaitTimeout:   cfg.GetPageWaitTimeout(),
		PlatePrefix:   cfg.Filter.PlatePrefix,
		DetailLookup:  cfg.Detail.Enabled,
		PersistEach:   cfg.Storage.PersistEach,
		DryRun:        cfg.DryRun,
	}, src, extractor, detail, store, deliverer, pacer, logger).
		WithDumper(scraper.NewDumper(cfg.Debug.DumpDir))

	if cfg.Scheduler.Mode == "interval" {
		return runInterval(ctx, orch, cfg.GetSchedulerInterval(), logger)
	}

	stats, err := orch.Run(ctx)
	app.PrintSummary(os.Stdout, stats)
	return err
}

// runInterval повторяет прогоны до сигнала. Ошибка одного прогона не
// останавливает планировщик.
func runInterval(ctx context.Context, orch *app.Orchestrator, interval time.Duration, logger *observability.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		stats, err := orch.Run(ctx)
		app.PrintSummary(os.Stdout, stats)
		if err != nil {
			logger.Error("Run failed", "error", err.Error())
		}

		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// openSource: rod при rod.enabled, иначе обычный HTTP. Браузер закрывается
// на любом пути выхода через возвращённый closer.
func openSource(cfg *config.Config, logger *observability.Logger) (source.Source, func(), error) {
	if !cfg.Rod.Enabled {
		return fetcher.NewFetcher(cfg, logger), func() {}, nil
	}

	browser, err := fetcher.NewBrowser(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return browser, func() {
		if err := browser.Close(); err != nil {
			logger.Warn("Failed to close browser", "error", err.Error())
		}
	}, nil
}
