package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"lot-watcher/internal/normalize"
	"lot-watcher/internal/observability"
	"lot-watcher/internal/pacing"
	"lot-watcher/internal/scraper"
	"lot-watcher/internal/source"
	"lot-watcher/internal/storage"
)

// Deliverer отправляет один лот; false означает неудачную доставку.
type Deliverer interface {
	Deliver(ctx context.Context, lot scraper.Lot, matchedPlate string) bool
}

type Options struct {
	CardSelectors []string
	MaxPages      int
	WaitTimeout   time.Duration
	PlatePrefix   string
	// DetailLookup: при отсутствии номера в карточке открыть страницу лота.
	DetailLookup bool
	PersistEach  bool
	DryRun       bool
}

type Orchestrator struct {
	opts      Options
	source    source.Source
	extractor *scraper.Extractor
	detail    *scraper.DetailExtractor
	store     storage.SentStore
	notifier  Deliverer
	pacer     pacing.Pacer
	dumper    *scraper.Dumper
	logger    *observability.Logger
}

func NewOrchestrator(
	opts Options,
	src source.Source,
	extractor *scraper.Extractor,
	detail *scraper.DetailExtractor,
	store storage.SentStore,
	notifier Deliverer,
	pacer pacing.Pacer,
	logger *observability.Logger,
) *Orchestrator {
	if pacer == nil {
		pacer = pacing.Nop{}
	}
	return &Orchestrator{
		opts:      opts,
		source:    src,
		extractor: extractor,
		detail:    detail,
		store:     store,
		notifier:  notifier,
		pacer:     pacer,
		logger:    logger,
	}
}

// WithDumper сохраняет HTML пустых страниц для отладки селекторов.
func (o *Orchestrator) WithDumper(d *scraper.Dumper) *Orchestrator {
	o.dumper = d
	return o
}

type RunStats struct {
	Seen              int
	Matched           int
	Delivered         int
	Failed            int
	SkippedDuplicate  int
	SkippedFiltered   int
	SkippedExtraction int
	Pages             int
	StoppedReason     string
}

// run: состояние одного прогона.
type run struct {
	sent  *storage.KeySet
	stats *RunStats
	dirty bool
}

// Run выполняет один проход: загрузка множества отправленных, обход страниц,
// обработка лотов по порядку, сохранение. Отмена ctx останавливает обход, но
// уже доставленное сохраняется.
func (o *Orchestrator) Run(ctx context.Context) (*RunStats, error) {
	sent, err := o.store.Load(ctx)
	if err != nil {
		return &RunStats{StoppedReason: "load failed"}, fmt.Errorf("failed to load sent lots: %w", err)
	}

	o.logger.Info("Starting run",
		"plate_prefix", o.opts.PlatePrefix,
		"max_pages", o.opts.MaxPages,
		"known_lots", sent.Len(),
		"dry_run", o.opts.DryRun,
	)

	r := &run{sent: sent, stats: &RunStats{}}
	walker := scraper.NewWalker(o.source, o.opts.CardSelectors, o.opts.MaxPages, o.opts.WaitTimeout, o.logger).
		WithDumper(o.dumper)

pages:
	for page := range walker.Walk(ctx) {
		for i, frag := range page.Fragments {
			if ctx.Err() != nil {
				break pages
			}
			lot := o.extractor.Extract(frag, page.Number, i)
			o.process(ctx, r, &lot)
		}
	}

	ws := walker.Stats()
	r.stats.Pages = ws.TotalPages
	r.stats.StoppedReason = ws.StoppedReason
	if ctx.Err() != nil && r.stats.StoppedReason == "" {
		r.stats.StoppedReason = fmt.Sprintf("cancelled: %v", ctx.Err())
	}

	var saveErr error
	if r.dirty {
		// ctx мог быть отменён сигналом, сохраняем отдельным контекстом.
		saveErr = o.persist(context.WithoutCancel(ctx), r)
	}

	o.logger.Info("Run completed",
		"pages", r.stats.Pages,
		"seen", r.stats.Seen,
		"matched", r.stats.Matched,
		"delivered", r.stats.Delivered,
		"failed", r.stats.Failed,
		"skipped_duplicate", r.stats.SkippedDuplicate,
		"skipped_filtered", r.stats.SkippedFiltered,
		"skipped_extraction", r.stats.SkippedExtraction,
		"reason", r.stats.StoppedReason,
	)

	return r.stats, saveErr
}

func (o *Orchestrator) process(ctx context.Context, r *run, lot *scraper.Lot) {
	r.stats.Seen++
	log := o.logger.With("page", lot.Page, "index", lot.Index)

	// Известный ID карточки: страницу деталей не открываем.
	if lot.StableID() && r.sent.Has(lot.ID) {
		r.stats.SkippedDuplicate++
		log.Debug("Skipping already sent lot", "lot_id", lot.ID)
		return
	}

	// cardID: хеш-ID до уточнения номера; сохраняется вместе с итоговым, чтобы
	// следующий прогон узнал лот без запроса страницы деталей.
	var cardID string
	if !lot.HasPlate() {
		if lot.StableID() {
			cardID = lot.ID
		}
		o.lookupDetail(ctx, lot, log)
	}

	if r.sent.Has(lot.ID) {
		r.stats.SkippedDuplicate++
		log.Debug("Skipping already sent lot", "lot_id", lot.ID)
		return
	}

	if !lot.HasPlate() {
		r.stats.SkippedExtraction++
		log.Info("Skipping lot without plate", "lot_id", lot.ID, "title", lot.Title, "link", lot.Link)
		return
	}

	canonical := normalize.Plate(lot.PlateRaw)
	if !normalize.MatchesPrefix(canonical, o.opts.PlatePrefix) {
		r.stats.SkippedFiltered++
		log.Debug("Plate does not match prefix", "lot_id", lot.ID, "plate", canonical)
		return
	}

	if !lot.StableID() {
		r.stats.SkippedExtraction++
		log.Warn("Skipping lot without stable id", "lot_id", lot.ID, "plate", canonical)
		return
	}

	r.stats.Matched++

	if o.opts.DryRun {
		log.Info("Dry run: would deliver lot", "lot_id", lot.ID, "plate", lot.PlateRaw, "title", lot.Title)
		return
	}

	if err := o.pacer.Wait(ctx); err != nil {
		r.stats.Failed++
		log.Warn("Delivery cancelled", "lot_id", lot.ID, "error", err.Error())
		return
	}

	if !o.notifier.Deliver(ctx, *lot, lot.PlateRaw) {
		r.stats.Failed++
		log.Warn("Lot not delivered, will retry next run", "lot_id", lot.ID)
		return
	}

	r.stats.Delivered++
	r.sent.Add(lot.ID)
	if cardID != "" && cardID != lot.ID {
		r.sent.Add(cardID)
	}
	r.dirty = true

	if o.opts.PersistEach {
		if err := o.persist(ctx, r); err != nil {
			log.Error("Failed to persist sent lots", "error", err.Error())
		}
	}
}

// lookupDetail дополняет номер со страницы лота и пересчитывает хеш-ID.
func (o *Orchestrator) lookupDetail(ctx context.Context, lot *scraper.Lot, log *observability.Logger) {
	if !o.opts.DetailLookup || o.detail == nil || lot.Link == "" {
		return
	}

	html, err := o.source.FetchURL(ctx, lot.Link, source.WaitSpec{Timeout: o.opts.WaitTimeout})
	if err != nil {
		log.Warn("Detail page fetch failed", "link", lot.Link, "error", err.Error())
		return
	}

	plate, ok := o.detail.Plate(html)
	if !ok {
		log.Debug("Plate not found on detail page", "link", lot.Link)
		return
	}

	lot.PlateRaw = plate
	o.extractor.RefreshID(lot)
	log.Debug("Plate taken from detail page", "lot_id", lot.ID, "plate", plate)
}

func (o *Orchestrator) persist(ctx context.Context, r *run) error {
	if err := o.store.Save(ctx, r.sent); err != nil {
		return fmt.Errorf("failed to save sent lots: %w", err)
	}
	r.dirty = false
	return nil
}

// PrintSummary печатает итог прогона для оператора.
func PrintSummary(w io.Writer, stats *RunStats) {
	if stats == nil {
		return
	}
	fmt.Fprintf(w, "✓ Pages walked: %d (%s)\n", stats.Pages, stats.StoppedReason)
	fmt.Fprintf(w, "✓ Lots seen: %d\n", stats.Seen)
	fmt.Fprintf(w, "✓ Matched prefix: %d\n", stats.Matched)
	fmt.Fprintf(w, "✓ Delivered: %d\n", stats.Delivered)
	if stats.Failed > 0 {
		fmt.Fprintf(w, "✗ Failed: %d\n", stats.Failed)
	}
	fmt.Fprintf(w, "  Skipped: %d duplicate, %d filtered, %d extraction\n",
		stats.SkippedDuplicate, stats.SkippedFiltered, stats.SkippedExtraction)
}
