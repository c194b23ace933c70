package scraper

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"lot-watcher/internal/observability"
	"lot-watcher/internal/source"
)

// Page: карточки одной страницы листинга, в порядке документа.
type Page struct {
	Number    int
	Fragments []*goquery.Selection
}

type WalkStats struct {
	TotalPages    int
	TotalCards    int
	StoppedReason string
}

// Walker обходит страницы строго последовательно, начиная с 1.
type Walker struct {
	source   source.Source
	cards    []string
	maxPages int
	wait     time.Duration
	dumper   *Dumper
	logger   *observability.Logger

	stats   WalkStats
	started bool
}

func NewWalker(src source.Source, cardSelectors []string, maxPages int, wait time.Duration, logger *observability.Logger) *Walker {
	return &Walker{
		source:   src,
		cards:    cardSelectors,
		maxPages: maxPages,
		wait:     wait,
		logger:   logger,
	}
}

// WithDumper включает сохранение HTML пустых страниц.
func (w *Walker) WithDumper(d *Dumper) *Walker {
	w.dumper = d
	return w
}

func (w *Walker) Stats() WalkStats {
	return w.stats
}

// Walk возвращает ленивую последовательность страниц. Останов: первая страница
// без карточек, ошибка загрузки, отмена ctx или предел max_pages. Повторный
// вызов Walk ничего не отдаёт.
func (w *Walker) Walk(ctx context.Context) iter.Seq[Page] {
	return func(yield func(Page) bool) {
		if w.started {
			return
		}
		w.started = true

		wait := source.WaitSpec{Selectors: w.cards, Timeout: w.wait}

		for pageNum := 1; ; pageNum++ {
			if pageNum > w.maxPages {
				w.stats.StoppedReason = fmt.Sprintf("reached max_pages %d", w.maxPages)
				break
			}
			if err := ctx.Err(); err != nil {
				w.stats.StoppedReason = fmt.Sprintf("cancelled before page %d: %v", pageNum, err)
				break
			}

			w.logger.Info("Processing page", "page", pageNum)

			html, err := w.source.FetchPage(ctx, pageNum, wait)
			if err != nil {
				w.logger.Error("Fetch failed", "page", pageNum, "error", err.Error())
				w.stats.StoppedReason = fmt.Sprintf("fetch error at page %d: %v", pageNum, err)
				break
			}

			fragments, selector := w.fragments(html)
			if len(fragments) == 0 {
				w.logger.Info("No cards found on page", "page", pageNum)
				w.dump(pageNum, html)
				w.stats.StoppedReason = fmt.Sprintf("no cards on page %d", pageNum)
				break
			}

			w.stats.TotalPages++
			w.stats.TotalCards += len(fragments)

			w.logger.Info("Page analysis",
				"page", pageNum,
				"cards", len(fragments),
				"selector", selector,
			)

			if !yield(Page{Number: pageNum, Fragments: fragments}) {
				w.stats.StoppedReason = fmt.Sprintf("consumer stopped at page %d", pageNum)
				return
			}
		}

		w.logger.Info("Pagination completed",
			"total_pages", w.stats.TotalPages,
			"total_cards", w.stats.TotalCards,
			"reason", w.stats.StoppedReason,
		)
	}
}

func (w *Walker) fragments(html string) ([]*goquery.Selection, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		w.logger.Warn("Failed to parse page HTML", "error", err.Error())
		return nil, ""
	}

	cards, selector := Cards(doc, w.cards)
	fragments := make([]*goquery.Selection, 0, cards.Length())
	cards.Each(func(_ int, sel *goquery.Selection) {
		fragments = append(fragments, sel)
	})
	return fragments, selector
}

func (w *Walker) dump(pageNum int, html string) {
	path, err := w.dumper.Dump(fmt.Sprintf("page-%d", pageNum), html)
	if err != nil {
		w.logger.Warn("Failed to dump page HTML", "page", pageNum, "error", err.Error())
		return
	}
	if path != "" {
		w.logger.Info("Dumped empty page", "page", pageNum, "path", path)
	}
}
