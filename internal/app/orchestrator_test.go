package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lot-watcher/internal/observability"
	"lot-watcher/internal/scraper"
	"lot-watcher/internal/source"
	"lot-watcher/internal/storage"
	"lot-watcher/internal/storage/jsonfile"
)

const listingURL = "https://www.jba.co.id/id/lelang-motor/search?vehicle_type=bike&keyword="

type fakeSource struct {
	pages   map[int]string
	details map[string]string
	urls    []string
}

func (f *fakeSource) FetchPage(_ context.Context, page int, _ source.WaitSpec) (string, error) {
	return f.pages[page], nil
}

func (f *fakeSource) FetchURL(_ context.Context, url string, _ source.WaitSpec) (string, error) {
	f.urls = append(f.urls, url)
	html, ok := f.details[url]
	if !ok {
		return "", errors.New("not found")
	}
	return html, nil
}

type fakeDeliverer struct {
	fail      bool
	delivered []scraper.Lot
	plates    []string
}

func (d *fakeDeliverer) Deliver(_ context.Context, lot scraper.Lot, matchedPlate string) bool {
	if d.fail {
		return false
	}
	d.delivered = append(d.delivered, lot)
	d.plates = append(d.plates, matchedPlate)
	return true
}

const onePage = `<html><body>
<div class="vehicle-item" data-id="778">
  <h4>Honda Beat</h4>
  <span class="location">Solo</span>
  <span class="plate-number">AD 1234 BC</span>
  <a href="/id/lelang-motor/detail/778">Detail</a>
</div>
</body></html>`

func newOrchestrator(t *testing.T, src source.Source, store storage.SentStore, d Deliverer, mutate func(*Options)) *Orchestrator {
	t.Helper()

	selectors := scraper.DefaultSelectors()
	extractor, err := scraper.NewExtractor(selectors, listingURL)
	require.NoError(t, err)
	detail, err := scraper.NewDetailExtractor(selectors)
	require.NoError(t, err)

	opts := Options{
		CardSelectors: selectors.CardSelectors,
		MaxPages:      10,
		PlatePrefix:   "AD",
		DetailLookup:  true,
		PersistEach:   true,
	}
	if mutate != nil {
		mutate(&opts)
	}

	return NewOrchestrator(opts, src, extractor, detail, store, d, nil, observability.NewNopLogger())
}

func fileStore(t *testing.T) *jsonfile.Store {
	t.Helper()
	return jsonfile.NewStore(filepath.Join(t.TempDir(), "seen_api.json"), observability.NewNopLogger())
}

func TestRunDeliversOnceAcrossRuns(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{pages: map[int]string{1: onePage}}
	store := fileStore(t)
	d := &fakeDeliverer{}

	stats, err := newOrchestrator(t, src, store, d, nil).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Seen)
	require.Equal(t, 1, stats.Matched)
	require.Equal(t, 1, stats.Delivered)
	require.Equal(t, 1, stats.Pages)
	require.Equal(t, "no cards on page 2", stats.StoppedReason)
	require.Equal(t, "AD 1234 BC", d.plates[0])

	sent, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"778"}, sent.Items())

	stats, err = newOrchestrator(t, src, store, d, nil).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Seen)
	require.Equal(t, 0, stats.Delivered)
	require.Equal(t, 1, stats.SkippedDuplicate)
	require.Len(t, d.delivered, 1)
}

func TestRunFailedDeliveryNotPersisted(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{pages: map[int]string{1: onePage}}
	store := fileStore(t)

	stats, err := newOrchestrator(t, src, store, &fakeDeliverer{fail: true}, nil).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Matched)
	require.Equal(t, 1, stats.Failed)
	require.Zero(t, stats.Delivered)

	sent, err := store.Load(ctx)
	require.NoError(t, err)
	require.Zero(t, sent.Len())

	d := &fakeDeliverer{}
	stats, err = newOrchestrator(t, src, store, d, nil).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Delivered)
}

func TestRunFiltersAndSkipsMissingPlate(t *testing.T) {
	page := `<html><body>
<div class="vehicle-item" data-id="1"><h4>A</h4><span class="plate-number">KB 99 ZZ</span></div>
<div class="vehicle-item" data-id="2"><h4>B</h4></div>
<div class="vehicle-item" data-id="3"><h4>C</h4><span class="plate-number">ad-77-x</span></div>
</body></html>`
	src := &fakeSource{pages: map[int]string{1: page}}
	d := &fakeDeliverer{}

	stats, err := newOrchestrator(t, src, storage.NewMemoryStore(), d, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.Seen)
	require.Equal(t, 1, stats.SkippedFiltered)
	require.Equal(t, 1, stats.SkippedExtraction)
	require.Equal(t, 1, stats.Delivered)
	require.Equal(t, "3", d.delivered[0].ID)
	require.Empty(t, src.urls)
}

func TestRunPlateFromDetailPage(t *testing.T) {
	page := `<html><body>
<div class="vehicle-item"><h4>Yamaha NMAX</h4><a href="/id/lelang-motor/detail/55">Detail</a></div>
</body></html>`
	detailURL := "https://www.jba.co.id/id/lelang-motor/detail/55"
	src := &fakeSource{
		pages:   map[int]string{1: page},
		details: map[string]string{detailURL: `<html><body><table><tr><td>No. Polisi</td><td>AD 5555 QQ</td></tr></table></body></html>`},
	}
	store := storage.NewMemoryStore()
	d := &fakeDeliverer{}

	stats, err := newOrchestrator(t, src, store, d, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Delivered)
	require.Equal(t, "AD 5555 QQ", d.delivered[0].PlateRaw)
	require.Equal(t, []string{detailURL}, src.urls)

	sent, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, sent.Len())

	// Повтор узнаётся по ID карточки, страница деталей больше не запрашивается.
	stats, err = newOrchestrator(t, src, store, d, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.SkippedDuplicate)
	require.Len(t, src.urls, 1)
	require.Len(t, d.delivered, 1)
}

type brokenStore struct{}

func (brokenStore) Load(context.Context) (*storage.KeySet, error) {
	return nil, errors.New("login failed for user")
}

func (brokenStore) Save(context.Context, *storage.KeySet) error { return nil }

func (brokenStore) Close() error { return nil }

func TestRunLoadFailureStillReportsStats(t *testing.T) {
	src := &fakeSource{pages: map[int]string{1: onePage}}
	d := &fakeDeliverer{}

	stats, err := newOrchestrator(t, src, brokenStore{}, d, nil).Run(context.Background())
	require.ErrorContains(t, err, "failed to load sent lots")
	require.NotNil(t, stats)
	require.Equal(t, "load failed", stats.StoppedReason)
	require.Zero(t, stats.Seen)
	require.Empty(t, d.delivered)

	var buf bytes.Buffer
	PrintSummary(&buf, stats)
	require.Contains(t, buf.String(), "Lots seen: 0")
	require.Contains(t, buf.String(), "load failed")
}

func TestRunDetailLookupDisabled(t *testing.T) {
	page := `<html><body>
<div class="vehicle-item"><h4>Yamaha NMAX</h4><a href="/id/lelang-motor/detail/55">Detail</a></div>
</body></html>`
	src := &fakeSource{pages: map[int]string{1: page}}

	stats, err := newOrchestrator(t, src, storage.NewMemoryStore(), &fakeDeliverer{}, func(o *Options) {
		o.DetailLookup = false
	}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.SkippedExtraction)
	require.Empty(t, src.urls)
}

func TestRunDryRunSendsNothing(t *testing.T) {
	src := &fakeSource{pages: map[int]string{1: onePage}}
	store := storage.NewMemoryStore()
	d := &fakeDeliverer{}

	stats, err := newOrchestrator(t, src, store, d, func(o *Options) { o.DryRun = true }).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Matched)
	require.Zero(t, stats.Delivered)
	require.Empty(t, d.delivered)

	sent, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Zero(t, sent.Len())
}

func TestRunCancelledStopsWalking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{pages: map[int]string{1: onePage}}
	stats, err := newOrchestrator(t, src, storage.NewMemoryStore(), &fakeDeliverer{}, nil).Run(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.Seen)
	require.Contains(t, stats.StoppedReason, "cancelled")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, &RunStats{Seen: 3, Matched: 2, Delivered: 1, Failed: 1, SkippedFiltered: 1, Pages: 1, StoppedReason: "no cards on page 2"})

	out := buf.String()
	require.Contains(t, out, "Lots seen: 3")
	require.Contains(t, out, "Delivered: 1")
	require.Contains(t, out, "Failed: 1")
	require.Contains(t, out, "0 duplicate, 1 filtered, 0 extraction")
}
