package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://www.jba.co.id/id/lelang-motor/search?vehicle_type=bike&keyword="

func fragment(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc.Find("body > *").First()
}

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(DefaultSelectors(), baseURL)
	require.NoError(t, err)
	return e
}

func TestExtractPrimarySelectors(t *testing.T) {
	e := newExtractor(t)

	lot := e.Extract(fragment(t, `
		<div class="vehicle-item" data-id="LOT-778">
			<a href="/id/lelang-motor/detail/778"><img src="/img/778.jpg"></a>
			<h4> Honda Beat   2019 </h4>
			<span class="location">Solo</span>
			<span class="plate-number">AD 1234 BC</span>
		</div>`), 1, 0)

	require.Equal(t, "LOT-778", lot.ID)
	require.Equal(t, IDFromMarkup, lot.IDSource)
	require.Equal(t, "Honda Beat 2019", lot.Title)
	require.Equal(t, "Solo", lot.Location)
	require.Equal(t, "AD 1234 BC", lot.PlateRaw)
	require.Equal(t, "https://www.jba.co.id/id/lelang-motor/detail/778", lot.Link)
	require.Equal(t, "https://www.jba.co.id/img/778.jpg", lot.PhotoURL)
	require.True(t, lot.HasPlate())
}

func TestExtractPrefersPrimaryOverSecondary(t *testing.T) {
	e := newExtractor(t)

	lot := e.Extract(fragment(t, `
		<div class="vehicle-item">
			<h4>Primary title</h4>
			<div class="vehicle-title">Secondary title</div>
		</div>`), 1, 0)

	require.Equal(t, "Primary title", lot.Title)
}

func TestExtractFallbackStrategies(t *testing.T) {
	e := newExtractor(t)

	lot := e.Extract(fragment(t, `
		<div class="lot-item" id="lot-55">
			<div class="card-title">Yamaha NMAX</div>
			<p>Lokasi: Semarang</p>
			<p>No. Polisi: AD-5678-XY</p>
			<a class="btn" href="https://www.jba.co.id/id/lelang-motor/detail/55">Detail</a>
			<img data-src="//cdn.jba.co.id/55.jpg" src="data:image/gif;base64,R0lGOD">
		</div>`), 2, 3)

	require.Equal(t, "lot-55", lot.ID)
	require.Equal(t, "Yamaha NMAX", lot.Title)
	require.Equal(t, "Semarang", lot.Location)
	require.Equal(t, "AD-5678-XY", lot.PlateRaw)
	require.Equal(t, "https://www.jba.co.id/id/lelang-motor/detail/55", lot.Link)
	require.Equal(t, "https://cdn.jba.co.id/55.jpg", lot.PhotoURL)
}

func TestExtractAllSelectorsAbsent(t *testing.T) {
	e := newExtractor(t)

	lot := e.Extract(fragment(t, `<div class="vehicle-item"><p>nothing useful</p></div>`), 4, 7)

	require.Equal(t, DefaultTitle, lot.Title)
	require.Equal(t, DefaultLocation, lot.Location)
	require.Equal(t, PlateSentinel, lot.PlateRaw)
	require.Empty(t, lot.Link)
	require.Empty(t, lot.PhotoURL)
	require.False(t, lot.HasPlate())
	require.Equal(t, "page-4-7", lot.ID)
	require.False(t, lot.StableID())
}

func TestExtractHashIDIsStable(t *testing.T) {
	e := newExtractor(t)
	html := `
		<div class="vehicle-item">
			<a href="/id/lelang-motor/detail/9">Beat</a>
			<span class="plate-number">AD 9 X</span>
		</div>`

	first := e.Extract(fragment(t, html), 1, 0)
	second := e.Extract(fragment(t, html), 3, 5)

	require.Equal(t, IDFromHash, first.IDSource)
	require.True(t, first.StableID())
	require.Equal(t, first.ID, second.ID)
}

func TestRefreshIDAfterDetailPlate(t *testing.T) {
	e := newExtractor(t)

	lot := e.Extract(fragment(t, `<div class="vehicle-item"><a href="/d/1">x</a></div>`), 1, 0)
	before := lot.ID

	lot.PlateRaw = "AD 1 A"
	e.RefreshID(&lot)
	require.NotEqual(t, before, lot.ID)
	require.Equal(t, IDFromHash, lot.IDSource)

	marked := e.Extract(fragment(t, `<div class="vehicle-item" data-id="42"></div>`), 1, 0)
	marked.PlateRaw = "AD 1 A"
	e.RefreshID(&marked)
	require.Equal(t, "42", marked.ID)
}

func TestParseListingSecondaryCardSelector(t *testing.T) {
	e := newExtractor(t)

	lots, err := e.ParseListing(`
		<div class="list">
			<div class="lot-item" data-id="1"><h4>A</h4></div>
			<div class="lot-item" data-id="2"><h4>B</h4></div>
		</div>`, DefaultSelectors().CardSelectors, 1)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	require.Equal(t, "A", lots[0].Title)
	require.Equal(t, 1, lots[1].Index)
}

func TestNewExtractorRejectsBadInput(t *testing.T) {
	_, err := NewExtractor(DefaultSelectors(), "/relative")
	require.Error(t, err)

	sel := DefaultSelectors()
	sel.PlatePatterns = []string{"(unclosed"}
	_, err = NewExtractor(sel, baseURL)
	require.Error(t, err)
}

func TestChainFirstWins(t *testing.T) {
	miss := func(*goquery.Selection) (string, bool) { return "", false }
	hit := func(v string) Lookup {
		return func(*goquery.Selection) (string, bool) { return v, true }
	}

	v, ok := Chain{miss, hit("a"), hit("b")}.First(nil)
	require.True(t, ok)
	require.Equal(t, "a", v)

	_, ok = Chain{miss}.First(nil)
	require.False(t, ok)
}
