package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"lot-watcher/internal/checksum"
	"lot-watcher/internal/normalize"
)

// Extractor строит Lot из фрагмента карточки. Каждое поле: своя цепочка
// стратегий; при промахе подставляется значение по умолчанию.
type Extractor struct {
	baseURL  *url.URL
	ids      *checksum.Generator
	id       Chain
	title    Chain
	location Chain
	plate    Chain
	link     Chain
	photo    Chain
}

func NewExtractor(selectors *Selectors, baseURL string) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	locationPatterns, err := compilePatterns(selectors.LocationPatterns)
	if err != nil {
		return nil, fmt.Errorf("location_patterns: %w", err)
	}
	platePatterns, err := compilePatterns(selectors.PlatePatterns)
	if err != nil {
		return nil, fmt.Errorf("plate_patterns: %w", err)
	}

	imageAttrs := selectors.ImageAttrs
	if len(imageAttrs) == 0 {
		imageAttrs = []string{"src"}
	}

	return &Extractor{
		baseURL:  base,
		ids:      checksum.NewGenerator(),
		id:       Chain{OwnAttr(selectors.IDAttrs...)},
		title:    TextChain(selectors.TitleSelectors),
		location: append(TextChain(selectors.LocationSelectors), PatternChain(locationPatterns)...),
		plate:    append(TextChain(selectors.PlateSelectors), PatternChain(platePatterns)...),
		link:     append(Chain{OwnAttr("href")}, AttrChain(selectors.LinkSelectors, "href")...),
		photo:    AttrChain(selectors.ImageSelectors, imageAttrs...),
	}, nil
}

// Extract никогда не падает: отсутствующие поля получают значения по умолчанию.
func (e *Extractor) Extract(frag *goquery.Selection, page, index int) Lot {
	lot := Lot{
		Title:    DefaultTitle,
		Location: DefaultLocation,
		PlateRaw: PlateSentinel,
		Page:     page,
		Index:    index,
	}

	if v, ok := e.title.First(frag); ok {
		lot.Title = v
	}
	if v, ok := e.location.First(frag); ok {
		lot.Location = v
	}
	if v, ok := e.plate.First(frag); ok {
		lot.PlateRaw = v
	}
	if v, ok := e.link.First(frag); ok {
		if abs, ok := normalize.AbsoluteURL(e.baseURL, v); ok {
			lot.Link = abs
		}
	}
	if v, ok := e.photo.First(frag); ok {
		if abs, ok := normalize.AbsoluteURL(e.baseURL, firstSrcsetURL(v)); ok {
			lot.PhotoURL = abs
		}
	}

	e.assignID(&lot, frag)
	return lot
}

// RefreshID пересчитывает хеш-идентификатор после того, как номер дополнен
// со страницы деталей. ID из разметки не трогается.
func (e *Extractor) RefreshID(lot *Lot) {
	if lot.IDSource == IDFromMarkup {
		return
	}
	e.assignID(lot, nil)
}

func (e *Extractor) assignID(lot *Lot, frag *goquery.Selection) {
	if frag != nil {
		if v, ok := e.id.First(frag); ok {
			lot.ID = v
			lot.IDSource = IDFromMarkup
			return
		}
	}

	plate := ""
	if lot.HasPlate() {
		plate = normalize.Plate(lot.PlateRaw)
	}
	if id := e.ids.LotID(plate, lot.Link); id != "" {
		lot.ID = id
		lot.IDSource = IDFromHash
		return
	}

	lot.ID = fmt.Sprintf("page-%d-%d", lot.Page, lot.Index)
	lot.IDSource = IDFromPosition
}

// Cards находит фрагменты карточек: основной селектор, затем запасные.
func Cards(doc *goquery.Document, selectors []string) (*goquery.Selection, string) {
	for _, selector := range selectors {
		found := doc.Find(selector)
		if found.Length() > 0 {
			return found, selector
		}
	}
	return doc.Selection.Slice(0, 0), ""
}

// ParseListing разбирает страницу листинга целиком (удобно для отладки и тестов).
func (e *Extractor) ParseListing(html string, cardSelectors []string, page int) ([]Lot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	cards, _ := Cards(doc, cardSelectors)
	lots := make([]Lot, 0, cards.Length())
	cards.Each(func(i int, sel *goquery.Selection) {
		lots = append(lots, e.Extract(sel, page, i))
	})
	return lots, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// firstSrcsetURL: "a.jpg 1x, b.jpg 2x" -> "a.jpg".
func firstSrcsetURL(v string) string {
	first, _, _ := strings.Cut(v, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
