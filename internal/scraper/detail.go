package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"lot-watcher/internal/normalize"
)

// DetailExtractor достаёт номер со страницы деталей лота.
type DetailExtractor struct {
	locations Chain
	labels    []string
	patterns  []*regexp.Regexp
}

func NewDetailExtractor(selectors *Selectors) (*DetailExtractor, error) {
	patterns := make([]*regexp.Regexp, 0, len(selectors.DetailPlateLabels))
	for _, label := range selectors.DetailPlateLabels {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(label) + `[:\s]*(.+)`)
		if err != nil {
			return nil, fmt.Errorf("invalid detail label %q: %w", label, err)
		}
		patterns = append(patterns, re)
	}

	return &DetailExtractor{
		locations: TextChain(selectors.DetailPlateSelectors),
		labels:    selectors.DetailPlateLabels,
		patterns:  patterns,
	}, nil
}

// Plate: селекторы по порядку, затем поиск элемента с подписью и разбор
// "<Подпись>: значение", затем текст первого соседнего элемента.
func (d *DetailExtractor) Plate(page string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", false
	}

	if v, ok := d.locations.First(doc.Selection); ok {
		return v, true
	}

	labelled, re := d.findLabelled(doc)
	if labelled == nil {
		return "", false
	}

	if m := re.FindStringSubmatch(normalize.CleanText(labelled.Text())); m != nil {
		if v, ok := nonEmpty(m[1]); ok {
			return v, true
		}
	}

	return nonEmpty(labelled.Next().Text())
}

// findLabelled: первый элемент, в собственном тексте которого есть подпись.
func (d *DetailExtractor) findLabelled(doc *goquery.Document) (*goquery.Selection, *regexp.Regexp) {
	var found *goquery.Selection
	var pattern *regexp.Regexp

	doc.Find("body *").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		own := strings.ToLower(ownText(sel))
		if own == "" {
			return true
		}
		for i, label := range d.labels {
			if strings.Contains(own, strings.ToLower(label)) {
				found = sel
				pattern = d.patterns[i]
				return false
			}
		}
		return true
	})

	return found, pattern
}
