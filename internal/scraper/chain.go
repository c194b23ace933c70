package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"lot-watcher/internal/normalize"
)

// Lookup: одна стратегия извлечения поля. ok=false означает промах.
type Lookup func(sel *goquery.Selection) (string, bool)

// Chain: упорядоченные стратегии, от самой надёжной к самой общей.
type Chain []Lookup

// First возвращает результат первой стратегии, давшей непустой текст.
func (c Chain) First(sel *goquery.Selection) (string, bool) {
	for _, lookup := range c {
		if v, ok := lookup(sel); ok {
			return v, true
		}
	}
	return "", false
}

// Text: текст первого элемента по CSS-селектору.
func Text(selector string) Lookup {
	return func(sel *goquery.Selection) (string, bool) {
		return nonEmpty(sel.Find(selector).First().Text())
	}
}

// Attr: первый непустой атрибут из attrs у первого элемента по селектору.
func Attr(selector string, attrs ...string) Lookup {
	return func(sel *goquery.Selection) (string, bool) {
		return firstAttr(sel.Find(selector).First(), attrs)
	}
}

// OwnAttr: атрибут самого фрагмента.
func OwnAttr(attrs ...string) Lookup {
	return func(sel *goquery.Selection) (string, bool) {
		return firstAttr(sel, attrs)
	}
}

// Pattern: regexp по собственному тексту элементов фрагмента (сам фрагмент,
// затем потомки в порядке документа), в конце по всему тексту. Берётся первая
// группа, если она есть.
func Pattern(re *regexp.Regexp) Lookup {
	return func(sel *goquery.Selection) (string, bool) {
		var found string
		var ok bool
		sel.AddSelection(sel.Find("*")).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			found, ok = match(re, ownText(el))
			return !ok
		})
		if ok {
			return found, true
		}
		return match(re, normalize.CleanText(sel.Text()))
	}
}

func match(re *regexp.Regexp, text string) (string, bool) {
	if text == "" {
		return "", false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return nonEmpty(m[1])
	}
	return nonEmpty(m[0])
}

func TextChain(selectors []string) Chain {
	chain := make(Chain, 0, len(selectors))
	for _, s := range selectors {
		chain = append(chain, Text(s))
	}
	return chain
}

func AttrChain(selectors []string, attrs ...string) Chain {
	chain := make(Chain, 0, len(selectors))
	for _, s := range selectors {
		chain = append(chain, Attr(s, attrs...))
	}
	return chain
}

func PatternChain(patterns []*regexp.Regexp) Chain {
	chain := make(Chain, 0, len(patterns))
	for _, re := range patterns {
		chain = append(chain, Pattern(re))
	}
	return chain
}

func firstAttr(sel *goquery.Selection, attrs []string) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	for _, attr := range attrs {
		if v, exists := sel.Attr(attr); exists {
			if v = strings.TrimSpace(v); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

func nonEmpty(s string) (string, bool) {
	s = normalize.CleanText(s)
	return s, s != ""
}

// ownText: только прямые текстовые узлы элемента.
func ownText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			b.WriteString(child.Text())
			b.WriteByte(' ')
		}
	})
	return normalize.CleanText(b.String())
}
