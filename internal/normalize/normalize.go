package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

var spaces = regexp.MustCompile(`\s+`)

// Plate приводит номер к каноническому виду: верхний регистр, только A-Z и 0-9.
// "ad 1234-xy" -> "AD1234XY"
func Plate(raw string) string {
	raw = strings.ToUpper(raw)

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// MatchesPrefix: канонический номер начинается с префикса. Пустой номер не
// совпадает ни с каким непустым префиксом.
func MatchesPrefix(canonical, prefix string) bool {
	if canonical == "" {
		return prefix == ""
	}
	return strings.HasPrefix(canonical, prefix)
}

// CleanText заменяет NBSP, схлопывает пробелы и обрезает края.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\u00A0", " ")
	text = spaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NormalizeURL убирает якорь и пробелы по краям.
func NormalizeURL(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)
	if idx := strings.Index(urlStr, "#"); idx > -1 {
		urlStr = urlStr[:idx]
	}
	return urlStr
}

// AbsoluteURL резолвит ссылку относительно base. Пустые, javascript: и data:
// ссылки отбрасываются.
func AbsoluteURL(base *url.URL, ref string) (string, bool) {
	ref = NormalizeURL(ref)
	if ref == "" {
		return "", false
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") {
		return "", false
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", false
	}
	return u.String(), true
}
