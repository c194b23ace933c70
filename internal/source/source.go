package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// WaitSpec описывает ограниченное ожидание появления карточек на странице.
// Источники без асинхронного рендера (HTTP) его игнорируют.
type WaitSpec struct {
	Selectors []string
	Timeout   time.Duration
}

// Source отдаёт HTML страницы листинга по номеру или произвольный URL.
type Source interface {
	FetchPage(ctx context.Context, page int, wait WaitSpec) (string, error)
	FetchURL(ctx context.Context, urlStr string, wait WaitSpec) (string, error)
}

// PageURL подставляет номер страницы в query-параметр базового URL.
func PageURL(baseURL, param string, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if page < 1 {
		return "", fmt.Errorf("invalid page number: %d", page)
	}

	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()

	return u.String(), nil
}
