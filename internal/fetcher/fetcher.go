package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lot-watcher/internal/config"
	"lot-watcher/internal/observability"
	"lot-watcher/internal/source"
)

// Fetcher отдаёт статический HTML по HTTP: robots.txt, лимит запросов, ретраи.
type Fetcher struct {
	client      *http.Client
	cfg         *config.Config
	logger      *observability.Logger
	robotsCache *RobotsCache
	rateLimiter *RateLimiter
}

type FetchResponse struct {
	StatusCode int
	Body       []byte
	URL        string
	Headers    http.Header
}

func NewFetcher(cfg *config.Config, logger *observability.Logger) *Fetcher {
	client := &http.Client{
		Timeout: cfg.GetTotalTimeout(),
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Fetcher{
		client:      client,
		cfg:         cfg,
		logger:      logger,
		robotsCache: NewRobotsCache(cfg.GetRobotsCacheTTL(), cfg.HTTP.UserAgent),
		rateLimiter: NewRateLimiter(cfg.RateLimit.MaxConcurrentPerHost, cfg.RateLimit.RPM),
	}
}

func (f *Fetcher) FetchPage(ctx context.Context, page int, wait source.WaitSpec) (string, error) {
	pageURL, err := source.PageURL(f.cfg.Listing.BaseURL, f.cfg.Listing.PageParam, page)
	if err != nil {
		return "", err
	}
	return f.FetchURL(ctx, pageURL, wait)
}

// FetchURL: ожидание не нужно, HTML приходит целиком.
func (f *Fetcher) FetchURL(ctx context.Context, urlStr string, _ source.WaitSpec) (string, error) {
	resp, err := f.Fetch(ctx, urlStr)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, urlStr)
	}
	return string(resp.Body), nil
}

// Fetch загружает URL с ретраями. Каждая попытка проходит через лимитер
// хоста; 5xx и 429 повторяются, остальные статусы отдаются вызывающему.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*FetchResponse, error) {
	target, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if f.cfg.HTTP.RespectRobots {
		allowed, err := f.robotsCache.IsAllowed(ctx, target, f.client)
		if err != nil {
			return nil, fmt.Errorf("robots.txt check failed: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("URL disallowed by robots.txt: %s", urlStr)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.HTTP.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, f.retryDelay(attempt, lastErr)); err != nil {
				return nil, err
			}
		}

		if err := f.rateLimiter.Wait(ctx, target.Host); err != nil {
			return nil, fmt.Errorf("rate limit error: %w", err)
		}

		resp, err := f.fetchOnce(ctx, urlStr)
		switch {
		case err != nil:
			lastErr = err
		case retryable(resp.StatusCode) && attempt < f.cfg.HTTP.MaxRetries:
			lastErr = &statusError{code: resp.StatusCode, retryAfter: parseRetryAfter(resp.Headers.Get("Retry-After"))}
		default:
			return resp, nil
		}

		f.logger.Debug("Fetch attempt failed", "url", urlStr, "attempt", attempt+1, "error", lastErr.Error())
	}

	return nil, fmt.Errorf("fetch failed after %d retries: %w", f.cfg.HTTP.MaxRetries, lastErr)
}

type statusError struct {
	code       int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server responded %d", e.code)
}

func retryable(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// retryDelay: экспоненциальный backoff, но не меньше Retry-After сервера
// (в пределах backoff.max_ms).
func (f *Fetcher) retryDelay(attempt int, lastErr error) time.Duration {
	delay := f.calculateBackoff(attempt)
	var se *statusError
	if errors.As(lastErr, &se) && se.retryAfter > delay {
		delay = min(se.retryAfter, f.cfg.GetBackoffMax())
	}
	return delay
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, urlStr string) (*FetchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.GetConnectTimeout()+f.cfg.GetTotalTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.HTTP.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", f.cfg.HTTP.AcceptLanguage)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warn("Failed to close response body", "error", err.Error())
		}
	}()

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	f.logger.Debug("Response received",
		"url", urlStr,
		"status", resp.StatusCode,
		"bytes", len(body),
	)

	return &FetchResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
		URL:        resp.Request.URL.String(),
		Headers:    resp.Header,
	}, nil
}

// readBody распаковывает gzip, если транспорт не сделал этого сам.
func readBody(resp *http.Response) ([]byte, error) {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return io.ReadAll(resp.Body)
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()
	return io.ReadAll(zr)
}

// calculateBackoff: min*2^(attempt-1), не больше max, с разбросом ±jitter_pct.
func (f *Fetcher) calculateBackoff(attempt int) time.Duration {
	base := f.cfg.GetBackoffMin() << (attempt - 1)
	if base <= 0 || base > f.cfg.GetBackoffMax() {
		base = f.cfg.GetBackoffMax()
	}

	spread := float64(base) * float64(f.cfg.Backoff.JitterPct) / 100
	delay := time.Duration(float64(base) + (rand.Float64()*2-1)*spread)
	return max(delay, f.cfg.GetBackoffMin())
}
