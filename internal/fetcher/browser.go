package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"lot-watcher/internal/config"
	"lot-watcher/internal/observability"
	"lot-watcher/internal/source"
)

// Browser рендерит страницы в headless Chrome через rod. Один экземпляр на
// прогон; владелец обязан вызвать Close.
type Browser struct {
	browser     *rod.Browser
	launcher    *launcher.Launcher
	cfg         *config.Config
	logger      *observability.Logger
	pageTimeout time.Duration
}

func NewBrowser(cfg *config.Config, logger *observability.Logger) (*Browser, error) {
	l := launcher.New().Headless(cfg.Rod.Headless)
	if cfg.Rod.ChromePath != "" {
		l = l.Bin(cfg.Rod.ChromePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger.Info("Browser started", "headless", cfg.Rod.Headless)

	return &Browser{
		browser:     browser,
		launcher:    l,
		cfg:         cfg,
		logger:      logger,
		pageTimeout: cfg.GetRodPageTimeout(),
	}, nil
}

func (b *Browser) FetchPage(ctx context.Context, page int, wait source.WaitSpec) (string, error) {
	pageURL, err := source.PageURL(b.cfg.Listing.BaseURL, b.cfg.Listing.PageParam, page)
	if err != nil {
		return "", err
	}
	return b.FetchURL(ctx, pageURL, wait)
}

// FetchURL открывает вкладку, ждёт загрузку и (ограниченно) первую карточку.
// Таймаут ожидания карточки не ошибка: возвращаем то, что успело отрендериться.
func (b *Browser) FetchURL(ctx context.Context, urlStr string, wait source.WaitSpec) (string, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			b.logger.Warn("Failed to close browser page", "error", err.Error())
		}
	}()

	page = page.Context(ctx)

	if b.cfg.HTTP.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      b.cfg.HTTP.UserAgent,
			AcceptLanguage: b.cfg.HTTP.AcceptLanguage,
		}); err != nil {
			return "", fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	loading := page.Timeout(b.pageTimeout)
	if err := loading.Navigate(urlStr); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}
	if err := loading.WaitLoad(); err != nil {
		return "", fmt.Errorf("failed to wait for page load: %w", err)
	}

	if len(wait.Selectors) > 0 && wait.Timeout > 0 {
		race := page.Timeout(wait.Timeout).Race()
		for _, selector := range wait.Selectors {
			race = race.Element(selector)
		}
		if _, err := race.Do(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				b.logger.Warn("Timed out waiting for cards",
					"url", urlStr,
					"timeout", wait.Timeout,
				)
			} else if ctx.Err() != nil {
				return "", ctx.Err()
			} else {
				b.logger.Warn("Waiting for cards failed", "url", urlStr, "error", err.Error())
			}
		}
	}

	html, err := page.Timeout(b.pageTimeout).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}

	return html, nil
}

// Close закрывает браузер и убивает процесс Chrome.
func (b *Browser) Close() error {
	var closeErr error
	if b.browser != nil {
		closeErr = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
	return closeErr
}
