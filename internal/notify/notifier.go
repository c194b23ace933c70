package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"lot-watcher/internal/observability"
	"lot-watcher/internal/scraper"
)

// ErrChannel: канал ответил неуспехом (не транспортная ошибка).
var ErrChannel = errors.New("channel rejected message")

// Channel: получатель уведомлений (чат Telegram).
type Channel interface {
	SendPhoto(ctx context.Context, image []byte, caption string) error
	SendText(ctx context.Context, caption string) error
}

// ImageSource скачивает фото лота.
type ImageSource interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

type Notifier struct {
	channel  Channel
	images   ImageSource
	attempts int
	backoff  time.Duration
	logger   *observability.Logger
}

// NewNotifier: attempts задаёт число попыток скачать фото, пауза перед попыткой
// n+1 равна backoff*n.
func NewNotifier(channel Channel, images ImageSource, attempts int, backoff time.Duration, logger *observability.Logger) *Notifier {
	if attempts <= 0 {
		attempts = 1
	}
	return &Notifier{
		channel:  channel,
		images:   images,
		attempts: attempts,
		backoff:  backoff,
		logger:   logger,
	}
}

// Deliver отправляет лот: фото с подписью, при любой неудаче текстом.
// Успех определяется последней выполненной отправкой. Ошибки не пробрасываются.
func (n *Notifier) Deliver(ctx context.Context, lot scraper.Lot, matchedPlate string) bool {
	caption := Caption(lot, matchedPlate)
	log := n.logger.With("lot_id", lot.ID)

	if lot.PhotoURL != "" && utf8.RuneCountInString(caption) <= MaxPhotoCaption {
		image, err := n.download(ctx, lot.PhotoURL)
		if err != nil {
			log.Warn("Photo download failed, sending text", "photo_url", lot.PhotoURL, "error", err.Error())
		} else if err := n.safe(func() error { return n.channel.SendPhoto(ctx, image, caption) }); err != nil {
			log.Warn("Photo delivery failed, sending text", "error", err.Error())
		} else {
			log.Info("Lot delivered", "mode", "photo")
			return true
		}
	}

	if err := n.safe(func() error { return n.channel.SendText(ctx, caption) }); err != nil {
		log.Error("Text delivery failed", "error", err.Error())
		return false
	}

	log.Info("Lot delivered", "mode", "text")
	return true
}

func (n *Notifier) download(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= n.attempts; attempt++ {
		if attempt > 1 {
			wait := n.backoff * time.Duration(attempt-1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var data []byte
		err := n.safe(func() error {
			var err error
			data, err = n.images.Download(ctx, url)
			return err
		})
		if err == nil {
			return data, nil
		}

		lastErr = err
		n.logger.Debug("Photo download attempt failed", "url", url, "attempt", attempt, "error", err.Error())
	}
	return nil, fmt.Errorf("download failed after %d attempts: %w", n.attempts, lastErr)
}

// safe превращает панику клиента в ошибку: сбой одного лота не роняет прогон.
func (n *Notifier) safe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
