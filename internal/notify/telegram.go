package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Telegram: Channel поверх Bot API (sendPhoto / sendMessage, parse_mode=HTML).
type Telegram struct {
	client *resty.Client
	token  string
	chatID string
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func NewTelegram(apiBaseURL, token, chatID string, timeout time.Duration) *Telegram {
	client := resty.New().
		SetBaseURL(strings.TrimRight(apiBaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Telegram{client: client, token: token, chatID: chatID}
}

func (t *Telegram) SendPhoto(ctx context.Context, image []byte, caption string) error {
	var out apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetFileReader("photo", "lot.jpg", bytes.NewReader(image)).
		SetFormData(map[string]string{
			"chat_id":    t.chatID,
			"caption":    caption,
			"parse_mode": "HTML",
		}).
		SetResult(&out).
		SetError(&out).
		Post(t.method("sendPhoto"))
	if err != nil {
		return fmt.Errorf("sendPhoto: %w", err)
	}
	return check("sendPhoto", resp, out)
}

func (t *Telegram) SendText(ctx context.Context, caption string) error {
	var out apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":    t.chatID,
			"text":       caption,
			"parse_mode": "HTML",
		}).
		SetResult(&out).
		SetError(&out).
		Post(t.method("sendMessage"))
	if err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	return check("sendMessage", resp, out)
}

func (t *Telegram) method(name string) string {
	return fmt.Sprintf("/bot%s/%s", t.token, name)
}

func check(method string, resp *resty.Response, out apiResponse) error {
	if resp.IsError() || !out.OK {
		desc := out.Description
		if desc == "" {
			desc = http.StatusText(resp.StatusCode())
		}
		return fmt.Errorf("%s: %w: status %d: %s", method, ErrChannel, resp.StatusCode(), desc)
	}
	return nil
}

// HTTPImages скачивает фото лотов.
type HTTPImages struct {
	client   *resty.Client
	maxBytes int
}

func NewHTTPImages(userAgent string, timeout time.Duration) *HTTPImages {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "image/*")

	return &HTTPImages{client: client, maxBytes: 10 << 20}
}

func (h *HTTPImages) Download(ctx context.Context, url string) ([]byte, error) {
	resp, err := h.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("empty image body")
	}
	if len(body) > h.maxBytes {
		return nil, fmt.Errorf("image too large: %d bytes", len(body))
	}
	if ct := resp.Header().Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}

	return body, nil
}
