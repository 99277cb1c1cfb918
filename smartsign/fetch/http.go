// Package fetch provides host-side text sources for the refresher: an
// HTTP route on the sign proxy and a local file.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"
)

// MaxBody is the largest response body accepted from the proxy.
const MaxBody = 256

var (
	// ErrStatus wraps non-2xx responses.
	ErrStatus = errors.New("fetch: unexpected status")
	// ErrEncoding is returned when the body is not valid UTF-8.
	ErrEncoding = errors.New("fetch: body is not valid UTF-8")
)

// HTTP fetches the sign text with a GET request.
type HTTP struct {
	URL    string
	Client *http.Client
	Logger *slog.Logger
}

// NewHTTP returns an HTTP fetcher with its own client and timeout.
func NewHTTP(url string, timeout time.Duration, logger *slog.Logger) *HTTP {
	return &HTTP{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

// Fetch GETs URL and returns the body. Bodies longer than MaxBody are
// truncated.
func (h *HTTP) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying proxy: %w", err)
	}
	defer resp.Body.Close()

	if h.Logger != nil {
		h.Logger.Debug("fetch:proxy-status", slog.Int("status", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBody))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	body = trimPartialRune(body)
	if !utf8.Valid(body) {
		return "", ErrEncoding
	}
	return string(body), nil
}

// trimPartialRune drops a multi-byte rune cut in half by the body limit.
func trimPartialRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		r := b[len(b)-i]
		if !utf8.RuneStart(r) {
			continue
		}
		if !utf8.FullRune(b[len(b)-i:]) {
			return b[:len(b)-i]
		}
		break
	}
	return b
}
