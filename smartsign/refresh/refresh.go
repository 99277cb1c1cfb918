// Package refresh periodically fetches the sign's text and publishes it
// into the shared display buffer.
//
// Fetch failures never reach the renderer: the Refresher publishes a
// fixed fallback snapshot instead and simply tries again next interval.
package refresh

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// FallbackMessage is shown on the first row when a fetch fails.
const FallbackMessage = "Could not fetch updates."

// Fetcher obtains the next text blob, rows separated by '\n'.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) (string, error)

// Fetch calls f(ctx).
func (f FetcherFunc) Fetch(ctx context.Context) (string, error) { return f(ctx) }

// Publisher receives complete snapshots.
type Publisher interface {
	Publish(rows []string)
}

// SplitRows breaks blob on '\n' into exactly n rows. Missing rows are
// empty and rows past n are dropped. A trailing '\r' on each row is removed.
func SplitRows(blob string, n int) []string {
	rows := make([]string, n)
	for i := 0; i < n; i++ {
		line, rest, found := strings.Cut(blob, "\n")
		rows[i] = strings.TrimSuffix(line, "\r")
		if !found {
			break
		}
		blob = rest
	}
	return rows
}

// Fallback returns the snapshot published after a failed fetch.
func Fallback(n int) []string {
	rows := make([]string, n)
	if n > 0 {
		rows[0] = FallbackMessage
	}
	return rows
}

// Refresher publishes fetched text on a fixed interval.
type Refresher struct {
	Fetcher Fetcher
	Buffer  Publisher
	// Interval between fetches.
	Interval time.Duration
	// FetchTimeout bounds one fetch. Zero means no limit beyond ctx.
	FetchTimeout time.Duration
	// Rows is the number of rows per snapshot. Zero means 4.
	Rows int
	// Fallback replaces the default fallback snapshot when non-nil.
	Fallback []string
	Logger   *slog.Logger

	once sync.Once
	kick chan struct{}
}

// Trigger asks a running Refresher to fetch now instead of waiting out the
// interval. Calls made while a trigger is pending are coalesced.
func (r *Refresher) Trigger() {
	r.init()
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// RefreshOnce fetches and publishes one snapshot. It returns the fetch
// error, if any, after publishing the fallback.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	r.init()
	if r.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.FetchTimeout)
		defer cancel()
	}

	blob, err := r.Fetcher.Fetch(ctx)
	if err != nil {
		r.Logger.Error("refresh:fetch-failed", slog.String("err", err.Error()))
		r.Buffer.Publish(r.fallback())
		return err
	}
	r.Buffer.Publish(SplitRows(blob, r.rows()))
	r.Logger.Info("refresh:published", slog.Int("bytes", len(blob)))
	return nil
}

// Run refreshes immediately, then every Interval or on Trigger, until ctx
// is done.
func (r *Refresher) Run(ctx context.Context) error {
	r.init()
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		// The error is already logged and the fallback published.
		_ = r.RefreshOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.kick:
			ticker.Reset(r.Interval)
		}
	}
}

func (r *Refresher) init() {
	r.once.Do(func() {
		r.kick = make(chan struct{}, 1)
		if r.Logger == nil {
			r.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		if r.Interval <= 0 {
			r.Interval = DefaultInterval
		}
	})
}

// DefaultInterval is used when Interval is unset.
const DefaultInterval = 30 * time.Second

func (r *Refresher) rows() int {
	if r.Rows > 0 {
		return r.Rows
	}
	return 4
}

func (r *Refresher) fallback() []string {
	if r.Fallback != nil {
		rows := make([]string, r.rows())
		copy(rows, r.Fallback)
		return rows
	}
	return Fallback(r.rows())
}
