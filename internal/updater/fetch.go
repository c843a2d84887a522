package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tinywii/internal/services"
)

const maxBodyBytes = 16 << 20

// statusError reports a non-2xx response.
type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.url, e.code)
}

// Fetcher performs GET requests with retries on transport errors and 5xx
// responses.
type Fetcher struct {
	client      *http.Client
	maxAttempts int
	initial     time.Duration
	userAgent   string
}

// NewFetcher builds a fetcher. maxAttempts below one is treated as one.
func NewFetcher(client *http.Client, maxAttempts int, userAgent string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		client:      client,
		maxAttempts: max(maxAttempts, 1),
		initial:     250 * time.Millisecond,
		userAgent:   userAgent,
	}
}

// Get returns the body at url. Failures are tagged services.ErrNetwork,
// cancellation services.ErrCancelled.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.initial
	policy.MaxInterval = 5 * time.Second
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(f.maxAttempts-1)), ctx)

	var body []byte
	err := backoff.Retry(func() error {
		var err error
		body, err = f.once(ctx, url)
		return err
	}, retry)
	if err == nil {
		return body, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
		return nil, services.Wrap(services.ErrCancelled, "updater", "fetch", url, err)
	}
	return nil, services.Wrap(services.ErrNetwork, "updater", "fetch", url, err)
}

func (f *Fetcher) once(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := &statusError{url: url, code: resp.StatusCode}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}
