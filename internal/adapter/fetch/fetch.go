// Package fetch is the shared HTTP transport for provider gateways: GET with
// per-call context, bounded retries on transient failures, and jittered
// exponential backoff.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxElapsed     = 20 * time.Second
	maxErrBody     = 256
)

// Get issues a GET request, retrying network errors, 429s, and 5xx responses
// with exponential backoff and jitter. Other non-2xx statuses fail
// immediately. The caller's context bounds the whole retry loop.
func Get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	var body []byte

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body = b
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(b))
		default:
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, truncate(b)))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialBackoff
	bo.MaxElapsedTime = maxElapsed

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// GetJSON fetches a URL via Get and decodes the JSON response into out.
func GetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	body, err := Get(ctx, client, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(b []byte) []byte {
	if len(b) > maxErrBody {
		return b[:maxErrBody]
	}
	return b
}
