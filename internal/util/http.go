package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/youruser/bannerprint/internal/apperr"
)

const (
	// DefaultFetchTimeout bounds a single asset fetch.
	DefaultFetchTimeout = 8 * time.Second
	// MaxFetchBytes caps a downloaded asset.
	MaxFetchBytes = 64 << 20
)

// GetBytes downloads url within timeout. It returns apperr kinds
// FetchTimeout, Aborted (parent ctx cancelled) or FetchError.
func GetBytes(ctx context.Context, client *http.Client, url string, timeout time.Duration) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.FetchError(0, url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, classify(ctx, fetchCtx, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.FetchError(resp.StatusCode, url, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchBytes+1))
	if err != nil {
		return nil, classify(ctx, fetchCtx, url, err)
	}
	if len(body) > MaxFetchBytes {
		return nil, apperr.FetchError(resp.StatusCode, url, fmt.Errorf("asset larger than %d bytes", MaxFetchBytes))
	}
	return body, nil
}

func classify(parent, fetchCtx context.Context, url string, err error) error {
	if parent.Err() != nil {
		return apperr.Aborted(parent.Err())
	}
	if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
		return apperr.FetchTimeout(url, err)
	}
	return apperr.FetchError(0, url, err)
}
