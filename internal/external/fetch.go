package external

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"fieldline/internal/types"
)

// HTTPFetcher implements Fetcher by downloading URLs through BaseClient.
// Fetches are idempotent GETs, so unlike analysis calls they run under the
// default retry policy.
type HTTPFetcher struct {
	base   *BaseClient
	logger *slog.Logger
}

// NewFetcher creates an HTTPFetcher with the default retry policy.
func NewFetcher(httpClient *http.Client, logger *slog.Logger, opts ...BaseClientOption) *HTTPFetcher {
	base := NewBaseClient(
		httpClient,
		"artifact-fetch",
		DefaultRetryPolicy(),
		"Fieldline/1.0",
		opts...,
	)
	return NewFetcherWithBase(base, logger)
}

// NewFetcherWithBase creates an HTTPFetcher with a pre-configured BaseClient.
func NewFetcherWithBase(base *BaseClient, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{base: base, logger: logger}
}

// Fetch downloads the resource at url and returns its bytes.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"fetch URL is required",
			nil,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create fetch request",
			err,
		)
	}

	f.logger.InfoContext(ctx, "fetching artifact", "url", url)

	resp, err := f.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, types.NewAppError(
			types.ErrCodeNotFoundArtifact,
			fmt.Sprintf("artifact not found: %s", url),
			nil,
		)
	case resp.StatusCode >= 400:
		return nil, types.NewAppError(
			types.ErrCodeRemoteUnavailable,
			fmt.Sprintf("artifact fetch returned %d", resp.StatusCode),
			nil,
		)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeRemoteUnavailable,
			"failed to read artifact body",
			err,
		)
	}

	f.logger.InfoContext(ctx, "artifact fetched", "url", url, "bytes", len(data))

	return data, nil
}

// Compile-time interface compliance check.
var _ Fetcher = (*HTTPFetcher)(nil)
