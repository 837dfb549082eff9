package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sydlexius/tributary/internal/version"
)

// maxBodyBytes caps how much of a response body an adapter will read.
const maxBodyBytes = 2 * 1024 * 1024

// UserAgent is sent with every outbound provider request.
func UserAgent() string {
	return fmt.Sprintf("Tributary/%s (https://github.com/sydlexius/tributary)", version.Version)
}

// Request describes one outbound adapter call.
type Request struct {
	Provider ProviderName
	Method   string // defaults to GET
	URL      string
	Body     io.Reader
	Header   http.Header
}

// Do executes req after waiting on the provider's rate limiter and returns
// the response body. Every failure is a *Error.
func Do(ctx context.Context, client *http.Client, limiter *RateLimiterMap, logger *slog.Logger, req Request) ([]byte, error) {
	if err := limiter.Wait(ctx, req.Provider); err != nil {
		return nil, TransportError(req.Provider, fmt.Errorf("rate limiter: %w", err))
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, req.Body)
	if err != nil {
		return nil, NewError(req.Provider, KindInternal, "creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", UserAgent())
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	logger.Debug("requesting", slog.String("method", method), slog.String("url", req.URL))

	resp, err := client.Do(httpReq) //nolint:gosec // URL constructed from configured base URL
	if err != nil {
		return nil, TransportError(req.Provider, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, StatusError(req.Provider, resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, TransportError(req.Provider, fmt.Errorf("reading body: %w", err))
	}
	return body, nil
}
