package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/psychodetective/internal/domain"
)

// statusOverloaded is returned by Anthropic when the API is overloaded.
const statusOverloaded = 529

// errResponseTooLarge indicates a response body above the configured cap.
var errResponseTooLarge = errors.New("response too large")

// jsonCall is one POST request of a raw-HTTP adapter.
type jsonCall struct {
	provider string
	url      string
	headers  map[string]string
	body     any
	maxBytes int64
}

// do sends the call and returns the body of a 200 response. Any other outcome
// is a *domain.ProviderError.
func (c jsonCall) do(ctx context.Context, client *http.Client) ([]byte, error) {
	payload, err := json.Marshal(c.body)
	if err != nil {
		return nil, domain.NewProviderError(c.provider, domain.ReasonTransportError, false,
			fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.NewProviderError(c.provider, domain.ReasonTransportError, false,
			fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(ctx, c.provider, err)
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body, c.maxBytes)
	if err != nil {
		if errors.Is(err, errResponseTooLarge) {
			return nil, domain.NewProviderError(c.provider, domain.ReasonInvalidResponse, false, err)
		}
		return nil, transportError(ctx, c.provider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(c.provider, resp.StatusCode, resp.Header, body)
	}
	return body, nil
}

// readLimited reads at most max bytes and fails when the body is longer.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > max {
		return nil, fmt.Errorf("%w: over %d bytes", errResponseTooLarge, max)
	}
	return body, nil
}

// transportError classifies a failed round trip.
func transportError(ctx context.Context, provider string, err error) *domain.ProviderError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewProviderError(provider, domain.ReasonTimeout, true, err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return domain.NewProviderError(provider, domain.ReasonTransportError, false, err)
	}
	return domain.NewProviderError(provider, domain.ReasonTransportError, true, err)
}

// statusError maps a non-200 HTTP status to a provider error.
func statusError(provider string, status int, header http.Header, body []byte) *domain.ProviderError {
	detail := truncate(string(body), 200)

	switch {
	case status == http.StatusTooManyRequests || status == statusOverloaded:
		pe := domain.NewProviderError(provider, domain.ReasonRateLimited, true,
			fmt.Errorf("rate limited (status %d)", status))
		pe.RetryAfter = parseRetryAfter(header.Get("Retry-After"), time.Now())
		return pe
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewProviderError(provider, domain.ReasonTransportError, false,
			fmt.Errorf("authentication failed (status %d): check your API key", status))
	case status == http.StatusBadRequest:
		return domain.NewProviderError(provider, domain.ReasonTransportError, false,
			fmt.Errorf("bad request: %s", detail))
	case status == http.StatusNotFound:
		return domain.NewProviderError(provider, domain.ReasonTransportError, false,
			fmt.Errorf("model not found: check model name in configuration"))
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return domain.NewProviderError(provider, domain.ReasonTimeout, true,
			fmt.Errorf("upstream timeout (status %d)", status))
	case status >= 500:
		return domain.NewProviderError(provider, domain.ReasonTransportError, true,
			fmt.Errorf("service unavailable (status %d)", status))
	default:
		return domain.NewProviderError(provider, domain.ReasonTransportError, false,
			fmt.Errorf("API returned status %d: %s", status, detail))
	}
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// invalidResponse builds a non-retryable invalid_response error.
func invalidResponse(provider string, format string, args ...any) *domain.ProviderError {
	return domain.NewProviderError(provider, domain.ReasonInvalidResponse, false, fmt.Errorf(format, args...))
}

// withCallTimeout bounds ctx by the call timeout, falling back to def.
func withCallTimeout(ctx context.Context, timeout, def time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = def
	}
	return context.WithTimeout(ctx, timeout)
}
