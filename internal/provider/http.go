package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kasparro-backend/internal/domain"

	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// httpSource is the request plumbing shared by every adapter. It turns transport
// outcomes into typed fetch errors so the coordinator can tell a timeout from a
// rejected request.
type httpSource struct {
	name    string
	client  *http.Client
	baseURL string
	headers http.Header
	limiter *rate.Limiter
}

func newHTTPSource(name string, cfg SourceConfig, limiter *rate.Limiter) *httpSource {
	headers := make(http.Header)
	headers.Set("Accept", "application/json")
	headers.Set("User-Agent", cfg.UserAgent)
	return &httpSource{
		name:    name,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: headers,
		limiter: limiter,
	}
}

func (s *httpSource) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			err = fmt.Errorf("rate limit wait: %w", err)
			// Wait gives up early when the next token lands past ctx's deadline
			if _, ok := ctx.Deadline(); ok && !errors.Is(ctx.Err(), context.Canceled) {
				return nil, &domain.FetchError{Source: s.name, Kind: domain.FetchTimeout, Err: err}
			}
			return nil, s.transportError(ctx, err)
		}
	}

	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &domain.FetchError{Source: s.name, Kind: domain.FetchMalformed, Err: err}
	}
	for k, v := range s.headers {
		req.Header[k] = append([]string(nil), v...)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		kind := domain.FetchUnreachable
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = domain.FetchRateLimited
		}
		return nil, &domain.FetchError{
			Source:     s.name,
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s API error: %s", s.name, strings.TrimSpace(string(body))),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, s.transportError(ctx, fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

func (s *httpSource) malformed(err error) error {
	return &domain.FetchError{Source: s.name, Kind: domain.FetchMalformed, Err: err}
}

func (s *httpSource) transportError(ctx context.Context, err error) error {
	if isTimeout(ctx, err) {
		return &domain.FetchError{Source: s.name, Kind: domain.FetchTimeout, Err: err}
	}
	return &domain.FetchError{Source: s.name, Kind: domain.FetchUnreachable, Err: err}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
