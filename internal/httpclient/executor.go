package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/insightgrid/analytics-gateway/internal/metrics"
	"github.com/insightgrid/analytics-gateway/internal/rate"
)

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// Executor handles rate-limited, retrying HTTP execution with JSON decoding.
// It owns only the transient failure axis: network errors and 5xx responses
// are retried with backoff up to retryMax and then surface as
// ErrUpstreamUnavailable. Authorization failures are never retried here:
// a 401/403 returns ErrUnauthorized immediately so the auth axis (AuthRetrier)
// can decide what to do, without consuming any transient budget.
type Executor struct {
	logger   *zap.Logger
	rateMgr  *rate.Manager
	http     *http.Client
	retryMax int
}

// New creates an Executor. retryMax is the number of retries beyond the first
// attempt; the documented default is 2 (3 total attempts).
func New(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, retryMax int) *Executor {
	return &Executor{
		logger:   logger,
		rateMgr:  rateMgr,
		http:     httpClient,
		retryMax: retryMax,
	}
}

// DoJSON executes req with rate limiting and transient retries, then
// JSON-decodes a 2xx response body into out (if out is non-nil).
// rateLimitKey scopes the rate limiter per tenant. raw, when non-nil,
// receives the undecoded body instead of JSON decoding.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	return e.do(ctx, req, rateLimitKey, out, nil, nil)
}

// DoRaw executes req like DoJSON but hands back the raw response body along
// with the 2xx status code (some endpoints use 202 to mean "not ready yet").
func (e *Executor) DoRaw(ctx context.Context, req *http.Request, rateLimitKey string) ([]byte, int, error) {
	var raw []byte
	var status int
	err := e.do(ctx, req, rateLimitKey, nil, &raw, &status)
	return raw, status, err
}

func (e *Executor) do(ctx context.Context, req *http.Request, rateLimitKey string, out any, raw *[]byte, status *int) error {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	endpoint := req.URL.Path

	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 {
			if err := e.rewindBody(req); err != nil {
				return err
			}
			select {
			case <-time.After(Backoff(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		start := time.Now()
		resp, err := e.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			e.logger.Warn("analytics.http_failed",
				zap.String("url", req.URL.String()),
				zap.Error(err),
				zap.Int("attempt", attempt))
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		elapsed := time.Since(start)

		metrics.AnalyticsRequestsTotal.WithLabelValues(endpoint, fmt.Sprint(resp.StatusCode)).Inc()
		metrics.ObserveDuration(metrics.AnalyticsRequestDuration, start, endpoint)

		if resp.StatusCode >= 500 {
			e.logger.Warn("analytics.server_error",
				zap.Int("status", resp.StatusCode),
				zap.String("url", req.URL.String()),
				zap.Duration("latency", elapsed))
			lastErr = fmt.Errorf("analytics server error: %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			e.logger.Warn("analytics.unauthorized",
				zap.Int("status", resp.StatusCode),
				zap.String("url", req.URL.String()))
			return fmt.Errorf("%s %s: %w", req.Method, endpoint, ErrUnauthorized)
		}

		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s %s: %w", req.Method, endpoint, ErrNotFound)
		}

		if resp.StatusCode >= 400 {
			return &StatusError{Code: resp.StatusCode, Body: body}
		}

		if status != nil {
			*status = resp.StatusCode
		}
		if raw != nil {
			*raw = body
		} else if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				e.logger.Warn("analytics.decode_failed",
					zap.Error(err),
					zap.String("url", req.URL.String()))
				return fmt.Errorf("decode failed: %w", err)
			}
		}

		e.logger.Debug("analytics.http_success",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))

		return nil
	}

	return fmt.Errorf("request failed after %d attempts: %v: %w", e.retryMax+1, lastErr, ErrUpstreamUnavailable)
}

// rewindBody restores the request body before a retry so POST payloads are
// re-sent in full.
func (e *Executor) rewindBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return nil
}
