// Package transport sends requests to the document endpoint with bounded
// exponential-backoff retry.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	// DefaultRetries is the total number of attempts per request.
	DefaultRetries = 3

	// DefaultBackoff is the wait before the first retry.
	DefaultBackoff = 500 * time.Millisecond

	// Multiplier grows the wait after every failed attempt.
	Multiplier = 1.5
)

// StatusError is returned when the endpoint kept answering with a 5xx status
// until the retry budget ran out.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error: %s", e.Status)
}

// Doer is the subset of *http.Client the transport needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Transport retries transport failures and 5xx responses. Any other response,
// 4xx included, is handed back untouched and the caller must inspect the
// status.
type Transport struct {
	client  Doer
	retries int
	backoff time.Duration
	log     *zap.Logger

	// onRetry observes every scheduled wait.
	onRetry func(wait time.Duration)
}

// Option configures a Transport.
type Option func(*Transport)

// WithRetries sets the total number of attempts. Values below 1 mean 1.
func WithRetries(n int) Option {
	return func(t *Transport) {
		if n < 1 {
			n = 1
		}
		t.retries = n
	}
}

// WithBackoff sets the initial wait between attempts.
func WithBackoff(d time.Duration) Option {
	return func(t *Transport) { t.backoff = d }
}

// WithLogger sets the logger used for attempt diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// New wraps client. A nil client means http.DefaultClient.
func New(client Doer, opts ...Option) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	t := &Transport{
		client:  client,
		retries: DefaultRetries,
		backoff: DefaultBackoff,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Do sends req, retrying up to the configured number of attempts. The request
// body is buffered so it can be replayed.
func (t *Transport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	body, err := readBody(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	logger := t.log.With(zap.String("method", req.Method), zap.String("url", req.URL.Redacted()))

	attempt := 0
	var resp *http.Response
	op := func() error {
		attempt++
		start := time.Now()
		r, err := t.client.Do(cloneRequest(ctx, req, body))
		if err != nil {
			logger.Debug("request failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		logger.Debug("request completed",
			zap.Int("attempt", attempt),
			zap.Int("status", r.StatusCode),
			zap.Duration("duration", time.Since(start)),
		)
		if r.StatusCode >= http.StatusInternalServerError {
			_, _ = io.Copy(io.Discard, r.Body)
			r.Body.Close()
			return &StatusError{StatusCode: r.StatusCode, Status: r.Status}
		}
		resp = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if t.onRetry != nil {
			t.onRetry(wait)
		}
	}

	if err := backoff.RetryNotify(op, t.schedule(ctx), notify); err != nil {
		logger.Error("request failed, retries exhausted", zap.Int("attempts", attempt), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// schedule builds the wait sequence backoff, backoff*1.5, backoff*1.5^2...
// limited to retries-1 waits.
func (t *Transport) schedule(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.backoff
	b.RandomizationFactor = 0
	b.Multiplier = Multiplier
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.retries-1)), ctx)
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

// cloneRequest copies req for one attempt, replaying the buffered body.
func cloneRequest(ctx context.Context, req *http.Request, body []byte) *http.Request {
	r := req.Clone(ctx)
	if body == nil {
		r.Body = http.NoBody
		return r
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return r
}
