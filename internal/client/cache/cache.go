// Package cache holds the last known copy of the shared MEC document. Reads
// are served per key from the cached copy; every write mutates one key and
// re-submits the whole document.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/mecsync/internal/models"
)

var (
	// ErrUnavailable means the endpoint could not be reached and nothing
	// could be served in its place.
	ErrUnavailable = errors.New("falha na conexão com o servidor")

	// ErrConflict means the endpoint rejected a write because the document
	// changed since it was last fetched.
	ErrConflict = errors.New("document changed by another session")

	// ErrWriteFailed means the endpoint answered a write with a non-2xx status.
	ErrWriteFailed = errors.New("document write rejected")
)

const writeFailedAlert = "ERRO DE SINCRONIZAÇÃO: Não foi possível salvar os dados no servidor. Verifique sua conexão."

// Doer sends one request to the endpoint; *transport.Transport implements it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Alerter shows a blocking, user-facing message.
type Alerter interface {
	Alert(msg string)
}

// AlertFunc adapts a function to Alerter.
type AlertFunc func(msg string)

// Alert calls f(msg).
func (f AlertFunc) Alert(msg string) { f(msg) }

// Fetcher is the read side of the cache.
type Fetcher interface {
	Fetch(ctx context.Context, force, strict bool) (models.Document, error)
}

// UpdateFunc receives the current raw value of a key (nil when absent) and
// returns the value to store. Returning an error aborts the write.
type UpdateFunc func(current json.RawMessage) (any, error)

// Cache owns the document snapshot and the last revision seen from the
// endpoint. One mutex is held across every fetch and write so writers in this
// process never interleave.
type Cache struct {
	endpoint string
	t        Doer
	log      *zap.Logger
	alert    Alerter
	snapshot string
	now      func() time.Time

	mu       sync.Mutex
	doc      models.Document
	revision models.Revision
	// fresh is false while doc only comes from the offline snapshot or a
	// write conflict showed it is outdated.
	fresh bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithAlerter sets where write failures are reported to the user.
func WithAlerter(a Alerter) Option {
	return func(c *Cache) { c.alert = a }
}

// WithSnapshot persists the last good document to path and loads it at
// start as an offline fallback.
func WithSnapshot(path string) Option {
	return func(c *Cache) { c.snapshot = path }
}

// New creates a cache for the document at endpoint.
func New(endpoint string, t Doer, opts ...Option) *Cache {
	c := &Cache{
		endpoint: endpoint,
		t:        t,
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.alert == nil {
		c.alert = AlertFunc(func(msg string) { c.log.Warn(msg) })
	}
	if c.snapshot != "" {
		if err := c.loadSnapshot(); err != nil {
			c.log.Warn("failed to load offline snapshot", zap.String("path", c.snapshot), zap.Error(err))
		}
	}
	return c
}

// Fetch returns the document. A fresh cached copy is returned without any
// network call unless force is set. On a failed fetch, strict callers get
// ErrUnavailable; others get the cached copy if there is one.
func (c *Cache) Fetch(ctx context.Context, force, strict bool) (models.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchLocked(ctx, force, strict)
}

// FetchRevision is Fetch that also returns the revision of the returned
// document, read under the same lock.
func (c *Cache) FetchRevision(ctx context.Context, force, strict bool) (models.Document, models.Revision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, err := c.fetchLocked(ctx, force, strict)
	return doc, c.revision, err
}

func (c *Cache) fetchLocked(ctx context.Context, force, strict bool) (models.Document, error) {
	if c.doc != nil && c.fresh && !force {
		return c.doc.Clone(), nil
	}

	doc, rev, err := c.get(ctx)
	if err == nil {
		c.doc = doc
		c.revision = rev
		c.fresh = true
		c.saveSnapshotLocked()
		return c.doc.Clone(), nil
	}

	c.log.Error("failed to fetch document", zap.Error(err), zap.Bool("strict", strict))
	if strict {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if c.doc != nil {
		return c.doc.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (c *Cache) get(ctx context.Context) (models.Document, models.Revision, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.t.Do(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read document: %w", err)
	}
	doc := models.Document{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, 0, fmt.Errorf("invalid document: %w", err)
		}
		if doc == nil {
			doc = models.Document{}
		}
	}
	return doc, models.ParseETag(resp.Header.Get("ETag")), nil
}

// Get returns key decoded into T, or fallback when the key is absent or null
// or no document could be fetched. The error reports a stored value that does
// not decode into T.
func Get[T any](ctx context.Context, f Fetcher, key string, fallback T, force bool) (T, error) {
	doc, err := f.Fetch(ctx, force, false)
	if err != nil {
		return fallback, nil
	}
	return Decode(doc, key, fallback)
}

// Decode returns key of doc decoded into T, or fallback when the key is
// absent or null.
func Decode[T any](doc models.Document, key string, fallback T) (T, error) {
	raw, ok := doc[key]
	if !ok || isNull(raw) {
		return fallback, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback, fmt.Errorf("decode %q: %w", key, err)
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Set stores value under key and writes the whole document. A failed write
// alerts the user and is returned; the in-memory change is kept.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.doc == nil {
		c.doc = models.Document{}
	}
	c.doc[key] = raw
	return c.pushLocked(ctx)
}

// Update applies fn to the current value of key and writes the whole
// document, all under the cache lock. Unlike Set it refuses to write when no
// document could be loaded, so a failed first fetch never replaces the
// remote document with a single key.
func (c *Cache) Update(ctx context.Context, key string, fn UpdateFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.fetchLocked(ctx, false, false); err != nil {
		return err
	}

	var current json.RawMessage
	if raw, ok := c.doc[key]; ok && !isNull(raw) {
		current = raw
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	c.doc[key] = raw
	return c.pushLocked(ctx)
}

func (c *Cache) pushLocked(ctx context.Context) error {
	err := c.post(ctx)
	if err == nil {
		c.saveSnapshotLocked()
		return nil
	}
	if errors.Is(err, ErrConflict) {
		c.fresh = false
	}
	c.log.Error("failed to save document", zap.Error(err))
	c.alert.Alert(writeFailedAlert)
	return err
}

func (c *Cache) post(ctx context.Context) error {
	body, err := json.Marshal(c.doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	if c.revision > 0 {
		req.Header.Set("If-Match", c.revision.ETag())
	}

	resp, err := c.t.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusPreconditionFailed:
		return ErrConflict
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: status %d", ErrWriteFailed, resp.StatusCode)
	}
	if rev := models.ParseETag(resp.Header.Get("ETag")); rev > 0 {
		c.revision = rev
	}
	return nil
}

// Revision returns the last revision seen from the endpoint, zero if the
// endpoint does not report revisions.
func (c *Cache) Revision() models.Revision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision
}

// Invalidate marks the cached copy stale so the next read goes to the
// endpoint. The copy is still used as a fallback.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.fresh = false
	c.mu.Unlock()
}
