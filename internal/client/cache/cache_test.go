package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/mecsync/internal/client/transport"
	"github.com/atinyakov/mecsync/internal/models"
)

// fakeStore is a minimal document endpoint with revisions.
type fakeStore struct {
	mu         sync.Mutex
	doc        models.Document
	rev        models.Revision
	gets       int
	posts      int
	getStatus  int
	postStatus int

	lastQuery       string
	lastContentType string
	lastIfMatch     string
}

func (s *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		s.gets++
		s.lastQuery = r.URL.Query().Get("t")
		if s.getStatus != 0 {
			w.WriteHeader(s.getStatus)
			return
		}
		w.Header().Set("ETag", s.rev.ETag())
		_ = json.NewEncoder(w).Encode(s.doc)
	case http.MethodPost:
		s.posts++
		s.lastContentType = r.Header.Get("Content-Type")
		s.lastIfMatch = r.Header.Get("If-Match")
		if s.postStatus != 0 {
			w.WriteHeader(s.postStatus)
			return
		}
		if s.lastIfMatch != "" && models.ParseETag(s.lastIfMatch) != s.rev {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		doc := models.Document{}
		if err := json.Unmarshal(body, &doc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.doc = doc
		s.rev++
		w.Header().Set("ETag", s.rev.ETag())
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}
}

func (s *fakeStore) set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, _ := json.Marshal(v)
	if s.doc == nil {
		s.doc = models.Document{}
	}
	s.doc[key] = raw
	s.rev++
}

func (s *fakeStore) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.posts
}

func newTestCache(t *testing.T, store *fakeStore, opts ...Option) (*Cache, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(store)
	t.Cleanup(srv.Close)
	tr := transport.New(srv.Client(), transport.WithRetries(1))
	return New(srv.URL+"/exec", tr, opts...), srv
}

func TestFetch_CachesUntilForced(t *testing.T) {
	store := &fakeStore{doc: models.Document{}}
	store.set(models.KeyUsers, []models.User{{ID: "u1"}})
	c, _ := newTestCache(t, store)
	ctx := context.Background()

	doc, err := c.Fetch(ctx, false, false)
	require.NoError(t, err)
	assert.Contains(t, doc, models.KeyUsers)
	assert.NotEmpty(t, store.lastQuery, "GET must carry a cache-busting timestamp")

	_, err = c.Fetch(ctx, false, false)
	require.NoError(t, err)
	gets, _ := store.counts()
	assert.Equal(t, 1, gets)

	_, err = c.Fetch(ctx, true, false)
	require.NoError(t, err)
	gets, _ = store.counts()
	assert.Equal(t, 2, gets)
	assert.Equal(t, models.Revision(1), c.Revision())
}

func TestFetch_ReturnsCopy(t *testing.T) {
	store := &fakeStore{}
	store.set(models.KeyParts, []models.Part{{ID: "p1"}})
	c, _ := newTestCache(t, store)

	doc, err := c.Fetch(context.Background(), false, false)
	require.NoError(t, err)
	delete(doc, models.KeyParts)

	again, err := c.Fetch(context.Background(), false, false)
	require.NoError(t, err)
	assert.Contains(t, again, models.KeyParts)
}

func TestFetch_FailureModes(t *testing.T) {
	ctx := context.Background()

	t.Run("no cache", func(t *testing.T) {
		store := &fakeStore{getStatus: http.StatusInternalServerError}
		c, _ := newTestCache(t, store)
		_, err := c.Fetch(ctx, false, false)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("stale cache served when not strict", func(t *testing.T) {
		store := &fakeStore{}
		store.set(models.KeyOrders, []models.Order{{ID: "REQ-1"}})
		c, _ := newTestCache(t, store)
		_, err := c.Fetch(ctx, false, false)
		require.NoError(t, err)

		store.mu.Lock()
		store.getStatus = http.StatusBadGateway
		store.mu.Unlock()

		doc, err := c.Fetch(ctx, true, false)
		require.NoError(t, err)
		assert.Contains(t, doc, models.KeyOrders)

		_, err = c.Fetch(ctx, true, true)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("invalid body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}))
		defer srv.Close()
		c := New(srv.URL, transport.New(srv.Client(), transport.WithRetries(1)))
		_, err := c.Fetch(ctx, false, true)
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestGet(t *testing.T) {
	store := &fakeStore{}
	store.set(models.KeyUsers, []models.User{{ID: "u1", Name: "Ana"}})
	store.set(models.KeySettings, nil)
	store.set(models.KeyCatalogConfig, "not an object")
	c, _ := newTestCache(t, store)
	ctx := context.Background()

	users, err := Get(ctx, c, models.KeyUsers, []models.User{}, false)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ana", users[0].Name)

	parts, err := Get(ctx, c, models.KeyParts, []models.Part{}, false)
	require.NoError(t, err)
	assert.NotNil(t, parts)
	assert.Empty(t, parts)

	settings, err := Get(ctx, c, models.KeySettings, models.SystemSettings{MinAppVersion: "1.0.0"}, false)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", settings.MinAppVersion, "null falls back")

	_, err = Get(ctx, c, models.KeyCatalogConfig, models.CatalogConfig{}, false)
	assert.Error(t, err)
}

func TestGet_UnreachableFallsBack(t *testing.T) {
	store := &fakeStore{getStatus: http.StatusServiceUnavailable}
	c, _ := newTestCache(t, store)

	logs, err := Get(context.Background(), c, models.KeyLogs, []models.SystemLog{}, false)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestSet_WritesWholeDocument(t *testing.T) {
	store := &fakeStore{}
	store.set(models.KeyUsers, []models.User{{ID: "u1"}})
	c, _ := newTestCache(t, store)
	ctx := context.Background()

	_, err := c.Fetch(ctx, false, false)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, models.KeyVehicles, []models.Vehicle{{Prefix: "567"}}))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, "text/plain", store.lastContentType)
	assert.Equal(t, `"1"`, store.lastIfMatch)
	assert.Contains(t, store.doc, models.KeyUsers)
	assert.Contains(t, store.doc, models.KeyVehicles)
	assert.Equal(t, models.Revision(2), c.revision)
}

func TestSet_FailureAlertsAndKeepsLocalChange(t *testing.T) {
	store := &fakeStore{postStatus: http.StatusForbidden}
	store.set(models.KeyParts, []models.Part{})

	var alerts []string
	c, _ := newTestCache(t, store, WithAlerter(AlertFunc(func(msg string) { alerts = append(alerts, msg) })))
	ctx := context.Background()

	_, err := c.Fetch(ctx, false, false)
	require.NoError(t, err)

	err = c.Set(ctx, models.KeyParts, []models.Part{{ID: "p1"}})
	assert.ErrorIs(t, err, ErrWriteFailed)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "ERRO DE SINCRONIZAÇÃO")

	parts, err := Get(ctx, c, models.KeyParts, []models.Part{}, false)
	require.NoError(t, err)
	require.Len(t, parts, 1, "no rollback after a failed write")
}

func TestUpdate_Conflict(t *testing.T) {
	store := &fakeStore{}
	store.set(models.KeyOrders, []models.Order{})
	c, _ := newTestCache(t, store)
	ctx := context.Background()

	_, err := c.Fetch(ctx, false, false)
	require.NoError(t, err)

	// another session writes in between
	store.set(models.KeyOrders, []models.Order{{ID: "REQ-9"}})

	err = c.Update(ctx, models.KeyOrders, func(current json.RawMessage) (any, error) {
		return []models.Order{{ID: "REQ-1"}}, nil
	})
	assert.ErrorIs(t, err, ErrConflict)

	gets, _ := store.counts()
	orders, err := Get(ctx, c, models.KeyOrders, []models.Order{}, false)
	require.NoError(t, err)
	after, _ := store.counts()
	assert.Equal(t, gets+1, after, "a conflict marks the cache stale")
	require.Len(t, orders, 1)
	assert.Equal(t, "REQ-9", orders[0].ID)
}

func TestUpdate_RefusesWithoutDocument(t *testing.T) {
	store := &fakeStore{getStatus: http.StatusInternalServerError}
	c, _ := newTestCache(t, store)

	called := false
	err := c.Update(context.Background(), models.KeyUsers, func(json.RawMessage) (any, error) {
		called = true
		return []models.User{}, nil
	})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, called)
	_, posts := store.counts()
	assert.Zero(t, posts)
}

func TestUpdate_AbortedByFunc(t *testing.T) {
	store := &fakeStore{}
	store.set(models.KeyUsers, []models.User{})
	c, _ := newTestCache(t, store)

	boom := errors.New("boom")
	err := c.Update(context.Background(), models.KeyUsers, func(json.RawMessage) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, posts := store.counts()
	assert.Zero(t, posts)
}

func TestUpdate_ConcurrentWritersSerialize(t *testing.T) {
	store := &fakeStore{}
	store.set(models.KeyLogs, []string{})
	c, _ := newTestCache(t, store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := c.Update(ctx, models.KeyLogs, func(current json.RawMessage) (any, error) {
				var entries []string
				if current != nil {
					if err := json.Unmarshal(current, &entries); err != nil {
						return nil, err
					}
				}
				return append(entries, fmt.Sprintf("e%d", i)), nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	var entries []string
	require.NoError(t, json.Unmarshal(store.doc[models.KeyLogs], &entries))
	assert.Len(t, entries, 20)
}

func TestSnapshot_OfflineFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap", "doc.json")
	store := &fakeStore{}
	store.set(models.KeyParts, []models.Part{{ID: "p1", Name: "Filtro"}})
	c, _ := newTestCache(t, store, WithSnapshot(path))

	_, err := c.Fetch(context.Background(), false, false)
	require.NoError(t, err)

	offline := &fakeStore{getStatus: http.StatusServiceUnavailable}
	c2, _ := newTestCache(t, offline, WithSnapshot(path))
	assert.Equal(t, models.Revision(1), c2.Revision())

	parts, err := Get(context.Background(), c2, models.KeyParts, []models.Part{}, false)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "Filtro", parts[0].Name)

	gets, _ := offline.counts()
	assert.Equal(t, 1, gets, "a loaded snapshot is never fresh")

	_, err = c2.Fetch(context.Background(), false, true)
	assert.ErrorIs(t, err, ErrUnavailable)
}
