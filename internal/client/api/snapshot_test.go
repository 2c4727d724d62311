package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/mecsync/internal/client/cache"
	"github.com/atinyakov/mecsync/internal/client/transport"
	"github.com/atinyakov/mecsync/internal/models"
)

// downDoer fails every request as an unreachable endpoint would.
type downDoer struct {
	calls atomic.Int32
}

func (d *downDoer) Do(*http.Request) (*http.Response, error) {
	d.calls.Add(1)
	return nil, errors.New("connection refused")
}

func writeSnapshotFile(t *testing.T, path string, rev models.Revision, doc map[string]any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"revision": rev,
		"savedAt":  "2025-03-01T12:00:00.000Z",
		"document": doc,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))
}

func TestSnapshot_OfflineFetchesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	writeSnapshotFile(t, path, 4, map[string]any{
		models.KeyParts:  []models.Part{{ID: "p1", Name: "Filtro de Óleo"}},
		models.KeyOrders: []models.Order{{ID: "REQ-1"}},
	})

	doer := &downDoer{}
	tr := transport.New(doer, transport.WithRetries(3), transport.WithBackoff(time.Millisecond))
	store := cache.New("http://mec.invalid/exec", tr, cache.WithSnapshot(path))
	c := New(store, nil, nil)

	s, err := c.Snapshot(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, int32(3), doer.calls.Load(), "one fetch with its retries")
	assert.Equal(t, models.Revision(4), s.Revision)
	require.Len(t, s.Parts, 1)
	assert.Equal(t, "Filtro de Óleo", s.Parts[0].Name)
	assert.Len(t, s.Orders, 1)
	assert.NotNil(t, s.Vehicles)
	assert.Equal(t, "0.0.0", s.Settings.MinAppVersion)
}

func TestSnapshot_RevisionMatchesTables(t *testing.T) {
	c, store, _, _ := newTestClient()
	ctx := context.Background()
	_, err := c.Parts.Create(ctx, models.Part{InternalCode: "INT-001", Name: "Filtro"})
	require.NoError(t, err)

	s, err := c.Snapshot(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, store.Revision(), s.Revision)
	assert.Len(t, s.Parts, 1)
}
