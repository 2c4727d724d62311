package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/mecsync/internal/db"
)

func TestSQLite_RoundTrip(t *testing.T) {
	conn, err := db.InitSQLite(filepath.Join(t.TempDir(), "mec.db"))
	require.NoError(t, err)
	defer conn.Close()

	now := fixedNow
	repo := NewSQLiteDocumentRepository(conn)
	repo.Now = func() time.Time { return now }
	ctx := context.Background()

	doc, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(doc.Body))
	assert.Zero(t, doc.Revision)

	rev, err := repo.Replace(ctx, []byte(`{"data":[]}`), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rev)

	now = now.Add(time.Minute)
	rev, err = repo.Replace(ctx, []byte(`{"data":[{"id":"p1"}]}`), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rev)

	_, err = repo.Replace(ctx, []byte(`{}`), 1)
	assert.True(t, errors.Is(err, ErrRevisionMismatch))

	doc, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, doc.Revision)
	assert.JSONEq(t, `{"data":[{"id":"p1"}]}`, string(doc.Body))
	assert.True(t, doc.UpdatedAt.Equal(now))

	var archived string
	require.NoError(t, conn.QueryRow(`SELECT body FROM document_history WHERE revision = 1`).Scan(&archived))
	assert.Equal(t, `{"data":[]}`, archived)

	n, err := repo.PruneHistory(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
