package repository

import (
	"context"
	"sync"
	"time"

	"github.com/atinyakov/mecsync/internal/models"
)

type archived struct {
	revision   models.Revision
	body       []byte
	replacedAt time.Time
}

// MemoryDocumentRepository keeps the document in process memory. It is used
// when the server runs without a database and in tests.
type MemoryDocumentRepository struct {
	// Now is the clock used for UpdatedAt and history entries.
	Now func() time.Time

	mu      sync.Mutex
	doc     models.StoredDocument
	history []archived
}

// NewMemoryDocumentRepository creates an empty in-memory repository.
func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{Now: time.Now}
}

// Load returns the stored document, or an empty object at revision zero.
func (r *MemoryDocumentRepository) Load(ctx context.Context) (models.StoredDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc.Revision == 0 {
		return models.StoredDocument{Body: emptyDocument}, nil
	}
	doc := r.doc
	doc.Body = append([]byte(nil), r.doc.Body...)
	return doc, nil
}

// Replace stores a copy of body and archives the previous one.
func (r *MemoryDocumentRepository) Replace(ctx context.Context, body []byte, expected models.Revision) (models.Revision, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if expected > 0 && expected != r.doc.Revision {
		return 0, ErrRevisionMismatch
	}
	now := r.Now()
	if r.doc.Revision > 0 {
		r.history = append(r.history, archived{revision: r.doc.Revision, body: r.doc.Body, replacedAt: now})
	}
	r.doc = models.StoredDocument{
		Body:      append([]byte(nil), body...),
		Revision:  r.doc.Revision + 1,
		UpdatedAt: now.UTC(),
	}
	return r.doc.Revision, nil
}

// PruneHistory drops archived bodies replaced before the given time.
func (r *MemoryDocumentRepository) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.history[:0]
	for _, h := range r.history {
		if !h.replacedAt.Before(before) {
			kept = append(kept, h)
		}
	}
	removed := int64(len(r.history) - len(kept))
	r.history = kept
	return removed, nil
}
