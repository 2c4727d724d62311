// Package service provides the business logic of the reference document
// server, delegating persistence to a repository interface.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atinyakov/mecsync/internal/models"
	"github.com/atinyakov/mecsync/internal/repository"
)

var (
	// ErrInvalidDocument is returned for a body that is not a JSON object.
	ErrInvalidDocument = errors.New("document must be a JSON object")

	// ErrRevisionMismatch is returned when the caller's revision is stale.
	ErrRevisionMismatch = repository.ErrRevisionMismatch
)

// DocumentRepository defines the persistence operations needed by the
// DocumentService.
type DocumentRepository interface {
	// Load returns the stored document, or an empty object at revision zero.
	Load(ctx context.Context) (models.StoredDocument, error)
	// Replace stores body, failing with ErrRevisionMismatch when expected is
	// positive and not the stored revision.
	Replace(ctx context.Context, body []byte, expected models.Revision) (models.Revision, error)
}

// DocumentService validates and stores the shared document.
type DocumentService struct {
	// repo is the underlying persistence repository.
	repo DocumentRepository
}

// NewDocumentService constructs a DocumentService with the provided
// repository.
func NewDocumentService(repo DocumentRepository) *DocumentService {
	return &DocumentService{repo: repo}
}

// Get returns the current document.
func (s *DocumentService) Get(ctx context.Context) (models.StoredDocument, error) {
	return s.repo.Load(ctx)
}

// Replace stores body as the whole document. The body must be a JSON object;
// its tables are not inspected.
func (s *DocumentService) Replace(ctx context.Context, body []byte, expected models.Revision) (models.Revision, error) {
	var doc models.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if doc == nil {
		return 0, ErrInvalidDocument
	}
	return s.repo.Replace(ctx, body, expected)
}
