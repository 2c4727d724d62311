package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/mecsync/internal/models"
	"github.com/atinyakov/mecsync/internal/service"
)

// DefaultMaxBodyBytes bounds an uploaded document.
const DefaultMaxBodyBytes = 32 << 20

// DocumentService defines the document operations required by the
// DocumentHandler.
type DocumentService interface {
	// Get returns the stored document.
	Get(ctx context.Context) (models.StoredDocument, error)
	// Replace stores body as the whole document. expected is the revision
	// from If-Match, zero when absent.
	Replace(ctx context.Context, body []byte, expected models.Revision) (models.Revision, error)
}

// DocumentHandler serves the shared document.
type DocumentHandler struct {
	DocumentService DocumentService
	Log             *zap.Logger
	// MaxBodyBytes overrides DefaultMaxBodyBytes when positive.
	MaxBodyBytes int64
}

// Get handles GET / requests. The query string (the client's cache-busting
// timestamp) is ignored. The revision is sent as ETag.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.DocumentService.Get(r.Context())
	if err != nil {
		h.logger().Error("load document", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("ETag", doc.Revision.ETag())
	_, _ = w.Write(doc.Body)
}

// Post handles POST / requests carrying the whole document as text/plain or
// application/json. An If-Match header makes the write conditional.
func (h *DocumentHandler) Post(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "document too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	expected := models.ParseETag(r.Header.Get("If-Match"))
	rev, err := h.DocumentService.Replace(r.Context(), body, expected)
	switch {
	case errors.Is(err, service.ErrInvalidDocument):
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	case errors.Is(err, service.ErrRevisionMismatch):
		http.Error(w, "revision mismatch", http.StatusPreconditionFailed)
		return
	case err != nil:
		h.logger().Error("replace document", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.logger().Debug("document replaced", zap.Int64("revision", int64(rev)), zap.Int("bytes", len(body)))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", rev.ETag())
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "revision": rev})
}

// Health handles GET /healthz.
func (h *DocumentHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "ok")
}

func (h *DocumentHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
