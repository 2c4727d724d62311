// Package models defines the entity tables stored in the shared MEC document
// and the document envelope itself.
package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Document is the single JSON object holding every entity table. Each
// top-level key is an independent table kept as raw JSON until an accessor
// decodes it.
type Document map[string]json.RawMessage

// Keys of the tables inside the document.
const (
	KeyParts         = "data"
	KeyOrders        = "orders"
	KeyUsers         = "users"
	KeyVehicles      = "vehicles"
	KeyRecords       = "records"
	KeySales         = "sales"
	KeyDiagrams      = "diagrams"
	KeyCatalogConfig = "catalog_config"
	KeySettings      = "settings"
	KeyLogs          = "logs"
)

// Clone returns a shallow copy of the document. Raw values are shared, which
// is safe because they are never mutated in place.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Timestamp formats t the way the document stores dates (RFC 3339, UTC,
// millisecond precision).
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Revision is the monotonic counter a revision-aware endpoint assigns to each
// stored document. Zero means unknown.
type Revision int64

// ETag renders the revision as a quoted entity tag.
func (r Revision) ETag() string {
	return strconv.Quote(strconv.FormatInt(int64(r), 10))
}

// ParseETag parses an entity tag produced by ETag. Weak tags are accepted.
// Anything unparsable yields zero.
func ParseETag(tag string) Revision {
	if len(tag) > 2 && tag[:2] == "W/" {
		tag = tag[2:]
	}
	if s, err := strconv.Unquote(tag); err == nil {
		tag = s
	}
	n, err := strconv.ParseInt(tag, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return Revision(n)
}

// StoredDocument is the document as persisted by the reference server.
type StoredDocument struct {
	Body      json.RawMessage
	Revision  Revision
	UpdatedAt time.Time
}
