package cache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/atinyakov/mecsync/internal/models"
)

// snapshotFile is the on-disk form of the last good document.
type snapshotFile struct {
	Revision models.Revision `json:"revision"`
	SavedAt  string          `json:"savedAt"`
	Document models.Document `json:"document"`
}

// loadSnapshot seeds the cache from the snapshot file. The loaded copy is
// never fresh: it only serves reads while the endpoint is unreachable.
func (c *Cache) loadSnapshot() error {
	f, err := os.Open(c.snapshot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var s snapshotFile
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return err
	}
	if s.Document == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc = s.Document
	c.revision = s.Revision
	c.fresh = false
	return nil
}

// saveSnapshotLocked writes the current document next to the snapshot path
// and renames it into place. Errors are logged only.
func (c *Cache) saveSnapshotLocked() {
	if c.snapshot == "" || c.doc == nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.snapshot), 0o700); err != nil {
		c.log.Warn("failed to create snapshot dir", zap.Error(err))
		return
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.snapshot), ".snapshot-*")
	if err != nil {
		c.log.Warn("failed to save snapshot", zap.Error(err))
		return
	}
	defer os.Remove(tmp.Name())

	s := snapshotFile{
		Revision: c.revision,
		SavedAt:  models.Timestamp(c.now()),
		Document: c.doc,
	}
	if err := json.NewEncoder(tmp).Encode(&s); err != nil {
		tmp.Close()
		c.log.Warn("failed to save snapshot", zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		c.log.Warn("failed to save snapshot", zap.Error(err))
		return
	}
	if err := os.Rename(tmp.Name(), c.snapshot); err != nil {
		c.log.Warn("failed to save snapshot", zap.Error(err))
	}
}
