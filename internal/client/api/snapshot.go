package api

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/mecsync/internal/client/cache"
	"github.com/atinyakov/mecsync/internal/models"
)

// Snapshot is every table decoded from one document.
type Snapshot struct {
	Revision models.Revision
	Parts    []models.Part
	Orders   []models.Order
	Users    []models.User
	Vehicles []models.Vehicle
	Records  []models.MaintenanceRecord
	Sales    []models.SaleRecord
	Diagrams []models.AssemblyDiagram
	Catalog  models.CatalogConfig
	Settings models.SystemSettings
	Logs     []models.SystemLog
}

// Snapshot fetches the document once (refetching when force is set) and
// decodes every table from it. An unreachable endpoint falls back to the
// cached copy; a table that does not decode fails the snapshot.
func (c *Client) Snapshot(ctx context.Context, force bool) (*Snapshot, error) {
	doc, rev, err := c.store.FetchRevision(ctx, force, false)
	if err != nil {
		return nil, err
	}

	s := &Snapshot{Revision: rev}
	var g errgroup.Group
	g.Go(func() (err error) { s.Parts, err = decodeList(doc, models.KeyParts, []models.Part{}); return })
	g.Go(func() (err error) { s.Orders, err = decodeList(doc, models.KeyOrders, []models.Order{}); return })
	g.Go(func() (err error) { s.Users, err = decodeList(doc, models.KeyUsers, c.seedFallback()); return })
	g.Go(func() (err error) { s.Vehicles, err = decodeList(doc, models.KeyVehicles, []models.Vehicle{}); return })
	g.Go(func() (err error) {
		s.Records, err = decodeList(doc, models.KeyRecords, []models.MaintenanceRecord{})
		return
	})
	g.Go(func() (err error) { s.Sales, err = decodeList(doc, models.KeySales, []models.SaleRecord{}); return })
	g.Go(func() (err error) {
		s.Diagrams, err = decodeList(doc, models.KeyDiagrams, []models.AssemblyDiagram{})
		return
	})
	g.Go(func() (err error) {
		s.Catalog, err = cache.Decode(doc, models.KeyCatalogConfig, emptyCatalog())
		s.Catalog = normalizeCatalog(s.Catalog)
		return
	})
	g.Go(func() (err error) {
		s.Settings, err = cache.Decode(doc, models.KeySettings, c.System.defaults())
		return
	})
	g.Go(func() (err error) { s.Logs, err = decodeList(doc, models.KeyLogs, []models.SystemLog{}); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s, nil
}
