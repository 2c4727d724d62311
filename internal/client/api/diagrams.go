package api

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/atinyakov/mecsync/internal/client/notify"
	"github.com/atinyakov/mecsync/internal/models"
)

// Diagrams accesses the assembly diagram table.
type Diagrams struct{ c *Client }

// List returns every diagram.
func (a *Diagrams) List(ctx context.Context) ([]models.AssemblyDiagram, error) {
	return list(ctx, a.c.store, models.KeyDiagrams, []models.AssemblyDiagram{})
}

// Create appends d.
func (a *Diagrams) Create(ctx context.Context, d models.AssemblyDiagram) (models.AssemblyDiagram, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt == "" {
		d.CreatedAt = a.c.timestamp()
	}
	if d.Hotspots == nil {
		d.Hotspots = []models.DiagramHotspot{}
	}
	err := mutate(ctx, a.c.store, models.KeyDiagrams, nil, func(diagrams []models.AssemblyDiagram) ([]models.AssemblyDiagram, error) {
		if slices.ContainsFunc(diagrams, func(x models.AssemblyDiagram) bool { return x.ID == d.ID }) {
			return nil, fmt.Errorf("diagram %s: %w", d.ID, ErrDuplicate)
		}
		return append(diagrams, d), nil
	})
	if err != nil {
		return models.AssemblyDiagram{}, err
	}
	a.c.changed(notify.DiagramsUpdate, models.KeyDiagrams, models.ActionCreate, models.ModuleStock,
		fmt.Sprintf("Novo diagrama cadastrado: %s", d.Name), "")
	return d, nil
}

// Update merges patch into the diagram with the given id.
func (a *Diagrams) Update(ctx context.Context, id string, patch DiagramPatch) (models.AssemblyDiagram, error) {
	var updated models.AssemblyDiagram
	err := mutate(ctx, a.c.store, models.KeyDiagrams, nil, func(diagrams []models.AssemblyDiagram) ([]models.AssemblyDiagram, error) {
		i := slices.IndexFunc(diagrams, func(x models.AssemblyDiagram) bool { return x.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("diagram %s: %w", id, ErrNotFound)
		}
		var err error
		if updated, err = apply(diagrams[i], patch); err != nil {
			return nil, err
		}
		diagrams[i] = updated
		return diagrams, nil
	})
	if err != nil {
		return models.AssemblyDiagram{}, err
	}
	a.c.changed(notify.DiagramsUpdate, models.KeyDiagrams, models.ActionUpdate, models.ModuleStock,
		fmt.Sprintf("Diagrama atualizado: %s", updated.Name), "")
	return updated, nil
}

// Delete removes the diagram with the given id.
func (a *Diagrams) Delete(ctx context.Context, id string) error {
	err := mutate(ctx, a.c.store, models.KeyDiagrams, nil, func(diagrams []models.AssemblyDiagram) ([]models.AssemblyDiagram, error) {
		return slices.DeleteFunc(diagrams, func(x models.AssemblyDiagram) bool { return x.ID == id }), nil
	})
	if err != nil {
		return err
	}
	a.c.changed(notify.DiagramsUpdate, models.KeyDiagrams, models.ActionDelete, models.ModuleStock,
		fmt.Sprintf("Diagrama removido ID %s", id), "")
	return nil
}
