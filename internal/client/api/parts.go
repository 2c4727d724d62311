package api

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/atinyakov/mecsync/internal/client/notify"
	"github.com/atinyakov/mecsync/internal/models"
)

// Parts accesses the inventory table.
type Parts struct{ c *Client }

// List returns every part.
func (a *Parts) List(ctx context.Context) ([]models.Part, error) {
	return list(ctx, a.c.store, models.KeyParts, []models.Part{})
}

// Create adds p in front of the inventory. An empty id or creation date is
// generated.
func (a *Parts) Create(ctx context.Context, p models.Part) (models.Part, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt == "" {
		p.CreatedAt = a.c.timestamp()
	}
	err := mutate(ctx, a.c.store, models.KeyParts, nil, func(parts []models.Part) ([]models.Part, error) {
		if slices.ContainsFunc(parts, func(x models.Part) bool { return x.ID == p.ID }) {
			return nil, fmt.Errorf("part %s: %w", p.ID, ErrDuplicate)
		}
		return append([]models.Part{p}, parts...), nil
	})
	if err != nil {
		return models.Part{}, err
	}
	a.c.changed(notify.PartsUpdate, models.KeyParts, models.ActionCreate, models.ModuleStock,
		fmt.Sprintf("Nova peça cadastrada: %s", p.Name), fmt.Sprintf("SKU: %s", p.InternalCode))
	return p, nil
}

// Update merges patch into the part with the given id.
func (a *Parts) Update(ctx context.Context, id string, patch PartPatch) (models.Part, error) {
	var updated models.Part
	err := mutate(ctx, a.c.store, models.KeyParts, nil, func(parts []models.Part) ([]models.Part, error) {
		i := slices.IndexFunc(parts, func(x models.Part) bool { return x.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("part %s: %w", id, ErrNotFound)
		}
		var err error
		if updated, err = apply(parts[i], patch); err != nil {
			return nil, err
		}
		parts[i] = updated
		return parts, nil
	})
	if err != nil {
		return models.Part{}, err
	}
	a.c.changed(notify.PartsUpdate, models.KeyParts, models.ActionUpdate, models.ModuleStock,
		fmt.Sprintf("Peça atualizada: %s", updated.Name), "")
	return updated, nil
}

// Delete removes the part with the given id. Deleting an unknown id still
// rewrites the table and is audited.
func (a *Parts) Delete(ctx context.Context, id string) error {
	name := "Desconhecida"
	err := mutate(ctx, a.c.store, models.KeyParts, nil, func(parts []models.Part) ([]models.Part, error) {
		if i := slices.IndexFunc(parts, func(x models.Part) bool { return x.ID == id }); i >= 0 {
			name = parts[i].Name
		}
		return slices.DeleteFunc(parts, func(x models.Part) bool { return x.ID == id }), nil
	})
	if err != nil {
		return err
	}
	a.c.changed(notify.PartsUpdate, models.KeyParts, models.ActionDelete, models.ModuleStock,
		fmt.Sprintf("Peça removida: %s", name), fmt.Sprintf("ID: %s", id))
	return nil
}
