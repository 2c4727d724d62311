package api

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/atinyakov/mecsync/internal/client/notify"
	"github.com/atinyakov/mecsync/internal/models"
)

// Fleet accesses the vehicle table. Vehicles are keyed by prefix.
type Fleet struct{ c *Client }

// List returns every vehicle.
func (a *Fleet) List(ctx context.Context) ([]models.Vehicle, error) {
	return list(ctx, a.c.store, models.KeyVehicles, []models.Vehicle{})
}

// Create appends v. The prefix must be set and unused.
func (a *Fleet) Create(ctx context.Context, v models.Vehicle) (models.Vehicle, error) {
	if v.Prefix == "" {
		return models.Vehicle{}, errors.New("vehicle prefix is required")
	}
	err := mutate(ctx, a.c.store, models.KeyVehicles, nil, func(fleet []models.Vehicle) ([]models.Vehicle, error) {
		if slices.ContainsFunc(fleet, func(x models.Vehicle) bool { return x.Prefix == v.Prefix }) {
			return nil, fmt.Errorf("vehicle %s: %w", v.Prefix, ErrDuplicate)
		}
		return append(fleet, v), nil
	})
	if err != nil {
		return models.Vehicle{}, err
	}
	a.c.changed(notify.FleetUpdate, models.KeyVehicles, models.ActionCreate, models.ModuleFleet,
		fmt.Sprintf("Veículo adicionado: %s", v.Prefix), fmt.Sprintf("Placa: %s", v.Plate))
	return v, nil
}

// Delete removes every vehicle with the given prefix.
func (a *Fleet) Delete(ctx context.Context, prefix string) error {
	err := mutate(ctx, a.c.store, models.KeyVehicles, nil, func(fleet []models.Vehicle) ([]models.Vehicle, error) {
		return slices.DeleteFunc(fleet, func(x models.Vehicle) bool { return x.Prefix == prefix }), nil
	})
	if err != nil {
		return err
	}
	a.c.changed(notify.FleetUpdate, models.KeyVehicles, models.ActionDelete, models.ModuleFleet,
		fmt.Sprintf("Veículo removido: %s", prefix), "")
	return nil
}

// History accesses the maintenance record table.
type History struct{ c *Client }

// List returns every maintenance record, newest first.
func (a *History) List(ctx context.Context) ([]models.MaintenanceRecord, error) {
	return list(ctx, a.c.store, models.KeyRecords, []models.MaintenanceRecord{})
}

// Create adds r in front of the history.
func (a *History) Create(ctx context.Context, r models.MaintenanceRecord) (models.MaintenanceRecord, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Date == "" {
		r.Date = a.c.timestamp()
	}
	if r.Items == nil {
		r.Items = []models.OrderItem{}
	}
	err := mutate(ctx, a.c.store, models.KeyRecords, nil, func(records []models.MaintenanceRecord) ([]models.MaintenanceRecord, error) {
		if slices.ContainsFunc(records, func(x models.MaintenanceRecord) bool { return x.ID == r.ID }) {
			return nil, fmt.Errorf("record %s: %w", r.ID, ErrDuplicate)
		}
		return append([]models.MaintenanceRecord{r}, records...), nil
	})
	if err != nil {
		return models.MaintenanceRecord{}, err
	}
	a.c.changed(notify.HistoryUpdate, models.KeyRecords, models.ActionCreate, models.ModuleMaintenance,
		fmt.Sprintf("Manutenção registrada - Carro %s", r.VehicleInfo.Prefix), "")
	return r, nil
}

// Sales accesses the point-of-sale table.
type Sales struct{ c *Client }

// List returns every sale, newest first.
func (a *Sales) List(ctx context.Context) ([]models.SaleRecord, error) {
	return list(ctx, a.c.store, models.KeySales, []models.SaleRecord{})
}

// Create adds s in front of the sales list.
func (a *Sales) Create(ctx context.Context, s models.SaleRecord) (models.SaleRecord, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Date == "" {
		s.Date = a.c.timestamp()
	}
	if s.Items == nil {
		s.Items = []models.OrderItem{}
	}
	err := mutate(ctx, a.c.store, models.KeySales, nil, func(sales []models.SaleRecord) ([]models.SaleRecord, error) {
		if slices.ContainsFunc(sales, func(x models.SaleRecord) bool { return x.ID == s.ID }) {
			return nil, fmt.Errorf("sale %s: %w", s.ID, ErrDuplicate)
		}
		return append([]models.SaleRecord{s}, sales...), nil
	})
	if err != nil {
		return models.SaleRecord{}, err
	}
	a.c.changed(notify.SalesUpdate, models.KeySales, models.ActionCreate, models.ModuleSales,
		fmt.Sprintf("Venda realizada #%s", s.ID), fmt.Sprintf("Valor: R$ %.2f", s.TotalValue))
	return s, nil
}
