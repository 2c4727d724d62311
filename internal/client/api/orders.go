package api

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/atinyakov/mecsync/internal/client/notify"
	"github.com/atinyakov/mecsync/internal/models"
)

// Orders accesses requisitions, purchases and catalog requests.
type Orders struct{ c *Client }

// List returns every order, newest first.
func (a *Orders) List(ctx context.Context) ([]models.Order, error) {
	return list(ctx, a.c.store, models.KeyOrders, []models.Order{})
}

// Create adds o in front of the order list. The models.New* helpers build
// orders with shop-floor ids; an empty id gets a generated one.
func (a *Orders) Create(ctx context.Context, o models.Order) (models.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt == "" {
		o.CreatedAt = a.c.timestamp()
	}
	if o.Items == nil {
		o.Items = []models.OrderItem{}
	}
	err := mutate(ctx, a.c.store, models.KeyOrders, nil, func(orders []models.Order) ([]models.Order, error) {
		if slices.ContainsFunc(orders, func(x models.Order) bool { return x.ID == o.ID }) {
			return nil, fmt.Errorf("order %s: %w", o.ID, ErrDuplicate)
		}
		return append([]models.Order{o}, orders...), nil
	})
	if err != nil {
		return models.Order{}, err
	}
	a.c.changed(notify.OrdersUpdate, models.KeyOrders, models.ActionCreate, models.ModuleOrders,
		fmt.Sprintf("Novo pedido criado #%s", o.ID), fmt.Sprintf("Solicitante: %s", o.RequesterName))
	return o, nil
}

// UpdateStatus moves an order to status. Transitions are not checked; see
// models.OrderStatus.CanTransitionTo.
func (a *Orders) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (models.Order, error) {
	var (
		updated models.Order
		old     models.OrderStatus
	)
	err := mutate(ctx, a.c.store, models.KeyOrders, nil, func(orders []models.Order) ([]models.Order, error) {
		i := slices.IndexFunc(orders, func(x models.Order) bool { return x.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		old = orders[i].Status
		orders[i].Status = status
		updated = orders[i]
		return orders, nil
	})
	if err != nil {
		return models.Order{}, err
	}
	a.c.changed(notify.OrdersUpdate, models.KeyOrders, models.ActionStatusChange, models.ModuleOrders,
		fmt.Sprintf("Status do pedido #%s alterado", id), fmt.Sprintf("%s -> %s", old, status))
	return updated, nil
}

// UpdateItems replaces the items of an order, as the purchasing team does
// while quoting.
func (a *Orders) UpdateItems(ctx context.Context, id string, items []models.OrderItem) (models.Order, error) {
	if items == nil {
		items = []models.OrderItem{}
	}
	var updated models.Order
	err := mutate(ctx, a.c.store, models.KeyOrders, nil, func(orders []models.Order) ([]models.Order, error) {
		i := slices.IndexFunc(orders, func(x models.Order) bool { return x.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		orders[i].Items = items
		updated = orders[i]
		return orders, nil
	})
	if err != nil {
		return models.Order{}, err
	}
	a.c.changed(notify.OrdersUpdate, models.KeyOrders, models.ActionUpdate, models.ModulePurchasing,
		fmt.Sprintf("Itens do pedido #%s modificados pelo comprador", id), "")
	return updated, nil
}
