package models

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending             OrderStatus = "Pendente"
	OrderQuoting             OrderStatus = "Em Cotação"
	OrderPurchased           OrderStatus = "Comprado"
	OrderInTransit           OrderStatus = "Em Trânsito"
	OrderDelivered           OrderStatus = "Entregue / Em Estoque"
	OrderCanceled            OrderStatus = "Cancelado"
	OrderInstalled           OrderStatus = "Instalado / Finalizado"
	OrderRegistrationRequest OrderStatus = "Solicitação de Cadastro"
	OrderDataCorrection      OrderStatus = "Correção de Dados"
)

// orderEdges lists the transitions the workflow screens offer. Accessors do
// not enforce them.
var orderEdges = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderQuoting, OrderCanceled, OrderDelivered},
	OrderQuoting:   {OrderPurchased, OrderCanceled},
	OrderPurchased: {OrderInTransit},
	OrderInTransit: {OrderDelivered},
	OrderDelivered: {OrderInstalled},
}

// CanTransitionTo reports whether the workflow offers a move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, st := range orderEdges[s] {
		if st == next {
			return true
		}
	}
	return false
}

// Priority of an order.
type Priority string

const (
	PriorityNormal Priority = "NORMAL"
	PriorityUrgent Priority = "URGENTE"
)

// OrderItem is one line of an order, sale or maintenance record.
type OrderItem struct {
	PartID       string `json:"partId"`
	PartName     string `json:"partName"`
	InternalCode string `json:"internalCode"`
	Quantity     int    `json:"quantity"`
}

// Vehicle describes a fleet vehicle. Prefix is its logical key.
type Vehicle struct {
	Prefix   string `json:"prefix"`
	Plate    string `json:"plate"`
	VIN      string `json:"vin"`
	Model    string `json:"model"`
	Year     string `json:"year"`
	BodyType string `json:"bodyType"`
}

// Order is a requisition, purchase, registration request or data correction.
type Order struct {
	ID                    string            `json:"id"`
	RequesterName         string            `json:"requesterName"`
	RequesterID           string            `json:"requesterId"`
	Role                  UserRole          `json:"role"`
	CreatedAt             string            `json:"createdAt"`
	Items                 []OrderItem       `json:"items"`
	Status                OrderStatus       `json:"status"`
	Priority              Priority          `json:"priority"`
	Notes                 string            `json:"notes,omitempty"`
	TotalEstimatedValue   *float64          `json:"totalEstimatedValue,omitempty"`
	VehicleInfo           *Vehicle          `json:"vehicleInfo,omitempty"`
	MaintenanceSystem     MaintenanceSystem `json:"maintenanceSystem,omitempty"`
	MaintenanceType       string            `json:"maintenanceType,omitempty"`
	IsRegistrationRequest bool              `json:"isRegistrationRequest,omitempty"`
}

// MaintenanceRecord is a completed job in the work history.
type MaintenanceRecord struct {
	ID                string            `json:"id"`
	OrderID           string            `json:"orderId"`
	VehicleInfo       Vehicle           `json:"vehicleInfo"`
	MaintenanceSystem MaintenanceSystem `json:"maintenanceSystem"`
	Date              string            `json:"date"`
	MechanicName      string            `json:"mechanicName"`
	Description       string            `json:"description"`
	Items             []OrderItem       `json:"items"`
}

// SaleRecord is a point-of-sale transaction.
type SaleRecord struct {
	ID           string      `json:"id"`
	Date         string      `json:"date"`
	CustomerName string      `json:"customerName"`
	CustomerDoc  string      `json:"customerDoc"`
	Items        []OrderItem `json:"items"`
	TotalValue   float64     `json:"totalValue"`
	SellerName   string      `json:"sellerName"`
}

// newOrderID builds the short human readable order ids used on the shop
// floor, e.g. REQ-4821.
func newOrderID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, rand.IntN(10000))
}

func newOrder(prefix string, requester *User, status OrderStatus, now time.Time) Order {
	o := Order{
		ID:        newOrderID(prefix),
		CreatedAt: Timestamp(now),
		Items:     []OrderItem{},
		Status:    status,
		Priority:  PriorityNormal,
	}
	if requester != nil {
		o.RequesterName = requester.Name
		o.RequesterID = requester.ID
		o.Role = requester.Role
	} else {
		o.RequesterName = "Sistema"
		o.RequesterID = "unknown"
	}
	return o
}

// NewRequisition builds a pending parts requisition, optionally tied to a
// vehicle job.
func NewRequisition(requester *User, items []OrderItem, priority Priority, vehicle *Vehicle, system MaintenanceSystem, notes string, now time.Time) Order {
	o := newOrder("REQ", requester, OrderPending, now)
	o.Items = items
	o.Priority = priority
	o.VehicleInfo = vehicle
	o.MaintenanceSystem = system
	o.MaintenanceType = notes
	return o
}

// NewRegistrationRequest asks the stock team to register a part the
// mechanic could not find.
func NewRegistrationRequest(requester *User, description string, now time.Time) Order {
	o := newOrder("CAD", requester, OrderRegistrationRequest, now)
	o.Notes = description
	o.IsRegistrationRequest = true
	return o
}

// NewDataCorrection reports a wrong catalog entry for a part.
func NewDataCorrection(requester *User, partID, partName, notes string, now time.Time) Order {
	o := newOrder("ERR", requester, OrderDataCorrection, now)
	o.Items = []OrderItem{{PartID: partID, PartName: partName, InternalCode: "ERR", Quantity: 1}}
	o.Notes = notes
	return o
}
