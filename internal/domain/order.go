package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusConfirmed    OrderStatus = "CONFIRMED"
	OrderStatusProcessing   OrderStatus = "PROCESSING"
	OrderStatusShipped      OrderStatus = "SHIPPED"
	OrderStatusDelivered    OrderStatus = "DELIVERED"
	OrderStatusVerified     OrderStatus = "VERIFIED"
	OrderStatusDisputed     OrderStatus = "DISPUTED"
	OrderStatusAutoVerified OrderStatus = "AUTO_VERIFIED"
)

type OrderItem struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order is the record written by order placement. Verification reads
// DeliveredAt and Status and writes Status, VerificationNotes and ResolvedAt.
type Order struct {
	ID                uuid.UUID
	UserID            string
	Status            OrderStatus
	Total             decimal.Decimal
	Items             []OrderItem
	DeliveredAt       *time.Time
	VerificationNotes string
	ResolvedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
