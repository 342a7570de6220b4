package verification

import (
	"context"
	"errors"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/google/uuid"
)

// Common errors returned by the store
var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrVerificationNotFound = errors.New("verification not found")
	ErrVerificationExists   = errors.New("verification already open for order")
	ErrNotPending           = errors.New("verification is no longer pending")
)

// Store persists order verifications. Implementations must make Resolve a single
// atomic "transition if still DELIVERED" operation.
type Store interface {
	// GetOrder reads the order record written by order placement.
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)

	// RecordDelivery upserts the order as DELIVERED at order.DeliveredAt. An order
	// that already has a delivery time keeps it, so redelivered events are no-ops.
	RecordDelivery(ctx context.Context, order *domain.Order) error

	// CreateVerification inserts a new DELIVERED record.
	// Returns ErrVerificationExists if the order already has one.
	CreateVerification(ctx context.Context, v *domain.OrderVerification) error

	GetVerification(ctx context.Context, orderID uuid.UUID) (*domain.OrderVerification, error)

	// Resolve moves a DELIVERED record to the terminal state `to`.
	// If the record is already terminal it returns the current record and ErrNotPending.
	Resolve(ctx context.Context, orderID uuid.UUID, to domain.VerificationState, notes string, at time.Time) (*domain.OrderVerification, error)

	// ListDue returns DELIVERED records whose window has elapsed at now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.OrderVerification, error)
}
