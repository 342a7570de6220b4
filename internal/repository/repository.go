package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
)

var (
	ErrSlotNotFound  = errors.New("cart slot not found")
	ErrEventNotFound = errors.New("outbox event not found")
)

// EventVerificationResolved is written to the outbox when a verification reaches a terminal state.
const EventVerificationResolved = "OrderVerificationResolved"

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is a pending message for the publisher.
type OutboxEvent struct {
	ID          int
	AggregateId string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// OutboxRepository is what the publisher reads from.
type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
}

// SlotRepository stores one serialized cart per customer key.
// Consumers define this interface, not the MongoDB implementation
type SlotRepository interface {
	LoadSlot(ctx context.Context, key string) (*domain.CartSlot, error)
	SaveSlot(ctx context.Context, slot *domain.CartSlot) error
	DeleteSlot(ctx context.Context, key string) error
}

// resolvedPayload is the outbox body for EventVerificationResolved.
type resolvedPayload struct {
	OrderID     string                   `json:"order_id"`
	State       domain.VerificationState `json:"state"`
	Notes       string                   `json:"notes,omitempty"`
	DeliveredAt time.Time                `json:"delivered_at"`
	ResolvedAt  time.Time                `json:"resolved_at"`
}

func newResolvedPayload(v *domain.OrderVerification) resolvedPayload {
	p := resolvedPayload{
		OrderID:     v.OrderID.String(),
		State:       v.State,
		Notes:       v.Notes,
		DeliveredAt: v.DeliveredAt,
	}
	if v.ResolvedAt != nil {
		p.ResolvedAt = *v.ResolvedAt
	}
	return p
}
