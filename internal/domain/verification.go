package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultWindowSeconds is how long a customer has to verify or dispute a delivery.
const DefaultWindowSeconds = 60

type VerificationState string

const (
	VerificationDelivered    VerificationState = "DELIVERED"
	VerificationVerified     VerificationState = "VERIFIED"
	VerificationDisputed     VerificationState = "DISPUTED"
	VerificationAutoVerified VerificationState = "AUTO_VERIFIED"
)

func (s VerificationState) IsTerminal() bool {
	return s == VerificationVerified || s == VerificationDisputed || s == VerificationAutoVerified
}

func (s VerificationState) Valid() bool {
	return s == VerificationDelivered || s.IsTerminal()
}

// String representation (for logging)
func (s VerificationState) String() string {
	return string(s)
}

// OrderStatus maps the verification state onto the order record status.
func (s VerificationState) OrderStatus() OrderStatus {
	return OrderStatus(s)
}

// CanTransitionTo reports whether from -> to is a legal verification transition.
// Terminal states are write-once.
func CanTransitionTo(from, to VerificationState) bool {
	return from == VerificationDelivered && to.IsTerminal()
}

// OrderVerification is the audit record of an order's post-delivery window.
type OrderVerification struct {
	OrderID       uuid.UUID         `json:"order_id"`
	DeliveredAt   time.Time         `json:"delivered_at"`
	WindowSeconds int               `json:"window_seconds"`
	State         VerificationState `json:"state"`
	ResolvedAt    *time.Time        `json:"resolved_at,omitempty"`
	Notes         string            `json:"notes,omitempty"`
}

// Deadline is DeliveredAt plus the window. It depends only on stored data.
func (v *OrderVerification) Deadline() time.Time {
	return v.DeliveredAt.Add(time.Duration(v.WindowSeconds) * time.Second)
}

// Remaining returns the time left in the window at now, never negative.
func (v *OrderVerification) Remaining(now time.Time) time.Duration {
	left := v.Deadline().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// IsDue reports whether the window has elapsed while the record is still open.
func (v *OrderVerification) IsDue(now time.Time) bool {
	return v.State == VerificationDelivered && !now.Before(v.Deadline())
}
