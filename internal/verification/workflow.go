package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrWindowClosed      = errors.New("verification window has closed")
	ErrAlreadyResolved   = errors.New("order verification already resolved")
	ErrOrderNotDelivered = errors.New("order has not been delivered")
	ErrInvalidTransition = errors.New("illegal transition of verification state")
	ErrInvalidDelivery   = errors.New("invalid delivery notice")
)

const defaultDueBatchLimit = 100

// DeadlineNotifier is told about every newly opened window.
type DeadlineNotifier interface {
	Schedule(orderID uuid.UUID, deadline time.Time)
}

// Status is a point-in-time view of an order's verification.
type Status struct {
	Verification     *domain.OrderVerification `json:"verification"`
	RemainingSeconds int                       `json:"remaining_seconds"`
	WindowOpen       bool                      `json:"window_open"`
	RefundEligible   bool                      `json:"refund_eligible"`
}

type Workflow struct {
	store     Store
	window    int
	policy    RefundPolicy
	now       func() time.Time
	logger    *slog.Logger
	deadlines DeadlineNotifier
}

type Option func(*Workflow)

func WithWindow(seconds int) Option {
	return func(w *Workflow) {
		if seconds > 0 {
			w.window = seconds
		}
	}
}

func WithRefundPolicy(p RefundPolicy) Option {
	return func(w *Workflow) { w.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

func NewWorkflow(store Store, opts ...Option) *Workflow {
	w := &Workflow{
		store:  store,
		window: domain.DefaultWindowSeconds,
		policy: DefaultRefundPolicy,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// NotifyDeadlines registers the scheduler that fires per-order deadlines.
func (w *Workflow) NotifyDeadlines(n DeadlineNotifier) {
	w.deadlines = n
}

// Open starts the verification window for a delivered order. Opening an order that
// already has a record returns that record unchanged.
func (w *Workflow) Open(ctx context.Context, orderID uuid.UUID) (*domain.OrderVerification, error) {
	existing, err := w.store.GetVerification(ctx, orderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrVerificationNotFound) {
		return nil, fmt.Errorf("failed to check verification: %w", err)
	}

	order, err := w.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusDelivered || order.DeliveredAt == nil {
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderNotDelivered, orderID, order.Status)
	}

	v := &domain.OrderVerification{
		OrderID:       orderID,
		DeliveredAt:   order.DeliveredAt.UTC(),
		WindowSeconds: w.window,
		State:         domain.VerificationDelivered,
	}
	if err := w.store.CreateVerification(ctx, v); err != nil {
		if errors.Is(err, ErrVerificationExists) {
			return w.store.GetVerification(ctx, orderID)
		}
		return nil, fmt.Errorf("failed to create verification: %w", err)
	}

	w.logger.InfoContext(ctx, "verification window opened",
		"order_id", orderID, "delivered_at", v.DeliveredAt, "deadline", v.Deadline())
	if w.deadlines != nil {
		w.deadlines.Schedule(orderID, v.Deadline())
	}
	return v, nil
}

// Delivery is the courier's hand-over notice for one order.
type Delivery struct {
	OrderID     uuid.UUID
	UserID      string
	Total       decimal.Decimal
	DeliveredAt time.Time
}

// Deliver records the delivery on the order and opens its window. A zero
// DeliveredAt means now. Notices more than a minute in the future are rejected.
func (w *Workflow) Deliver(ctx context.Context, d Delivery) (*domain.OrderVerification, error) {
	if d.OrderID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing order id", ErrInvalidDelivery)
	}
	if d.Total.IsNegative() {
		return nil, fmt.Errorf("%w: negative total for %s", ErrInvalidDelivery, d.OrderID)
	}
	now := w.now()
	at := d.DeliveredAt
	if at.IsZero() {
		at = now
	}
	if at.After(now.Add(time.Minute)) {
		return nil, fmt.Errorf("%w: delivered_at %s is in the future", ErrInvalidDelivery, at.Format(time.RFC3339))
	}

	at = at.UTC()
	err := w.store.RecordDelivery(ctx, &domain.Order{
		ID:          d.OrderID,
		UserID:      d.UserID,
		Total:       d.Total,
		DeliveredAt: &at,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record delivery: %w", err)
	}
	return w.Open(ctx, d.OrderID)
}

// Verify records the customer's acceptance of the delivery.
func (w *Workflow) Verify(ctx context.Context, orderID uuid.UUID, notes string) (*Status, error) {
	return w.customerAction(ctx, orderID, domain.VerificationVerified, notes)
}

// Dispute records the customer's objection to the delivery.
func (w *Workflow) Dispute(ctx context.Context, orderID uuid.UUID, notes string) (*Status, error) {
	return w.customerAction(ctx, orderID, domain.VerificationDisputed, notes)
}

func (w *Workflow) customerAction(ctx context.Context, orderID uuid.UUID, to domain.VerificationState, notes string) (*Status, error) {
	v, err := w.store.GetVerification(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := w.now()

	if v.State == domain.VerificationDelivered {
		if v.IsDue(now) {
			// the deadline passed before the tick caught it: commit the timeout first
			v, err = w.autoVerify(ctx, orderID)
			if err != nil {
				return nil, err
			}
		} else {
			resolved, err := w.store.Resolve(ctx, orderID, to, notes, now)
			switch {
			case err == nil:
				w.logger.InfoContext(ctx, "verification resolved by customer",
					"order_id", orderID, "state", to, "refund_eligible", w.policy.RefundEligible(to))
				return w.status(resolved, now), nil
			case errors.Is(err, ErrNotPending):
				v = resolved
			default:
				return nil, fmt.Errorf("failed to resolve verification: %w", err)
			}
		}
	}

	return w.settle(v, to, now)
}

// settle answers a customer action that found the record already terminal.
// Repeating the same action is a no-op, not an error.
func (w *Workflow) settle(v *domain.OrderVerification, requested domain.VerificationState, now time.Time) (*Status, error) {
	switch v.State {
	case requested:
		return w.status(v, now), nil
	case domain.VerificationAutoVerified:
		return w.status(v, now), ErrWindowClosed
	default:
		return w.status(v, now), ErrAlreadyResolved
	}
}

// Status returns the current view. A record whose window has elapsed is
// auto-verified before it is reported.
func (w *Workflow) Status(ctx context.Context, orderID uuid.UUID) (*Status, error) {
	v, err := w.store.GetVerification(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := w.now()
	if v.IsDue(now) {
		if v, err = w.autoVerify(ctx, orderID); err != nil {
			return nil, err
		}
	}
	return w.status(v, now), nil
}

// AutoVerify resolves a single order if its window has elapsed.
func (w *Workflow) AutoVerify(ctx context.Context, orderID uuid.UUID) (*domain.OrderVerification, error) {
	v, err := w.store.GetVerification(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !v.IsDue(w.now()) {
		return v, nil
	}
	return w.autoVerify(ctx, orderID)
}

// AutoVerifyDue resolves every record whose window elapsed and returns how many it committed.
func (w *Workflow) AutoVerifyDue(ctx context.Context) (int, error) {
	due, err := w.store.ListDue(ctx, w.now(), defaultDueBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to list due verifications: %w", err)
	}

	resolved := 0
	for _, v := range due {
		after, err := w.autoVerify(ctx, v.OrderID)
		if err != nil {
			w.logger.ErrorContext(ctx, "auto-verify failed", "order_id", v.OrderID, "error", err)
			continue
		}
		if after.State == domain.VerificationAutoVerified {
			resolved++
		}
	}
	return resolved, nil
}

// RefundEligible applies the refund policy to a state.
func (w *Workflow) RefundEligible(s domain.VerificationState) bool {
	return w.policy.RefundEligible(s)
}

// autoVerify commits AUTO_VERIFIED if the record is still DELIVERED and returns the
// record as it stands afterwards, whoever won.
func (w *Workflow) autoVerify(ctx context.Context, orderID uuid.UUID) (*domain.OrderVerification, error) {
	now := w.now()
	v, err := w.store.Resolve(ctx, orderID, domain.VerificationAutoVerified, w.autoNote(), now)
	if errors.Is(err, ErrNotPending) {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to auto-verify: %w", err)
	}
	w.logger.InfoContext(ctx, "verification auto-resolved", "order_id", orderID, "resolved_at", now)
	return v, nil
}

func (w *Workflow) autoNote() string {
	return fmt.Sprintf("Automatically verified: no response within %d seconds of delivery", w.window)
}

func (w *Workflow) status(v *domain.OrderVerification, now time.Time) *Status {
	open := v.State == domain.VerificationDelivered && now.Before(v.Deadline())
	remaining := 0
	if open {
		remaining = int(v.Remaining(now).Round(time.Second) / time.Second)
	}
	return &Status{
		Verification:     v,
		RemainingSeconds: remaining,
		WindowOpen:       open,
		RefundEligible:   w.policy.RefundEligible(v.State),
	}
}
