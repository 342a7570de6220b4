package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/verification"
	"github.com/google/uuid"
)

const (
	// ProcessedEventRetention is how long a published outbox event is kept in memory
	ProcessedEventRetention = 10 * time.Minute

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = 30 * time.Second
)

// MemoryStore implements verification.Store and OutboxRepository with in-memory storage
type MemoryStore struct {
	mu            sync.RWMutex
	orders        map[uuid.UUID]*domain.Order
	verifications map[uuid.UUID]*domain.OrderVerification
	events        []*OutboxEvent
	nextEventID   int

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

// NewMemoryStore creates a new in-memory verification store
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		orders:        make(map[uuid.UUID]*domain.Order),
		verifications: make(map[uuid.UUID]*domain.OrderVerification),
		stopCleanup:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.pruneEvents(time.Now())
		case <-s.stopCleanup:
			return
		}
	}
}

// pruneEvents drops published events older than the retention
func (s *MemoryStore) pruneEvents(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	for _, e := range s.events {
		if e.ProcessedAt != nil && now.Sub(*e.ProcessedAt) > ProcessedEventRetention {
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
}

// PutOrder writes an order record as-is, in any status. Deliveries arrive
// through RecordDelivery; this seeds orders that are not delivered yet.
func (s *MemoryStore) PutOrder(order *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *order
	s.orders[order.ID] = &cp
}

// MarkDelivered sets the order to DELIVERED at the given time.
func (s *MemoryStore) MarkDelivered(orderID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return verification.ErrOrderNotFound
	}
	at = at.UTC()
	order.Status = domain.OrderStatusDelivered
	order.DeliveredAt = &at
	order.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) RecordDelivery(_ context.Context, order *domain.Order) error {
	if order.DeliveredAt == nil {
		return fmt.Errorf("record delivery for %s: missing delivered_at", order.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at := order.DeliveredAt.UTC()
	now := time.Now()
	existing, ok := s.orders[order.ID]
	if !ok {
		cp := *order
		cp.Status = domain.OrderStatusDelivered
		cp.DeliveredAt = &at
		cp.CreatedAt = now
		cp.UpdatedAt = now
		s.orders[order.ID] = &cp
		return nil
	}
	if existing.DeliveredAt != nil {
		return nil
	}
	existing.Status = domain.OrderStatusDelivered
	existing.DeliveredAt = &at
	existing.UpdatedAt = now
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, orderID uuid.UUID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, verification.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (s *MemoryStore) CreateVerification(_ context.Context, v *domain.OrderVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.verifications[v.OrderID]; exists {
		return verification.ErrVerificationExists
	}
	cp := *v
	s.verifications[v.OrderID] = &cp
	return nil
}

func (s *MemoryStore) GetVerification(_ context.Context, orderID uuid.UUID) (*domain.OrderVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.verifications[orderID]
	if !ok {
		return nil, verification.ErrVerificationNotFound
	}
	cp := *v
	return &cp, nil
}

// Resolve is the compare-and-set: the first terminal write wins, later ones get
// the winner back with ErrNotPending.
func (s *MemoryStore) Resolve(_ context.Context, orderID uuid.UUID, to domain.VerificationState, notes string, at time.Time) (*domain.OrderVerification, error) {
	if !to.IsTerminal() {
		return nil, verification.ErrInvalidTransition
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.verifications[orderID]
	if !ok {
		return nil, verification.ErrVerificationNotFound
	}
	if !domain.CanTransitionTo(v.State, to) {
		cp := *v
		return &cp, verification.ErrNotPending
	}

	at = at.UTC()
	v.State = to
	v.Notes = notes
	v.ResolvedAt = &at

	if order, ok := s.orders[orderID]; ok {
		order.Status = to.OrderStatus()
		order.VerificationNotes = notes
		order.ResolvedAt = &at
		order.UpdatedAt = at
	}

	payload, err := json.Marshal(newResolvedPayload(v))
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	s.nextEventID++
	s.events = append(s.events, &OutboxEvent{
		ID:          s.nextEventID,
		AggregateId: orderID.String(),
		EventType:   EventVerificationResolved,
		Payload:     payload,
		CreatedAt:   at,
	})

	cp := *v
	return &cp, nil
}

func (s *MemoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]*domain.OrderVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*domain.OrderVerification
	for _, v := range s.verifications {
		if v.IsDue(now) {
			cp := *v
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Deadline().Before(due[j].Deadline()) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*OutboxEvent
	for _, e := range s.events {
		if e.ProcessedAt != nil {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkEventAsProcessed(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			return nil
		}
	}
	return ErrEventNotFound
}

// Close stops the background cleanup and waits for it to finish
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}
