package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/verification"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *MemoryStore {
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	return store
}

func seedDelivered(t *testing.T, store *MemoryStore, deliveredAt time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	store.PutOrder(&domain.Order{
		ID:     id,
		UserID: "user-123",
		Status: domain.OrderStatusShipped,
		Total:  decimal.NewFromInt(404),
	})
	require.NoError(t, store.MarkDelivered(id, deliveredAt))
	require.NoError(t, store.CreateVerification(context.Background(), &domain.OrderVerification{
		OrderID:       id,
		DeliveredAt:   deliveredAt,
		WindowSeconds: domain.DefaultWindowSeconds,
		State:         domain.VerificationDelivered,
	}))
	return id
}

func TestMemoryStore_GetOrder_NotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.GetOrder(context.Background(), uuid.New())
	assert.ErrorIs(t, err, verification.ErrOrderNotFound)
	assert.ErrorIs(t, store.MarkDelivered(uuid.New(), time.Now()), verification.ErrOrderNotFound)
}

func TestMemoryStore_RecordDelivery(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id := uuid.New()
	require.NoError(t, store.RecordDelivery(ctx, &domain.Order{ID: id, UserID: "user-7", Total: decimal.NewFromInt(250), DeliveredAt: &first}))
	order, err := store.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
	assert.Equal(t, first, *order.DeliveredAt)

	later := first.Add(time.Minute)
	require.NoError(t, store.RecordDelivery(ctx, &domain.Order{ID: id, DeliveredAt: &later}))
	order, err = store.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first, *order.DeliveredAt, "replayed delivery keeps the first time")
	assert.Equal(t, "user-7", order.UserID)

	shipped := uuid.New()
	store.PutOrder(&domain.Order{ID: shipped, UserID: "user-8", Status: domain.OrderStatusShipped})
	require.NoError(t, store.RecordDelivery(ctx, &domain.Order{ID: shipped, DeliveredAt: &later}))
	order, err = store.GetOrder(ctx, shipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
	assert.Equal(t, "user-8", order.UserID)

	assert.Error(t, store.RecordDelivery(ctx, &domain.Order{ID: uuid.New()}))
}

func TestMemoryStore_CreateVerification_Duplicate(t *testing.T) {
	store := setupStore(t)
	id := seedDelivered(t, store, time.Now())

	err := store.CreateVerification(context.Background(), &domain.OrderVerification{OrderID: id, State: domain.VerificationDelivered})
	assert.ErrorIs(t, err, verification.ErrVerificationExists)
}

func TestMemoryStore_Resolve_MirrorsOrderAndWritesOutbox(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	delivered := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id := seedDelivered(t, store, delivered)

	at := delivered.Add(20 * time.Second)
	v, err := store.Resolve(ctx, id, domain.VerificationDisputed, "two eggs broken", at)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationDisputed, v.State)
	assert.Equal(t, at, *v.ResolvedAt)

	order, err := store.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDisputed, order.Status)
	assert.Equal(t, "two eggs broken", order.VerificationNotes)

	events, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id.String(), events[0].AggregateId)
	assert.Equal(t, EventVerificationResolved, events[0].EventType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, "DISPUTED", payload["state"])

	require.NoError(t, store.MarkEventAsProcessed(ctx, events[0].ID))
	events, err = store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.ErrorIs(t, store.MarkEventAsProcessed(ctx, 999), ErrEventNotFound)
}

func TestMemoryStore_Resolve_WriteOnce(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	id := seedDelivered(t, store, time.Now())

	_, err := store.Resolve(ctx, id, domain.VerificationVerified, "", time.Now())
	require.NoError(t, err)

	current, err := store.Resolve(ctx, id, domain.VerificationDisputed, "late", time.Now())
	assert.ErrorIs(t, err, verification.ErrNotPending)
	require.NotNil(t, current)
	assert.Equal(t, domain.VerificationVerified, current.State)

	_, err = store.Resolve(ctx, id, domain.VerificationDelivered, "", time.Now())
	assert.ErrorIs(t, err, verification.ErrInvalidTransition)

	_, err = store.Resolve(ctx, uuid.New(), domain.VerificationVerified, "", time.Now())
	assert.ErrorIs(t, err, verification.ErrVerificationNotFound)
}

func TestMemoryStore_Resolve_ConcurrentSingleWinner(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	id := seedDelivered(t, store, time.Now())

	states := []domain.VerificationState{
		domain.VerificationVerified,
		domain.VerificationDisputed,
		domain.VerificationAutoVerified,
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(s domain.VerificationState) {
			defer wg.Done()
			if _, err := store.Resolve(ctx, id, s, "", time.Now()); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(states[i%len(states)])
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	events, err := store.GetUnprocessedEvents(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemoryStore_ListDue(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	overdue := seedDelivered(t, store, now.Add(-2*time.Minute))
	exact := seedDelivered(t, store, now.Add(-60*time.Second))
	_ = seedDelivered(t, store, now.Add(-59*time.Second))
	resolved := seedDelivered(t, store, now.Add(-5*time.Minute))
	_, err := store.Resolve(ctx, resolved, domain.VerificationVerified, "", now)
	require.NoError(t, err)

	due, err := store.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, overdue, due[0].OrderID)
	assert.Equal(t, exact, due[1].OrderID)

	due, err = store.ListDue(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestMemoryStore_PruneEvents(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	id := seedDelivered(t, store, time.Now())
	_, err := store.Resolve(ctx, id, domain.VerificationVerified, "", time.Now())
	require.NoError(t, err)

	events, _ := store.GetUnprocessedEvents(ctx, 1)
	require.NoError(t, store.MarkEventAsProcessed(ctx, events[0].ID))

	store.pruneEvents(time.Now())
	assert.Len(t, store.events, 1, "recently processed events are retained")

	store.pruneEvents(time.Now().Add(ProcessedEventRetention + time.Minute))
	assert.Empty(t, store.events)
}

func TestMemorySlots(t *testing.T) {
	slots := NewMemorySlots()
	ctx := context.Background()

	_, err := slots.LoadSlot(ctx, "user-1")
	assert.ErrorIs(t, err, ErrSlotNotFound)

	require.NoError(t, slots.SaveSlot(ctx, &domain.CartSlot{Key: "user-1", Snapshot: []byte(`{"version":1,"lines":[]}`)}))
	slot, err := slots.LoadSlot(ctx, "user-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"lines":[]}`, string(slot.Snapshot))
	assert.False(t, slot.UpdatedAt.IsZero())

	require.NoError(t, slots.DeleteSlot(ctx, "user-1"))
	assert.ErrorIs(t, slots.DeleteSlot(ctx, "user-1"), ErrSlotNotFound)
}
