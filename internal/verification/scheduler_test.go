package verification_test

import (
	"context"
	"testing"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/repository"
	"github.com/Ugender2729/F1-Mart-sub001/internal/verification"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_FiresAtDeadline(t *testing.T) {
	store := repository.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	wf := verification.NewWorkflow(store, verification.WithWindow(1))
	sched := verification.NewScheduler(wf, time.Hour)
	t.Cleanup(sched.Close)

	ctx := context.Background()
	id := uuid.New()
	store.PutOrder(&domain.Order{ID: id, Status: domain.OrderStatusShipped, Total: decimal.NewFromInt(100)})
	require.NoError(t, store.MarkDelivered(id, time.Now()))

	_, err := wf.Open(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, sched.Pending())

	require.Eventually(t, func() bool {
		v, err := store.GetVerification(ctx, id)
		return err == nil && v.State == domain.VerificationAutoVerified
	}, 3*time.Second, 20*time.Millisecond)
	assert.Zero(t, sched.Pending())
}

func TestScheduler_IndependentDeadlines(t *testing.T) {
	store := repository.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	wf := verification.NewWorkflow(store, verification.WithWindow(1))
	sched := verification.NewScheduler(wf, time.Hour)
	t.Cleanup(sched.Close)

	ctx := context.Background()
	early, late := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{early, late} {
		store.PutOrder(&domain.Order{ID: id, Status: domain.OrderStatusShipped})
	}
	require.NoError(t, store.MarkDelivered(early, time.Now()))
	require.NoError(t, store.MarkDelivered(late, time.Now().Add(time.Hour)))

	_, err := wf.Open(ctx, early)
	require.NoError(t, err)
	_, err = wf.Open(ctx, late)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, _ := store.GetVerification(ctx, early)
		return v.State == domain.VerificationAutoVerified
	}, 3*time.Second, 20*time.Millisecond)

	v, err := store.GetVerification(ctx, late)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationDelivered, v.State)
	assert.Equal(t, 1, sched.Pending())
}

func TestScheduler_RecoverySweep(t *testing.T) {
	store := repository.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	wf := verification.NewWorkflow(store)

	ctx := context.Background()
	id := uuid.New()
	store.PutOrder(&domain.Order{ID: id, Status: domain.OrderStatusShipped})
	delivered := time.Now().Add(-5 * time.Minute)
	require.NoError(t, store.MarkDelivered(id, delivered))
	// a window left open by a previous process, no timer armed
	require.NoError(t, store.CreateVerification(ctx, &domain.OrderVerification{
		OrderID: id, DeliveredAt: delivered, WindowSeconds: 60, State: domain.VerificationDelivered,
	}))

	sched := verification.NewScheduler(wf, 50*time.Millisecond)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		sched.Run(runCtx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		v, _ := store.GetVerification(ctx, id)
		return v.State == domain.VerificationAutoVerified
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_CloseStopsTimers(t *testing.T) {
	store := repository.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	wf := verification.NewWorkflow(store)
	sched := verification.NewScheduler(wf, time.Hour)

	sched.Schedule(uuid.New(), time.Now().Add(time.Hour))
	sched.Schedule(uuid.New(), time.Now().Add(time.Hour))
	assert.Equal(t, 2, sched.Pending())

	sched.Close()
	assert.Zero(t, sched.Pending())

	sched.Schedule(uuid.New(), time.Now())
	assert.Zero(t, sched.Pending(), "closed scheduler ignores new deadlines")
}
