package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/cart"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rice() cart.Item {
	return cart.Item{ID: "rice-5kg", Name: "Basmati Rice 5kg", UnitPrice: decimal.RequireFromString("450"), StockLimit: 3}
}

func milk() cart.Item {
	return cart.Item{ID: "milk-1l", Name: "Milk 1L", UnitPrice: decimal.RequireFromString("62.50")}
}

func newCartService(slots *mockSlots, c *mockCache) *CartService {
	return NewCartService(slots, c, nil)
}

func TestCartService_AddItemPersistsWholesale(t *testing.T) {
	slots, c := newMockSlots(), newMockCache()
	svc := newCartService(slots, c)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user-1", rice(), 1)
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, "user-1", milk(), 2)
	require.NoError(t, err)

	assert.Equal(t, 3, view.ItemCount)
	assert.True(t, decimal.RequireFromString("575").Equal(view.Subtotal))

	restored, err := cart.DecodeSnapshot(slots.stored("user-1"))
	require.NoError(t, err)
	assert.Len(t, restored.Lines(), 2)
	assert.Equal(t, 2, restored.QuantityOf("milk-1l"))

	cached, err := c.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, slots.stored("user-1"), cached)
}

func TestCartService_LoadsExistingSlot(t *testing.T) {
	slots, c := newMockSlots(), newMockCache()
	slots.slots["guest-9"] = []byte(`{"version":1,"lines":[{"item_id":"milk-1l","name":"Milk 1L","unit_price":"62.50","quantity":4,"stock_limit":0}]}`)
	svc := newCartService(slots, c)

	view, err := svc.GetCart(context.Background(), "guest-9")
	require.NoError(t, err)
	assert.Equal(t, 4, view.ItemCount)
	assert.True(t, decimal.RequireFromString("250").Equal(view.Subtotal))
}

func TestCartService_PrefersCache(t *testing.T) {
	slots, c := newMockSlots(), newMockCache()
	c.data["user-1"] = []byte(`{"version":1,"lines":[{"item_id":"a","unit_price":"10","quantity":1}]}`)
	svc := newCartService(slots, c)

	view, err := svc.GetCart(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.ItemCount)
	assert.Zero(t, slots.loadCalls)
}

func TestCartService_CorruptSlotStartsEmpty(t *testing.T) {
	for name, data := range map[string]string{
		"not json":       `{{{`,
		"lines not list": `{"version":1,"lines":{"a":1}}`,
		"wrong version":  `{"version":7,"lines":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			slots, c := newMockSlots(), newMockCache()
			slots.slots["user-1"] = []byte(data)
			svc := newCartService(slots, c)

			view, err := svc.GetCart(context.Background(), "user-1")
			require.NoError(t, err)
			assert.Empty(t, view.Lines)
			assert.True(t, view.Subtotal.IsZero())
		})
	}
}

func TestCartService_UnreachableSlotStartsEmpty(t *testing.T) {
	slots, c := newMockSlots(), newMockCache()
	slots.loadErr = errStoreDown
	svc := newCartService(slots, c)

	view, err := svc.AddItem(context.Background(), "user-1", milk(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, view.ItemCount)
}

func TestCartService_WriteFailureKeepsMemoryAndRetries(t *testing.T) {
	slots, c := newMockSlots(), newMockCache()
	svc := newCartService(slots, c)
	ctx := context.Background()

	slots.setSaveErr(errStoreDown)
	view, err := svc.AddItem(ctx, "user-1", milk(), 2)
	require.NoError(t, err, "persistence failure does not fail the operation")
	assert.Equal(t, 2, view.ItemCount)
	assert.Nil(t, slots.stored("user-1"))
	assert.Equal(t, 1, svc.Flush(ctx), "still dirty while the store is down")

	slots.setSaveErr(nil)
	assert.Zero(t, svc.Flush(ctx))

	restored, err := cart.DecodeSnapshot(slots.stored("user-1"))
	require.NoError(t, err)
	assert.Equal(t, 2, restored.QuantityOf("milk-1l"))
}

func TestCartService_NextMutationRewritesAfterFailure(t *testing.T) {
	slots, c := newMockSlots(), newMockCache()
	svc := newCartService(slots, c)
	ctx := context.Background()

	slots.setSaveErr(errStoreDown)
	_, err := svc.AddItem(ctx, "user-1", milk(), 1)
	require.NoError(t, err)

	slots.setSaveErr(nil)
	_, err = svc.AddItem(ctx, "user-1", rice(), 1)
	require.NoError(t, err)

	restored, err := cart.DecodeSnapshot(slots.stored("user-1"))
	require.NoError(t, err)
	assert.Len(t, restored.Lines(), 2)
	assert.Zero(t, svc.Flush(ctx))
}

func TestCartService_FailedOperationDoesNotPersist(t *testing.T) {
	slots, c := newMockSlots(), newMockCache()
	svc := newCartService(slots, c)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user-1", rice(), 3)
	require.NoError(t, err)
	saves := slots.saveCalls

	_, err = svc.AddItem(ctx, "user-1", rice(), 1)
	assert.ErrorIs(t, err, cart.ErrStockLimitExceeded)
	_, err = svc.SetQuantity(ctx, "user-1", "ghost", 2)
	assert.ErrorIs(t, err, cart.ErrItemNotFound)
	assert.Equal(t, saves, slots.saveCalls)

	view, err := svc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, view.ItemCount)
}

func TestCartService_SetQuantityRemoveClear(t *testing.T) {
	slots, c := newMockSlots(), newMockCache()
	svc := newCartService(slots, c)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user-1", milk(), 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "user-1", rice(), 1)
	require.NoError(t, err)

	view, err := svc.SetQuantity(ctx, "user-1", "milk-1l", 0)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 1)

	view, err = svc.RemoveItem(ctx, "user-1", "rice-5kg")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)

	_, err = svc.AddItem(ctx, "user-1", milk(), 5)
	require.NoError(t, err)
	view, err = svc.ClearCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, view.ItemCount)
	assert.JSONEq(t, `{"version":1,"lines":[]}`, string(slots.stored("user-1")))
}

func TestCartService_MissingKey(t *testing.T) {
	svc := newCartService(newMockSlots(), newMockCache())
	_, err := svc.GetCart(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingCustomer)
}

func TestCartService_ConcurrentFirstAccessLoadsOnce(t *testing.T) {
	slots, c := newMockSlots(), newMockCache()
	svc := newCartService(slots, c)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(ctx, "user-1", milk(), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := svc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 20, view.ItemCount, "no mutation lost to a second session")
}

func TestCartService_EvictsIdleCleanSessions(t *testing.T) {
	slots, c := newMockSlots(), newMockCache()
	svc := newCartService(slots, c)
	svc.SetSessionIdleTimeout(10 * time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user-1", milk(), 2)
	require.NoError(t, err)
	_, err = svc.GetCart(ctx, "guest-1")
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	_, err = svc.GetCart(ctx, "user-1")
	require.NoError(t, err)

	now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, svc.EvictIdle(), "only the guest has been idle past the timeout")
	assert.Equal(t, 1, svc.Sessions())

	now = now.Add(10 * time.Minute)
	assert.Equal(t, 1, svc.EvictIdle())
	assert.Zero(t, svc.Sessions())

	// the next access reloads the cart from its slot
	view, err := svc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, view.ItemCount)
	assert.Equal(t, 1, svc.Sessions())
}

func TestCartService_KeepsDirtySessionsInMemory(t *testing.T) {
	slots, c := newMockSlots(), newMockCache()
	svc := newCartService(slots, c)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	slots.setSaveErr(errStoreDown)
	_, err := svc.AddItem(ctx, "user-1", milk(), 1)
	require.NoError(t, err)

	now = now.Add(DefaultSessionIdleTimeout + time.Minute)
	assert.Zero(t, svc.EvictIdle(), "an unsaved cart stays until its slot is written")

	slots.setSaveErr(nil)
	assert.Zero(t, svc.Flush(ctx))
	assert.Equal(t, 1, svc.EvictIdle())
}
