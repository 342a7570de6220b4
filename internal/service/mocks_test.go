package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Ugender2729/F1-Mart-sub001/internal/cache"
	"github.com/Ugender2729/F1-Mart-sub001/internal/coupon"
	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/repository"
	"github.com/shopspring/decimal"
)

var errStoreDown = errors.New("connection refused")

type mockSlots struct {
	m         sync.Mutex
	slots     map[string][]byte
	loadErr   error
	saveErr   error
	loadCalls int
	saveCalls int
}

func newMockSlots() *mockSlots {
	return &mockSlots{slots: make(map[string][]byte)}
}

func (m *mockSlots) LoadSlot(_ context.Context, key string) (*domain.CartSlot, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.loadCalls++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	data, ok := m.slots[key]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	return &domain.CartSlot{Key: key, Snapshot: data}, nil
}

func (m *mockSlots) SaveSlot(_ context.Context, slot *domain.CartSlot) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.slots[slot.Key] = slot.Snapshot
	return nil
}

func (m *mockSlots) DeleteSlot(_ context.Context, key string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.slots, key)
	return nil
}

func (m *mockSlots) setSaveErr(err error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.saveErr = err
}

func (m *mockSlots) stored(key string) []byte {
	m.m.Lock()
	defer m.m.Unlock()
	return m.slots[key]
}

type mockCache struct {
	m    sync.Mutex
	data map[string][]byte
	err  error
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	d, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return d, nil
}

func (m *mockCache) Set(_ context.Context, key string, snapshot []byte) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.data[key] = snapshot
	return m.err
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.data, key)
	return nil
}

type mockResolver struct {
	coupons   map[string]*domain.Coupon
	firstTime bool
	offer     *domain.FirstOrderOffer
	err       error
	lookups   int
}

func (m *mockResolver) ApplicableCoupons(context.Context, decimal.Decimal, coupon.Customer) ([]domain.Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Coupon
	for _, c := range m.coupons {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockResolver) Lookup(_ context.Context, code string) (*domain.Coupon, error) {
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.coupons[code]
	if !ok {
		return nil, coupon.ErrCouponNotFound
	}
	return c, nil
}

func (m *mockResolver) ApplyCoupon(_ context.Context, code string, amount decimal.Decimal, _ coupon.Customer) (*domain.CouponApplication, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.coupons[code]; !ok {
		return &domain.CouponApplication{Message: "Invalid coupon code"}, nil
	}
	return &domain.CouponApplication{Success: true, Message: "applied", DiscountAmount: amount.Div(decimal.NewFromInt(10))}, nil
}

func (m *mockResolver) FirstOrderCoupon(context.Context, decimal.Decimal, coupon.Customer) (*domain.FirstOrderOffer, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.offer == nil {
		return &domain.FirstOrderOffer{}, nil
	}
	return m.offer, nil
}

func (m *mockResolver) IsFirstTimeCustomer(context.Context, coupon.Customer) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.firstTime, nil
}
