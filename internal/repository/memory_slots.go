package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
)

// MemorySlots is a SlotRepository kept in process memory, used when no MongoDB is configured.
type MemorySlots struct {
	mu    sync.RWMutex
	slots map[string]domain.CartSlot
}

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{slots: make(map[string]domain.CartSlot)}
}

func (m *MemorySlots) LoadSlot(_ context.Context, key string) (*domain.CartSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slot, ok := m.slots[key]
	if !ok {
		return nil, ErrSlotNotFound
	}
	slot.Snapshot = append([]byte(nil), slot.Snapshot...)
	return &slot, nil
}

func (m *MemorySlots) SaveSlot(_ context.Context, slot *domain.CartSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot.UpdatedAt = time.Now().UTC()
	m.slots[slot.Key] = domain.CartSlot{
		Key:       slot.Key,
		Snapshot:  append([]byte(nil), slot.Snapshot...),
		UpdatedAt: slot.UpdatedAt,
	}
	return nil
}

func (m *MemorySlots) DeleteSlot(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.slots[key]; !ok {
		return ErrSlotNotFound
	}
	delete(m.slots, key)
	return nil
}
