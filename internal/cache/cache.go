package cache

import (
	"context"
	"errors"
)

// SlotCache holds encoded cart snapshots keyed by customer.
type SlotCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, snapshot []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrCacheMiss = errors.New("cache miss")
