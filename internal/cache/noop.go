package cache

import "context"

// NoopCache never stores anything; every Get is a miss.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

func (NoopCache) Set(context.Context, string, []byte) error { return nil }

func (NoopCache) Delete(context.Context, string) error { return nil }
