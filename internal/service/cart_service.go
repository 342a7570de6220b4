package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/cache"
	"github.com/Ugender2729/F1-Mart-sub001/internal/cart"
	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/repository"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const persistTimeout = 2 * time.Second

// DefaultSessionIdleTimeout is how long a clean cart stays in memory without use.
const DefaultSessionIdleTimeout = 30 * time.Minute

// CartView is a read-only copy of a cart handed to callers.
type CartView struct {
	Key       string            `json:"-"`
	Lines     []domain.CartLine `json:"lines"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
	ItemCount int               `json:"item_count"`
}

type session struct {
	mu       sync.Mutex
	cart     *cart.Cart
	dirty    bool
	lastUsed time.Time
	evicted  bool
}

// CartService owns the in-memory cart per customer key and mirrors every change
// into the durable slot. The in-memory cart is authoritative; a failed write only
// leaves the slot stale until the next successful one.
type CartService struct {
	slots  repository.SlotRepository
	cache  cache.SlotCache
	logger *slog.Logger
	sfg    singleflight.Group // one slot load per key at a time

	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewCartService(slots repository.SlotRepository, c cache.SlotCache, logger *slog.Logger) *CartService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartService{
		slots:    slots,
		cache:    c,
		logger:   logger,
		sessions:    make(map[string]*session),
		idleTimeout: DefaultSessionIdleTimeout,
		now:         time.Now,
	}
}

// SetSessionIdleTimeout changes how long clean carts stay in memory. d <= 0 keeps
// the current value.
func (s *CartService) SetSessionIdleTimeout(d time.Duration) {
	if d > 0 {
		s.idleTimeout = d
	}
}

func (s *CartService) GetCart(ctx context.Context, key string) (*CartView, error) {
	sess, err := s.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return view(key, sess.cart), nil
}

func (s *CartService) AddItem(ctx context.Context, key string, item cart.Item, qty int) (*CartView, error) {
	return s.mutate(ctx, key, func(c *cart.Cart) error { return c.AddItem(item, qty) })
}

func (s *CartService) SetQuantity(ctx context.Context, key, itemID string, qty int) (*CartView, error) {
	return s.mutate(ctx, key, func(c *cart.Cart) error { return c.SetQuantity(itemID, qty) })
}

func (s *CartService) RemoveItem(ctx context.Context, key, itemID string) (*CartView, error) {
	return s.mutate(ctx, key, func(c *cart.Cart) error { return c.RemoveItem(itemID) })
}

func (s *CartService) ClearCart(ctx context.Context, key string) (*CartView, error) {
	return s.mutate(ctx, key, func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

// Flush retries the slot write for every cart whose last write failed and
// returns how many are still dirty.
func (s *CartService) Flush(ctx context.Context) int {
	s.mu.Lock()
	keys := make([]string, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)

	remaining := 0
	for _, key := range keys {
		s.mu.Lock()
		sess := s.sessions[key]
		s.mu.Unlock()

		sess.mu.Lock()
		if sess.dirty {
			s.persist(ctx, key, sess)
			if sess.dirty {
				remaining++
			}
		}
		sess.mu.Unlock()
	}
	return remaining
}

// EvictIdle drops clean sessions unused for longer than the idle timeout and
// returns how many were dropped. Their slot is current, so the next access
// reloads the same cart. Dirty sessions are never evicted.
func (s *CartService) EvictIdle() int {
	s.mu.Lock()
	candidates := make(map[string]*session, len(s.sessions))
	for k, sess := range s.sessions {
		candidates[k] = sess
	}
	s.mu.Unlock()

	cutoff := s.now().Add(-s.idleTimeout)
	evicted := 0
	for key, sess := range candidates {
		sess.mu.Lock()
		if !sess.dirty && sess.lastUsed.Before(cutoff) {
			s.mu.Lock()
			if s.sessions[key] == sess {
				delete(s.sessions, key)
				sess.evicted = true
				evicted++
			}
			s.mu.Unlock()
		}
		sess.mu.Unlock()
	}
	return evicted
}

// Sessions returns how many carts are held in memory.
func (s *CartService) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunFlusher calls Flush and EvictIdle on every tick until ctx is cancelled.
func (s *CartService) RunFlusher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.Flush(ctx); n > 0 {
				s.logger.WarnContext(ctx, "cart slots still stale after flush", "count", n)
			}
			if n := s.EvictIdle(); n > 0 {
				s.logger.DebugContext(ctx, "evicted idle carts", "count", n)
			}
		case <-ctx.Done():
			// last attempt with a fresh context so shutdown does not drop writes
			flushCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			s.Flush(flushCtx)
			cancel()
			return
		}
	}
}

func (s *CartService) mutate(ctx context.Context, key string, op func(*cart.Cart) error) (*CartView, error) {
	sess, err := s.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if err := op(sess.cart); err != nil {
		return nil, err
	}
	s.persist(ctx, key, sess)
	return view(key, sess.cart), nil
}

// persist overwrites the slot wholesale. Callers hold sess.mu.
func (s *CartService) persist(ctx context.Context, key string, sess *session) {
	data, err := cart.EncodeSnapshot(sess.cart)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode cart snapshot failed", "key", key, "error", err)
		sess.dirty = true
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.slots.SaveSlot(ctx, &domain.CartSlot{Key: key, Snapshot: data}); err != nil {
		s.logger.WarnContext(ctx, "cart slot write failed, keeping in-memory cart", "key", key, "error", err)
		sess.dirty = true
		if errDel := s.cache.Delete(ctx, key); errDel != nil {
			s.logger.WarnContext(ctx, "cache invalidate error", "key", key, "error", errDel)
		}
		return
	}
	sess.dirty = false

	if err := s.cache.Set(ctx, key, data); err != nil {
		s.logger.WarnContext(ctx, "cache set error", "key", key, "error", err)
	}
}

// acquire returns the live session for key with its lock held and marks it used.
// A session evicted between lookup and lock is looked up again.
func (s *CartService) acquire(ctx context.Context, key string) (*session, error) {
	for {
		sess, err := s.session(ctx, key)
		if err != nil {
			return nil, err
		}
		sess.mu.Lock()
		if sess.evicted {
			sess.mu.Unlock()
			continue
		}
		sess.lastUsed = s.now()
		return sess, nil
	}
}

func (s *CartService) session(ctx context.Context, key string) (*session, error) {
	if key == "" {
		return nil, ErrMissingCustomer
	}

	s.mu.Lock()
	sess, ok := s.sessions[key]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	v, _, _ := s.sfg.Do(key, func() (interface{}, error) {
		return s.load(ctx, key), nil
	})
	loaded := v.(*cart.Cart)

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		return sess, nil
	}
	sess = &session{cart: loaded, lastUsed: s.now()}
	s.sessions[key] = sess
	return sess, nil
}

// load reads the slot once at session start. Corrupt or unreachable data yields
// an empty cart; it never fails the caller.
func (s *CartService) load(ctx context.Context, key string) *cart.Cart {
	data, err := s.cache.Get(ctx, key)
	if err == nil {
		c, errDecode := cart.DecodeSnapshot(data)
		if errDecode == nil {
			return c
		}
		s.logger.WarnContext(ctx, "cached cart snapshot corrupt", "key", key, "error", errDecode)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "cache get error", "key", key, "error", err)
	}

	slot, err := s.slots.LoadSlot(ctx, key)
	if errors.Is(err, repository.ErrSlotNotFound) {
		return cart.New()
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "cart slot unreachable, starting empty", "key", key, "error", err)
		return cart.New()
	}

	c, err := cart.DecodeSnapshot(slot.Snapshot)
	if err != nil {
		s.logger.WarnContext(ctx, "stored cart snapshot corrupt, starting empty", "key", key, "error", err)
		return cart.New()
	}

	go func(snapshot []byte) {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if errSet := s.cache.Set(ctx, key, snapshot); errSet != nil {
			s.logger.Warn("cache set error", "key", key, "error", errSet)
		}
	}(slot.Snapshot)

	return c
}

func view(key string, c *cart.Cart) *CartView {
	return &CartView{
		Key:       key,
		Lines:     c.Lines(),
		Subtotal:  c.Subtotal(),
		ItemCount: c.ItemCount(),
	}
}
