package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/verification"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func newDeliveredOrder(t *testing.T, repo *Repository, deliveredAt time.Time) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	order := &domain.Order{
		ID:     uuid.New(),
		UserID: "user-123",
		Status: domain.OrderStatusShipped,
		Total:  decimal.RequireFromString("404.00"),
		Items: []domain.OrderItem{
			{ItemID: "milk-1l", Name: "Milk 1L", Quantity: 2, UnitPrice: decimal.RequireFromString("60")},
		},
	}
	require.NoError(t, repo.CreateOrder(ctx, order))
	require.NoError(t, repo.MarkDelivered(ctx, order.ID, deliveredAt))
	return order.ID
}

func TestRepository_RecordDelivery(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	first := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)

	// unknown order is inserted as delivered
	id := uuid.New()
	require.NoError(t, repo.RecordDelivery(ctx, &domain.Order{ID: id, UserID: "user-7", Total: decimal.NewFromInt(250), DeliveredAt: &first}))
	order, err := repo.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
	assert.Empty(t, order.Items)
	require.NotNil(t, order.DeliveredAt)
	assert.WithinDuration(t, first, *order.DeliveredAt, time.Millisecond)

	// a replay keeps the first delivery time
	later := first.Add(30 * time.Second)
	require.NoError(t, repo.RecordDelivery(ctx, &domain.Order{ID: id, DeliveredAt: &later}))
	order, err = repo.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.WithinDuration(t, first, *order.DeliveredAt, time.Millisecond)
	assert.Equal(t, "user-7", order.UserID)

	// an existing shipped order is stamped
	shipped := &domain.Order{ID: uuid.New(), UserID: "user-8", Status: domain.OrderStatusShipped, Total: decimal.NewFromInt(90)}
	require.NoError(t, repo.CreateOrder(ctx, shipped))
	require.NoError(t, repo.RecordDelivery(ctx, &domain.Order{ID: shipped.ID, DeliveredAt: &first}))
	order, err = repo.GetOrder(ctx, shipped.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
	assert.True(t, decimal.NewFromInt(90).Equal(order.Total))

	assert.Error(t, repo.RecordDelivery(ctx, &domain.Order{ID: uuid.New()}))
}

func openVerification(t *testing.T, repo *Repository, id uuid.UUID, deliveredAt time.Time) {
	t.Helper()
	require.NoError(t, repo.CreateVerification(context.Background(), &domain.OrderVerification{
		OrderID:       id,
		DeliveredAt:   deliveredAt,
		WindowSeconds: domain.DefaultWindowSeconds,
		State:         domain.VerificationDelivered,
	}))
}

func TestRepository_OrderRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	delivered := time.Now().UTC().Truncate(time.Millisecond)
	id := newDeliveredOrder(t, repo, delivered)

	order, err := repo.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
	assert.True(t, decimal.RequireFromString("404").Equal(order.Total))
	require.NotNil(t, order.DeliveredAt)
	assert.WithinDuration(t, delivered, *order.DeliveredAt, time.Millisecond)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "milk-1l", order.Items[0].ItemID)

	_, err = repo.GetOrder(ctx, uuid.New())
	assert.ErrorIs(t, err, verification.ErrOrderNotFound)
	assert.ErrorIs(t, repo.MarkDelivered(ctx, uuid.New(), delivered), verification.ErrOrderNotFound)
}

func TestRepository_CreateVerification(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	delivered := time.Now().UTC().Truncate(time.Second)
	id := newDeliveredOrder(t, repo, delivered)
	openVerification(t, repo, id, delivered)

	v, err := repo.GetVerification(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationDelivered, v.State)
	assert.Equal(t, delivered, v.DeliveredAt)
	assert.Nil(t, v.ResolvedAt)

	err = repo.CreateVerification(ctx, &domain.OrderVerification{OrderID: id, DeliveredAt: delivered, WindowSeconds: 60, State: domain.VerificationDelivered})
	assert.ErrorIs(t, err, verification.ErrVerificationExists)

	err = repo.CreateVerification(ctx, &domain.OrderVerification{OrderID: uuid.New(), DeliveredAt: delivered, WindowSeconds: 60, State: domain.VerificationDelivered})
	assert.ErrorIs(t, err, verification.ErrOrderNotFound)

	_, err = repo.GetVerification(ctx, uuid.New())
	assert.ErrorIs(t, err, verification.ErrVerificationNotFound)
}

func TestRepository_Resolve_CommitsMirrorAndOutbox(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	delivered := time.Now().UTC().Truncate(time.Second)
	id := newDeliveredOrder(t, repo, delivered)
	openVerification(t, repo, id, delivered)

	v, err := repo.Resolve(ctx, id, domain.VerificationDisputed, "bread was stale", delivered.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationDisputed, v.State)
	assert.Equal(t, "bread was stale", v.Notes)

	order, err := repo.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDisputed, order.Status)
	assert.Equal(t, "bread was stale", order.VerificationNotes)
	require.NotNil(t, order.ResolvedAt)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventVerificationResolved, events[0].EventType)
	assert.Equal(t, id.String(), events[0].AggregateId)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRepository_Resolve_WriteOnce(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	delivered := time.Now().UTC()
	id := newDeliveredOrder(t, repo, delivered)
	openVerification(t, repo, id, delivered)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := domain.VerificationVerified
			if i%2 == 1 {
				to = domain.VerificationAutoVerified
			}
			_, err := repo.Resolve(ctx, id, to, "", time.Now())
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, verification.ErrNotPending)
	}
	assert.Equal(t, 1, wins)

	events, err := repo.GetUnprocessedEvents(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, events, 1, "only the winning transition writes an event")
}

func TestRepository_ListDue(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	dueID := newDeliveredOrder(t, repo, now.Add(-2*time.Minute))
	openVerification(t, repo, dueID, now.Add(-2*time.Minute))

	openID := newDeliveredOrder(t, repo, now.Add(-10*time.Second))
	openVerification(t, repo, openID, now.Add(-10*time.Second))

	due, err := repo.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, dueID, due[0].OrderID)
}
