package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/verification"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository is the PostgreSQL store for orders, verifications and the outbox.
type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "checkout_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// CreateOrder inserts an order record. Used by seeding and tests; placement owns
// this table in production.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO orders (id, user_id, status, total_amount, items, delivered_at, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`

	_, err = r.db.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.Status,
		order.Total,
		itemsJSON,
		order.DeliveredAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// MarkDelivered records the delivery timestamp on the order.
func (r *Repository) MarkDelivered(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, delivered_at = $3, updated_at = NOW() WHERE id = $1`,
		orderID, domain.OrderStatusDelivered, at.UTC())
	if err != nil {
		return fmt.Errorf("mark order delivered: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return verification.ErrOrderNotFound
	}
	return nil
}

// RecordDelivery inserts the order as DELIVERED, or stamps an existing order that
// has no delivery time yet. A second event for the same order changes nothing.
func (r *Repository) RecordDelivery(ctx context.Context, order *domain.Order) error {
	if order.DeliveredAt == nil {
		return fmt.Errorf("record delivery for %s: missing delivered_at", order.ID)
	}
	items := order.Items
	if items == nil {
		items = []domain.OrderItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO orders (id, user_id, status, total_amount, items, delivered_at, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	          ON CONFLICT (id) DO UPDATE
	          SET status = EXCLUDED.status, delivered_at = EXCLUDED.delivered_at, updated_at = NOW()
	          WHERE orders.delivered_at IS NULL`

	_, err = r.db.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		domain.OrderStatusDelivered,
		order.Total,
		itemsJSON,
		order.DeliveredAt.UTC())
	if err != nil {
		return fmt.Errorf("record order delivery: %w", err)
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, user_id, status, total_amount, items, delivered_at, verification_notes, resolved_at, created_at, updated_at
	          FROM orders WHERE id = $1`

	var (
		order       domain.Order
		itemsJSON   []byte
		deliveredAt sql.NullTime
		resolvedAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.Total,
		&itemsJSON,
		&deliveredAt,
		&order.VerificationNotes,
		&resolvedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verification.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	order.DeliveredAt = nullTime(deliveredAt)
	order.ResolvedAt = nullTime(resolvedAt)
	return &order, nil
}

func (r *Repository) CreateVerification(ctx context.Context, v *domain.OrderVerification) error {
	query := `INSERT INTO order_verifications (order_id, delivered_at, window_seconds, deadline, state)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (order_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		v.OrderID,
		v.DeliveredAt.UTC(),
		v.WindowSeconds,
		v.Deadline().UTC(),
		v.State)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return verification.ErrOrderNotFound
		}
		return fmt.Errorf("insert verification: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	if n == 0 {
		return verification.ErrVerificationExists
	}
	return nil
}

const verificationColumns = `order_id, delivered_at, window_seconds, state, notes, resolved_at`

func (r *Repository) GetVerification(ctx context.Context, orderID uuid.UUID) (*domain.OrderVerification, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM order_verifications WHERE order_id = $1`, orderID)

	v, err := scanVerification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verification.ErrVerificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query verification: %w", err)
	}
	return v, nil
}

// Resolve transitions a DELIVERED record in one transaction: the conditional update,
// the order status mirror and the outbox event commit together or not at all.
func (r *Repository) Resolve(ctx context.Context, orderID uuid.UUID, to domain.VerificationState, notes string, at time.Time) (*domain.OrderVerification, error) {
	if !to.IsTerminal() {
		return nil, verification.ErrInvalidTransition
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`UPDATE order_verifications
		    SET state = $2, notes = $3, resolved_at = $4
		  WHERE order_id = $1 AND state = 'DELIVERED'
		  RETURNING `+verificationColumns,
		orderID, to, notes, at.UTC())

	v, err := scanVerification(row)
	if errors.Is(err, sql.ErrNoRows) {
		// lost the race or never existed
		_ = tx.Rollback()
		current, getErr := r.GetVerification(ctx, orderID)
		if getErr != nil {
			return nil, getErr
		}
		return current, verification.ErrNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("resolve verification: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, verification_notes = $3, resolved_at = $4, updated_at = NOW() WHERE id = $1`,
		orderID, to.OrderStatus(), notes, at.UTC())
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	payload, err := json.Marshal(newResolvedPayload(v))
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		orderID.String(), EventVerificationResolved, payload)
	if err != nil {
		return nil, fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return v, nil
}

func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.OrderVerification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+verificationColumns+` FROM order_verifications
		  WHERE state = 'DELIVERED' AND deadline <= $1
		  ORDER BY deadline
		  LIMIT $2`,
		now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query due verifications: %w", err)
	}
	defer rows.Close()

	var due []*domain.OrderVerification
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification row: %w", err)
		}
		due = append(due, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return due, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, created_at
		   FROM outbox_events
		  WHERE processed_at IS NULL
		  ORDER BY id
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateId, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVerification(row rowScanner) (*domain.OrderVerification, error) {
	var (
		v          domain.OrderVerification
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&v.OrderID, &v.DeliveredAt, &v.WindowSeconds, &v.State, &v.Notes, &resolvedAt); err != nil {
		return nil, err
	}
	v.DeliveredAt = v.DeliveredAt.UTC()
	v.ResolvedAt = nullTime(resolvedAt)
	return &v, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}
