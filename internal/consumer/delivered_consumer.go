package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/verification"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	Topic   = "order-delivered"
	GroupID = "checkout-verification"
)

// OrderDeliveredEvent is published by the delivery side when the courier hands
// the order over. With DeliveredAt set the event records the delivery itself;
// without it the order record must already carry the delivery time.
type OrderDeliveredEvent struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id,omitempty"`
	Total       decimal.Decimal `json:"total"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}

// Opener starts the verification window for a delivered order.
type Opener interface {
	Open(ctx context.Context, orderID uuid.UUID) (*domain.OrderVerification, error)
	Deliver(ctx context.Context, d verification.Delivery) (*domain.OrderVerification, error)
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type DeliveredConsumer struct {
	opener Opener
	reader MessageReader
	logger *slog.Logger
}

func NewDeliveredConsumer(opener Opener, logger *slog.Logger, brokers ...string) *DeliveredConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return NewDeliveredConsumerWithReader(opener, reader, logger)
}

func NewDeliveredConsumerWithReader(opener Opener, reader MessageReader, logger *slog.Logger) *DeliveredConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliveredConsumer{opener: opener, reader: reader, logger: logger}
}

func (c *DeliveredConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *DeliveredConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("error closing kafka reader", "error", err)
	}
}

func (c *DeliveredConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.logger.ErrorContext(ctx, "error reading message", "error", err)
		return
	}
	c.handle(ctx, m.Value)
}

// handle opens the window for one event. Bad payloads are logged and dropped.
func (c *DeliveredConsumer) handle(ctx context.Context, value []byte) {
	var event OrderDeliveredEvent
	if err := json.Unmarshal(value, &event); err != nil {
		c.logger.WarnContext(ctx, "error parsing delivered event", "error", err)
		return
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		c.logger.WarnContext(ctx, "invalid order_id in delivered event", "order_id", event.OrderID, "error", err)
		return
	}

	var v *domain.OrderVerification
	if event.DeliveredAt != nil {
		v, err = c.opener.Deliver(ctx, verification.Delivery{
			OrderID:     orderID,
			UserID:      event.UserID,
			Total:       event.Total,
			DeliveredAt: *event.DeliveredAt,
		})
	} else {
		v, err = c.opener.Open(ctx, orderID)
	}
	switch {
	case errors.Is(err, verification.ErrOrderNotFound),
		errors.Is(err, verification.ErrOrderNotDelivered),
		errors.Is(err, verification.ErrInvalidDelivery):
		c.logger.WarnContext(ctx, "skipping delivered event", "order_id", orderID, "error", err)
		return
	case err != nil:
		c.logger.ErrorContext(ctx, "failed to open verification window", "order_id", orderID, "error", err)
		return
	}

	c.logger.InfoContext(ctx, "verification window opened",
		"order_id", orderID, "state", v.State, "deadline", v.Deadline())
}
