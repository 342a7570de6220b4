package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSettings configures the cart slot connection. Zero values fall back to
// the defaults below.
type MongoSettings struct {
	URI                    string
	Database               string
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
	MaxPoolSize            uint64
	MinPoolSize            uint64
}

const (
	defaultMongoConnectTimeout   = 10 * time.Second
	defaultMongoSelectionTimeout = 5 * time.Second
	defaultMongoMaxPool          = 100
	defaultMongoMinPool          = 10
)

func (s MongoSettings) withDefaults() MongoSettings {
	if s.ConnectTimeout <= 0 {
		s.ConnectTimeout = defaultMongoConnectTimeout
	}
	if s.ServerSelectionTimeout <= 0 {
		s.ServerSelectionTimeout = defaultMongoSelectionTimeout
	}
	if s.MaxPoolSize == 0 {
		s.MaxPoolSize = defaultMongoMaxPool
	}
	if s.MinPoolSize > s.MaxPoolSize {
		s.MinPoolSize = s.MaxPoolSize
	}
	return s
}

func (s MongoSettings) clientOptions() *options.ClientOptions {
	return options.Client().
		ApplyURI(s.URI).
		SetAppName("checkout-cart-slots").
		SetConnectTimeout(s.ConnectTimeout).
		SetServerSelectionTimeout(s.ServerSelectionTimeout).
		SetMaxPoolSize(s.MaxPoolSize).
		SetMinPoolSize(s.MinPoolSize)
}

// ConnectMongoDB opens and pings the cart slot database. The client is
// disconnected again if the ping fails.
func ConnectMongoDB(ctx context.Context, settings MongoSettings) (*mongo.Database, error) {
	if settings.URI == "" || settings.Database == "" {
		return nil, fmt.Errorf("mongo uri and database are required")
	}
	settings = settings.withDefaults()

	client, err := mongo.Connect(ctx, settings.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, settings.ServerSelectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(settings.Database), nil
}
