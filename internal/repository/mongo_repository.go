package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SlotTTL is how long an untouched cart slot survives.
const SlotTTL = 90 * 24 * time.Hour

// MongoRepository keeps one document per customer key holding the encoded cart.
type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("cart_slots"),
	}
}

func (m *MongoRepository) LoadSlot(ctx context.Context, key string) (*domain.CartSlot, error) {
	var slot domain.CartSlot

	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to load cart slot: %w", err)
	}

	return &slot, nil
}

// SaveSlot overwrites the slot wholesale.
func (m *MongoRepository) SaveSlot(ctx context.Context, slot *domain.CartSlot) error {
	slot.UpdatedAt = time.Now().UTC()

	filter := bson.M{"_id": slot.Key}
	update := bson.M{"$set": bson.M{
		"snapshot":   slot.Snapshot,
		"updated_at": slot.UpdatedAt,
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save cart slot: %w", err)
	}
	return nil
}

func (m *MongoRepository) DeleteSlot(ctx context.Context, key string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("failed to delete cart slot: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(SlotTTL / time.Second)),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
