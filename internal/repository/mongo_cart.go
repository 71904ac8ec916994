package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/repurpose-hub/checkout-service/internal/config"
	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/models"
)

// ConnectMongoDB connects, pings and returns the configured database.
func ConnectMongoDB(ctx context.Context, cfg config.MongoConfig) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(cfg.Database), nil
}

// MongoCartStore reads carts written by the cart service.
type MongoCartStore struct {
	collection *mongo.Collection
	logger     *logging.LoggerV2
}

func NewMongoCartStore(db *mongo.Database, collection string, logger *logging.LoggerV2) *MongoCartStore {
	return &MongoCartStore{
		collection: db.Collection(collection),
		logger:     logger,
	}
}

// GetCart returns the user's cart or errors.ErrNotFound.
func (s *MongoCartStore) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart

	err := s.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

// DeleteCart removes the user's cart. A missing cart is not an error.
func (s *MongoCartStore) DeleteCart(ctx context.Context, userID string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	s.logger.Debug("Cart cleared", logging.Fields{
		"user_id": userID,
		"deleted": result.DeletedCount,
	})
	return nil
}

// Ping checks the underlying client.
func (s *MongoCartStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}
