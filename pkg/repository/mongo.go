package repository

import (
	"context"
	"time"

	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/config"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/order"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	return &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// StatusRecord is one entry of an order's status history.
type StatusRecord struct {
	ID        string    `bson:"_id,omitempty"`
	Service   string    `bson:"service"`
	OrderID   string    `bson:"order_id"`
	UserID    string    `bson:"user_id"`
	From      string    `bson:"from,omitempty"`
	To        string    `bson:"to"`
	ActorID   string    `bson:"actor_id"`
	ActorRole string    `bson:"actor_role"`
	CreatedAt time.Time `bson:"created_at"`
}

func (m *MongoRepository) Record(ctx context.Context, e order.HistoryEntry) error {
	collection := m.database.Collection(m.config.Collection)
	_, err := collection.InsertOne(ctx, &StatusRecord{
		Service:   "order-service",
		OrderID:   e.OrderID,
		UserID:    e.UserID,
		From:      string(e.From),
		To:        string(e.To),
		ActorID:   e.ActorID,
		ActorRole: string(e.ActorRole),
		CreatedAt: e.At,
	})
	return err
}

// History returns the status history of an order, oldest first.
func (m *MongoRepository) History(ctx context.Context, orderID string, limit int64) ([]order.HistoryEntry, error) {
	collection := m.database.Collection(m.config.Collection)

	filter := bson.M{"order_id": orderID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*StatusRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	entries := make([]order.HistoryEntry, len(records))
	for i, r := range records {
		entries[i] = order.HistoryEntry{
			OrderID:   r.OrderID,
			UserID:    r.UserID,
			From:      models.OrderStatus(r.From),
			To:        models.OrderStatus(r.To),
			ActorID:   r.ActorID,
			ActorRole: auth.Role(r.ActorRole),
			At:        r.CreatedAt,
		}
	}
	return entries, nil
}
