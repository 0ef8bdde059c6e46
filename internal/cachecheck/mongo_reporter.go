package cachecheck

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const discrepancyCollection = "cache_discrepancies"

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type discrepancyDocument struct {
	Discrepancy `bson:",inline"`
	Fixed       bool      `bson:"fixed"`
	RecordedAt  time.Time `bson:"recorded_at"`
}

// MongoReporter archives discrepancies so drift can be inspected after the
// log lines are gone. Insert failures are logged and otherwise ignored.
type MongoReporter struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

func NewMongoReporter(db *mongo.Database, logger *zap.Logger) *MongoReporter {
	return &MongoReporter{
		collection: db.Collection(discrepancyCollection),
		logger:     logger,
	}
}

func (m *MongoReporter) Report(ctx context.Context, d Discrepancy, fix bool) {
	doc := discrepancyDocument{
		Discrepancy: d,
		Fixed:       fix,
		RecordedAt:  time.Now().UTC(),
	}
	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		m.logger.Error("failed to archive discrepancy",
			zap.Int64("book_id", d.BookID),
			zap.String("field", d.Field),
			zap.Error(err))
	}
}

// History returns the archived discrepancies of a book, oldest first.
func (m *MongoReporter) History(ctx context.Context, bookID int64) ([]Discrepancy, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: 1}})
	cursor, err := m.collection.Find(ctx, bson.M{"book_id": bookID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find discrepancies: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []discrepancyDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode discrepancies: %w", err)
	}

	out := make([]Discrepancy, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Discrepancy)
	}
	return out, nil
}

func (m *MongoReporter) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "book_id", Value: 1}, {Key: "recorded_at", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "recorded_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(30 * 24 * 60 * 60), // 30 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
