package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/shopledger/internal/domain/models"
	"github.com/mamadbah2/shopledger/internal/repository"
)

// ReportRepository defines the interface for report storage.
type ReportRepository interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}

// MongoDBRepository owns the MongoDB connection shared by every collection.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
	retry  repository.RetryPolicy
}

// NewMongoDBRepository connects to uri and verifies the connection.
func NewMongoDBRepository(ctx context.Context, uri, dbName string, retry repository.RetryPolicy, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry.Initial <= 0 || retry.Max <= 0 {
		retry = repository.DefaultRetryPolicy
	}

	clientOptions := options.Client().ApplyURI(uri).SetRegistry(repository.Registry)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
		retry:  retry,
	}, nil
}

// SaveDailyReport stores the report for its date, replacing an earlier run
// for the same day.
func (r *MongoDBRepository) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	collection := r.db.Collection(repository.CollectionDailyReports)
	opts := options.Replace().SetUpsert(true)
	if _, err := collection.ReplaceOne(ctx, bson.M{"date": report.Date}, report, opts); err != nil {
		return fmt.Errorf("failed to save daily report %s: %w", report.Date, err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
