package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/shopledger/internal/repository"
)

// changeStreamUnsupported is the server error code returned when change
// streams are requested from a standalone server.
const changeStreamUnsupported = 40573

// pollInterval drives re-queries when the server cannot open change streams.
const pollInterval = 5 * time.Second

// Collection implements repository.Collection on a MongoDB collection.
type Collection[T any] struct {
	coll   *mongo.Collection
	logger *zap.Logger
	retry  repository.RetryPolicy
}

// NewCollection binds the named collection to records of type T.
func NewCollection[T any](r *MongoDBRepository, name string) *Collection[T] {
	return &Collection[T]{
		coll:   r.db.Collection(name),
		logger: r.logger.With(zap.String("collection", name)),
		retry:  r.retry,
	}
}

func (c *Collection[T]) Create(ctx context.Context, record T) (string, error) {
	res, err := c.coll.InsertOne(ctx, record)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", c.coll.Name(), err)
	}
	switch id := res.InsertedID.(type) {
	case primitive.ObjectID:
		return id.Hex(), nil
	case string:
		return id, nil
	default:
		return fmt.Sprint(id), nil
	}
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	res, err := c.coll.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.coll.Name(), id, err)
	}
	if res.DeletedCount == 0 {
		c.logger.Debug("delete of missing record ignored", zap.String("id", id))
	}
	return nil
}

func (c *Collection[T]) Update(ctx context.Context, id string, fields map[string]any) error {
	res, err := c.coll.UpdateOne(ctx, idFilter(id), bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c.coll.Name(), id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %s/%s: %w", c.coll.Name(), id, repository.ErrNotFound)
	}
	return nil
}

func (c *Collection[T]) Increment(ctx context.Context, id, field string, delta float64) (float64, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: field, Value: 1}})

	var doc bson.M
	err := c.coll.FindOneAndUpdate(ctx, idFilter(id), incrementPipeline(field, delta), opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("increment %s/%s: %w", c.coll.Name(), id, repository.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("increment %s/%s: %w", c.coll.Name(), id, err)
	}
	value, ok := repository.AsFloat(doc[field])
	if !ok {
		return 0, fmt.Errorf("increment %s/%s: field %s is %T", c.coll.Name(), id, field, doc[field])
	}
	return value, nil
}

// incrementPipeline sets field to max(0, field+delta) server-side. A missing
// field counts as zero.
func incrementPipeline(field string, delta float64) mongo.Pipeline {
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, 0.0}}}
	sum := bson.D{{Key: "$add", Value: bson.A{current, delta}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: field, Value: bson.D{{Key: "$max", Value: bson.A{0.0, sum}}}}}}},
	}
}

// Subscribe streams full snapshots of the collection. A change stream
// triggers a re-query after every write. When the stream or a query fails,
// the error is reported on the subscription and the watch is reopened after
// a backoff delay, resyncing from a fresh query.
func (c *Collection[T]) Subscribe(ctx context.Context, q repository.Query) (*repository.Subscription[T], error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := repository.NewSubscription[T](cancel)
	go c.run(ctx, q, sub)
	return sub, nil
}

func (c *Collection[T]) run(ctx context.Context, q repository.Query, sub *repository.Subscription[T]) {
	defer sub.Finish()

	var backoff time.Duration
	for {
		err := c.watch(ctx, q, sub, func() { backoff = 0 })
		if ctx.Err() != nil {
			return
		}

		backoff = c.retry.Next(backoff)
		c.logger.Warn("subscription interrupted, retrying",
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)
		sub.Fail(err)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// watch opens the change stream before the initial query so no write falls
// between the two. synced is called once the first snapshot is delivered.
func (c *Collection[T]) watch(ctx context.Context, q repository.Query, sub *repository.Subscription[T], synced func()) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}}}}},
	}
	stream, err := c.coll.Watch(ctx, pipeline)
	if err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Code == changeStreamUnsupported {
			return c.poll(ctx, q, sub, synced)
		}
		return fmt.Errorf("watch %s: %w", c.coll.Name(), err)
	}
	defer stream.Close(context.WithoutCancel(ctx))

	if err := c.publish(ctx, q, sub); err != nil {
		return err
	}
	synced()

	for stream.Next(ctx) {
		if err := c.publish(ctx, q, sub); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("change stream %s: %w", c.coll.Name(), err)
	}
	return ctx.Err()
}

// poll re-queries on a fixed interval for servers without change streams.
func (c *Collection[T]) poll(ctx context.Context, q repository.Query, sub *repository.Subscription[T], synced func()) error {
	c.logger.Info("change streams unavailable, polling", zap.Duration("interval", pollInterval))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if err := c.publish(ctx, q, sub); err != nil {
			return err
		}
		synced()

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Collection[T]) publish(ctx context.Context, q repository.Query, sub *repository.Subscription[T]) error {
	records, err := c.find(ctx, q)
	if err != nil {
		return err
	}
	sub.Publish(repository.Snapshot[T]{Records: records, At: time.Now().UTC()})
	return nil
}

func (c *Collection[T]) find(ctx context.Context, q repository.Query) ([]T, error) {
	filter := bson.M{}
	if q.Owner != "" {
		filter[repository.FieldOwner] = q.Owner
	}

	opts := options.Find()
	if q.OrderBy != "" {
		direction := 1
		if q.Descending {
			direction = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: direction}})
	}

	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.coll.Name(), err)
	}

	records := make([]T, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
	}
	return records, nil
}

// idFilter matches records created by this backend (ObjectID) as well as
// records imported with plain string identities.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{repository.FieldID: oid}
	}
	return bson.M{repository.FieldID: id}
}
