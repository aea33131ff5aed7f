package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/pinaccess/pkg/buildinfo"
)

// Default MongoDB location of exported batches.
const (
	DefaultDatabase   = "pinaccess"
	DefaultCollection = "batches"
)

// connectTimeout bounds the initial connect and ping.
const connectTimeout = 10 * time.Second

// MongoSink stores each batch as one document keyed by batch ID.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoSink connects to uri and verifies the connection.
func NewMongoSink(ctx context.Context, uri, database, collection string) (*MongoSink, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri).SetAppName(buildinfo.UserAgent()))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &MongoSink{client: client, coll: client.Database(database).Collection(collection)}, nil
}

// Write implements Sink. Re-exporting a batch ID replaces the document.
func (s *MongoSink) Write(ctx context.Context, b Batch) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": b.ID}, b, options.Replace().SetUpsert(true))
	return err
}

// Run returns the batches of one run ordered by row.
func (s *MongoSink) Run(ctx context.Context, runID string) ([]Batch, error) {
	cur, err := s.coll.Find(ctx, bson.M{"run_id": runID}, options.Find().SetSort(bson.D{{Key: "row", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []Batch
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close implements Sink.
func (s *MongoSink) Close() error {
	return s.client.Disconnect(context.Background())
}

func isMongoURI(s string) bool {
	return strings.HasPrefix(s, "mongodb://") || strings.HasPrefix(s, "mongodb+srv://")
}

var _ Sink = (*MongoSink)(nil)
