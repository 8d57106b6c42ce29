// internal/artifact/mongodb.go
package artifact

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/valpere/TikTokIngester/internal/extract"
)

// MongoSink stores run artifacts as documents in a MongoDB collection. Each
// run upserts on (entity, username, scrape_timestamp) so replays stay
// idempotent.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// MongoOptions configures the MongoDB artifact backend.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// NewMongoSink connects to MongoDB and prepares the artifact collection.
func NewMongoSink(ctx context.Context, opts MongoOptions) (*MongoSink, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("artifact: mongo URI is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("artifact: connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("artifact: ping mongo: %w", err)
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(opts.Database).Collection(opts.Collection),
	}, nil
}

// WriteProfile upserts the profile artifact for this run.
func (s *MongoSink) WriteProfile(ctx context.Context, profile extract.Profile) error {
	filter := bson.M{
		"entity":           "profile",
		"username":         profile.Username,
		"scrape_timestamp": profile.ScrapeTimestamp,
	}
	update := bson.M{"$set": bson.M{"record": profile}}
	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("artifact: upsert profile document: %w", err)
	}
	return nil
}

// WriteVideos upserts the video batch artifact for this run.
func (s *MongoSink) WriteVideos(ctx context.Context, username string, videos []extract.Video) error {
	if len(videos) == 0 {
		return nil
	}
	filter := bson.M{
		"entity":           "videos",
		"username":         username,
		"scrape_timestamp": videos[0].ScrapeTimestamp,
	}
	update := bson.M{"$set": bson.M{"records": videos}}
	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("artifact: upsert video documents: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
