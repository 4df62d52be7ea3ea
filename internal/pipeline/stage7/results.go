package stage7

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ResultSink persists a batch of processing results, keyed by processing
// id (spec §4.7.6). A missing-connection or bulk-insert error is logged
// by the implementation and returned to the caller, who logs it and
// continues — the batch is never aborted on a persistence failure, and
// results stay in memory for the report writer regardless of outcome.
type ResultSink interface {
	SaveBatch(ctx context.Context, results []ProcessingResult) error
}

// NoopResultSink discards results; the default when no sink is supplied
// (a nil sink passed to NewOrchestrator or titleparser.NewWithStore).
type NoopResultSink struct{}

func (NoopResultSink) SaveBatch(context.Context, []ProcessingResult) error { return nil }

// MongoResultSink stores processing results in the "markets_processed"
// collection, the direct analogue of patterns.MongoStore's connection
// handling for the pattern library collection.
type MongoResultSink struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// MongoResultSinkConfig configures the result collection connection.
type MongoResultSinkConfig struct {
	Database   string
	Collection string
}

// DefaultMongoResultSinkConfig mirrors patterns.DefaultMongoConfig.
func DefaultMongoResultSinkConfig() MongoResultSinkConfig {
	return MongoResultSinkConfig{Database: "titleparser", Collection: "markets_processed"}
}

// NewMongoResultSink wraps an already-connected *mongo.Client; the
// orchestrator does not own connection lifecycle (the pattern store
// does, per spec §4.1), it only borrows a collection handle.
func NewMongoResultSink(client *mongo.Client, cfg MongoResultSinkConfig, logger *zap.Logger) *MongoResultSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoResultSink{
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger,
	}
}

// SaveBatch inserts each result keyed by processing id. Per spec §4.7.6,
// the sink does not re-open connections on the failure path of a single
// insert; an unordered bulk insert lets unrelated documents still land.
func (s *MongoResultSink) SaveBatch(ctx context.Context, results []ProcessingResult) error {
	if len(results) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(results))
	for _, r := range results {
		doc := r.Document()
		docs = append(docs, doc)
	}

	writeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.collection.InsertMany(writeCtx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		s.logger.Error("failed to save processing results", zap.Int("count", len(results)), zap.Error(err))
		return err
	}
	s.logger.Info("saved processing results", zap.Int("count", len(results)))
	return nil
}
