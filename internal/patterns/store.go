package patterns

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Sentinel errors, mirroring the teacher's internal/httpx/errors.go
// convention of small wrapped sentinels over ad-hoc strings.
var (
	ErrStoreUnreachable = errors.New("pattern store unreachable")
	ErrNotLoaded        = errors.New("pattern kind not loaded")
)

// Store is the read-only typed view spec §4.1 describes: active patterns
// per kind, longest-literal/priority ordering precomputed, regex compiled
// once. Implementations: MongoStore (live collection) and StaticStore
// (in-memory / YAML-seeded, for tests and offline runs).
type Store interface {
	// Patterns returns active patterns of kind, sorted by
	// (priority ascending, term length descending).
	Patterns(kind Kind) []Compiled
	// PatternsBySubtype narrows Patterns by subtype.
	PatternsBySubtype(kind Kind, subtype Subtype) []Compiled
	// IncrementSuccess and IncrementFailure are fire-and-forget; they
	// need not be synchronized for extraction correctness (telemetry
	// only, per spec §5 Shared state).
	IncrementSuccess(id string)
	IncrementFailure(id string)
	Close(ctx context.Context) error
}

// MongoStore loads the collection described in spec §6.1 once at
// startup (or per batch) into immutable in-memory tables, and drains
// counter increments out-of-band through a buffered channel — the
// "small append-only queue" called for in spec §9.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger

	mu     sync.RWMutex
	tables map[Kind][]Compiled

	counters chan counterOp
	done     chan struct{}
}

type counterOp struct {
	id      string
	success bool
}

// MongoConfig configures the live pattern store connection.
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// DefaultMongoConfig mirrors the teacher's DefaultConfig() pattern of a
// sane, documented starting point (internal/httpx.DefaultConfig).
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		Database:       "titleparser",
		Collection:     "pattern_libraries",
		ConnectTimeout: 10 * time.Second,
	}
}

// NewMongoStore connects, loads every pattern kind, and starts the
// counter-drain goroutine. A connection or initial-load failure is
// fatal per spec §4.1/§7 ("store-unreachable at startup: fatal").
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	s := &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger,
		tables:     make(map[Kind][]Compiled),
		counters:   make(chan counterOp, 1024),
		done:       make(chan struct{}),
	}

	if err := s.loadAll(ctx); err != nil {
		return nil, err
	}

	go s.drainCounters()
	return s, nil
}

var allKinds = []Kind{
	KindMarketTerm,
	KindDatePattern,
	KindReportTypePattern,
	KindReportTypeDictionary,
	KindGeographicEntity,
	KindConfusingTerm,
	KindAcronymEmbeddedTemplate,
}

func (s *MongoStore) loadAll(ctx context.Context) error {
	for _, kind := range allKinds {
		compiled, err := s.loadKind(ctx, kind)
		if err != nil {
			return fmt.Errorf("%w: loading %s: %v", ErrStoreUnreachable, kind, err)
		}
		s.mu.Lock()
		s.tables[kind] = compiled
		s.mu.Unlock()
	}
	return nil
}

func (s *MongoStore) loadKind(ctx context.Context, kind Kind) ([]Compiled, error) {
	cur, err := s.collection.Find(ctx,
		bson.M{"type": string(kind), "active": true},
		options.Find().SetSort(bson.D{{Key: "priority", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Compiled
	for cur.Next(ctx) {
		var rec Record
		if err := cur.Decode(&rec); err != nil {
			s.logger.Warn("dropping pattern: decode failure", zap.Error(err))
			continue
		}
		compiled := Compiled{Record: rec}
		if rec.Pattern != "" {
			re, err := regexp.Compile(rec.Pattern)
			if err != nil {
				// Pattern-compile failures are non-fatal: log and skip
				// (spec §4.1, §7 taxonomy).
				s.logger.Warn("dropping unparseable pattern",
					zap.String("id", rec.ID), zap.String("pattern", rec.Pattern), zap.Error(err))
				continue
			}
			compiled.Regex = re
		}
		out = append(out, compiled)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	sort.Sort(ByPriorityThenLength(out))
	return out, nil
}

func (s *MongoStore) Patterns(kind Kind) []Compiled {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[kind]
}

func (s *MongoStore) PatternsBySubtype(kind Kind, subtype Subtype) []Compiled {
	all := s.Patterns(kind)
	out := make([]Compiled, 0, len(all))
	for _, c := range all {
		if c.Subtype == subtype {
			out = append(out, c)
		}
	}
	return out
}

func (s *MongoStore) IncrementSuccess(id string) {
	select {
	case s.counters <- counterOp{id: id, success: true}:
	default:
		s.logger.Debug("counter queue full, dropping success increment", zap.String("id", id))
	}
}

func (s *MongoStore) IncrementFailure(id string) {
	select {
	case s.counters <- counterOp{id: id, success: false}:
	default:
		s.logger.Debug("counter queue full, dropping failure increment", zap.String("id", id))
	}
}

func (s *MongoStore) drainCounters() {
	for {
		select {
		case op := <-s.counters:
			field := "failure_count"
			if op.success {
				field = "success_count"
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_, err := s.collection.UpdateOne(ctx,
				bson.M{"_id": op.id},
				bson.M{"$inc": bson.M{field: 1}, "$set": bson.M{"updated_at": time.Now()}},
			)
			cancel()
			if err != nil {
				s.logger.Debug("counter increment failed (non-fatal)", zap.String("id", op.id), zap.Error(err))
			}
		case <-s.done:
			return
		}
	}
}

func (s *MongoStore) Close(ctx context.Context) error {
	close(s.done)
	return s.client.Disconnect(ctx)
}

// Client exposes the underlying connection so a caller can open
// additional collections (e.g. stage7's result sink) on the same pool
// instead of dialing Mongo a second time.
func (s *MongoStore) Client() *mongo.Client {
	return s.client
}
