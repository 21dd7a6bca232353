package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"orderdesk/internal/domain"
	"orderdesk/internal/logger"
	"orderdesk/internal/repository"
)

// Store keeps documents in MongoDB collections. Transactions run in a
// session with snapshot reads and majority writes; updates replace a
// document only while its version still matches.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ repository.Store = (*Store)(nil)

// Connect dials uri and pings the primary. Transactions need a replica set.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	const op = "mongo.Connect"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	models := map[string][]mongo.IndexModel{
		collProducts:   {{Keys: bson.D{{Key: "category_id", Value: 1}}}},
		collCategories: {{Keys: bson.D{{Key: "position", Value: 1}}}},
		collOrders:     {{Keys: bson.D{{Key: "created_at", Value: 1}}}},
		collStockLogs:  {{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "timestamp", Value: -1}}}},
	}
	for coll, idx := range models {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) RunInTx(ctx context.Context, fn repository.TxFunc) error {
	const op = "mongo.RunInTx"

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("%s: start session: %w", op, classify(err))
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := sess.StartTransaction(txOpts); err != nil {
		return fmt.Errorf("%s: start transaction: %w", op, classify(err))
	}

	sctx := mongo.NewSessionContext(ctx, sess)
	if err := fn(sctx, &tx{db: s.db}); err != nil {
		if abortErr := sess.AbortTransaction(context.WithoutCancel(ctx)); abortErr != nil {
			logger.Warn(ctx, "abort transaction failed", logger.ErrorF(abortErr))
		}
		return fmt.Errorf("%s: %w", op, classify(err))
	}

	if err := sess.CommitTransaction(sctx); err != nil {
		return fmt.Errorf("%s: commit: %w", op, classify(err))
	}
	return nil
}

func (s *Store) ProductByID(ctx context.Context, id string) (domain.Product, error) {
	p, err := findProduct(ctx, s.db, id)
	if err != nil {
		return domain.Product{}, classify(err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, categoryID string) ([]domain.Product, error) {
	const op = "mongo.ListProducts"

	filter := bson.M{}
	if categoryID != "" {
		filter["category_id"] = categoryID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}).
		SetCollation(&options.Collation{Locale: "en", Strength: 2})

	var ents []ProductEntity
	if err := findAll(ctx, s.db.Collection(collProducts), filter, &ents, opts); err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	out := make([]domain.Product, 0, len(ents))
	for _, e := range ents {
		out = append(out, ProductToModel(e))
	}
	return out, nil
}

func (s *Store) CustomerByID(ctx context.Context, id string) (domain.Customer, error) {
	c, err := findCustomer(ctx, s.db, id)
	if err != nil {
		return domain.Customer{}, classify(err)
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	cs, err := listCategories(ctx, s.db)
	if err != nil {
		return nil, classify(err)
	}
	return cs, nil
}

func (s *Store) OrderByID(ctx context.Context, id string) (domain.Order, error) {
	const op = "mongo.OrderByID"

	var ent OrderEntity
	err := s.db.Collection(collOrders).FindOne(ctx, bson.M{"_id": id}).Decode(&ent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Order{}, fmt.Errorf("order %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, classify(err))
	}
	return OrderToModel(ent), nil
}

func (s *Store) OrdersBetween(ctx context.Context, start, end time.Time) ([]domain.Order, error) {
	const op = "mongo.OrdersBetween"

	filter := bson.M{"created_at": bson.M{"$gte": start, "$lte": end}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	var ents []OrderEntity
	if err := findAll(ctx, s.db.Collection(collOrders), filter, &ents, opts); err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	out := make([]domain.Order, 0, len(ents))
	for _, e := range ents {
		out = append(out, OrderToModel(e))
	}
	return out, nil
}

func (s *Store) StockLogs(ctx context.Context, filter repository.StockLogFilter) ([]domain.StockLogEntry, error) {
	const op = "mongo.StockLogs"

	q := bson.M{}
	if filter.ProductID != "" {
		q["product_id"] = filter.ProductID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(repository.NormalizeOffset(filter.Offset))).
		SetLimit(int64(repository.NormalizeLimit(filter.Limit)))

	var ents []StockLogEntity
	if err := findAll(ctx, s.db.Collection(collStockLogs), q, &ents, opts); err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	out := make([]domain.StockLogEntry, 0, len(ents))
	for _, e := range ents {
		out = append(out, StockLogToModel(e))
	}
	return out, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, out *[]T, opts ...options.Lister[options.FindOptions]) error {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return err
	}
	*out = make([]T, 0)
	return cur.All(ctx, out)
}
