package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"orderdesk/internal/domain"
)

// tx issues every call with the session context handed to the TxFunc.
type tx struct {
	db *mongo.Database
}

func (t *tx) Product(ctx context.Context, id string) (domain.Product, error) {
	return findProduct(ctx, t.db, id)
}

func (t *tx) Customer(ctx context.Context, id string) (domain.Customer, error) {
	return findCustomer(ctx, t.db, id)
}

func (t *tx) Category(ctx context.Context, id string) (domain.Category, error) {
	var ent CategoryEntity
	err := t.db.Collection(collCategories).FindOne(ctx, bson.M{"_id": id}).Decode(&ent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Category{}, fmt.Errorf("category %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Category{}, err
	}
	return CategoryToModel(ent), nil
}

func (t *tx) Categories(ctx context.Context) ([]domain.Category, error) {
	return listCategories(ctx, t.db)
}

func (t *tx) SaveProduct(ctx context.Context, p *domain.Product) error {
	ent := ProductToEntity(*p)
	if err := saveVersioned(ctx, t.db.Collection(collProducts), "product", p.ID, p.Version, func(v int64) any {
		ent.Version = v
		return ent
	}); err != nil {
		return err
	}
	p.Version++
	return nil
}

func (t *tx) SaveCustomer(ctx context.Context, c *domain.Customer) error {
	ent := CustomerToEntity(*c)
	if err := saveVersioned(ctx, t.db.Collection(collCustomers), "customer", c.ID, c.Version, func(v int64) any {
		ent.Version = v
		return ent
	}); err != nil {
		return err
	}
	c.Version++
	return nil
}

func (t *tx) SaveCategory(ctx context.Context, c *domain.Category) error {
	ent := CategoryToEntity(*c)
	if err := saveVersioned(ctx, t.db.Collection(collCategories), "category", c.ID, c.Version, func(v int64) any {
		ent.Version = v
		return ent
	}); err != nil {
		return err
	}
	c.Version++
	return nil
}

func (t *tx) CreateOrder(ctx context.Context, o domain.Order) error {
	_, err := t.db.Collection(collOrders).InsertOne(ctx, OrderToEntity(o))
	return err
}

func (t *tx) AppendStockLog(ctx context.Context, e domain.StockLogEntry) error {
	_, err := t.db.Collection(collStockLogs).InsertOne(ctx, StockLogToEntity(e))
	return err
}

// saveVersioned inserts when version is zero, otherwise replaces the
// document only if it still has the given version.
func saveVersioned(ctx context.Context, coll *mongo.Collection, kind, id string, version int64, doc func(next int64) any) error {
	if version == 0 {
		_, err := coll.InsertOne(ctx, doc(1))
		return err
	}

	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "version": version}, doc(version+1))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s %q changed since it was read", domain.ErrConflict, kind, id)
	}
	return nil
}

func findProduct(ctx context.Context, db *mongo.Database, id string) (domain.Product, error) {
	var ent ProductEntity
	err := db.Collection(collProducts).FindOne(ctx, bson.M{"_id": id}).Decode(&ent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Product{}, fmt.Errorf("product %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Product{}, err
	}
	return ProductToModel(ent), nil
}

func findCustomer(ctx context.Context, db *mongo.Database, id string) (domain.Customer, error) {
	var ent CustomerEntity
	err := db.Collection(collCustomers).FindOne(ctx, bson.M{"_id": id}).Decode(&ent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Customer{}, fmt.Errorf("customer %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Customer{}, err
	}
	return CustomerToModel(ent), nil
}

func listCategories(ctx context.Context, db *mongo.Database) ([]domain.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "_id", Value: 1}})

	var ents []CategoryEntity
	if err := findAll(ctx, db.Collection(collCategories), bson.M{}, &ents, opts); err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(ents))
	for _, e := range ents {
		out = append(out, CategoryToModel(e))
	}
	return out, nil
}
