package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/order"
	"github.com/hashicorp/go-memdb"
)

const ordersTable = "orders"

var memorySchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		ordersTable: {
			Name: ordersTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"user_id": {
					Name:    "user_id",
					Indexer: &memdb.StringFieldIndex{Field: "UserID"},
				},
			},
		},
	},
}

// MemoryOrderRepository keeps orders in a go-memdb database. Stored objects
// are never mutated; every write inserts a fresh copy.
type MemoryOrderRepository struct {
	db *memdb.MemDB
}

func NewMemoryOrderRepository() (*MemoryOrderRepository, error) {
	db, err := memdb.NewMemDB(memorySchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create memdb: %w", err)
	}
	return &MemoryOrderRepository{db: db}, nil
}

func (r *MemoryOrderRepository) Create(_ context.Context, o *models.Order) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(ordersTable, "id", o.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	if err := txn.Insert(ordersTable, o.Clone()); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (r *MemoryOrderRepository) Get(_ context.Context, id string) (*models.Order, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(ordersTable, "id", id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, order.ErrNotFound
	}
	return raw.(*models.Order).Clone(), nil
}

func (r *MemoryOrderRepository) Query(_ context.Context, f order.Filter) ([]*models.Order, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	var (
		it  memdb.ResultIterator
		err error
	)
	if f.UserID != "" {
		it, err = txn.Get(ordersTable, "user_id", f.UserID)
	} else {
		it, err = txn.Get(ordersTable, "id")
	}
	if err != nil {
		return nil, err
	}

	var out []*models.Order
	for raw := it.Next(); raw != nil; raw = it.Next() {
		o := raw.(*models.Order)
		if f.Matches(o) {
			out = append(out, o.Clone())
		}
	}
	sortNewestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryOrderRepository) CompareAndSetStatus(_ context.Context, id string, from, to models.OrderStatus, at time.Time) (*models.Order, error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(ordersTable, "id", id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, order.ErrNotFound
	}
	current := raw.(*models.Order)
	if current.Status != from {
		return nil, fmt.Errorf("%w: expected %s, found %s", order.ErrStatusConflict, from, current.Status)
	}

	updated := current.Clone()
	updated.Status = to
	updated.UpdatedAt = at
	if err := txn.Insert(ordersTable, updated); err != nil {
		return nil, err
	}
	txn.Commit()
	return updated.Clone(), nil
}

func sortNewestFirst(orders []*models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}
