package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned (wrapped) when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned (wrapped) when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate")

// Store bundles the repositories that share one database handle, so a set of changes can be
// made atomically through Transaction.
type Store struct {
	db       *gorm.DB
	Users    UserRepository
	Products ProductRepository
	Carts    CartRepository
	Orders   OrderRepository
	Returns  ReturnRepository
}

// NewStore creates a Store whose repositories all use db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Users:    NewGORMUserRepository(db),
		Products: NewGORMProductRepository(db),
		Carts:    NewGORMCartRepository(db),
		Orders:   NewGORMOrderRepository(db),
		Returns:  NewGORMReturnRepository(db),
	}
}

// Transaction runs fn with a Store bound to a single database transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
