package service

import (
	"context"
	"errors"

	"github.com/example/allocation/internal/domain"
)

var (
	ErrInvalidSku   = errors.New("unknown sku")
	ErrUnknownBatch = errors.New("unknown batch reference")
)

// ProductRepository loads and registers Product aggregates. Get and
// GetByBatchRef return the aggregate fully hydrated, or false when no
// product matches.
type ProductRepository interface {
	Add(ctx context.Context, product *domain.Product) error
	Get(ctx context.Context, sku string) (*domain.Product, bool, error)
	GetByBatchRef(ctx context.Context, ref string) (*domain.Product, bool, error)
	List(ctx context.Context) ([]*domain.Product, error)
}

// UnitOfWork scopes repository work to one transaction. Begin opens a
// scope, Commit persists every aggregate touched in it, and Rollback
// discards the scope; Rollback after Commit is a no-op so handlers can
// defer it unconditionally.
//
// CollectNewEvents drains the events recorded by touched aggregates since
// the previous drain, in load order. The bus uses it to pick up events
// without reaching into aggregates itself, and it works after a rollback
// too: a failed event handler must not strand the events of the ones that
// ran after it.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback() error
	Products() ProductRepository
	CollectNewEvents() []domain.Event
}
