package store

import (
	"context"
	"sync"

	"github.com/example/allocation/internal/domain"
	"github.com/example/allocation/internal/readmodel"
	"github.com/example/allocation/internal/service"
)

// MemoryStore holds committed product state in memory. Each unit of work
// gets its own working copies, so a rollback really does discard changes.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{products: make(map[string]*domain.Product)}
}

func (s *MemoryStore) NewUnitOfWork() *MemoryUnitOfWork {
	uow := &MemoryUnitOfWork{store: s}
	uow.repo = &memoryProductRepository{uow: uow, working: make(map[string]*domain.Product)}
	return uow
}

func (s *MemoryStore) get(sku string) (*domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[sku]
	return p, ok
}

func (s *MemoryStore) put(p *domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.Sku] = p
}

func cloneProduct(p *domain.Product) *domain.Product {
	clone := domain.NewProduct(p.Sku)
	clone.Version = p.Version
	for _, b := range p.Batches {
		batch := domain.NewBatch(b.Reference, b.Sku, b.PurchasedQuantity, b.ETA)
		domain.Restore(batch, b.Allocations())
		clone.Batches = append(clone.Batches, batch)
	}
	return clone
}

// MemoryUnitOfWork implements service.UnitOfWork against a MemoryStore.
type MemoryUnitOfWork struct {
	store     *MemoryStore
	active    bool
	Committed bool
	repo      *memoryProductRepository
}

func (u *MemoryUnitOfWork) Begin(ctx context.Context) error {
	u.active = true
	return nil
}

func (u *MemoryUnitOfWork) Commit(ctx context.Context) error {
	// The store gets clones so later rollbacks on the working copies
	// cannot reach committed state.
	for _, p := range u.repo.seen {
		if _, ok := u.repo.working[p.Sku]; ok {
			u.store.put(cloneProduct(p))
		}
	}
	u.active = false
	u.Committed = true
	return nil
}

func (u *MemoryUnitOfWork) Rollback() error {
	if !u.active {
		return nil
	}
	// Drop working copies; the next Get reloads committed state. Tracked
	// aggregates stay around so their pending events can still be drained.
	u.repo.working = make(map[string]*domain.Product)
	u.active = false
	return nil
}

func (u *MemoryUnitOfWork) Products() service.ProductRepository {
	return u.repo
}

func (u *MemoryUnitOfWork) CollectNewEvents() []domain.Event {
	var events []domain.Event
	for _, p := range u.repo.seen {
		events = append(events, p.CollectEvents()...)
	}
	return events
}

type memoryProductRepository struct {
	uow     *MemoryUnitOfWork
	working map[string]*domain.Product
	seen    []*domain.Product
}

func (r *memoryProductRepository) Add(ctx context.Context, product *domain.Product) error {
	r.working[product.Sku] = product
	r.track(product)
	return nil
}

func (r *memoryProductRepository) Get(ctx context.Context, sku string) (*domain.Product, bool, error) {
	if p, ok := r.working[sku]; ok {
		return p, true, nil
	}
	committed, ok := r.uow.store.get(sku)
	if !ok {
		return nil, false, nil
	}
	p := cloneProduct(committed)
	r.working[sku] = p
	r.track(p)
	return p, true, nil
}

func (r *memoryProductRepository) GetByBatchRef(ctx context.Context, ref string) (*domain.Product, bool, error) {
	for _, p := range r.working {
		for _, b := range p.Batches {
			if b.Reference == ref {
				return p, true, nil
			}
		}
	}

	r.uow.store.mu.RLock()
	var sku string
	for _, p := range r.uow.store.products {
		for _, b := range p.Batches {
			if b.Reference == ref {
				sku = p.Sku
			}
		}
	}
	r.uow.store.mu.RUnlock()

	if sku == "" {
		return nil, false, nil
	}
	return r.Get(ctx, sku)
}

func (r *memoryProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	r.uow.store.mu.RLock()
	skus := make([]string, 0, len(r.uow.store.products))
	for sku := range r.uow.store.products {
		skus = append(skus, sku)
	}
	r.uow.store.mu.RUnlock()

	var products []*domain.Product
	for _, sku := range skus {
		p, ok, err := r.Get(ctx, sku)
		if err != nil {
			return nil, err
		}
		if ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (r *memoryProductRepository) track(product *domain.Product) {
	for _, p := range r.seen {
		if p == product {
			return
		}
	}
	r.seen = append(r.seen, product)
}

// MemoryViewStore keeps the allocations read model in memory.
type MemoryViewStore struct {
	mu          sync.RWMutex
	allocations map[string][]readmodel.Allocation // orderID -> rows
}

func NewMemoryViewStore() *MemoryViewStore {
	return &MemoryViewStore{allocations: make(map[string][]readmodel.Allocation)}
}

func (v *MemoryViewStore) AddAllocation(ctx context.Context, allocation readmodel.Allocation) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	rows := v.allocations[allocation.OrderID]
	for i, row := range rows {
		if row.Sku == allocation.Sku {
			rows[i] = allocation
			return nil
		}
	}
	v.allocations[allocation.OrderID] = append(rows, allocation)
	return nil
}

func (v *MemoryViewStore) RemoveAllocation(ctx context.Context, orderID, sku string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	rows := v.allocations[orderID]
	for i, row := range rows {
		if row.Sku == sku {
			v.allocations[orderID] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (v *MemoryViewStore) AllocationsForOrder(ctx context.Context, orderID string) ([]readmodel.Allocation, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rows := v.allocations[orderID]
	out := make([]readmodel.Allocation, len(rows))
	copy(out, rows)
	return out, nil
}
