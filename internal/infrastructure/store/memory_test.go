package store

import (
	"context"
	"testing"
	"time"

	"github.com/example/allocation/internal/domain"
	"github.com/example/allocation/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUnitOfWork_CommitMakesStateVisible(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	uow := store.NewUnitOfWork()
	require.NoError(t, uow.Begin(ctx))
	product := domain.NewProduct("ELEGANT-SOFA",
		domain.NewBatch("batch-001", "ELEGANT-SOFA", 20, time.Time{}))
	require.NoError(t, uow.Products().Add(ctx, product))
	require.NoError(t, uow.Commit(ctx))

	other := store.NewUnitOfWork()
	require.NoError(t, other.Begin(ctx))
	got, ok, err := other.Products().Get(ctx, "ELEGANT-SOFA")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "batch-001", got.Batches[0].Reference)
}

func TestMemoryUnitOfWork_RollbackDiscardsChanges(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	uow := store.NewUnitOfWork()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.Products().Add(ctx, domain.NewProduct("PHANTOM-CHAIR",
		domain.NewBatch("batch-001", "PHANTOM-CHAIR", 20, time.Time{}))))
	require.NoError(t, uow.Rollback())

	other := store.NewUnitOfWork()
	require.NoError(t, other.Begin(ctx))
	_, ok, err := other.Products().Get(ctx, "PHANTOM-CHAIR")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryUnitOfWork_RollbackAfterCommitIsNoop(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	uow := store.NewUnitOfWork()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.Products().Add(ctx, domain.NewProduct("STURDY-SHELF",
		domain.NewBatch("batch-001", "STURDY-SHELF", 20, time.Time{}))))
	require.NoError(t, uow.Commit(ctx))
	require.NoError(t, uow.Rollback())

	_, ok := store.get("STURDY-SHELF")
	assert.True(t, ok)
}

func TestMemoryUnitOfWork_WorkingCopyDoesNotLeakIntoStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	uow := store.NewUnitOfWork()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.Products().Add(ctx, domain.NewProduct("QUIET-RUG",
		domain.NewBatch("batch-001", "QUIET-RUG", 20, time.Time{}))))
	require.NoError(t, uow.Commit(ctx))

	// Mutate the working copy after commit. The committed state is a clone
	// and must not see the change.
	working, _, err := uow.Products().Get(ctx, "QUIET-RUG")
	require.NoError(t, err)
	_, err = working.Allocate(domain.OrderLine{OrderID: "order-001", Sku: "QUIET-RUG", Qty: 5})
	require.NoError(t, err)

	committed, ok := store.get("QUIET-RUG")
	require.True(t, ok)
	assert.Equal(t, 20, committed.Batches[0].AvailableQuantity())
}

func TestMemoryUnitOfWork_CollectNewEventsAfterRollback(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	uow := store.NewUnitOfWork()
	require.NoError(t, uow.Begin(ctx))
	product := domain.NewProduct("NOISY-CLOCK",
		domain.NewBatch("batch-001", "NOISY-CLOCK", 10, time.Time{}))
	require.NoError(t, uow.Products().Add(ctx, product))
	_, err := product.Allocate(domain.OrderLine{OrderID: "order-001", Sku: "NOISY-CLOCK", Qty: 10})
	require.NoError(t, err)
	require.NoError(t, uow.Rollback())

	// Tracked aggregates keep their pending events through a rollback.
	events := uow.CollectNewEvents()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventBatchAllocated, events[0].EventName())
	assert.Equal(t, domain.EventOutOfStock, events[1].EventName())
}

func TestMemoryRepository_GetByBatchRef(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seed := store.NewUnitOfWork()
	require.NoError(t, seed.Begin(ctx))
	require.NoError(t, seed.Products().Add(ctx, domain.NewProduct("TALL-BOOKCASE",
		domain.NewBatch("batch-123", "TALL-BOOKCASE", 10, time.Time{}))))
	require.NoError(t, seed.Commit(ctx))

	uow := store.NewUnitOfWork()
	require.NoError(t, uow.Begin(ctx))

	product, ok, err := uow.Products().GetByBatchRef(ctx, "batch-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TALL-BOOKCASE", product.Sku)

	_, ok, err = uow.Products().GetByBatchRef(ctx, "no-such-batch")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryViewStore(t *testing.T) {
	views := NewMemoryViewStore()
	ctx := context.Background()

	require.NoError(t, views.AddAllocation(ctx, readmodel.Allocation{
		OrderID: "order-001", Sku: "RED-CHAIR", BatchRef: "batch-001", Qty: 5,
	}))
	require.NoError(t, views.AddAllocation(ctx, readmodel.Allocation{
		OrderID: "order-001", Sku: "BLUE-TABLE", BatchRef: "batch-002", Qty: 3,
	}))

	// Re-adding the same order/sku pair replaces the row.
	require.NoError(t, views.AddAllocation(ctx, readmodel.Allocation{
		OrderID: "order-001", Sku: "RED-CHAIR", BatchRef: "batch-009", Qty: 5,
	}))

	rows, err := views.AllocationsForOrder(ctx, "order-001")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "batch-009", rows[0].BatchRef)

	require.NoError(t, views.RemoveAllocation(ctx, "order-001", "RED-CHAIR"))
	rows, err = views.AllocationsForOrder(ctx, "order-001")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "BLUE-TABLE", rows[0].Sku)

	rows, err = views.AllocationsForOrder(ctx, "order-999")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
