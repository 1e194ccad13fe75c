package service

import (
	"context"
	"fmt"

	"github.com/example/allocation/internal/domain"
	"github.com/example/allocation/internal/readmodel"
)

// EventPublisher pushes committed domain events to downstream consumers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event domain.Event) error
}

// Notifier alerts operations when a SKU runs dry.
type Notifier interface {
	SendOutOfStockAlert(sku string) error
}

// ViewStore maintains the allocations read model.
type ViewStore interface {
	AddAllocation(ctx context.Context, allocation readmodel.Allocation) error
	RemoveAllocation(ctx context.Context, orderID, sku string) error
	AllocationsForOrder(ctx context.Context, orderID string) ([]readmodel.Allocation, error)
}

// Handlers holds the command and event handlers the bus is wired with.
type Handlers struct {
	publisher EventPublisher
	notifier  Notifier
	views     ViewStore
}

func NewHandlers(publisher EventPublisher, notifier Notifier, views ViewStore) *Handlers {
	return &Handlers{
		publisher: publisher,
		notifier:  notifier,
		views:     views,
	}
}

// NewBus wires every command and event to its handlers. This is the one
// place the registries are defined, so the command table stays total.
func NewBus(h *Handlers) *MessageBus {
	return NewMessageBus(
		map[string]CommandHandler{
			domain.CommandCreateBatch:         h.AddBatch,
			domain.CommandAllocate:            h.Allocate,
			domain.CommandChangeBatchQuantity: h.ChangeBatchQuantity,
		},
		map[string][]EventHandler{
			domain.EventBatchAllocated: {h.PublishEvent, h.AddAllocationToView},
			domain.EventDeallocated:    {h.RemoveAllocationFromView, h.Reallocate},
			domain.EventOutOfStock:     {h.PublishEvent, h.SendOutOfStockNotification},
		},
	)
}

// AddBatch records newly purchased stock, creating the product aggregate
// on first sight of the SKU.
func (h *Handlers) AddBatch(ctx context.Context, cmd domain.Command, uow UnitOfWork) (any, error) {
	c := cmd.(domain.CreateBatch)

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	product, ok, err := uow.Products().Get(ctx, c.Sku)
	if err != nil {
		return nil, err
	}
	if !ok {
		product = domain.NewProduct(c.Sku)
		if err := uow.Products().Add(ctx, product); err != nil {
			return nil, err
		}
	}
	product.Batches = append(product.Batches, domain.NewBatch(c.Ref, c.Sku, c.Qty, c.ETA))

	return nil, uow.Commit(ctx)
}

// Allocate places an order line against the product's stock and returns
// the reference of the batch that took it.
func (h *Handlers) Allocate(ctx context.Context, cmd domain.Command, uow UnitOfWork) (any, error) {
	c := cmd.(domain.Allocate)
	line := domain.OrderLine{OrderID: c.OrderID, Sku: c.Sku, Qty: c.Qty}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	product, ok, err := uow.Products().Get(ctx, c.Sku)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSku, c.Sku)
	}

	batchref, err := product.Allocate(line)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return batchref, nil
}

// ChangeBatchQuantity adjusts a batch's purchased quantity. Shrinking below
// the allocated total releases lines, which come back through the bus as
// Deallocated events and get re-allocated.
func (h *Handlers) ChangeBatchQuantity(ctx context.Context, cmd domain.Command, uow UnitOfWork) (any, error) {
	c := cmd.(domain.ChangeBatchQuantity)

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	product, ok, err := uow.Products().GetByBatchRef(ctx, c.Ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBatch, c.Ref)
	}

	if err := product.ChangeBatchQuantity(c.Ref, c.Qty); err != nil {
		return nil, err
	}
	return nil, uow.Commit(ctx)
}

// Reallocate retries the allocation of a line that was pushed off a batch.
func (h *Handlers) Reallocate(ctx context.Context, event domain.Event, uow UnitOfWork) error {
	e := event.(domain.Deallocated)
	_, err := h.Allocate(ctx, domain.Allocate{OrderID: e.OrderID, Sku: e.Sku, Qty: e.Qty}, uow)
	return err
}

// PublishEvent forwards the event to the outbound broker.
func (h *Handlers) PublishEvent(ctx context.Context, event domain.Event, _ UnitOfWork) error {
	return h.publisher.PublishEvent(ctx, event)
}

// AddAllocationToView records a fresh allocation in the read model.
func (h *Handlers) AddAllocationToView(ctx context.Context, event domain.Event, _ UnitOfWork) error {
	e := event.(domain.BatchAllocated)
	return h.views.AddAllocation(ctx, readmodel.Allocation{
		OrderID:  e.OrderID,
		Sku:      e.Sku,
		BatchRef: e.BatchRef,
		Qty:      e.Qty,
	})
}

// RemoveAllocationFromView drops a released allocation from the read model.
func (h *Handlers) RemoveAllocationFromView(ctx context.Context, event domain.Event, _ UnitOfWork) error {
	e := event.(domain.Deallocated)
	return h.views.RemoveAllocation(ctx, e.OrderID, e.Sku)
}

// SendOutOfStockNotification tells operations a SKU has run out.
func (h *Handlers) SendOutOfStockNotification(_ context.Context, event domain.Event, _ UnitOfWork) error {
	e := event.(domain.OutOfStock)
	return h.notifier.SendOutOfStockAlert(e.Sku)
}
