package domain

const (
	EventBatchAllocated = "BatchAllocated"
	EventOutOfStock     = "OutOfStock"
	EventDeallocated    = "Deallocated"
)

// Event records a fact that already happened. Events may have any number
// of handlers, and their handlers may produce further events.
type Event interface {
	EventName() string
}

type BatchAllocated struct {
	OrderID  string `json:"order_id"`
	Sku      string `json:"sku"`
	Qty      int    `json:"qty"`
	BatchRef string `json:"batch_ref"`
}

func (BatchAllocated) EventName() string { return EventBatchAllocated }

type OutOfStock struct {
	Sku string `json:"sku"`
}

func (OutOfStock) EventName() string { return EventOutOfStock }

// Deallocated is recorded when a batch shrink forces a line off the batch.
// Its handler tries to re-allocate the line to the remaining stock.
type Deallocated struct {
	OrderID string `json:"order_id"`
	Sku     string `json:"sku"`
	Qty     int    `json:"qty"`
}

func (Deallocated) EventName() string { return EventDeallocated }
