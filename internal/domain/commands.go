package domain

import "time"

const (
	CommandCreateBatch         = "CreateBatch"
	CommandAllocate            = "Allocate"
	CommandChangeBatchQuantity = "ChangeBatchQuantity"
)

// Command is a request to change state. Every command type maps to exactly
// one handler on the bus.
type Command interface {
	CommandName() string
}

type CreateBatch struct {
	Ref string    `json:"ref"`
	Sku string    `json:"sku"`
	Qty int       `json:"qty"`
	ETA time.Time `json:"eta"`
}

func (CreateBatch) CommandName() string { return CommandCreateBatch }

type Allocate struct {
	OrderID string `json:"order_id"`
	Sku     string `json:"sku"`
	Qty     int    `json:"qty"`
}

func (Allocate) CommandName() string { return CommandAllocate }

type ChangeBatchQuantity struct {
	Ref string `json:"ref"`
	Qty int    `json:"qty"`
}

func (ChangeBatchQuantity) CommandName() string { return CommandChangeBatchQuantity }
