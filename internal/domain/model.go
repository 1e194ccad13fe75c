package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrBatchNotFound = errors.New("batch not found")

// OrderLine is a value object. Two lines with the same fields are the same
// line, so it doubles as its own identity in allocation sets.
type OrderLine struct {
	OrderID string `json:"order_id"`
	Sku     string `json:"sku"`
	Qty     int    `json:"qty"`
}

// AllocationError is returned when an order line cannot be allocated,
// either by a single batch or by the product as a whole.
type AllocationError struct {
	OrderID string
	Sku     string
	Qty     int
	Reason  string
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("cannot allocate %d units of %s for order %s: %s",
		e.Qty, e.Sku, e.OrderID, e.Reason)
}

// Batch is an entity identified by its reference. A zero ETA means the
// stock is already in the warehouse.
type Batch struct {
	Reference         string    `json:"reference"`
	Sku               string    `json:"sku"`
	PurchasedQuantity int       `json:"purchased_quantity"`
	ETA               time.Time `json:"eta"`

	// allocations keeps insertion order so a quantity reduction can
	// release the most recently allocated lines first.
	allocations []OrderLine
	events      []Event
}

func NewBatch(ref, sku string, qty int, eta time.Time) *Batch {
	return &Batch{
		Reference:         ref,
		Sku:               sku,
		PurchasedQuantity: qty,
		ETA:               eta,
	}
}

// Restore rebuilds a batch's allocation state from storage without
// emitting events.
func Restore(b *Batch, lines []OrderLine) {
	b.allocations = append(b.allocations[:0], lines...)
}

func (b *Batch) AllocatedQuantity() int {
	total := 0
	for _, line := range b.allocations {
		total += line.Qty
	}
	return total
}

func (b *Batch) AvailableQuantity() int {
	return b.PurchasedQuantity - b.AllocatedQuantity()
}

// Allocations returns the allocated lines in allocation order.
func (b *Batch) Allocations() []OrderLine {
	out := make([]OrderLine, len(b.allocations))
	copy(out, b.allocations)
	return out
}

func (b *Batch) CanAllocate(line OrderLine) bool {
	return b.Sku == line.Sku && b.AvailableQuantity() >= line.Qty
}

func (b *Batch) contains(line OrderLine) bool {
	for _, l := range b.allocations {
		if l == line {
			return true
		}
	}
	return false
}

// Allocate adds the line to this batch and records a BatchAllocated event,
// plus an OutOfStock event when the allocation drains the batch completely.
// Allocating a line that is already held is a no-op, even if the batch has
// no room left for a fresh copy of it.
func (b *Batch) Allocate(line OrderLine) error {
	if b.contains(line) {
		return nil
	}
	if !b.CanAllocate(line) {
		return &AllocationError{
			OrderID: line.OrderID,
			Sku:     line.Sku,
			Qty:     line.Qty,
			Reason:  fmt.Sprintf("batch %s cannot hold the line", b.Reference),
		}
	}

	b.allocations = append(b.allocations, line)
	b.events = append(b.events, BatchAllocated{
		OrderID:  line.OrderID,
		Sku:      line.Sku,
		Qty:      line.Qty,
		BatchRef: b.Reference,
	})
	if b.AvailableQuantity() == 0 {
		b.events = append(b.events, OutOfStock{Sku: b.Sku})
	}
	return nil
}

// Deallocate removes the line if it is held. Plain bookkeeping: no event.
func (b *Batch) Deallocate(line OrderLine) {
	for i, l := range b.allocations {
		if l == line {
			b.allocations = append(b.allocations[:i], b.allocations[i+1:]...)
			return
		}
	}
}

// deallocateLast releases the most recently allocated line.
func (b *Batch) deallocateLast() OrderLine {
	line := b.allocations[len(b.allocations)-1]
	b.allocations = b.allocations[:len(b.allocations)-1]
	return line
}

// Product is the aggregate root for one SKU. All allocation decisions go
// through it; batches are never mutated from outside the aggregate.
type Product struct {
	Sku     string   `json:"sku"`
	Batches []*Batch `json:"batches"`

	// Version is the optimistic concurrency token checked by the storage
	// layer on commit.
	Version int `json:"version"`
}

func NewProduct(sku string, batches ...*Batch) *Product {
	return &Product{Sku: sku, Batches: batches}
}

// Allocate places the line on the batch with the earliest ETA that can
// hold it. Warehouse stock (zero ETA) always beats shipments in transit.
func (p *Product) Allocate(line OrderLine) (string, error) {
	if line.Sku != p.Sku {
		return "", &AllocationError{
			OrderID: line.OrderID,
			Sku:     line.Sku,
			Qty:     line.Qty,
			Reason:  fmt.Sprintf("sku does not match product %s", p.Sku),
		}
	}

	// A line some batch already holds stays where it is.
	for _, b := range p.Batches {
		if b.contains(line) {
			return b.Reference, nil
		}
	}

	candidates := make([]*Batch, len(p.Batches))
	copy(candidates, p.Batches)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ETA.Before(candidates[j].ETA)
	})

	for _, b := range candidates {
		if b.CanAllocate(line) {
			if err := b.Allocate(line); err != nil {
				return "", err
			}
			p.Version++
			return b.Reference, nil
		}
	}

	return "", &AllocationError{
		OrderID: line.OrderID,
		Sku:     line.Sku,
		Qty:     line.Qty,
		Reason:  "out of stock",
	}
}

// ChangeBatchQuantity updates a batch's purchased quantity. If the batch
// ends up over-allocated, the most recently allocated lines are released
// one by one until the batch is consistent again; each released line is
// recorded as a Deallocated event so it can be re-allocated elsewhere.
func (p *Product) ChangeBatchQuantity(ref string, qty int) error {
	var batch *Batch
	for _, b := range p.Batches {
		if b.Reference == ref {
			batch = b
			break
		}
	}
	if batch == nil {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, ref)
	}

	batch.PurchasedQuantity = qty
	for batch.AvailableQuantity() < 0 && len(batch.allocations) > 0 {
		line := batch.deallocateLast()
		batch.events = append(batch.events, Deallocated{
			OrderID: line.OrderID,
			Sku:     line.Sku,
			Qty:     line.Qty,
		})
	}
	p.Version++
	return nil
}

// CollectEvents drains the pending events of every batch, in batch order
// then append order.
func (p *Product) CollectEvents() []Event {
	var events []Event
	for _, b := range p.Batches {
		events = append(events, b.events...)
		b.events = nil
	}
	return events
}
