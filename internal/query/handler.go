package query

import (
	"context"
	"log"

	"github.com/example/allocation/internal/readmodel"
	"github.com/example/allocation/internal/service"
)

// Handler answers read-side questions from the allocations view, never
// from the write model.
type Handler struct {
	views service.ViewStore
}

func NewHandler(views service.ViewStore) *Handler {
	return &Handler{views: views}
}

// Allocations returns the allocations recorded for an order.
func (h *Handler) Allocations(ctx context.Context, orderID string) []readmodel.Allocation {
	allocations, err := h.views.AllocationsForOrder(ctx, orderID)
	if err != nil {
		log.Printf("[Query] error reading allocations for %s: %v", orderID, err)
		return nil
	}
	return allocations
}
