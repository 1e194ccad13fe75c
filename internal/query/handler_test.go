package query

import (
	"context"
	"errors"
	"testing"

	"github.com/example/allocation/internal/readmodel"
	"github.com/stretchr/testify/assert"
)

type stubViews struct {
	rows []readmodel.Allocation
	err  error
}

func (s *stubViews) AddAllocation(ctx context.Context, a readmodel.Allocation) error { return nil }

func (s *stubViews) RemoveAllocation(ctx context.Context, orderID, sku string) error { return nil }

func (s *stubViews) AllocationsForOrder(ctx context.Context, orderID string) ([]readmodel.Allocation, error) {
	return s.rows, s.err
}

func TestAllocations(t *testing.T) {
	rows := []readmodel.Allocation{
		{OrderID: "order-001", Sku: "RED-CHAIR", BatchRef: "batch-001", Qty: 5},
	}
	handler := NewHandler(&stubViews{rows: rows})

	assert.Equal(t, rows, handler.Allocations(context.Background(), "order-001"))
}

func TestAllocations_StoreFailureReturnsNil(t *testing.T) {
	handler := NewHandler(&stubViews{err: errors.New("connection refused")})

	assert.Nil(t, handler.Allocations(context.Background(), "order-001"))
}
