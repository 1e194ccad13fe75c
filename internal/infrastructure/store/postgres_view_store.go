package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/allocation/internal/readmodel"
)

// PostgresViewStore keeps the allocations read model in the
// allocations_view table, denormalized for single-query reads.
type PostgresViewStore struct {
	db *sql.DB
}

func NewPostgresViewStore(db *sql.DB) *PostgresViewStore {
	return &PostgresViewStore{db: db}
}

func (v *PostgresViewStore) AddAllocation(ctx context.Context, allocation readmodel.Allocation) error {
	_, err := v.db.ExecContext(ctx,
		`INSERT INTO allocations_view (order_id, sku, batch_reference, qty)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (order_id, sku)
		 DO UPDATE SET batch_reference = EXCLUDED.batch_reference, qty = EXCLUDED.qty`,
		allocation.OrderID, allocation.Sku, allocation.BatchRef, allocation.Qty,
	)
	if err != nil {
		return fmt.Errorf("failed to record allocation view row: %w", err)
	}
	return nil
}

func (v *PostgresViewStore) RemoveAllocation(ctx context.Context, orderID, sku string) error {
	_, err := v.db.ExecContext(ctx,
		`DELETE FROM allocations_view WHERE order_id = $1 AND sku = $2`,
		orderID, sku,
	)
	if err != nil {
		return fmt.Errorf("failed to remove allocation view row: %w", err)
	}
	return nil
}

func (v *PostgresViewStore) AllocationsForOrder(ctx context.Context, orderID string) ([]readmodel.Allocation, error) {
	rows, err := v.db.QueryContext(ctx,
		`SELECT order_id, sku, batch_reference, qty
		 FROM allocations_view
		 WHERE order_id = $1
		 ORDER BY sku`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations for %s: %w", orderID, err)
	}
	defer rows.Close()

	var allocations []readmodel.Allocation
	for rows.Next() {
		var a readmodel.Allocation
		if err := rows.Scan(&a.OrderID, &a.Sku, &a.BatchRef, &a.Qty); err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}
