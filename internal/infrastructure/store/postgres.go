package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/allocation/internal/domain"
	"github.com/example/allocation/internal/service"
	_ "github.com/lib/pq"
)

// ErrConcurrentUpdate is returned by Commit when another transaction moved
// a product's version between our load and our write.
var ErrConcurrentUpdate = errors.New("concurrent update of product")

var errNoTransaction = errors.New("no transaction in progress")

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// EnsureSchema creates the allocation tables if they do not exist yet.
func EnsureSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			sku TEXT PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS batches (
			id SERIAL PRIMARY KEY,
			reference TEXT UNIQUE NOT NULL,
			sku TEXT NOT NULL REFERENCES products(sku),
			purchased_quantity INTEGER NOT NULL,
			eta TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS allocations (
			id SERIAL PRIMARY KEY,
			batch_reference TEXT NOT NULL REFERENCES batches(reference),
			order_id TEXT NOT NULL,
			sku TEXT NOT NULL,
			qty INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS allocations_view (
			order_id TEXT NOT NULL,
			sku TEXT NOT NULL,
			batch_reference TEXT NOT NULL,
			qty INTEGER NOT NULL,
			PRIMARY KEY (order_id, sku)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// PostgresUnitOfWork scopes repository work to one sql.Tx. Commit writes
// every loaded aggregate back and bumps its version with an optimistic
// check; Rollback discards the transaction and is a no-op once committed.
type PostgresUnitOfWork struct {
	db   *sql.DB
	tx   *sql.Tx
	repo *pgProductRepository
}

func NewPostgresUnitOfWork(db *sql.DB) *PostgresUnitOfWork {
	uow := &PostgresUnitOfWork{db: db}
	uow.repo = &pgProductRepository{uow: uow, loadedVersions: make(map[string]int)}
	return uow
}

func (u *PostgresUnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return errors.New("transaction already in progress")
	}
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	u.tx = tx
	return nil
}

func (u *PostgresUnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return errNoTransaction
	}
	if err := u.repo.flush(ctx); err != nil {
		u.tx.Rollback()
		u.tx = nil
		return err
	}
	err := u.tx.Commit()
	u.tx = nil
	return err
}

func (u *PostgresUnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback()
	u.tx = nil
	return err
}

func (u *PostgresUnitOfWork) Products() service.ProductRepository {
	return u.repo
}

// CollectNewEvents drains pending events from every aggregate loaded so
// far, in load order. Aggregates stay tracked across transaction scopes so
// later harvests in the same dispatch keep working.
func (u *PostgresUnitOfWork) CollectNewEvents() []domain.Event {
	var events []domain.Event
	for _, p := range u.repo.seen {
		events = append(events, p.CollectEvents()...)
	}
	return events
}

type pgProductRepository struct {
	uow            *PostgresUnitOfWork
	seen           []*domain.Product
	added          map[string]bool
	loadedVersions map[string]int
}

func (r *pgProductRepository) Add(ctx context.Context, product *domain.Product) error {
	if r.uow.tx == nil {
		return errNoTransaction
	}
	_, err := r.uow.tx.ExecContext(ctx,
		`INSERT INTO products (sku, version) VALUES ($1, $2)`,
		product.Sku, product.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to add product %s: %w", product.Sku, err)
	}
	if r.added == nil {
		r.added = make(map[string]bool)
	}
	r.added[product.Sku] = true
	r.track(product)
	return nil
}

func (r *pgProductRepository) Get(ctx context.Context, sku string) (*domain.Product, bool, error) {
	if p := r.tracked(sku); p != nil {
		return p, true, nil
	}
	if r.uow.tx == nil {
		return nil, false, errNoTransaction
	}

	var version int
	err := r.uow.tx.QueryRowContext(ctx,
		`SELECT version FROM products WHERE sku = $1`, sku,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load product %s: %w", sku, err)
	}

	product := domain.NewProduct(sku)
	product.Version = version
	if err := r.loadBatches(ctx, product); err != nil {
		return nil, false, err
	}

	r.loadedVersions[sku] = version
	r.track(product)
	return product, true, nil
}

func (r *pgProductRepository) GetByBatchRef(ctx context.Context, ref string) (*domain.Product, bool, error) {
	for _, p := range r.seen {
		for _, b := range p.Batches {
			if b.Reference == ref {
				return p, true, nil
			}
		}
	}
	if r.uow.tx == nil {
		return nil, false, errNoTransaction
	}

	var sku string
	err := r.uow.tx.QueryRowContext(ctx,
		`SELECT sku FROM batches WHERE reference = $1`, ref,
	).Scan(&sku)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find batch %s: %w", ref, err)
	}
	return r.Get(ctx, sku)
}

func (r *pgProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	if r.uow.tx == nil {
		return nil, errNoTransaction
	}
	rows, err := r.uow.tx.QueryContext(ctx, `SELECT sku FROM products ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var skus []string
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			return nil, err
		}
		skus = append(skus, sku)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	products := make([]*domain.Product, 0, len(skus))
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

func (r *pgProductRepository) loadBatches(ctx context.Context, product *domain.Product) error {
	rows, err := r.uow.tx.QueryContext(ctx,
		`SELECT reference, purchased_quantity, eta FROM batches WHERE sku = $1 ORDER BY id`,
		product.Sku,
	)
	if err != nil {
		return fmt.Errorf("failed to load batches for %s: %w", product.Sku, err)
	}
	defer rows.Close()

	byRef := make(map[string]*domain.Batch)
	for rows.Next() {
		var (
			ref string
			qty int
			eta sql.NullTime
		)
		if err := rows.Scan(&ref, &qty, &eta); err != nil {
			return err
		}
		batch := domain.NewBatch(ref, product.Sku, qty, eta.Time)
		product.Batches = append(product.Batches, batch)
		byRef[ref] = batch
	}
	if err := rows.Err(); err != nil {
		return err
	}

	lineRows, err := r.uow.tx.QueryContext(ctx,
		`SELECT batch_reference, order_id, qty FROM allocations WHERE sku = $1 ORDER BY id`,
		product.Sku,
	)
	if err != nil {
		return fmt.Errorf("failed to load allocations for %s: %w", product.Sku, err)
	}
	defer lineRows.Close()

	lines := make(map[string][]domain.OrderLine)
	for lineRows.Next() {
		var (
			ref     string
			orderID string
			qty     int
		)
		if err := lineRows.Scan(&ref, &orderID, &qty); err != nil {
			return err
		}
		lines[ref] = append(lines[ref], domain.OrderLine{OrderID: orderID, Sku: product.Sku, Qty: qty})
	}
	if err := lineRows.Err(); err != nil {
		return err
	}

	for ref, batch := range byRef {
		domain.Restore(batch, lines[ref])
	}
	return nil
}

// flush writes every tracked aggregate back inside the active transaction.
func (r *pgProductRepository) flush(ctx context.Context) error {
	tx := r.uow.tx
	for _, product := range r.seen {
		loaded, wasLoaded := r.loadedVersions[product.Sku]
		if !wasLoaded && !r.added[product.Sku] {
			continue
		}

		if r.added[product.Sku] {
			if _, err := tx.ExecContext(ctx,
				`UPDATE products SET version = $1 WHERE sku = $2`,
				product.Version, product.Sku,
			); err != nil {
				return fmt.Errorf("failed to save product %s: %w", product.Sku, err)
			}
		} else {
			res, err := tx.ExecContext(ctx,
				`UPDATE products SET version = $1 WHERE sku = $2 AND version = $3`,
				product.Version, product.Sku, loaded,
			)
			if err != nil {
				return fmt.Errorf("failed to save product %s: %w", product.Sku, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("%w: %s", ErrConcurrentUpdate, product.Sku)
			}
		}

		for _, batch := range product.Batches {
			var eta any
			if !batch.ETA.IsZero() {
				eta = batch.ETA
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO batches (reference, sku, purchased_quantity, eta)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (reference) DO UPDATE SET purchased_quantity = EXCLUDED.purchased_quantity`,
				batch.Reference, batch.Sku, batch.PurchasedQuantity, eta,
			); err != nil {
				return fmt.Errorf("failed to save batch %s: %w", batch.Reference, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM allocations WHERE sku = $1`, product.Sku,
		); err != nil {
			return fmt.Errorf("failed to clear allocations for %s: %w", product.Sku, err)
		}
		for _, batch := range product.Batches {
			for _, line := range batch.Allocations() {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO allocations (batch_reference, order_id, sku, qty)
					 VALUES ($1, $2, $3, $4)`,
					batch.Reference, line.OrderID, line.Sku, line.Qty,
				); err != nil {
					return fmt.Errorf("failed to save allocation for %s: %w", line.OrderID, err)
				}
			}
		}

		r.loadedVersions[product.Sku] = product.Version
		delete(r.added, product.Sku)
	}
	return nil
}

func (r *pgProductRepository) track(product *domain.Product) {
	for _, p := range r.seen {
		if p == product {
			return
		}
	}
	r.seen = append(r.seen, product)
}

func (r *pgProductRepository) tracked(sku string) *domain.Product {
	for _, p := range r.seen {
		if p.Sku == sku {
			return p
		}
	}
	return nil
}
