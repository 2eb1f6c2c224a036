package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/farmstore/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order with its items and takes the ordered quantities
// out of stock, all in one transaction. A product that no longer has enough
// stock rolls everything back with domain.ErrInsufficientStock.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (total_amount, status, source, customer_name, customer_email,
			fulfillment_method, payment_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, order.Total, order.Status, order.Source, order.CustomerName, order.CustomerEmail,
		order.FulfillmentMethod, order.PaymentReference,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, unit, quantity, price_each)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, order.ID, item.ProductID, item.Name, item.Unit, item.Quantity, item.PriceEach)
		if err != nil {
			return err
		}
	}

	if err := decrementStock(ctx, tx, order.Items); err != nil {
		return err
	}

	return tx.Commit()
}

// decrementStock updates products in ascending id order so concurrent
// checkouts touching the same products lock rows in the same sequence.
func decrementStock(ctx context.Context, tx *sql.Tx, items []domain.OrderItem) error {
	totals := make(map[int64]decimal.Decimal, len(items))
	for _, item := range items {
		totals[item.ProductID] = totals[item.ProductID].Add(item.Quantity)
	}

	ids := make([]int64, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = NOW()
			WHERE id = $1 AND stock >= $2
		`, id, totals[id])
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if rowsAffected == 0 {
			return fmt.Errorf("%w for product %d", domain.ErrInsufficientStock, id)
		}
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
		}
		return nil, err
	}

	byOrder, err := r.loadItems(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	order.Items = byOrder[id]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}

	return &order, nil
}

// ListFilter bounds created_at; both ends are inclusive and optional.
type ListFilter struct {
	Start *time.Time
	End   *time.Time
}

func (r *OrderRepository) List(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Start != nil {
		args = append(args, *filter.Start)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.End != nil {
		args = append(args, *filter.End)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	var orderIDs []int64
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return orders, nil
	}

	byOrder, err := r.loadItems(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []domain.OrderItem{}
		}
	}

	return orders, nil
}

// UpdateStatus stores any status string; transitions are not checked.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}

	return r.GetByID(ctx, id)
}

const orderColumns = `id, total_amount, status, source, customer_name, customer_email,
	fulfillment_method, payment_reference, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.Total, &o.Status, &o.Source, &o.CustomerName, &o.CustomerEmail,
		&o.FulfillmentMethod, &o.PaymentReference, &o.CreatedAt)
	return o, err
}

// loadItems fetches the items of several orders in one query.
func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, name, unit, quantity, price_each
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byOrder := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var orderID int64
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Unit, &item.Quantity, &item.PriceEach); err != nil {
			return nil, err
		}
		item.Subtotal = item.PriceEach.Mul(item.Quantity)
		byOrder[orderID] = append(byOrder[orderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return byOrder, nil
}
