package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/customer"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	lockCartSQL = `SELECT cart_id FROM carts WHERE user_id = $1 FOR UPDATE`

	getAddressSQL = `SELECT address_id, user_id, street, city, zip_code, country, address_type
		FROM addresses WHERE address_id = $1 AND user_id = $2`

	cartLinesSQL = `SELECT ci.cart_item_id, ci.product_id, ci.variant_id, ci.quantity,
			p.base_price, COALESCE(v.additional_price, 0)
		FROM cart_items ci
		JOIN products p ON p.product_id = ci.product_id
		LEFT JOIN product_variants v ON v.variant_id = ci.variant_id
		WHERE ci.cart_id = $1
		ORDER BY ci.cart_item_id`

	customerEmailSQL = `SELECT email FROM users WHERE user_id = $1`

	insertOrderSQL = `INSERT INTO orders (order_id, user_id, shipping_address_id, status, total_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	insertOrderItemSQL = `INSERT INTO order_items (order_item_id, order_id, product_id, variant_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	orderSummaryColumns = `o.order_id, u.email, o.total_amount, o.status, o.created_at
		FROM orders o JOIN users u ON u.user_id = o.user_id`

	getOrderSQL = `SELECT ` + orderSummaryColumns + ` WHERE o.order_id = $1`

	listUserOrdersSQL = `SELECT ` + orderSummaryColumns + ` WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.order_id DESC
		OFFSET $2 LIMIT $3`

	listOrdersSQL = `SELECT ` + orderSummaryColumns + `
		ORDER BY o.created_at DESC, o.order_id DESC
		OFFSET $1 LIMIT $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// WithinTx runs fn in one READ COMMITTED transaction.
func (r *OrderRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

// Get returns an order summary by ID.
func (r *OrderRepository) Get(ctx context.Context, orderID uuid.UUID) (*order.Summary, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", orderID)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSummary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %s", orderID)
	}
	return &s, nil
}

// ListForUser returns the user's orders, newest first.
func (r *OrderRepository) ListForUser(ctx context.Context, userID uuid.UUID, page order.Page) ([]order.Summary, error) {
	rows, err := r.pool.Query(ctx, listUserOrdersSQL, userID, page.Skip, page.Limit)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of user %s", userID)
	}
	out, err := pgx.CollectRows(rows, scanSummary)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of user %s", userID)
	}
	return out, nil
}

// List returns orders of all users, newest first.
func (r *OrderRepository) List(ctx context.Context, page order.Page) ([]order.Summary, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, page.Skip, page.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	out, err := pgx.CollectRows(rows, scanSummary)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return out, nil
}

func scanSummary(row pgx.CollectableRow) (order.Summary, error) {
	var s order.Summary
	err := row.Scan(&s.ID, &s.CustomerEmail, &s.Total, &s.Status, &s.CreatedAt)
	return s, err
}

// orderTx implements order.Tx on a pgx transaction.
type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) LockCart(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var cartID uuid.UUID
	if err := t.tx.QueryRow(ctx, lockCartSQL, userID).Scan(&cartID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, order.ErrCartNotFound
		}
		return uuid.Nil, errors.Wrap(err, "lock cart")
	}
	return cartID, nil
}

func (t *orderTx) Address(ctx context.Context, userID, addressID uuid.UUID) (*customer.Address, error) {
	var (
		a   customer.Address
		typ string
	)
	err := t.tx.QueryRow(ctx, getAddressSQL, addressID, userID).Scan(
		&a.ID, &a.UserID, &a.Street, &a.City, &a.ZipCode, &a.Country, &typ,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrAddressNotFound
		}
		return nil, errors.Wrap(err, "get address")
	}
	a.Type = customer.AddressType(typ)
	return &a, nil
}

func (t *orderTx) CartLines(ctx context.Context, cartID uuid.UUID) ([]order.Line, error) {
	rows, err := t.tx.Query(ctx, cartLinesSQL, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "query cart lines")
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Line, error) {
		var l order.Line
		err := row.Scan(&l.CartItemID, &l.ProductID, &l.VariantID, &l.Quantity, &l.BasePrice, &l.AdditionalPrice)
		return l, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "collect cart lines")
	}
	return lines, nil
}

func (t *orderTx) CustomerEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	var email string
	if err := t.tx.QueryRow(ctx, customerEmailSQL, userID).Scan(&email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", customer.ErrUserNotFound
		}
		return "", errors.Wrap(err, "get customer email")
	}
	return email, nil
}

func (t *orderTx) Insert(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, insertOrderSQL,
		o.ID, o.UserID, o.ShippingAddressID, o.Status, o.Total,
	).Scan(&o.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "insert order %s", o.ID)
	}

	b := &pgx.Batch{}
	for _, it := range o.Items {
		b.Queue(insertOrderItemSQL, it.ID, o.ID, it.ProductID, it.VariantID, it.Quantity, it.UnitPrice)
	}
	if err := t.tx.SendBatch(ctx, b).Close(); err != nil {
		return errors.Wrapf(err, "insert items of order %s", o.ID)
	}
	return nil
}

func (t *orderTx) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, clearCartSQL, cartID); err != nil {
		return errors.Wrapf(err, "clear cart %s", cartID)
	}
	return nil
}
