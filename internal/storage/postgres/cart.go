package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/customer"
)

const (
	selectCartSQL = `SELECT cart_id, user_id FROM carts WHERE user_id = $1`

	selectCartSharedSQL = selectCartSQL + ` FOR SHARE`

	insertCartSQL = `INSERT INTO carts (cart_id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`

	// The conflict target must match cart_items_identity_idx.
	upsertCartItemSQL = `WITH upserted AS (
			INSERT INTO cart_items (cart_item_id, cart_id, product_id, variant_id, quantity)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (cart_id, product_id, COALESCE(variant_id, '00000000-0000-0000-0000-000000000000'::uuid))
			DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
			RETURNING cart_item_id, cart_id, product_id, variant_id, quantity, updated_at
		)
		SELECT u.cart_item_id, u.cart_id, u.product_id, u.variant_id, u.quantity, p.name, p.base_price, u.updated_at
		FROM upserted u JOIN products p ON p.product_id = u.product_id`

	lockItemCartSQL = `SELECT c.cart_id FROM cart_items ci
		JOIN carts c ON c.cart_id = ci.cart_id
		WHERE ci.cart_item_id = $1
		FOR SHARE OF c`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE cart_item_id = $1`

	listCartItemsSQL = `SELECT ci.cart_item_id, ci.cart_id, ci.product_id, ci.variant_id, ci.quantity, p.name, p.base_price, ci.updated_at
		FROM cart_items ci JOIN products p ON p.product_id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.cart_item_id`
)

// FK constraint names generated by PostgreSQL for the schema.
const (
	fkCartsUser        = "carts_user_id_fkey"
	fkCartItemsProduct = "cart_items_product_id_fkey"
	fkCartItemsVariant = "cart_items_variant_id_fkey"
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store backed by PostgreSQL.
//
// Every mutation holds a share lock on the cart row, so it serializes with
// order creation, which locks the same row for update.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// GetOrCreate returns the user's cart, inserting it when missing.
func (s *CartStore) GetOrCreate(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	c, err := resolveCart(ctx, s.pool, userID, selectCartSQL)
	if err != nil {
		return nil, classify(err)
	}
	return c, nil
}

// UpsertItem adds the line to the user's cart in a single transaction.
func (s *CartStore) UpsertItem(ctx context.Context, userID uuid.UUID, line cart.Line) (*cart.Item, error) {
	var item cart.Item
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		c, err := resolveCart(ctx, tx, userID, selectCartSharedSQL)
		if err != nil {
			return err
		}

		id, err := uuid.NewV7()
		if err != nil {
			return errors.Wrap(err, "generate cart item id")
		}
		rows, err := tx.Query(ctx, upsertCartItemSQL, id, c.ID, line.ProductID, line.VariantID, line.Quantity)
		if err != nil {
			return errors.Wrap(err, "upsert cart item")
		}
		item, err = pgx.CollectExactlyOneRow(rows, scanCartItem)
		if err != nil {
			switch code, constraint := pgCode(err); {
			case code == codeNumericOutOfRange:
				return cart.ErrQuantityTooLarge
			case code == codeForeignKeyViolation && constraint == fkCartItemsVariant:
				return catalog.ErrVariantNotFound
			case code == codeForeignKeyViolation && constraint == fkCartItemsProduct:
				return catalog.ErrProductNotFound
			}
			return errors.Wrap(err, "upsert cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveItem deletes a single cart item.
func (s *CartStore) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		var cartID uuid.UUID
		if err := tx.QueryRow(ctx, lockItemCartSQL, itemID).Scan(&cartID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return cart.ErrItemNotFound
			}
			return errors.Wrap(err, "lock cart")
		}

		tag, err := tx.Exec(ctx, deleteCartItemSQL, itemID)
		if err != nil {
			return errors.Wrap(err, "delete cart item")
		}
		if tag.RowsAffected() == 0 {
			return cart.ErrItemNotFound
		}
		return nil
	})
}

// Items lists the cart's items ordered by item ID.
func (s *CartStore) Items(ctx context.Context, cartID uuid.UUID) ([]cart.Item, error) {
	rows, err := s.pool.Query(ctx, listCartItemsSQL, cartID)
	if err != nil {
		return nil, errors.Wrapf(err, "list items of cart %s", cartID)
	}
	items, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, errors.Wrapf(err, "list items of cart %s", cartID)
	}
	return items, nil
}

// resolveCart selects the user's cart with selectSQL and creates it if absent.
// A concurrent creator wins the insert; the second select then sees its row.
func resolveCart(ctx context.Context, q querier, userID uuid.UUID, selectSQL string) (*cart.Cart, error) {
	c, err := selectCart(ctx, q, userID, selectSQL)
	if err == nil || !errors.Is(err, pgx.ErrNoRows) {
		return c, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, "generate cart id")
	}
	if _, err := q.Exec(ctx, insertCartSQL, id, userID); err != nil {
		if code, constraint := pgCode(err); code == codeForeignKeyViolation && constraint == fkCartsUser {
			return nil, customer.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "insert cart")
	}

	c, err = selectCart(ctx, q, userID, selectSQL)
	if err != nil {
		return nil, errors.Wrap(err, "select created cart")
	}
	return c, nil
}

func selectCart(ctx context.Context, q querier, userID uuid.UUID, selectSQL string) (*cart.Cart, error) {
	var c cart.Cart
	if err := q.QueryRow(ctx, selectSQL, userID).Scan(&c.ID, &c.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "select cart")
	}
	return &c, nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(
		&it.ID, &it.CartID, &it.ProductID, &it.VariantID, &it.Quantity,
		&it.ProductName, &it.BasePrice, &it.UpdatedAt,
	)
	return it, err
}
