package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	getProductSQL = `SELECT product_id, name, base_price, stock_level, category_id, is_active
		FROM products WHERE product_id = $1 AND is_active`

	getVariantSQL = `SELECT variant_id, product_id, variant_name, variant_value, additional_price
		FROM product_variants WHERE variant_id = $1 AND product_id = $2`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// Product returns an active product by ID.
func (r *CatalogRepository) Product(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	return &p, nil
}

// Variant returns the variant only when it belongs to productID.
func (r *CatalogRepository) Variant(ctx context.Context, productID, variantID uuid.UUID) (*catalog.Variant, error) {
	rows, err := r.pool.Query(ctx, getVariantSQL, variantID, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "get variant %s", variantID)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanVariant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrVariantNotFound
		}
		return nil, errors.Wrapf(err, "get variant %s", variantID)
	}
	return &v, nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.BasePrice, &p.StockLevel, &p.CategoryID, &p.Active)
	return p, err
}

func scanVariant(row pgx.CollectableRow) (catalog.Variant, error) {
	var v catalog.Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.Value, &v.AdditionalPrice)
	return v, err
}
