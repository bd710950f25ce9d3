// Package catalog resolves products and their variants to current prices.
package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

var (
	// ErrProductNotFound is returned when a product does not exist or is inactive.
	ErrProductNotFound = apperr.NotFound("Product not found")
	// ErrVariantNotFound is returned when a variant does not exist or belongs
	// to another product.
	ErrVariantNotFound = apperr.NotFound("Variant not found for product")
)

// Product is a catalog item available for purchase.
type Product struct {
	ID         uuid.UUID
	Name       string
	BasePrice  decimal.Decimal
	StockLevel int
	CategoryID uuid.NullUUID
	Active     bool
}

// Variant is a purchasable option of a product that adjusts its price.
type Variant struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	Name            string
	Value           string
	AdditionalPrice decimal.Decimal
}

// Repository defines read operations for the catalog.
type Repository interface {
	// Product returns an active product by ID or ErrProductNotFound.
	Product(ctx context.Context, id uuid.UUID) (*Product, error)
	// Variant returns the variant of productID or ErrVariantNotFound.
	Variant(ctx context.Context, productID, variantID uuid.UUID) (*Variant, error)
}
