package cart

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

var (
	// ErrItemNotFound is returned when a cart item does not exist.
	ErrItemNotFound = apperr.NotFound("Cart item not found")
	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = apperr.Invalid("Quantity must be greater than 0")
	// ErrQuantityTooLarge is returned when an item would exceed MaxQuantity.
	ErrQuantityTooLarge = apperr.Invalid("Quantity too large")
)

// MaxQuantity is the largest quantity a single cart item can hold.
const MaxQuantity = math.MaxInt32

// Cart is the single shopping cart of a user.
type Cart struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

// Item is a cart line joined with the current product name and base price.
type Item struct {
	ID          uuid.UUID
	CartID      uuid.UUID
	ProductID   uuid.UUID
	VariantID   uuid.NullUUID
	Quantity    int
	ProductName string
	BasePrice   decimal.Decimal
	UpdatedAt   time.Time
}

// Line identifies what to put into a cart and how many.
type Line struct {
	ProductID uuid.UUID
	VariantID uuid.NullUUID
	Quantity  int
}

// Snapshot is the read view of a cart.
type Snapshot struct {
	Cart
	Items         []Item
	TotalQuantity int
}

// Store persists carts and their items.
//
// Implementations must make UpsertItem atomic: two concurrent calls with the
// same (user, product, variant) must produce a single item whose quantity is
// the sum of both.
type Store interface {
	// GetOrCreate returns the user's cart, creating it when missing.
	// Returns customer.ErrUserNotFound for unknown users.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*Cart, error)
	// UpsertItem adds line to the user's cart, creating the cart if needed.
	UpsertItem(ctx context.Context, userID uuid.UUID, line Line) (*Item, error)
	// RemoveItem deletes a single item or returns ErrItemNotFound.
	RemoveItem(ctx context.Context, itemID uuid.UUID) error
	// Items lists the cart's items ordered by item ID.
	Items(ctx context.Context, cartID uuid.UUID) ([]Item, error)
}
