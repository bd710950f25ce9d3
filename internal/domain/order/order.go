package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/customer"
)

// StatusNew is the status of every order created by Service.Create.
const StatusNew = "new"

var (
	// ErrCartNotFound is returned when the user never had a cart.
	ErrCartNotFound = apperr.Invalid("Cart not found for user")
	// ErrAddressNotFound is returned when the shipping address does not
	// belong to the user or cannot be shipped to.
	ErrAddressNotFound = apperr.Invalid("Shipping address not found for user")
	// ErrCartEmpty is returned when the cart has no items.
	ErrCartEmpty = apperr.Invalid("Cart is empty")
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = apperr.NotFound("Order not found")
)

// Order is a placed order with its frozen line items.
type Order struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	ShippingAddressID uuid.UUID
	Status            string
	Total             decimal.Decimal
	CreatedAt         time.Time
	CustomerEmail     string
	Items             []Item
}

// Item is an order line with the unit price captured at order time.
type Item struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	VariantID uuid.NullUUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// Summary is the list view of an order.
type Summary struct {
	ID            uuid.UUID
	CustomerEmail string
	Total         decimal.Decimal
	Status        string
	CreatedAt     time.Time
}

// Page bounds a list query.
type Page struct {
	Skip  int
	Limit int
}

// Tx is the set of operations available inside an order transaction. All
// reads observe the state locked by LockCart.
type Tx interface {
	// LockCart locks the user's cart row and returns its ID, or
	// ErrCartNotFound when the user has no cart.
	LockCart(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	// Address returns the user's address, or ErrAddressNotFound when it does
	// not exist or belongs to someone else.
	Address(ctx context.Context, userID, addressID uuid.UUID) (*customer.Address, error)
	// CartLines returns the priced cart lines ordered by cart item ID.
	CartLines(ctx context.Context, cartID uuid.UUID) ([]Line, error)
	// CustomerEmail returns the email of the user.
	CustomerEmail(ctx context.Context, userID uuid.UUID) (string, error)
	// Insert persists the order and its items. It sets o.CreatedAt.
	Insert(ctx context.Context, o *Order) error
	// ClearCart removes every item of the cart.
	ClearCart(ctx context.Context, cartID uuid.UUID) error
}

// Repository defines persistence operations for orders.
type Repository interface {
	// WithinTx runs fn in a single transaction, committing when fn returns
	// nil and rolling back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Get returns the order summary or ErrNotFound.
	Get(ctx context.Context, orderID uuid.UUID) (*Summary, error)
	// ListForUser returns the user's orders, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID, page Page) ([]Summary, error)
	// List returns orders of all users, newest first.
	List(ctx context.Context, page Page) ([]Summary, error)
}

// Notifier is told about orders after they are committed.
type Notifier interface {
	OrderCreated(ctx context.Context, o *Order) error
}
