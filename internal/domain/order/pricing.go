package order

import (
	"bytes"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is a cart item priced against the current catalog.
type Line struct {
	CartItemID      uuid.UUID
	ProductID       uuid.UUID
	VariantID       uuid.NullUUID
	Quantity        int
	BasePrice       decimal.Decimal
	AdditionalPrice decimal.Decimal
}

// UnitPrice is the base price plus the variant surcharge.
func (l Line) UnitPrice() decimal.Decimal {
	return l.BasePrice.Add(l.AdditionalPrice)
}

// Total is the unit price times the quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SortLines orders lines by ascending cart item ID.
func SortLines(lines []Line) {
	slices.SortFunc(lines, func(a, b Line) int {
		return bytes.Compare(a.CartItemID[:], b.CartItemID[:])
	})
}

// Price sorts lines and returns the frozen order items and the order total.
// Item IDs are generated with newID.
func Price(lines []Line, newID func() uuid.UUID) ([]Item, decimal.Decimal) {
	SortLines(lines)

	items := make([]Item, len(lines))
	total := decimal.Zero
	for i, l := range lines {
		items[i] = Item{
			ID:        newID(),
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice(),
		}
		total = total.Add(l.Total())
	}
	return items, total.Round(2)
}
