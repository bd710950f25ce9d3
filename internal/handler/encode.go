package handler

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
)

// encodeMoney renders a decimal as a JSON number with two decimals.
func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodeNullUUID(e *jx.Encoder, id uuid.NullUUID) {
	if !id.Valid {
		e.Null()
		return
	}
	e.Str(id.UUID.String())
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeCartItem(e *jx.Encoder, it *cart.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("cart_item_id", func(e *jx.Encoder) { e.Str(it.ID.String()) })
		e.Field("cart_id", func(e *jx.Encoder) { e.Str(it.CartID.String()) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID.String()) })
		e.Field("variant_id", func(e *jx.Encoder) { encodeNullUUID(e, it.VariantID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("product_name", func(e *jx.Encoder) { e.Str(it.ProductName) })
		e.Field("base_price", func(e *jx.Encoder) { encodeMoney(e, it.BasePrice) })
	})
}

func encodeSnapshot(e *jx.Encoder, s *cart.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("cart_id", func(e *jx.Encoder) { e.Str(s.ID.String()) })
		e.Field("user_id", func(e *jx.Encoder) { e.Str(s.UserID.String()) })
		e.Field("items", func(e *jx.Encoder) {
			e.ArrStart()
			for i := range s.Items {
				encodeCartItem(e, &s.Items[i])
			}
			e.ArrEnd()
		})
		e.Field("total_quantity", func(e *jx.Encoder) { e.Int(s.TotalQuantity) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("order_id", func(e *jx.Encoder) { e.Str(o.ID.String()) })
		e.Field("user_id", func(e *jx.Encoder) { e.Str(o.UserID.String()) })
		e.Field("shipping_address_id", func(e *jx.Encoder) { e.Str(o.ShippingAddressID.String()) })
		e.Field("customer_email", func(e *jx.Encoder) { e.Str(o.CustomerEmail) })
		e.Field("order_status", func(e *jx.Encoder) { e.Str(o.Status) })
		e.Field("total_amount", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("items", func(e *jx.Encoder) {
			e.ArrStart()
			for _, it := range o.Items {
				e.Obj(func(e *jx.Encoder) {
					e.Field("order_item_id", func(e *jx.Encoder) { e.Str(it.ID.String()) })
					e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID.String()) })
					e.Field("variant_id", func(e *jx.Encoder) { encodeNullUUID(e, it.VariantID) })
					e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					e.Field("unit_price", func(e *jx.Encoder) { encodeMoney(e, it.UnitPrice) })
				})
			}
			e.ArrEnd()
		})
	})
}

func encodeSummary(e *jx.Encoder, s *order.Summary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("order_id", func(e *jx.Encoder) { e.Str(s.ID.String()) })
		e.Field("customer_email", func(e *jx.Encoder) { e.Str(s.CustomerEmail) })
		e.Field("order_status", func(e *jx.Encoder) { e.Str(s.Status) })
		e.Field("total_amount", func(e *jx.Encoder) { encodeMoney(e, s.Total) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, s.CreatedAt) })
	})
}
