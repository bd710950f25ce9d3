package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/cart"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		fail(w, r, err)
		return
	}
	snap, err := h.carts.View(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSnapshot(e, snap) })
}

type addItemFields struct {
	userID, productID bool
	quantity          bool
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		userID uuid.UUID
		line   cart.Line
		seen   addItemFields
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "user_id":
			seen.userID = true
			userID, err = decodeUUID(d, key)
		case "product_id":
			seen.productID = true
			line.ProductID, err = decodeUUID(d, key)
		case "variant_id":
			line.VariantID, err = decodeNullUUID(d, key)
		case "quantity":
			seen.quantity = true
			line.Quantity, err = d.Int()
			if err != nil {
				err = badRequest("quantity must be an integer")
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil {
		err = seen.validate()
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	item, err := h.carts.AddItem(r.Context(), userID, line)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCartItem(e, item) })
}

func (s addItemFields) validate() error {
	switch {
	case !s.userID:
		return badRequest("user_id is required")
	case !s.productID:
		return badRequest("product_id is required")
	case !s.quantity:
		return badRequest("quantity is required")
	}
	return nil
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathUUID(r, "cart_item_id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.carts.RemoveItem(r.Context(), itemID); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
