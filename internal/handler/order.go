package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
)

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var (
		req              order.CreateRequest
		hasUser, hasAddr bool
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "user_id":
			hasUser = true
			req.UserID, err = decodeUUID(d, key)
		case "shipping_address_id":
			hasAddr = true
			req.ShippingAddressID, err = decodeUUID(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	switch {
	case err != nil:
	case !hasUser:
		err = badRequest("user_id is required")
	case !hasAddr:
		err = badRequest("shipping_address_id is required")
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.orders.Create(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "order_id")
	if err != nil {
		fail(w, r, err)
		return
	}
	s, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSummary(e, s) })
}

func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	list, err := h.orders.ListForUser(r.Context(), userID, page)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSummaries(w, list)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	list, err := h.orders.List(r.Context(), page)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSummaries(w, list)
}

func writeSummaries(w http.ResponseWriter, list []order.Summary) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodeSummary(e, &list[i])
			}
		})
	})
}

// parsePage reads skip and limit; absent values are left zero for the
// service to default.
func parsePage(r *http.Request) (order.Page, error) {
	var page order.Page
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"skip", &page.Skip},
		{"limit", &page.Limit},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return order.Page{}, badRequest(p.name + " must be a non-negative integer")
		}
		*p.dst = v
	}
	return page, nil
}
