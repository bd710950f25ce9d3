// Package handler exposes the cart and order services over HTTP.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const maxBodyBytes = 1 << 20

// CartService is implemented by *cart.Service.
type CartService interface {
	View(ctx context.Context, userID uuid.UUID) (*cart.Snapshot, error)
	AddItem(ctx context.Context, userID uuid.UUID, line cart.Line) (*cart.Item, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) error
}

// OrderService is implemented by *order.Service.
type OrderService interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*order.Summary, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page order.Page) ([]order.Summary, error)
	List(ctx context.Context, page order.Page) ([]order.Summary, error)
}

// Handler serves the storefront API.
type Handler struct {
	carts  CartService
	orders OrderService
}

// New creates a Handler.
func New(carts CartService, orders OrderService) *Handler {
	return &Handler{carts: carts, orders: orders}
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /cart/{user_id}", h.getCart)
	mux.HandleFunc("POST /cart/items", h.addCartItem)
	mux.HandleFunc("DELETE /cart/items/{cart_item_id}", h.removeCartItem)
	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders", h.listOrders)
	mux.HandleFunc("GET /orders/{order_id}", h.getOrder)
	mux.HandleFunc("GET /users/{user_id}/orders", h.listUserOrders)
}

func badRequest(msg string) error {
	return apperr.Invalid(msg)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, badRequest("invalid " + name)
	}
	return id, nil
}

// decodeBody reads the request body and walks its top-level object.
func decodeBody(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("request body too large")
		}
		return errors.Wrap(err, "read body")
	}
	d := jx.DecodeBytes(body)
	if err := d.Obj(field); err != nil {
		var invalid *apperr.Error
		if errors.As(err, &invalid) {
			return invalid
		}
		return badRequest("malformed JSON body")
	}
	// Only whitespace may follow the object.
	if err := d.Skip(); !errors.Is(err, io.EOF) {
		return badRequest("malformed JSON body")
	}
	return nil
}

func decodeUUID(d *jx.Decoder, name string) (uuid.UUID, error) {
	s, err := d.Str()
	if err != nil {
		return uuid.Nil, badRequest(name + " must be a string")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, badRequest("invalid " + name)
	}
	return id, nil
}

func decodeNullUUID(d *jx.Decoder, name string) (uuid.NullUUID, error) {
	if d.Next() == jx.Null {
		return uuid.NullUUID{}, d.Null()
	}
	id, err := decodeUUID(d, name)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

func writeJSON(w http.ResponseWriter, status int, enc func(e *jx.Encoder)) {
	var e jx.Encoder
	enc(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a {code, message} response.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusOf(kind)

	lg := zctx.From(r.Context())
	switch kind {
	case apperr.KindInternal:
		lg.Error("Request failed", zap.Error(err))
	case apperr.KindConflict:
		lg.Warn("Transaction conflict", zap.Error(err))
		w.Header().Set("Retry-After", "1")
	}
	httpmiddleware.WriteError(w, status, apperr.Message(err))
}
