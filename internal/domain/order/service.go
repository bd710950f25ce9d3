// Package order turns a user's cart into an immutable order.
package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/customer"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/order"

// Default pagination for ListForUser.
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// CreateRequest holds the input for placing an order from a cart.
type CreateRequest struct {
	UserID            uuid.UUID
	ShippingAddressID uuid.UUID
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the receiver of order-created notifications.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithTracerProvider sets the tracer provider used for spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider used for counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// WithPageLimits overrides the default and maximum list page sizes.
func WithPageLimits(defaultLimit, maxLimit int) Option {
	return func(s *Service) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
	}
}

// Service encapsulates order placement and lookup.
type Service struct {
	orders   Repository
	users    customer.Directory
	notifier Notifier
	newID    func() uuid.UUID

	defaultLimit int
	maxLimit     int

	tracer  trace.Tracer
	meter   metric.Meter
	created metric.Int64Counter
	failed  metric.Int64Counter
}

// NewService creates an order Service.
func NewService(orders Repository, users customer.Directory, opts ...Option) (*Service, error) {
	s := &Service{
		orders:       orders,
		users:        users,
		newID:        func() uuid.UUID { return uuid.Must(uuid.NewV7()) },
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
		tracer:       tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:        metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.created, err = s.meter.Int64Counter("storefront.orders.created",
		metric.WithDescription("Orders committed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.created counter")
	}
	if s.failed, err = s.meter.Int64Counter("storefront.orders.failed",
		metric.WithDescription("Order attempts that did not commit"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.failed counter")
	}
	return s, nil
}

// Create converts the user's cart into an order in one transaction: the cart
// row is locked, the shipping address is checked, lines are priced at current
// catalog prices, the order and its items are inserted and the cart is
// emptied. Nothing is persisted if any step fails.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Create", trace.WithAttributes(
		attribute.String("user_id", req.UserID.String()),
	))
	defer span.End()

	var o *Order
	err := s.orders.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		cartID, err := tx.LockCart(ctx, req.UserID)
		if err != nil {
			return errors.Wrap(err, "lock cart")
		}

		addr, err := tx.Address(ctx, req.UserID, req.ShippingAddressID)
		if err != nil {
			return errors.Wrap(err, "shipping address")
		}
		if !addr.Type.Ships() {
			return ErrAddressNotFound
		}

		lines, err := tx.CartLines(ctx, cartID)
		if err != nil {
			return errors.Wrap(err, "cart lines")
		}
		if len(lines) == 0 {
			return ErrCartEmpty
		}

		email, err := tx.CustomerEmail(ctx, req.UserID)
		if err != nil {
			return errors.Wrap(err, "customer email")
		}

		items, total := Price(lines, s.newID)
		o = &Order{
			ID:                s.newID(),
			UserID:            req.UserID,
			ShippingAddressID: req.ShippingAddressID,
			Status:            StatusNew,
			Total:             total,
			CustomerEmail:     email,
			Items:             items,
		}
		if err := tx.Insert(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		if err := tx.ClearCart(ctx, cartID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	})
	if err != nil {
		s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", apperr.KindOf(err).String())))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	s.created.Add(ctx, 1)

	lg := zctx.From(ctx)
	lg.Info("Order created",
		zap.Stringer("order_id", o.ID),
		zap.Stringer("user_id", o.UserID),
		zap.Stringer("total", o.Total),
		zap.Int("items", len(o.Items)),
	)

	if s.notifier != nil {
		// The order is committed; a lost notification must not fail the request.
		if err := s.notifier.OrderCreated(ctx, o); err != nil {
			lg.Error("Notify order created", zap.Stringer("order_id", o.ID), zap.Error(err))
		}
	}
	return o, nil
}

// Get returns a single order summary.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*Summary, error) {
	ctx, span := s.tracer.Start(ctx, "order.Get")
	defer span.End()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", orderID)
	}
	return o, nil
}

// ListForUser returns the user's orders, newest first. Unknown users yield
// customer.ErrUserNotFound rather than an empty list.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, page Page) ([]Summary, error) {
	ctx, span := s.tracer.Start(ctx, "order.ListForUser")
	defer span.End()

	if _, err := s.users.User(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "lookup user")
	}

	page = s.normalize(page)
	orders, err := s.orders.ListForUser(ctx, userID, page)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// List returns orders of all users, newest first.
func (s *Service) List(ctx context.Context, page Page) ([]Summary, error) {
	ctx, span := s.tracer.Start(ctx, "order.List")
	defer span.End()

	orders, err := s.orders.List(ctx, s.normalize(page))
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

func (s *Service) normalize(p Page) Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = s.defaultLimit
	}
	if p.Limit > s.maxLimit {
		p.Limit = s.maxLimit
	}
	return p
}
