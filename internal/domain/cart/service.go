// Package cart implements the per-user shopping cart.
package cart

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

	"github.com/xenking/storefront/internal/domain/catalog"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/cart"

// Option configures a Service.
type Option func(*options)

type options struct {
	tp trace.TracerProvider
	mp metric.MeterProvider
}

// WithTracerProvider sets the tracer provider used for spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// WithMeterProvider sets the meter provider used for counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.mp = mp }
}

// Service encapsulates cart business logic.
type Service struct {
	store    Store
	products catalog.Repository

	tracer     trace.Tracer
	itemsAdded metric.Int64Counter
}

// NewService creates a cart Service.
func NewService(store Store, products catalog.Repository, opts ...Option) (*Service, error) {
	o := options{
		tp: tracenoop.NewTracerProvider(),
		mp: metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	itemsAdded, err := o.mp.Meter(instrumentationName).Int64Counter("storefront.cart.items_added",
		metric.WithDescription("Units added to carts"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "items_added counter")
	}

	return &Service{
		store:      store,
		products:   products,
		tracer:     o.tp.Tracer(instrumentationName),
		itemsAdded: itemsAdded,
	}, nil
}

// GetOrCreate returns the user's cart, creating an empty one on first use.
func (s *Service) GetOrCreate(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	ctx, span := s.tracer.Start(ctx, "cart.GetOrCreate")
	defer span.End()

	c, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "get or create cart"))
	}
	return c, nil
}

// AddItem validates the product and variant, then adds quantity units to the
// user's cart. An existing item with the same product and variant has its
// quantity increased instead of a second item being created.
func (s *Service) AddItem(ctx context.Context, userID uuid.UUID, line Line) (*Item, error) {
	ctx, span := s.tracer.Start(ctx, "cart.AddItem", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
		attribute.String("product_id", line.ProductID.String()),
		attribute.Int("quantity", line.Quantity),
	))
	defer span.End()

	switch {
	case line.Quantity <= 0:
		return nil, ErrInvalidQuantity
	case line.Quantity > MaxQuantity:
		return nil, ErrQuantityTooLarge
	}

	if _, err := s.products.Product(ctx, line.ProductID); err != nil {
		return nil, fail(span, errors.Wrap(err, "lookup product"))
	}
	if line.VariantID.Valid {
		if _, err := s.products.Variant(ctx, line.ProductID, line.VariantID.UUID); err != nil {
			return nil, fail(span, errors.Wrap(err, "lookup variant"))
		}
	}

	item, err := s.store.UpsertItem(ctx, userID, line)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "upsert item"))
	}
	s.itemsAdded.Add(ctx, int64(line.Quantity))

	zctx.From(ctx).Info("Cart item added",
		zap.Stringer("user_id", userID),
		zap.Stringer("cart_item_id", item.ID),
		zap.Int("quantity", item.Quantity),
	)
	return item, nil
}

// RemoveItem deletes a single cart item.
func (s *Service) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "cart.RemoveItem")
	defer span.End()

	if err := s.store.RemoveItem(ctx, itemID); err != nil {
		return fail(span, errors.Wrapf(err, "remove item %s", itemID))
	}
	return nil
}

// View returns the user's cart with its items, creating the cart lazily.
func (s *Service) View(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "cart.View")
	defer span.End()

	c, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "get or create cart"))
	}
	items, err := s.store.Items(ctx, c.ID)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "list items"))
	}

	snap := &Snapshot{Cart: *c, Items: items}
	for _, it := range items {
		snap.TotalQuantity += it.Quantity
	}
	return snap, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
