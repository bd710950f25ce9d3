// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/storefront/internal/domain/order"
)

// TypeOrderCreated is the event type header of order-created messages.
const TypeOrderCreated = "order.created"

// Writer is the subset of *kafka.Writer used by Publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ order.Notifier = (*Publisher)(nil)

// Publisher sends order events keyed by order ID, so events of one order
// land in one partition.
type Publisher struct {
	w       Writer
	timeout time.Duration
}

// NewPublisher wraps an existing writer.
func NewPublisher(w Writer, timeout time.Duration) *Publisher {
	return &Publisher{w: w, timeout: timeout}
}

// NewKafkaPublisher creates a Publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, timeout time.Duration) *Publisher {
	return NewPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, timeout)
}

// OrderCreated publishes an order.created event.
func (p *Publisher) OrderCreated(ctx context.Context, o *order.Order) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := kafka.Message{
		Key:   []byte(o.ID.String()),
		Value: EncodeOrderCreated(o),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeOrderCreated)},
		},
		Time: o.CreatedAt,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish %s %s", TypeOrderCreated, o.ID)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

// BrokerCheck reports whether at least one broker accepts connections.
func BrokerCheck(brokers []string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("no kafka brokers configured")
		}
		var lastErr error
		for _, addr := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", addr)
			if err == nil {
				return conn.Close()
			}
			lastErr = err
		}
		return errors.Wrap(lastErr, "dial kafka")
	}
}

// EncodeOrderCreated renders the event payload.
func EncodeOrderCreated(o *order.Order) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(TypeOrderCreated) })
		e.Field("order_id", func(e *jx.Encoder) { e.Str(o.ID.String()) })
		e.Field("user_id", func(e *jx.Encoder) { e.Str(o.UserID.String()) })
		e.Field("customer_email", func(e *jx.Encoder) { e.Str(o.CustomerEmail) })
		e.Field("total_amount", func(e *jx.Encoder) { e.Num(jx.Num(o.Total.StringFixed(2))) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339Nano)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID.String()) })
						e.Field("variant_id", func(e *jx.Encoder) {
							if it.VariantID.Valid {
								e.Str(it.VariantID.UUID.String())
							} else {
								e.Null()
							}
						})
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("unit_price", func(e *jx.Encoder) { e.Num(jx.Num(it.UnitPrice.StringFixed(2))) })
					})
				}
			})
		})
	})
	return e.Bytes()
}
