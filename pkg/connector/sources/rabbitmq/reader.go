package rabbitmq

import (
	"context"
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

type reader struct {
	src     *Source
	subtask int

	conn       io.Closer
	ch         channel
	pending    []core.Split
	deliveries <-chan amqp.Delivery
}

func (r *reader) Open(context.Context) error {
	conn, ch, err := r.src.dial(r.src.url)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to rabbitmq")
	}
	if err := ch.Qos(r.src.opts.Prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to set prefetch")
	}
	if r.src.opts.Declare {
		if _, err := ch.QueueDeclare(r.src.opts.Queue, r.src.opts.Durable, r.src.opts.AutoDelete, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to declare queue").
				WithDetail("queue", r.src.opts.Queue)
		}
	}
	r.conn, r.ch = conn, ch
	return nil
}

func (r *reader) AddSplits(splits []core.Split) {
	r.pending = append(r.pending, splits...)
}

// HandleNoMoreSplits is a no-op; queues are unbounded
func (r *reader) HandleNoMoreSplits() {}

// PollNext drains up to prefetch_count buffered deliveries without blocking
func (r *reader) PollNext(ctx context.Context, out core.Collector) error {
	if r.deliveries == nil {
		if len(r.pending) == 0 {
			return nil
		}
		queue := r.pending[0].Payload.(string)
		tag := fmt.Sprintf("seaflow-%s-%d", r.src.jobName, r.subtask)
		deliveries, err := r.ch.Consume(queue, tag, false, false, false, false, nil)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to consume queue").WithDetail("queue", queue)
		}
		r.deliveries = deliveries
		r.pending = r.pending[1:]
	}

	for i := 0; i < r.src.opts.Prefetch; i++ {
		select {
		case d, ok := <-r.deliveries:
			if !ok {
				return errors.New(errors.ErrorTypeConnection, "rabbitmq delivery channel closed").
					WithDetail("queue", r.src.opts.Queue)
			}
			if err := r.handle(d, out); err != nil {
				return err
			}
		default:
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func (r *reader) handle(d amqp.Delivery, out core.Collector) error {
	row, err := r.decode(d)
	if err != nil {
		_ = d.Nack(false, r.src.opts.Requeue)
		return errors.Wrap(err, errors.ErrorTypeData, "invalid rabbitmq message").
			WithDetail("queue", r.src.opts.Queue).
			WithDetail("delivery_tag", d.DeliveryTag)
	}
	if err := out.Collect(row); err != nil {
		_ = d.Nack(false, true)
		return err
	}
	if err := d.Ack(false); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to ack delivery")
	}
	return nil
}

func (r *reader) decode(d amqp.Delivery) (core.Row, error) {
	data := map[string]interface{}{
		FieldBody:       string(d.Body),
		FieldRoutingKey: d.RoutingKey,
	}
	if !d.Timestamp.IsZero() {
		data[FieldTimestamp] = d.Timestamp
	}
	if r.src.opts.Format == "json" {
		data = nil
		if err := gojson.Unmarshal(d.Body, &data); err != nil {
			return core.Row{}, err
		}
	}
	return core.RowFromMap(r.src.table, r.src.rowType, data)
}

func (r *reader) Close() error {
	var errs []error
	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.ch, r.conn = nil, nil
	if len(errs) > 0 {
		return errors.Wrap(errors.Join(errs...), errors.ErrorTypeConnection, "failed to close rabbitmq reader")
	}
	return nil
}
