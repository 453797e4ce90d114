package kafka

import (
	"context"
	"sort"

	"github.com/IBM/sarama"
	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// connection is what one reader consumes through. client and offsets are
// nil when not needed.
type connection struct {
	client   sarama.Client
	consumer sarama.Consumer
	offsets  sarama.OffsetManager
}

func dial(s *Source) (*connection, error) {
	cfg, err := s.saramaConfig()
	if err != nil {
		return nil, err
	}
	client, err := sarama.NewClient(s.brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to kafka").
			WithDetail("brokers", s.brokers)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create kafka consumer")
	}
	conn := &connection{client: client, consumer: consumer}
	if s.opts.ConsumerGroup != "" {
		if conn.offsets, err = sarama.NewOffsetManagerFromClient(s.opts.ConsumerGroup, client); err != nil {
			consumer.Close()
			client.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create offset manager").
				WithDetail("group", s.opts.ConsumerGroup)
		}
	}
	return conn, nil
}

type partition struct {
	tp       topicPartition
	consumer sarama.PartitionConsumer
	offsets  sarama.PartitionOffsetManager
}

type reader struct {
	src        *Source
	subtask    int
	conn       *connection
	pending    []core.Split
	partitions map[string]*partition
	order      []string
}

func (r *reader) Open(context.Context) error {
	conn, err := r.src.connect(r.src)
	if err != nil {
		return err
	}
	r.conn = conn
	return nil
}

func (r *reader) AddSplits(splits []core.Split) {
	r.pending = append(r.pending, splits...)
}

// HandleNoMoreSplits is a no-op; topics are unbounded
func (r *reader) HandleNoMoreSplits() {}

// PollNext drains the buffered messages of every assigned partition, up to
// max.poll.records per call. It never blocks.
func (r *reader) PollNext(ctx context.Context, out core.Collector) error {
	if err := r.startPending(); err != nil {
		return err
	}

	emitted := 0
	for emitted < r.src.opts.MaxPollRecords {
		progress := false
		for _, id := range r.order {
			p := r.partitions[id]
			select {
			case msg, ok := <-p.consumer.Messages():
				if !ok || msg == nil {
					continue
				}
				row, err := r.decode(msg)
				if err != nil {
					return errors.Wrap(err, errors.ErrorTypeData, "invalid kafka message").
						WithDetail("topic", msg.Topic).
						WithDetail("partition", msg.Partition).
						WithDetail("offset", msg.Offset)
				}
				if err := out.Collect(row); err != nil {
					return err
				}
				if p.offsets != nil {
					p.offsets.MarkOffset(msg.Offset+1, "")
				}
				emitted++
				progress = true
			case cerr, ok := <-p.consumer.Errors():
				if ok && cerr != nil {
					return errors.Wrap(cerr, errors.ErrorTypeConnection, "kafka consumer failed").
						WithDetail("topic", p.tp.Topic).
						WithDetail("partition", p.tp.Partition)
				}
			default:
			}
		}
		if !progress {
			break
		}
	}
	return ctx.Err()
}

func (r *reader) startPending() error {
	if len(r.pending) == 0 {
		return nil
	}
	for len(r.pending) > 0 {
		split := r.pending[0]
		tp := split.Payload.(topicPartition)
		if _, ok := r.partitions[split.ID]; ok {
			r.pending = r.pending[1:]
			continue
		}

		offset := sarama.OffsetOldest
		if r.src.opts.StartMode == StartLatest {
			offset = sarama.OffsetNewest
		}
		p := &partition{tp: tp}
		if r.conn.offsets != nil {
			pom, err := r.conn.offsets.ManagePartition(tp.Topic, tp.Partition)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeConnection, "failed to load committed offset").
					WithDetail("topic", tp.Topic).
					WithDetail("partition", tp.Partition)
			}
			p.offsets = pom
			if r.src.opts.StartMode == StartGroupOffsets {
				offset, _ = pom.NextOffset()
			}
		}

		pc, err := r.conn.consumer.ConsumePartition(tp.Topic, tp.Partition, offset)
		if err != nil {
			if p.offsets != nil {
				p.offsets.AsyncClose()
			}
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to consume partition").
				WithDetail("topic", tp.Topic).
				WithDetail("partition", tp.Partition)
		}
		p.consumer = pc
		r.partitions[split.ID] = p
		r.order = append(r.order, split.ID)
		r.pending = r.pending[1:]

		r.src.logger.Debug("consuming partition",
			zap.Int("reader", r.subtask),
			zap.String("topic", tp.Topic),
			zap.Int32("partition", tp.Partition),
			zap.Int64("offset", offset))
	}
	sort.Strings(r.order)
	return nil
}

func (r *reader) decode(msg *sarama.ConsumerMessage) (core.Row, error) {
	if r.src.opts.Format == "text" {
		return core.RowFromMap(r.src.table, r.src.rowType, map[string]interface{}{
			FieldKey:       string(msg.Key),
			FieldValue:     string(msg.Value),
			FieldTopic:     msg.Topic,
			FieldPartition: msg.Partition,
			FieldOffset:    msg.Offset,
			FieldTimestamp: msg.Timestamp,
		})
	}
	var data map[string]interface{}
	if err := gojson.Unmarshal(msg.Value, &data); err != nil {
		return core.Row{}, err
	}
	return core.RowFromMap(r.src.table, r.src.rowType, data)
}

// Close commits marked offsets when commit_on_checkpoint is set, then
// releases partitions before the consumer and client
func (r *reader) Close() error {
	if r.conn == nil {
		return nil
	}
	if r.src.opts.CommitOnClose && r.conn.offsets != nil {
		r.conn.offsets.Commit()
	}

	var errs []error
	for _, id := range r.order {
		p := r.partitions[id]
		if err := p.consumer.Close(); err != nil {
			errs = append(errs, err)
		}
		if p.offsets != nil {
			if err := p.offsets.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := r.conn.consumer.Close(); err != nil {
		errs = append(errs, err)
	}
	if r.conn.offsets != nil {
		if err := r.conn.offsets.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.conn.client != nil {
		if err := r.conn.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.conn = nil
	if len(errs) > 0 {
		return errors.Wrap(errors.Join(errs...), errors.ErrorTypeConnection, "failed to close kafka reader")
	}
	return nil
}
