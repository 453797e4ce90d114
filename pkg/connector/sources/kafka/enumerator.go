package kafka

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// topicPartition is the payload of a Kafka split
type topicPartition struct {
	Topic     string
	Partition int32
}

func (tp topicPartition) id() string {
	return fmt.Sprintf("%s-%d", tp.Topic, tp.Partition)
}

// Owner returns the reader a partition is pinned to. Partitions of one
// topic go round robin from a start reader derived from the topic name,
// so reassignments after discovery never move existing partitions.
func Owner(topic string, partition int32, readers int) int {
	if readers <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(topic))
	start := int((h.Sum32()*31)&0x7FFFFFFF) % readers
	return (start + int(partition)) % readers
}

type enumerator struct {
	src      *Source
	ctx      core.EnumeratorContext
	client   sarama.Client
	assigned map[string]int
}

func metadataClient(s *Source) (sarama.Client, error) {
	cfg, err := s.saramaConfig()
	if err != nil {
		return nil, err
	}
	client, err := sarama.NewClient(s.brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to kafka").
			WithDetail("brokers", s.brokers)
	}
	return client, nil
}

func (e *enumerator) Open(context.Context) error {
	client, err := e.src.metadata(e.src)
	if err != nil {
		return err
	}
	e.client = client
	return nil
}

// Run assigns the current partitions and, with a discovery interval,
// keeps polling for new ones until ctx ends
func (e *enumerator) Run(ctx context.Context) error {
	if err := e.discover(); err != nil {
		return err
	}
	if e.src.opts.Discovery <= 0 {
		return nil
	}

	ticker := time.NewTicker(e.src.opts.Discovery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.discover(); err != nil {
				e.src.logger.Warn("partition discovery failed", zap.Error(err))
			}
		}
	}
}

func (e *enumerator) discover() error {
	topics, err := e.subscribedTopics()
	if err != nil {
		return err
	}

	readers := e.ctx.RegisteredReaders()
	if len(readers) == 0 {
		return nil
	}
	registered := make(map[int]bool, len(readers))
	for _, r := range readers {
		registered[r] = true
	}

	pending := make(map[int][]core.Split)
	for _, topic := range topics {
		partitions, err := e.client.Partitions(topic)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to list partitions").
				WithDetail("topic", topic)
		}
		for _, p := range partitions {
			tp := topicPartition{Topic: topic, Partition: p}
			if _, ok := e.assigned[tp.id()]; ok {
				continue
			}
			owner := Owner(topic, p, e.ctx.Parallelism())
			if !registered[owner] {
				owner = readers[owner%len(readers)]
			}
			e.assigned[tp.id()] = owner
			pending[owner] = append(pending[owner], core.Split{ID: tp.id(), Payload: tp})
		}
	}

	owners := make([]int, 0, len(pending))
	for owner := range pending {
		owners = append(owners, owner)
	}
	sort.Ints(owners)
	for _, owner := range owners {
		if err := e.ctx.AssignSplits(owner, pending[owner]...); err != nil {
			return err
		}
		e.src.logger.Info("assigned kafka partitions",
			zap.Int("reader", owner),
			zap.Int("partitions", len(pending[owner])))
	}
	return nil
}

func (e *enumerator) subscribedTopics() ([]string, error) {
	if e.src.pattern == nil {
		if e.src.opts.Discovery > 0 {
			if err := e.client.RefreshMetadata(e.src.topics...); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to refresh metadata")
			}
		}
		return e.src.topics, nil
	}

	if err := e.client.RefreshMetadata(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to refresh metadata")
	}
	all, err := e.client.Topics()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to list topics")
	}
	var topics []string
	for _, t := range all {
		if e.src.pattern.MatchString(t) {
			topics = append(topics, t)
		}
	}
	sort.Strings(topics)
	return topics, nil
}

// Assigned returns the reader each discovered partition went to
func (e *enumerator) Assigned() map[string]int {
	out := make(map[string]int, len(e.assigned))
	for k, v := range e.assigned {
		out[k] = v
	}
	return out
}

func (e *enumerator) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
