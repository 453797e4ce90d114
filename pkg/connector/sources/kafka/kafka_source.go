// Package kafka provides the Kafka source. It is unbounded and coordinated:
// one enumerator discovers topic partitions and hands each partition to a
// fixed reader, which consumes it with sarama.
package kafka

import (
	"crypto/tls"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
	"github.com/ajitpratap0/seaflow/pkg/logger"
)

// PluginName is the registered name
const PluginName = "Kafka"

// StartMode picks the offset a newly assigned partition starts from
type StartMode string

const (
	StartEarliest     StartMode = "earliest"
	StartLatest       StartMode = "latest"
	StartGroupOffsets StartMode = "group_offsets"
)

// Message fields of the text format
const (
	FieldKey       = "key"
	FieldValue     = "value"
	FieldTopic     = "topic"
	FieldPartition = "partition"
	FieldOffset    = "offset"
	FieldTimestamp = "timestamp"
)

// Options configure the Kafka source
type Options struct {
	// Topic is a comma separated list, or a regular expression when Pattern is set
	Topic            string            `config:"topic"`
	Pattern          bool              `config:"pattern"`
	BootstrapServers string            `config:"bootstrap.servers"`
	ConsumerGroup    string            `config:"consumer.group"`
	CommitOnClose    bool              `config:"commit_on_checkpoint"`
	StartMode        StartMode         `config:"start_mode"`
	Format           string            `config:"format"`
	Discovery        time.Duration     `config:"partition-discovery.interval"`
	MaxPollRecords   int               `config:"max.poll.records"`
	Client           map[string]string `config:"kafka.config"`
}

// Source reads Kafka topics
type Source struct {
	opts    Options
	brokers []string
	topics  []string
	pattern *regexp.Regexp
	rowType *core.RowType
	table   string
	jobName string
	logger  *zap.Logger

	// connect opens the client, consumer and optional offset manager a
	// reader uses; tests replace it
	connect func(s *Source) (*connection, error)
	// metadata opens the client the enumerator discovers partitions with
	metadata func(s *Source) (sarama.Client, error)
}

// NewSource creates an unconfigured Kafka source
func NewSource() (core.Source, error) {
	return &Source{
		connect:  dial,
		metadata: metadataClient,
		logger:   logger.With(zap.String("connector", PluginName)),
	}, nil
}

func (s *Source) PluginName() string { return PluginName }

// Prepare implements core.Source
func (s *Source) Prepare(cfg *config.PluginConfig) error {
	opts := Options{StartMode: StartGroupOffsets, Format: "json", MaxPollRecords: 500}
	if err := cfg.Options.Decode(&opts); err != nil {
		return err
	}
	if opts.Topic == "" {
		return errors.New(errors.ErrorTypeConfig, "topic is required")
	}
	if opts.BootstrapServers == "" {
		return errors.New(errors.ErrorTypeConfig, "bootstrap.servers is required")
	}
	switch opts.StartMode {
	case StartEarliest, StartLatest:
	case StartGroupOffsets:
		if opts.ConsumerGroup == "" {
			return errors.New(errors.ErrorTypeConfig, "start_mode group_offsets needs consumer.group")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported start_mode %q", opts.StartMode)
	}
	if opts.MaxPollRecords <= 0 {
		opts.MaxPollRecords = 500
	}

	var def *core.RowType
	switch strings.ToLower(opts.Format) {
	case "json":
	case "text":
		def = textType
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported format %q", opts.Format)
	}
	rt, err := core.ParseSchema(cfg.Options, def)
	if err != nil {
		return err
	}
	if rt == nil {
		return errors.New(errors.ErrorTypeConfig, "schema is required for the json format")
	}

	s.pattern, s.topics = nil, nil
	if opts.Pattern {
		if s.pattern, err = regexp.Compile(opts.Topic); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid topic pattern")
		}
	} else {
		s.topics = splitList(opts.Topic)
	}
	s.brokers = splitList(opts.BootstrapServers)
	opts.Format = strings.ToLower(opts.Format)
	s.opts = opts
	s.rowType = rt
	s.table = cfg.ResultTableName

	// fail fast on bad client settings
	_, err = s.saramaConfig()
	return err
}

func (s *Source) SetJobContext(jobCtx core.JobContext) { s.jobName = jobCtx.JobName }

func (s *Source) Boundedness() core.Boundedness { return core.Unbounded }

func (s *Source) ProducedType() *core.RowType { return s.rowType }

// SupportsCoordination implements core.CoordinationSupport
func (s *Source) SupportsCoordination() bool { return true }

// CreateEnumerator implements core.Source
func (s *Source) CreateEnumerator(ctx core.EnumeratorContext) (core.SplitEnumerator, error) {
	return &enumerator{src: s, ctx: ctx, assigned: make(map[string]int)}, nil
}

// CreateReader implements core.Source
func (s *Source) CreateReader(ctx core.ReaderContext) (core.SplitReader, error) {
	return &reader{src: s, subtask: ctx.SubtaskIndex, partitions: make(map[string]*partition)}, nil
}

var textType = core.NewRowType(
	core.Field{Name: FieldKey, Type: core.FieldTypeString},
	core.Field{Name: FieldValue, Type: core.FieldTypeString},
	core.Field{Name: FieldTopic, Type: core.FieldTypeString},
	core.Field{Name: FieldPartition, Type: core.FieldTypeInt},
	core.Field{Name: FieldOffset, Type: core.FieldTypeBigInt},
	core.Field{Name: FieldTimestamp, Type: core.FieldTypeTimestamp},
)

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// saramaConfig translates the job options and the kafka.config passthrough
// keys into a sarama configuration
func (s *Source) saramaConfig() (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "seaflow"
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	if s.opts.StartMode == StartLatest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = !s.opts.CommitOnClose

	for key, value := range s.opts.Client {
		if err := applyClientOption(cfg, key, value); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid kafka.config").
				WithDetail("option", key)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid kafka client configuration")
	}
	return cfg, nil
}

func applyClientOption(cfg *sarama.Config, key, value string) error {
	ms := func() (time.Duration, error) {
		n, err := strconv.Atoi(value)
		return time.Duration(n) * time.Millisecond, err
	}
	var err error
	switch key {
	case "client.id":
		cfg.ClientID = value
	case "version":
		cfg.Version, err = sarama.ParseKafkaVersion(value)
	case "security.protocol":
		switch strings.ToUpper(value) {
		case "SSL", "SASL_SSL":
			cfg.Net.TLS.Enable = true
			cfg.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
		case "PLAINTEXT", "SASL_PLAINTEXT":
		default:
			err = errors.Newf(errors.ErrorTypeConfig, "unsupported security.protocol %q", value)
		}
	case "sasl.mechanism":
		cfg.Net.SASL.Enable = true
		switch strings.ToUpper(value) {
		case "PLAIN":
			cfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		default:
			err = errors.Newf(errors.ErrorTypeConfig, "unsupported sasl.mechanism %q", value)
		}
	case "sasl.username":
		cfg.Net.SASL.User = value
	case "sasl.password":
		cfg.Net.SASL.Password = value
	case "session.timeout.ms":
		cfg.Consumer.Group.Session.Timeout, err = ms()
	case "fetch.max.wait.ms":
		cfg.Consumer.MaxWaitTime, err = ms()
	case "auto.commit.interval.ms":
		cfg.Consumer.Offsets.AutoCommit.Interval, err = ms()
	case "fetch.min.bytes":
		var n int
		n, err = strconv.Atoi(value)
		cfg.Consumer.Fetch.Min = int32(n)
	case "fetch.max.bytes":
		var n int
		n, err = strconv.Atoi(value)
		cfg.Consumer.Fetch.Max = int32(n)
	default:
		err = errors.Newf(errors.ErrorTypeConfig, "unknown kafka.config key %q", key)
	}
	return err
}
