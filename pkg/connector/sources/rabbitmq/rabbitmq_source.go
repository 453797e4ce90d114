// Package rabbitmq provides the RabbitMQ source. It is unbounded and
// parallel: every reader is a competing consumer on the same queue and acks
// a delivery once the row has been handed downstream.
package rabbitmq

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// PluginName is the registered name
const PluginName = "RabbitMQ"

// Columns of the text format
const (
	FieldBody       = "body"
	FieldRoutingKey = "routing_key"
	FieldTimestamp  = "timestamp"
)

// Options configure the RabbitMQ source
type Options struct {
	// URL overrides the host, port, vhost and credential options
	URL         string `config:"url"`
	Host        string `config:"host"`
	Port        int    `config:"port"`
	VirtualHost string `config:"virtual_host"`
	Username    string `config:"username"`
	Password    string `config:"password"`

	Queue      string `config:"queue_name"`
	Declare    bool   `config:"declare"`
	Durable    bool   `config:"durable"`
	AutoDelete bool   `config:"auto_delete"`
	Prefetch   int    `config:"prefetch_count"`
	Requeue    bool   `config:"requeue_on_error"`
	Format     string `config:"format"`
}

// channel is the part of *amqp.Channel the reader uses
type channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Source consumes one queue
type Source struct {
	opts    Options
	url     string
	rowType *core.RowType
	table   string
	jobName string

	dial func(url string) (io.Closer, channel, error)
}

// NewSource creates an unconfigured RabbitMQ source
func NewSource() (core.Source, error) {
	return &Source{dial: dial}, nil
}

func dial(u string) (io.Closer, channel, error) {
	conn, err := amqp.Dial(u)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func (s *Source) PluginName() string { return PluginName }

// Prepare implements core.Source
func (s *Source) Prepare(cfg *config.PluginConfig) error {
	opts := Options{Host: "localhost", Port: 5672, VirtualHost: "/", Username: "guest", Password: "guest", Prefetch: 100, Format: "text"}
	if err := cfg.Options.Decode(&opts); err != nil {
		return err
	}
	if opts.Queue == "" {
		return errors.New(errors.ErrorTypeConfig, "queue_name is required")
	}
	if opts.Prefetch <= 0 {
		return errors.New(errors.ErrorTypeConfig, "prefetch_count must be positive")
	}

	var def *core.RowType
	switch opts.Format = strings.ToLower(opts.Format); opts.Format {
	case "text":
		def = core.NewRowType(
			core.Field{Name: FieldBody, Type: core.FieldTypeString},
			core.Field{Name: FieldRoutingKey, Type: core.FieldTypeString},
			core.Field{Name: FieldTimestamp, Type: core.FieldTypeTimestamp},
		)
	case "json":
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

	s.url = opts.URL
	if s.url == "" {
		u := url.URL{
			Scheme: "amqp",
			User:   url.UserPassword(opts.Username, opts.Password),
			Host:   opts.Host + ":" + strconv.Itoa(opts.Port),
			Path:   "/" + strings.TrimPrefix(opts.VirtualHost, "/"),
		}
		s.url = u.String()
	}
	if _, err := amqp.ParseURI(s.url); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid amqp url")
	}
	s.opts = opts
	s.rowType = rt
	s.table = cfg.ResultTableName
	return nil
}

func (s *Source) SetJobContext(jobCtx core.JobContext) { s.jobName = jobCtx.JobName }

func (s *Source) Boundedness() core.Boundedness { return core.Unbounded }

func (s *Source) ProducedType() *core.RowType { return s.rowType }

// CreateEnumerator implements core.Source
func (s *Source) CreateEnumerator(ctx core.EnumeratorContext) (core.SplitEnumerator, error) {
	return &enumerator{queue: s.opts.Queue, ctx: ctx}, nil
}

// CreateReader implements core.Source
func (s *Source) CreateReader(ctx core.ReaderContext) (core.SplitReader, error) {
	return &reader{src: s, subtask: ctx.SubtaskIndex}, nil
}

// enumerator gives every registered reader its own subscription to the queue
type enumerator struct {
	queue string
	ctx   core.EnumeratorContext
}

func (e *enumerator) Open(context.Context) error { return nil }
func (e *enumerator) Close() error { return nil }

func (e *enumerator) Run(context.Context) error {
	for _, r := range e.ctx.RegisteredReaders() {
		split := core.Split{ID: fmt.Sprintf("%s#%d", e.queue, r), Payload: e.queue}
		if err := e.ctx.AssignSplits(r, split); err != nil {
			return err
		}
	}
	return nil
}
