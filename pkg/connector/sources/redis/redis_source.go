// Package redis provides the Redis source. Each configured key pattern is a
// split that a reader walks with SCAN, fetching every matching key by its
// data type.
package redis

import (
	"context"
	"net"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// PluginName is the registered name
const PluginName = "Redis"

// DataType is how matching keys are read
type DataType string

const (
	TypeKey  DataType = "key"
	TypeHash DataType = "hash"
	TypeList DataType = "list"
	TypeSet  DataType = "set"
	TypeZSet DataType = "zset"
)

// Columns of the text format
const (
	FieldKey   = "key"
	FieldValue = "value"
)

// Options configure the Redis source
type Options struct {
	Host     string `config:"host"`
	Port     int    `config:"port"`
	User     string `config:"user"`
	Password string `config:"auth"`
	DB       int    `config:"db_num"`
	// Keys is a comma separated list of SCAN MATCH patterns
	Keys     string   `config:"keys"`
	DataType DataType `config:"data_type"`
	// Format json decodes values (or hash fields) into the schema; text
	// emits key and raw value
	Format    string `config:"format"`
	BatchSize int    `config:"batch_size"`
}

// Source reads Redis keys
type Source struct {
	opts     Options
	patterns []string
	rowType  *core.RowType
	table    string

	// newClient is replaced in tests
	newClient func(*goredis.Options) *goredis.Client
}

// NewSource creates an unconfigured Redis source
func NewSource() (core.Source, error) {
	return &Source{newClient: goredis.NewClient}, nil
}

func (s *Source) PluginName() string { return PluginName }

// Prepare implements core.Source
func (s *Source) Prepare(cfg *config.PluginConfig) error {
	opts := Options{Host: "localhost", Port: 6379, DataType: TypeKey, Format: "text", BatchSize: 100}
	if err := cfg.Options.Decode(&opts); err != nil {
		return err
	}
	patterns := splitList(opts.Keys)
	if len(patterns) == 0 {
		return errors.New(errors.ErrorTypeConfig, "keys is required")
	}
	opts.DataType = DataType(strings.ToLower(string(opts.DataType)))
	switch opts.DataType {
	case TypeKey, TypeHash, TypeList, TypeSet, TypeZSet:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported data_type %q", opts.DataType)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}

	var def *core.RowType
	switch opts.Format = strings.ToLower(opts.Format); opts.Format {
	case "text":
		def = core.NewRowType(
			core.Field{Name: FieldKey, Type: core.FieldTypeString},
			core.Field{Name: FieldValue, Type: core.FieldTypeString},
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

	s.opts = opts
	s.patterns = patterns
	s.rowType = rt
	s.table = cfg.ResultTableName
	return nil
}

func (s *Source) SetJobContext(core.JobContext) {}

func (s *Source) Boundedness() core.Boundedness { return core.Bounded }

func (s *Source) ProducedType() *core.RowType { return s.rowType }

// CreateEnumerator implements core.Source
func (s *Source) CreateEnumerator(ctx core.EnumeratorContext) (core.SplitEnumerator, error) {
	splits := make([]core.Split, len(s.patterns))
	for i, p := range s.patterns {
		splits[i] = core.Split{ID: p, Payload: p}
	}
	return core.NewStaticEnumerator(ctx, splits), nil
}

// CreateReader implements core.Source
func (s *Source) CreateReader(core.ReaderContext) (core.SplitReader, error) {
	return &reader{src: s}, nil
}

func (s *Source) clientOptions() *goredis.Options {
	return &goredis.Options{
		Addr:     net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port)),
		Username: s.opts.User,
		Password: s.opts.Password,
		DB:       s.opts.DB,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type reader struct {
	core.SplitQueue
	src    *Source
	client *goredis.Client

	pattern string
	cursor  uint64
	active  bool
	seen    map[string]struct{}
}

func (r *reader) Open(ctx context.Context) error {
	client := r.src.newClient(r.src.clientOptions())
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to redis").
			WithDetail("addr", r.src.clientOptions().Addr)
	}
	r.client = client
	return nil
}

// PollNext reads one SCAN page of the current pattern
func (r *reader) PollNext(ctx context.Context, out core.Collector) error {
	if !r.active {
		split, ok, err := r.Next()
		if err != nil || !ok {
			return err
		}
		r.pattern, r.cursor, r.active = split.Payload.(string), 0, true
		r.seen = make(map[string]struct{})
	}

	keys, cursor, err := r.client.Scan(ctx, r.cursor, r.pattern, int64(r.src.opts.BatchSize)).Result()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "scan failed").WithDetail("pattern", r.pattern)
	}
	for _, key := range keys {
		if _, dup := r.seen[key]; dup {
			continue
		}
		r.seen[key] = struct{}{}
		if err := r.emitKey(ctx, key, out); err != nil {
			return err
		}
	}
	r.cursor = cursor
	if cursor == 0 {
		r.active = false
	}
	return nil
}

func (r *reader) emitKey(ctx context.Context, key string, out core.Collector) error {
	var (
		values []string
		hash   map[string]string
		err    error
	)
	switch r.src.opts.DataType {
	case TypeKey:
		var v string
		v, err = r.client.Get(ctx, key).Result()
		if err == goredis.Nil {
			// expired between SCAN and GET
			return nil
		}
		values = []string{v}
	case TypeHash:
		hash, err = r.client.HGetAll(ctx, key).Result()
	case TypeList:
		values, err = r.client.LRange(ctx, key, 0, -1).Result()
	case TypeSet:
		values, err = r.client.SMembers(ctx, key).Result()
	case TypeZSet:
		values, err = r.client.ZRange(ctx, key, 0, -1).Result()
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to read key").WithDetail("key", key)
	}

	if hash != nil {
		if r.src.opts.Format == "json" {
			data := make(map[string]interface{}, len(hash))
			for k, v := range hash {
				data[k] = v
			}
			return r.collect(key, data, out)
		}
		encoded, err := gojson.Marshal(hash)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to encode hash").WithDetail("key", key)
		}
		values = []string{string(encoded)}
	}

	for _, v := range values {
		data := map[string]interface{}{FieldKey: key, FieldValue: v}
		if r.src.opts.Format == "json" {
			data = nil
			if err := gojson.Unmarshal([]byte(v), &data); err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "invalid json value").WithDetail("key", key)
			}
		}
		if err := r.collect(key, data, out); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) collect(key string, data map[string]interface{}, out core.Collector) error {
	row, err := core.RowFromMap(r.src.table, r.src.rowType, data)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "invalid record").WithDetail("key", key)
	}
	return out.Collect(row)
}

func (r *reader) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
