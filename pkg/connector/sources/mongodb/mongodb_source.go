// Package mongodb provides the MongoDB source. Each configured collection is
// a split that a reader walks with one find cursor, projecting the schema
// fields.
package mongodb

import (
	"context"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// PluginName is the registered name
const PluginName = "MongoDB"

// Options configure the MongoDB source
type Options struct {
	URI      string `config:"uri"`
	Database string `config:"database"`
	// Collections is a comma separated list, one split each
	Collections string `config:"collection"`
	// Match is a filter document in relaxed extended JSON
	Match     string `config:"match"`
	BatchSize int    `config:"batch_size"`
}

// connectFunc opens a client and returns the function that releases it
type connectFunc func(ctx context.Context, uri string) (*mongo.Client, func(context.Context) error, error)

// Source reads MongoDB collections
type Source struct {
	opts        Options
	collections []string
	filter      bson.D
	projection  bson.D
	rowType     *core.RowType
	table       string

	// connect is replaced in tests
	connect connectFunc
}

// NewSource creates an unconfigured MongoDB source
func NewSource() (core.Source, error) {
	return &Source{connect: connect}, nil
}

func (s *Source) PluginName() string { return PluginName }

// Prepare implements core.Source
func (s *Source) Prepare(cfg *config.PluginConfig) error {
	opts := Options{BatchSize: 1024}
	if err := cfg.Options.Decode(&opts); err != nil {
		return err
	}
	if opts.URI == "" {
		return errors.New(errors.ErrorTypeConfig, "uri is required")
	}
	if err := options.Client().ApplyURI(opts.URI).Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid uri")
	}
	if opts.Database == "" {
		return errors.New(errors.ErrorTypeConfig, "database is required")
	}
	collections := splitList(opts.Collections)
	if len(collections) == 0 {
		return errors.New(errors.ErrorTypeConfig, "collection is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1024
	}

	filter := bson.D{}
	if opts.Match != "" {
		if err := bson.UnmarshalExtJSON([]byte(opts.Match), false, &filter); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid match document").WithDetail("match", opts.Match)
		}
	}

	rt, err := core.ParseSchema(cfg.Options, nil)
	if err != nil {
		return err
	}
	if rt == nil {
		return errors.New(errors.ErrorTypeConfig, "schema is required")
	}

	s.opts = opts
	s.collections = collections
	s.filter = filter
	s.projection = projection(rt)
	s.rowType = rt
	s.table = cfg.ResultTableName
	return nil
}

func (s *Source) SetJobContext(core.JobContext) {}

func (s *Source) Boundedness() core.Boundedness { return core.Bounded }

func (s *Source) ProducedType() *core.RowType { return s.rowType }

// CreateEnumerator implements core.Source
func (s *Source) CreateEnumerator(ctx core.EnumeratorContext) (core.SplitEnumerator, error) {
	splits := make([]core.Split, len(s.collections))
	for i, c := range s.collections {
		splits[i] = core.Split{ID: s.opts.Database + "." + c, Payload: c}
	}
	return core.NewStaticEnumerator(ctx, splits), nil
}

// CreateReader implements core.Source
func (s *Source) CreateReader(core.ReaderContext) (core.SplitReader, error) {
	return &reader{src: s}, nil
}

func connect(ctx context.Context, uri string) (*mongo.Client, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	return client, client.Disconnect, nil
}

// projection keeps the schema fields; _id is dropped unless named
func projection(rt *core.RowType) bson.D {
	proj := bson.D{}
	hasID := false
	for _, name := range rt.FieldNames() {
		proj = append(proj, bson.E{Key: name, Value: 1})
		hasID = hasID || name == "_id"
	}
	if !hasID {
		proj = append(proj, bson.E{Key: "_id", Value: 0})
	}
	return proj
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
	src     *Source
	client  *mongo.Client
	release func(context.Context) error

	collection string
	cursor     *mongo.Cursor
}

func (r *reader) Open(ctx context.Context) error {
	client, release, err := r.src.connect(ctx, r.src.opts.URI)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to mongodb").
			WithDetail("database", r.src.opts.Database)
	}
	r.client, r.release = client, release
	return nil
}

// PollNext emits up to batch_size documents of the current collection
func (r *reader) PollNext(ctx context.Context, out core.Collector) error {
	if r.cursor == nil {
		split, ok, err := r.Next()
		if err != nil || !ok {
			return err
		}
		if err := r.find(ctx, split.Payload.(string)); err != nil {
			return err
		}
	}

	for i := 0; i < r.src.opts.BatchSize; i++ {
		if !r.cursor.Next(ctx) {
			err := r.cursor.Err()
			r.closeCursor(ctx)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeConnection, "cursor failed").WithDetail("collection", r.collection)
			}
			return nil
		}
		var doc bson.M
		if err := r.cursor.Decode(&doc); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to decode document").WithDetail("collection", r.collection)
		}
		row, err := core.RowFromMap(r.src.table, r.src.rowType, flatten(doc))
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "invalid record").
				WithDetail("collection", r.collection).
				WithDetail("_id", plain(doc["_id"]))
		}
		if err := out.Collect(row); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (r *reader) find(ctx context.Context, collection string) error {
	opts := options.Find().
		SetBatchSize(int32(r.src.opts.BatchSize)).
		SetProjection(r.src.projection)
	cursor, err := r.client.Database(r.src.opts.Database).Collection(collection).Find(ctx, r.src.filter, opts)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "find failed").WithDetail("collection", collection)
	}
	r.collection, r.cursor = collection, cursor
	return nil
}

func (r *reader) closeCursor(ctx context.Context) {
	if r.cursor != nil {
		_ = r.cursor.Close(ctx)
		r.cursor = nil
	}
}

func (r *reader) Close() error {
	r.closeCursor(context.Background())
	if r.release == nil {
		return nil
	}
	return r.release(context.Background())
}

// flatten converts top level values to row values. Embedded documents and
// arrays become JSON text.
func flatten(doc bson.M) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		v = plain(v)
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			if encoded, err := gojson.Marshal(v); err == nil {
				v = string(encoded)
			}
		}
		out[k] = v
	}
	return out
}

// plain replaces BSON specific types with ordinary Go values
func plain(v interface{}) interface{} {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(x.T), 0).UTC()
	case primitive.Decimal128:
		return x.String()
	case primitive.Binary:
		return x.Data
	case primitive.Regex:
		return x.String()
	case bson.M:
		m := make(map[string]interface{}, len(x))
		for k, inner := range x {
			m[k] = plain(inner)
		}
		return m
	case bson.D:
		m := make(map[string]interface{}, len(x))
		for _, e := range x {
			m[e.Key] = plain(e.Value)
		}
		return m
	case bson.A:
		a := make([]interface{}, len(x))
		for i, inner := range x {
			a[i] = plain(inner)
		}
		return a
	}
	return v
}
