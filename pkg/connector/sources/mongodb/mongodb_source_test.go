package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

type rows []core.Row

func (r *rows) Collect(row core.Row) error {
	*r = append(*r, row)
	return nil
}

type single struct{ reader core.SplitReader }

func (c *single) Parallelism() int { return 1 }
func (c *single) RegisteredReaders() []int { return []int{0} }
func (c *single) SignalNoMoreSplits(int) { c.reader.HandleNoMoreSplits() }

func (c *single) AssignSplits(_ int, splits ...core.Split) error {
	c.reader.AddSplits(splits)
	return nil
}

var orderSchema = map[string]interface{}{
	"fields": map[string]interface{}{
		"_id":  "string",
		"qty":  "bigint",
		"at":   "timestamp",
		"ship": "string",
	},
}

func prepared(t *testing.T, client *mongo.Client, raw map[string]interface{}) *Source {
	t.Helper()
	raw["plugin_name"] = PluginName
	raw["result_table_name"] = "orders"
	if _, ok := raw["uri"]; !ok {
		raw["uri"] = "mongodb://localhost:27017"
	}
	src, _ := NewSource()
	s := src.(*Source)
	s.connect = func(context.Context, string) (*mongo.Client, func(context.Context) error, error) {
		return client, func(context.Context) error { return nil }, nil
	}
	require.NoError(t, s.Prepare(config.MustPluginConfig(raw)))
	return s
}

func readAll(t *testing.T, s *Source) ([]core.Row, error) {
	t.Helper()
	r, err := s.CreateReader(core.ReaderContext{})
	require.NoError(t, err)
	require.NoError(t, r.Open(context.Background()))
	defer r.Close()
	enum, _ := s.CreateEnumerator(&single{reader: r})
	require.NoError(t, enum.Run(context.Background()))

	var out rows
	for {
		err := r.PollNext(context.Background(), &out)
		if err == core.ErrEndOfInput {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

func TestReadCollections(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("documents of every collection", func(mt *mtest.T) {
		id, err := primitive.ObjectIDFromHex("64b7f0c2a1b2c3d4e5f60718")
		require.NoError(mt, err)
		at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "shop.orders", mtest.FirstBatch,
				bson.D{
					{Key: "_id", Value: id},
					{Key: "qty", Value: int32(2)},
					{Key: "at", Value: primitive.NewDateTimeFromTime(at)},
					{Key: "ship", Value: bson.D{{Key: "city", Value: "Oslo"}}},
				},
				bson.D{{Key: "_id", Value: "o-2"}, {Key: "qty", Value: int64(5)}},
			),
			mtest.CreateCursorResponse(0, "shop.returns", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "r-1"}, {Key: "qty", Value: 1.0}},
			),
		)

		s := prepared(mt.T, mt.Client, map[string]interface{}{
			"database":   "shop",
			"collection": "orders, returns",
			"match":      `{"qty": {"$gt": 0}}`,
			"schema":     orderSchema,
			"batch_size": 1,
		})
		assert.Equal(mt, core.StrategyParallel, core.StrategyOf(s))
		assert.Equal(mt, bson.D{{Key: "qty", Value: bson.D{{Key: "$gt", Value: int32(0)}}}}, s.filter)

		got, err := readAll(mt.T, s)
		require.NoError(mt, err)
		require.Len(mt, got, 3)

		first := got[0].Map(s.ProducedType())
		assert.Equal(mt, id.Hex(), first["_id"])
		assert.Equal(mt, int64(2), first["qty"])
		assert.True(mt, at.Equal(first["at"].(time.Time)))
		assert.JSONEq(mt, `{"city":"Oslo"}`, first["ship"].(string))

		second := got[1].Map(s.ProducedType())
		assert.Equal(mt, "o-2", second["_id"])
		assert.Nil(mt, second["ship"])

		third := got[2].Map(s.ProducedType())
		assert.Equal(mt, "r-1", third["_id"])
		assert.Equal(mt, int64(1), third["qty"])
		assert.Equal(mt, "orders", got[2].Table)
	})

	mt.Run("find errors are connection errors", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized on shop",
		}))

		s := prepared(mt.T, mt.Client, map[string]interface{}{
			"database":   "shop",
			"collection": "orders",
			"schema":     orderSchema,
		})
		_, err := readAll(mt.T, s)
		require.Error(mt, err)
		assert.True(mt, errors.IsType(err, errors.ErrorTypeConnection))
		collection, _ := errors.DetailOf(err, "collection")
		assert.Equal(mt, "orders", collection)
	})
}

func TestProjectionFollowsSchema(t *testing.T) {
	rt := core.NewRowType(core.Field{Name: "qty", Type: core.FieldTypeBigInt})
	assert.Equal(t, bson.D{{Key: "qty", Value: 1}, {Key: "_id", Value: 0}}, projection(rt))

	rt = core.NewRowType(core.Field{Name: "_id", Type: core.FieldTypeString})
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, projection(rt))
}

func TestPlainValues(t *testing.T) {
	dec, err := primitive.ParseDecimal128("12.50")
	require.NoError(t, err)
	assert.Equal(t, "12.50", plain(dec))
	assert.Equal(t, []byte{1, 2}, plain(primitive.Binary{Data: []byte{1, 2}}))
	assert.Equal(t, time.Unix(100, 0).UTC(), plain(primitive.Timestamp{T: 100}))
	assert.Equal(t, []interface{}{"a", map[string]interface{}{"b": int32(1)}},
		plain(bson.A{"a", bson.M{"b": int32(1)}}))

	flat := flatten(bson.M{"tags": bson.A{"x", "y"}, "n": int32(3)})
	assert.Equal(t, `["x","y"]`, flat["tags"])
	assert.Equal(t, int32(3), flat["n"])
}

func TestMongoPrepareErrors(t *testing.T) {
	base := func(extra map[string]interface{}) map[string]interface{} {
		raw := map[string]interface{}{
			"uri": "mongodb://localhost", "database": "shop", "collection": "orders", "schema": orderSchema,
		}
		for k, v := range extra {
			raw[k] = v
		}
		return raw
	}
	for name, raw := range map[string]map[string]interface{}{
		"no uri":        base(map[string]interface{}{"uri": ""}),
		"bad uri":       base(map[string]interface{}{"uri": "http://localhost"}),
		"no database":   base(map[string]interface{}{"database": ""}),
		"no collection": base(map[string]interface{}{"collection": " , "}),
		"bad match":     base(map[string]interface{}{"match": "{qty"}),
		"no schema":     {"uri": "mongodb://localhost", "database": "shop", "collection": "orders"},
	} {
		t.Run(name, func(t *testing.T) {
			raw["plugin_name"] = PluginName
			src, _ := NewSource()
			err := src.Prepare(config.MustPluginConfig(raw))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}
