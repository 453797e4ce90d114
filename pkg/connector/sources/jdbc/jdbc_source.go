// Package jdbc provides the Jdbc source, a bounded coordinated source over
// database/sql. PostgreSQL goes through pgx's stdlib driver and MySQL
// through go-sql-driver/mysql. A numeric partition_column splits the query
// into ranges that the coordinator spreads across readers.
package jdbc

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
	"github.com/ajitpratap0/seaflow/pkg/logger"
)

// PluginName is the registered name
const PluginName = "Jdbc"

// Options configure the Jdbc source
type Options struct {
	// URL is the DSN handed to the driver
	URL    string `config:"url"`
	Driver string `config:"driver"`
	// Query is read as a subquery; Table is shorthand for SELECT * FROM table
	Query string `config:"query"`
	Table string `config:"table"`

	PartitionColumn string `config:"partition_column"`
	// PartitionNum defaults to the reader parallelism
	PartitionNum int    `config:"partition_num"`
	LowerBound   *int64 `config:"partition_lower_bound"`
	UpperBound   *int64 `config:"partition_upper_bound"`

	FetchSize      int           `config:"fetch_size"`
	ConnectTimeout time.Duration `config:"connection_check_timeout"`
}

// dialect holds what differs between the supported databases
type dialect struct {
	driver string
	// placeholder renders the n-th (1-based) bind parameter
	placeholder func(n int) string
	quote       func(ident string) string
}

var dialects = map[string]dialect{
	"postgres": {
		driver:      "pgx",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		quote:       func(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` },
	},
	"mysql": {
		driver:      "mysql",
		placeholder: func(int) string { return "?" },
		quote:       func(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" },
	},
}

// Source reads a query result
type Source struct {
	opts    Options
	dialect dialect
	query   string
	rowType *core.RowType
	table   string
	logger  *zap.Logger

	open func(driver, dsn string) (*sql.DB, error)
}

// NewSource creates an unconfigured Jdbc source
func NewSource() (core.Source, error) {
	return &Source{open: sql.Open, logger: logger.With(zap.String("connector", PluginName))}, nil
}

func (s *Source) PluginName() string { return PluginName }

// Prepare implements core.Source. Without a schema option the column types
// are discovered from the database.
func (s *Source) Prepare(cfg *config.PluginConfig) error {
	opts := Options{FetchSize: 1024, ConnectTimeout: 30 * time.Second}
	if err := cfg.Options.Decode(&opts); err != nil {
		return err
	}
	if opts.URL == "" {
		return errors.New(errors.ErrorTypeConfig, "url is required")
	}
	name := strings.ToLower(opts.Driver)
	switch {
	case name == "postgresql" || name == "pgx":
		name = "postgres"
	case name == "" && (strings.HasPrefix(opts.URL, "postgres://") || strings.HasPrefix(opts.URL, "postgresql://")):
		name = "postgres"
	}
	d, ok := dialects[name]
	if !ok {
		return errors.Newf(errors.ErrorTypeConfig, "unsupported driver %q, use postgres or mysql", opts.Driver)
	}
	switch {
	case opts.Query != "" && opts.Table != "":
		return errors.New(errors.ErrorTypeConfig, "set either query or table, not both")
	case opts.Query != "":
		s.query = strings.TrimRight(strings.TrimSpace(opts.Query), ";")
	case opts.Table != "":
		s.query = "SELECT * FROM " + opts.Table
	default:
		return errors.New(errors.ErrorTypeConfig, "query or table is required")
	}
	if opts.PartitionNum < 0 {
		return errors.New(errors.ErrorTypeConfig, "partition_num cannot be negative")
	}
	if (opts.LowerBound == nil) != (opts.UpperBound == nil) {
		return errors.New(errors.ErrorTypeConfig, "partition_lower_bound and partition_upper_bound must be set together")
	}
	if opts.LowerBound != nil && *opts.LowerBound > *opts.UpperBound {
		return errors.New(errors.ErrorTypeConfig, "partition_lower_bound is above partition_upper_bound")
	}
	if opts.FetchSize <= 0 {
		opts.FetchSize = 1024
	}
	s.opts = opts
	s.dialect = d
	s.table = cfg.ResultTableName

	rt, err := core.ParseSchema(cfg.Options, nil)
	if err != nil {
		return err
	}
	if rt == nil {
		if rt, err = s.discoverSchema(); err != nil {
			return err
		}
	}
	if opts.PartitionColumn != "" && rt.IndexOf(opts.PartitionColumn) < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "partition_column %q is not in the query result", opts.PartitionColumn)
	}
	s.rowType = rt
	return nil
}

func (s *Source) SetJobContext(core.JobContext) {}

func (s *Source) Boundedness() core.Boundedness { return core.Bounded }

func (s *Source) ProducedType() *core.RowType { return s.rowType }

// SupportsCoordination implements core.CoordinationSupport
func (s *Source) SupportsCoordination() bool { return true }

// CreateEnumerator implements core.Source
func (s *Source) CreateEnumerator(ctx core.EnumeratorContext) (core.SplitEnumerator, error) {
	return &enumerator{src: s, ctx: ctx}, nil
}

// CreateReader implements core.Source
func (s *Source) CreateReader(core.ReaderContext) (core.SplitReader, error) {
	return &reader{src: s}, nil
}

func (s *Source) connect(ctx context.Context) (*sql.DB, error) {
	db, err := s.open(s.dialect.driver, s.opts.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid jdbc url")
	}
	pingCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to database").
			WithDetail("driver", s.dialect.driver)
	}
	return db, nil
}

func (s *Source) discoverSchema() (*core.RowType, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ConnectTimeout)
	defer cancel()
	db, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT * FROM ("+s.query+") seaflow_q WHERE 1 = 0")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to describe query")
	}
	defer rows.Close()
	columns, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to describe query")
	}
	fields := make([]core.Field, len(columns))
	for i, c := range columns {
		fields[i] = core.Field{Name: c.Name(), Type: FieldTypeOf(c.DatabaseTypeName())}
	}
	s.logger.Debug("discovered schema", zap.Strings("fields", core.NewRowType(fields...).FieldNames()))
	return core.NewRowType(fields...), nil
}

// FieldTypeOf maps a database column type name to a field type
func FieldTypeOf(dbType string) core.FieldType {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	t = strings.TrimPrefix(t, "UNSIGNED ")
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	switch t {
	case "INT", "INT2", "INT4", "INTEGER", "SMALLINT", "TINYINT", "MEDIUMINT", "SERIAL":
		return core.FieldTypeInt
	case "INT8", "BIGINT", "BIGSERIAL":
		return core.FieldTypeBigInt
	case "FLOAT", "FLOAT4", "FLOAT8", "REAL", "DOUBLE", "DOUBLE PRECISION", "NUMERIC", "DECIMAL":
		return core.FieldTypeDouble
	case "BOOL", "BOOLEAN", "BIT":
		return core.FieldTypeBoolean
	case "DATE", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ":
		return core.FieldTypeTimestamp
	case "BYTEA", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY":
		return core.FieldTypeBytes
	}
	return core.FieldTypeString
}
