package jdbc

import (
	"context"
	"database/sql"
	"time"

	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

type reader struct {
	core.SplitQueue
	src   *Source
	db    *sql.DB
	rows  *sql.Rows
	split string
}

func (r *reader) Open(ctx context.Context) error {
	db, err := r.src.connect(ctx)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)
	r.db = db
	return nil
}

// PollNext scans up to fetch_size rows of the current split
func (r *reader) PollNext(ctx context.Context, out core.Collector) error {
	if r.rows == nil {
		split, ok, err := r.Next()
		if err != nil || !ok {
			return err
		}
		q := split.Payload.(querySplit)
		rows, err := r.db.QueryContext(ctx, q.Query, q.Args...)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "query failed").WithDetail("split", split.ID)
		}
		r.rows, r.split = rows, split.ID
	}

	rt := r.src.rowType
	for i := 0; i < r.src.opts.FetchSize; i++ {
		if !r.rows.Next() {
			err := r.rows.Err()
			r.closeRows()
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "failed to read rows").WithDetail("split", r.split)
			}
			return nil
		}
		raw := make([]interface{}, rt.Len())
		ptrs := make([]interface{}, len(raw))
		for j := range raw {
			ptrs[j] = &raw[j]
		}
		if err := r.rows.Scan(ptrs...); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to scan row").WithDetail("split", r.split)
		}
		values := make([]interface{}, len(raw))
		for j, f := range rt.Fields {
			v, err := convert(raw[j], f.Type)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "field "+f.Name).WithDetail("split", r.split)
			}
			values[j] = v
		}
		if err := out.Collect(core.NewRow(r.src.table, values...)); err != nil {
			return err
		}
	}
	return nil
}

// datetime is how MySQL renders DATETIME without parseTime
const datetime = "2006-01-02 15:04:05"

func convert(v interface{}, t core.FieldType) (interface{}, error) {
	if t == core.FieldTypeTimestamp {
		var s string
		switch b := v.(type) {
		case []byte:
			s = string(b)
		case string:
			s = b
		}
		if s != "" {
			if ts, err := time.Parse(datetime, s); err == nil {
				return ts, nil
			}
			if ts, err := time.Parse("2006-01-02", s); err == nil {
				return ts, nil
			}
		}
	}
	return core.Convert(v, t)
}

func (r *reader) closeRows() {
	if r.rows != nil {
		r.rows.Close()
		r.rows = nil
	}
}

func (r *reader) Close() error {
	r.closeRows()
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
