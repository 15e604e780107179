package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querykit/pkg/querybuilder"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

var _ querybuilder.SchemaChecker = (*Session)(nil)

// build runs a query builder. Schema lookups that fail were already recorded
// by Execute; only the builder's own validation errors are added here.
func (s *Session) build(kind string, fn func() (querybuilder.Query, error)) (querybuilder.Query, error) {
	q, err := fn()
	if err != nil && errors.Is(err, apperrors.ErrValidation) {
		return q, s.fail(err, fmt.Sprintf("Failed to build %s query", kind))
	}
	return q, err
}

// FetchTable selects rows described by req.
func (s *Session) FetchTable(ctx context.Context, req querybuilder.SelectRequest) (*Outcome, error) {
	dialect, err := s.dialect(ctx)
	if err != nil {
		return nil, err
	}
	q, err := s.build("select", func() (querybuilder.Query, error) {
		return querybuilder.Select(ctx, s, dialect, req)
	})
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, q.SQL, q.Params)
}

// FetchCount returns how many rows req matches.
func (s *Session) FetchCount(ctx context.Context, req querybuilder.SelectRequest) (int64, error) {
	req.Count = true
	out, err := s.FetchTable(ctx, req)
	if err != nil {
		return 0, err
	}
	if len(out.Rows) == 0 || len(out.Columns) == 0 {
		return 0, s.fail(apperrors.Driver("count", fmt.Errorf("count query returned no rows")), "Failed to read row count")
	}

	n, err := toInt64(out.Rows[0][out.Columns[0]])
	if err != nil {
		return 0, s.fail(apperrors.Driver("count", err), "Failed to read row count")
	}
	return n, nil
}

// InsertRow inserts params into table. With upsert, an existing row with the
// same primary key is updated instead.
func (s *Session) InsertRow(ctx context.Context, table string, params qsql.Params, upsert bool) (*Outcome, error) {
	dialect, err := s.dialect(ctx)
	if err != nil {
		return nil, err
	}
	q, err := s.build("insert", func() (querybuilder.Query, error) {
		return querybuilder.Insert(ctx, s, dialect, table, params, upsert)
	})
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, q.SQL, q.Params)
}

// UpdateRow sets params on the rows of table matching every column of key.
func (s *Session) UpdateRow(ctx context.Context, table string, params, key qsql.Params) (*Outcome, error) {
	dialect, err := s.dialect(ctx)
	if err != nil {
		return nil, err
	}
	q, err := s.build("update", func() (querybuilder.Query, error) {
		return querybuilder.Update(ctx, s, dialect, table, params, key)
	})
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, q.SQL, q.Params)
}

// DeleteRow deletes the rows of table matching every column of params.
func (s *Session) DeleteRow(ctx context.Context, table string, params qsql.Params) (*Outcome, error) {
	dialect, err := s.dialect(ctx)
	if err != nil {
		return nil, err
	}
	q, err := s.build("delete", func() (querybuilder.Query, error) {
		return querybuilder.Delete(ctx, s, dialect, table, params)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Deleting rows", zap.String("table", table), zap.Strings("columns", q.Params.SortedKeys()))
	return s.Execute(ctx, q.SQL, q.Params)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected count value %v (%T)", v, v)
	}
}
