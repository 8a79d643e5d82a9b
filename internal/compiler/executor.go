package compiler

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/foliobase/foliobase/pkg/apperr"
	"github.com/foliobase/foliobase/pkg/query"
)

// Querier is the subset of pgxpool.Pool the executor needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Executor compiles descriptors and runs them against the relational store.
// It does not retry; the caller decides retry policy.
type Executor struct {
	db       Querier
	compiler *Compiler
}

// NewExecutor creates an Executor over db using the given compiler.
func NewExecutor(db Querier, c *Compiler) *Executor {
	return &Executor{db: db, compiler: c}
}

// Execute runs one descriptor and resolves it to a Result envelope. A
// malformed descriptor fails before any database round-trip.
func (e *Executor) Execute(ctx context.Context, d *query.Descriptor) query.Result {
	sql, args, err := e.compiler.Compile(d)
	if err != nil {
		return query.Fail(err)
	}

	rows, err := e.db.Query(ctx, sql, args...)
	if err != nil {
		return query.Fail(classify(err))
	}
	list, err := collectRows(rows)
	if err != nil {
		return query.Fail(classify(err))
	}

	data, err := shapeRows(list, d)
	if err != nil {
		return query.Fail(err)
	}
	return query.Result{Data: data, Count: intPtr(len(list))}
}

// collectRows drains rows into generic maps keyed by column name.
func collectRows(rows pgx.Rows) ([]map[string]any, error) {
	defer rows.Close()

	list := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		fields := rows.FieldDescriptions()
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		list = append(list, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// shapeRows applies the single/maybeSingle row-count semantics.
func shapeRows(list []map[string]any, d *query.Descriptor) (any, error) {
	switch {
	case d.Single:
		if len(list) == 0 {
			return nil, apperr.NotFound("no rows found")
		}
		if len(list) > 1 {
			return nil, apperr.MultipleRows("more than one row found")
		}
		return list[0], nil
	case d.MaybeSingle:
		if len(list) == 0 {
			return nil, nil
		}
		if len(list) > 1 {
			return nil, apperr.MultipleRows("more than one row found")
		}
		return list[0], nil
	default:
		return list, nil
	}
}

// classify converts database errors into the application taxonomy. Unique
// violations surface as conflicts so callers can distinguish duplicates from
// infrastructure failures.
func classify(err error) *apperr.AppError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return apperr.Conflict(pgErr.Message)
		}
	}
	return apperr.Execution(err)
}

func intPtr(n int) *int {
	return &n
}
