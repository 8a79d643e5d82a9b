package client

import (
	"context"

	"github.com/foliobase/foliobase/pkg/query"
)

// QueryBuilder accumulates one query.Descriptor through chained calls and
// hands it to the adapter on Execute. Builders are single-use.
type QueryBuilder struct {
	d query.Descriptor
	r runner
}

func newBuilder(table string, r runner) *QueryBuilder {
	return &QueryBuilder{d: query.Descriptor{Table: table}, r: r}
}

// Select starts a select with the given projection ("" or "*" for all columns).
func (b *QueryBuilder) Select(columns string) *QueryBuilder {
	b.d.Operation = query.OpSelect
	b.d.Select = columns
	return b
}

// Insert starts an insert of one object or a list of objects.
func (b *QueryBuilder) Insert(data any) *QueryBuilder {
	b.d.Operation = query.OpInsert
	b.d.Data = data
	return b
}

// Update starts an update with the given column assignments.
func (b *QueryBuilder) Update(data any) *QueryBuilder {
	b.d.Operation = query.OpUpdate
	b.d.Data = data
	return b
}

// Upsert starts an insert-or-update. The optional conflict target column
// defaults to "id".
func (b *QueryBuilder) Upsert(data any, onConflict ...string) *QueryBuilder {
	b.d.Operation = query.OpUpsert
	b.d.Data = data
	if len(onConflict) > 0 {
		b.d.OnConflict = onConflict[0]
	}
	return b
}

// Delete starts a delete.
func (b *QueryBuilder) Delete() *QueryBuilder {
	b.d.Operation = query.OpDelete
	return b
}

// Filter appends a condition with an explicit operator.
func (b *QueryBuilder) Filter(column, operator string, value any) *QueryBuilder {
	b.d.Where = append(b.d.Where, query.Condition{Column: column, Operator: operator, Value: value})
	return b
}

// Eq filters column = value.
func (b *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	return b.Filter(column, "eq", value)
}

// Neq filters column <> value.
func (b *QueryBuilder) Neq(column string, value any) *QueryBuilder {
	return b.Filter(column, "neq", value)
}

// Gt filters column > value.
func (b *QueryBuilder) Gt(column string, value any) *QueryBuilder {
	return b.Filter(column, "gt", value)
}

// Lt filters column < value.
func (b *QueryBuilder) Lt(column string, value any) *QueryBuilder {
	return b.Filter(column, "lt", value)
}

// Gte filters column >= value.
func (b *QueryBuilder) Gte(column string, value any) *QueryBuilder {
	return b.Filter(column, "gte", value)
}

// Lte filters column <= value.
func (b *QueryBuilder) Lte(column string, value any) *QueryBuilder {
	return b.Filter(column, "lte", value)
}

// Like filters column LIKE pattern.
func (b *QueryBuilder) Like(column, pattern string) *QueryBuilder {
	return b.Filter(column, "like", pattern)
}

// Ilike filters column ILIKE pattern.
func (b *QueryBuilder) Ilike(column, pattern string) *QueryBuilder {
	return b.Filter(column, "ilike", pattern)
}

// In filters column membership in values.
func (b *QueryBuilder) In(column string, values any) *QueryBuilder {
	return b.Filter(column, "in", values)
}

// Is filters column IS null/true/false.
func (b *QueryBuilder) Is(column string, value any) *QueryBuilder {
	return b.Filter(column, "is", value)
}

// Not negates the given operator, e.g. Not("eq", "status", "draft").
func (b *QueryBuilder) Not(operator, column string, value any) *QueryBuilder {
	return b.Filter(column, "not."+operator, value)
}

// Order sorts by column.
func (b *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	b.d.OrderBy = &query.OrderBy{Column: column, Ascending: ascending}
	return b
}

// Limit caps the number of returned rows.
func (b *QueryBuilder) Limit(n int) *QueryBuilder {
	b.d.Limit = n
	return b
}

// Range selects rows from..to inclusive; it wins over Limit when both are set.
func (b *QueryBuilder) Range(from, to int) *QueryBuilder {
	b.d.Range = &query.Range{From: from, To: to}
	return b
}

// Single requires exactly one row: zero rows is not_found, more than one is
// multiple_rows.
func (b *QueryBuilder) Single() *QueryBuilder {
	b.d.Single = true
	return b
}

// MaybeSingle allows zero rows (null data, null error) but rejects more than
// one.
func (b *QueryBuilder) MaybeSingle() *QueryBuilder {
	b.d.MaybeSingle = true
	return b
}

// AllowFullTable opts in to an update or delete without conditions.
func (b *QueryBuilder) AllowFullTable() *QueryBuilder {
	b.d.AllowFullTable = true
	return b
}

// Descriptor returns the accumulated descriptor.
func (b *QueryBuilder) Descriptor() *query.Descriptor {
	return &b.d
}

// Execute resolves the descriptor through the active adapter.
func (b *QueryBuilder) Execute(ctx context.Context) query.Result {
	return b.r.run(ctx, &b.d)
}
