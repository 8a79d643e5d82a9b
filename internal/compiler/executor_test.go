package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/foliobase/foliobase/pkg/apperr"
	"github.com/foliobase/foliobase/pkg/query"
)

// fakeRows implements pgx.Rows over a fixed set of in-memory rows.
type fakeRows struct {
	cols []string
	rows [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                       {}
func (r *fakeRows) Err() error                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) Next() bool {
	if r.err != nil || r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}
func (r *fakeRows) Scan(dest ...any) error { return errors.New("not implemented") }
func (r *fakeRows) Values() ([]any, error) { return r.rows[r.pos-1], nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}

// fakeDB records the last statement and serves canned rows.
type fakeDB struct {
	lastSQL  string
	lastArgs []any
	rows     *fakeRows
	queryErr error
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.lastSQL = sql
	db.lastArgs = args
	if db.queryErr != nil {
		return nil, db.queryErr
	}
	return db.rows, nil
}

func TestExecute_SelectList(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{
		cols: []string{"id", "title"},
		rows: [][]any{{"1", "a"}, {"2", "b"}},
	}}
	e := NewExecutor(db, New(nil))

	res := e.Execute(context.Background(), &query.Descriptor{Table: "photos", Operation: query.OpSelect})
	if res.Error != nil {
		t.Fatalf("Execute: %v", res.Error)
	}
	list, ok := res.Data.([]map[string]any)
	if !ok || len(list) != 2 {
		t.Fatalf("data = %#v, want two rows", res.Data)
	}
	if list[0]["title"] != "a" || list[1]["id"] != "2" {
		t.Errorf("rows = %v", list)
	}
	if res.Count == nil || *res.Count != 2 {
		t.Errorf("count = %v, want 2", res.Count)
	}
}

func TestExecute_SingleSemantics(t *testing.T) {
	// Exactly one row resolves to the row itself.
	db := &fakeDB{rows: &fakeRows{cols: []string{"id"}, rows: [][]any{{"1"}}}}
	e := NewExecutor(db, New(nil))
	res := e.Execute(context.Background(), &query.Descriptor{Table: "t", Operation: query.OpSelect, Single: true})
	if res.Error != nil {
		t.Fatalf("Execute: %v", res.Error)
	}
	row, ok := res.Data.(map[string]any)
	if !ok || row["id"] != "1" {
		t.Errorf("data = %#v, want single row", res.Data)
	}

	// Zero rows is not_found.
	db.rows = &fakeRows{cols: []string{"id"}}
	res = e.Execute(context.Background(), &query.Descriptor{Table: "t", Operation: query.OpSelect, Single: true})
	if res.Error == nil || res.Error.Code != apperr.CodeNotFound {
		t.Errorf("error = %v, want not_found", res.Error)
	}

	// More than one row is multiple_rows.
	db.rows = &fakeRows{cols: []string{"id"}, rows: [][]any{{"1"}, {"2"}}}
	res = e.Execute(context.Background(), &query.Descriptor{Table: "t", Operation: query.OpSelect, Single: true})
	if res.Error == nil || res.Error.Code != apperr.CodeMultipleRows {
		t.Errorf("error = %v, want multiple_rows", res.Error)
	}
}

func TestExecute_MaybeSingleSemantics(t *testing.T) {
	// Zero rows resolves to null data and null error.
	db := &fakeDB{rows: &fakeRows{cols: []string{"id"}}}
	e := NewExecutor(db, New(nil))
	res := e.Execute(context.Background(), &query.Descriptor{Table: "t", Operation: query.OpSelect, MaybeSingle: true})
	if res.Error != nil {
		t.Fatalf("error = %v, want nil", res.Error)
	}
	if res.Data != nil {
		t.Errorf("data = %#v, want nil", res.Data)
	}

	// More than one row still errors.
	db.rows = &fakeRows{cols: []string{"id"}, rows: [][]any{{"1"}, {"2"}}}
	res = e.Execute(context.Background(), &query.Descriptor{Table: "t", Operation: query.OpSelect, MaybeSingle: true})
	if res.Error == nil || res.Error.Code != apperr.CodeMultipleRows {
		t.Errorf("error = %v, want multiple_rows", res.Error)
	}
}

func TestExecute_MalformedDescriptorSkipsDB(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{}}
	e := NewExecutor(db, New(nil))
	res := e.Execute(context.Background(), &query.Descriptor{Operation: query.OpSelect})
	if res.Error == nil || res.Error.Code != apperr.CodeInvalidArgument {
		t.Fatalf("error = %v, want invalid_argument", res.Error)
	}
	if db.lastSQL != "" {
		t.Errorf("database was queried with %q, want no round-trip", db.lastSQL)
	}
}

func TestExecute_UniqueViolationIsConflict(t *testing.T) {
	db := &fakeDB{queryErr: &pgconn.PgError{Code: "23505", Message: "duplicate key"}}
	e := NewExecutor(db, New(nil))
	res := e.Execute(context.Background(), &query.Descriptor{
		Table:     "albums",
		Operation: query.OpInsert,
		Data:      map[string]any{"slug": "travel"},
	})
	if res.Error == nil || res.Error.Code != apperr.CodeConflict {
		t.Errorf("error = %v, want conflict", res.Error)
	}
}

func TestExecute_DBFailureIsExecutionError(t *testing.T) {
	db := &fakeDB{queryErr: errors.New("connection refused")}
	e := NewExecutor(db, New(nil))
	res := e.Execute(context.Background(), &query.Descriptor{Table: "t", Operation: query.OpSelect})
	if res.Error == nil || res.Error.Code != apperr.CodeExecutionError {
		t.Errorf("error = %v, want execution_error", res.Error)
	}
}

func TestExecute_RowErrSurfaces(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{err: errors.New("constraint violated during returning")}}
	e := NewExecutor(db, New(nil))
	res := e.Execute(context.Background(), &query.Descriptor{
		Table:     "t",
		Operation: query.OpDelete,
		Where:     []query.Condition{{Column: "id", Operator: "eq", Value: "1"}},
	})
	if res.Error == nil || res.Error.Code != apperr.CodeExecutionError {
		t.Errorf("error = %v, want execution_error", res.Error)
	}
}

func TestExecute_EmptySelectReturnsEmptyList(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{cols: []string{"id"}}}
	e := NewExecutor(db, New(nil))
	res := e.Execute(context.Background(), &query.Descriptor{
		Table:     "photos",
		Operation: query.OpSelect,
		Where:     []query.Condition{{Column: "album_id", Operator: "eq", Value: "A1"}},
	})
	if res.Error != nil {
		t.Fatalf("error = %v", res.Error)
	}
	list, ok := res.Data.([]map[string]any)
	if !ok || len(list) != 0 {
		t.Errorf("data = %#v, want empty list", res.Data)
	}
}
