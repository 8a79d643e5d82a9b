package compiler

import (
	"reflect"
	"strings"
	"testing"

	"github.com/foliobase/foliobase/pkg/apperr"
	"github.com/foliobase/foliobase/pkg/query"
)

func TestCompile_SelectBasic(t *testing.T) {
	c := New(nil)
	sql, args, err := c.Compile(&query.Descriptor{
		Table:     "photos",
		Operation: query.OpSelect,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if sql != "SELECT * FROM photos" {
		t.Errorf("sql = %q", sql)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

func TestCompile_SelectFull(t *testing.T) {
	c := New(nil)
	sql, args, err := c.Compile(&query.Descriptor{
		Table:     "photos",
		Operation: query.OpSelect,
		Select:    "id, title",
		Where: []query.Condition{
			{Column: "album_id", Operator: "eq", Value: "A1"},
			{Column: "views", Operator: "gte", Value: 10},
		},
		OrderBy: &query.OrderBy{Column: "created_at", Ascending: true},
		Limit:   5,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := "SELECT id, title FROM photos WHERE album_id = $1 AND views >= $2 ORDER BY created_at ASC LIMIT 5"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{"A1", 10}) {
		t.Errorf("args = %v", args)
	}
}

func TestCompile_RangeWinsOverLimit(t *testing.T) {
	c := New(nil)
	sql, _, err := c.Compile(&query.Descriptor{
		Table:     "photos",
		Operation: query.OpSelect,
		Limit:     100,
		Range:     &query.Range{From: 10, To: 19},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.HasSuffix(sql, "LIMIT 10 OFFSET 10") {
		t.Errorf("sql = %q, want LIMIT 10 OFFSET 10 suffix", sql)
	}
}

func TestCompile_ConditionOperators(t *testing.T) {
	cases := []struct {
		op   string
		want string
	}{
		{"eq", "c = $1"},
		{"neq", "c <> $1"},
		{"gt", "c > $1"},
		{"lt", "c < $1"},
		{"gte", "c >= $1"},
		{"lte", "c <= $1"},
		{"like", "c LIKE $1"},
		{"ilike", "c ILIKE $1"},
		{"in", "c = ANY($1)"},
		{"not.eq", "NOT (c = $1)"},
		{"not.like", "NOT (c LIKE $1)"},
	}
	c := New(nil)
	for _, tc := range cases {
		sql, args, err := c.Compile(&query.Descriptor{
			Table:     "t",
			Operation: query.OpSelect,
			Where:     []query.Condition{{Column: "c", Operator: tc.op, Value: "v"}},
		})
		if err != nil {
			t.Fatalf("Compile(%s): %v", tc.op, err)
		}
		want := "SELECT * FROM t WHERE " + tc.want
		if sql != want {
			t.Errorf("op %s: sql = %q, want %q", tc.op, sql, want)
		}
		if len(args) != 1 {
			t.Errorf("op %s: args = %v, want one bound value", tc.op, args)
		}
	}
}

func TestCompile_IsCondition(t *testing.T) {
	c := New(nil)
	sql, args, err := c.Compile(&query.Descriptor{
		Table:     "pages",
		Operation: query.OpSelect,
		Where:     []query.Condition{{Column: "deleted_at", Operator: "is", Value: nil}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if sql != "SELECT * FROM pages WHERE deleted_at IS NULL" {
		t.Errorf("sql = %q", sql)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, is must not bind values", args)
	}

	sql, _, err = c.Compile(&query.Descriptor{
		Table:     "pages",
		Operation: query.OpSelect,
		Where:     []query.Condition{{Column: "published", Operator: "not.is", Value: true}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if sql != "SELECT * FROM pages WHERE published IS NOT TRUE" {
		t.Errorf("sql = %q", sql)
	}

	_, _, err = c.Compile(&query.Descriptor{
		Table:     "pages",
		Operation: query.OpSelect,
		Where:     []query.Condition{{Column: "x", Operator: "is", Value: "1; DROP TABLE pages"}},
	})
	if !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Errorf("is with arbitrary value: err = %v, want invalid_argument", err)
	}
}

func TestCompile_InsertSingle(t *testing.T) {
	c := New(nil)
	sql, args, err := c.Compile(&query.Descriptor{
		Table:     "albums",
		Operation: query.OpInsert,
		Data:      map[string]any{"title": "Travel", "slug": "travel"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// Columns render in sorted order for determinism.
	want := "INSERT INTO albums (slug, title) VALUES ($1, $2) RETURNING *"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{"travel", "Travel"}) {
		t.Errorf("args = %v", args)
	}
}

func TestCompile_InsertBulk(t *testing.T) {
	c := New(nil)
	sql, args, err := c.Compile(&query.Descriptor{
		Table:     "photos",
		Operation: query.OpInsert,
		Data: []any{
			map[string]any{"title": "a"},
			map[string]any{"title": "b"},
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := "INSERT INTO photos (title) VALUES ($1), ($2) RETURNING *"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{"a", "b"}) {
		t.Errorf("args = %v", args)
	}
}

func TestCompile_InsertEmptyData(t *testing.T) {
	c := New(nil)
	for _, data := range []any{nil, map[string]any{}, []any{}} {
		_, _, err := c.Compile(&query.Descriptor{
			Table:     "photos",
			Operation: query.OpInsert,
			Data:      data,
		})
		if !apperr.IsCode(err, apperr.CodeInvalidArgument) {
			t.Errorf("insert with %#v: err = %v, want invalid_argument", data, err)
		}
	}
}

func TestCompile_Update(t *testing.T) {
	c := New(nil)
	sql, args, err := c.Compile(&query.Descriptor{
		Table:     "pages",
		Operation: query.OpUpdate,
		Data:      map[string]any{"title": "Home", "published": true},
		Where:     []query.Condition{{Column: "id", Operator: "eq", Value: "p1"}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := "UPDATE pages SET published = $1, title = $2 WHERE id = $3 RETURNING *"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{true, "Home", "p1"}) {
		t.Errorf("args = %v", args)
	}
}

func TestCompile_UpdateEmptyWhereRejected(t *testing.T) {
	c := New(nil)
	_, _, err := c.Compile(&query.Descriptor{
		Table:     "pages",
		Operation: query.OpUpdate,
		Data:      map[string]any{"published": false},
	})
	if !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Fatalf("err = %v, want invalid_argument", err)
	}

	// Full-table update requires the explicit opt-in.
	sql, _, err := c.Compile(&query.Descriptor{
		Table:          "pages",
		Operation:      query.OpUpdate,
		Data:           map[string]any{"published": false},
		AllowFullTable: true,
	})
	if err != nil {
		t.Fatalf("Compile with allowFullTable: %v", err)
	}
	if strings.Contains(sql, "WHERE") {
		t.Errorf("sql = %q, want no WHERE", sql)
	}
}

func TestCompile_DeleteEmptyWhereRejected(t *testing.T) {
	c := New(nil)
	_, _, err := c.Compile(&query.Descriptor{
		Table:     "photos",
		Operation: query.OpDelete,
	})
	if !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Errorf("err = %v, want invalid_argument", err)
	}
}

func TestCompile_Delete(t *testing.T) {
	c := New(nil)
	sql, args, err := c.Compile(&query.Descriptor{
		Table:     "photos",
		Operation: query.OpDelete,
		Where:     []query.Condition{{Column: "album_id", Operator: "eq", Value: "A1"}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := "DELETE FROM photos WHERE album_id = $1 RETURNING *"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{"A1"}) {
		t.Errorf("args = %v", args)
	}
}

func TestCompile_Upsert(t *testing.T) {
	c := New(nil)
	sql, args, err := c.Compile(&query.Descriptor{
		Table:     "settings",
		Operation: query.OpUpsert,
		Data:      map[string]any{"id": "site", "value": "v1"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := "INSERT INTO settings (id, value) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value RETURNING *"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{"site", "v1"}) {
		t.Errorf("args = %v", args)
	}
}

func TestCompile_UpsertCustomTarget(t *testing.T) {
	c := New(nil)
	sql, _, err := c.Compile(&query.Descriptor{
		Table:      "pages",
		Operation:  query.OpUpsert,
		Data:       map[string]any{"slug": "about", "title": "About"},
		OnConflict: "slug",
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(sql, "ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title") {
		t.Errorf("sql = %q", sql)
	}
}

func TestCompile_UpsertOnlyConflictColumn(t *testing.T) {
	c := New(nil)
	sql, _, err := c.Compile(&query.Descriptor{
		Table:     "settings",
		Operation: query.OpUpsert,
		Data:      map[string]any{"id": "site"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(sql, "DO NOTHING") {
		t.Errorf("sql = %q, want DO NOTHING when no updatable columns remain", sql)
	}
}

func TestCompile_IdentifierInjection(t *testing.T) {
	c := New(nil)
	bad := []*query.Descriptor{
		{Table: "photos; DROP TABLE users", Operation: query.OpSelect},
		{Table: "photos", Operation: query.OpSelect, Select: "id, 1; --"},
		{Table: "photos", Operation: query.OpSelect, Where: []query.Condition{{Column: "id = id; --", Operator: "eq", Value: 1}}},
		{Table: "photos", Operation: query.OpSelect, OrderBy: &query.OrderBy{Column: "id; --"}},
		{Table: "photos", Operation: query.OpInsert, Data: map[string]any{"a\"b": 1}},
		{Table: "photos", Operation: query.OpUpsert, Data: map[string]any{"id": 1}, OnConflict: "id) --"},
	}
	for _, d := range bad {
		if _, _, err := c.Compile(d); !apperr.IsCode(err, apperr.CodeInvalidArgument) {
			t.Errorf("descriptor %+v: err = %v, want invalid_argument", d, err)
		}
	}
}

func TestCompile_TableAllowList(t *testing.T) {
	c := New([]string{"photos", "albums"})
	if _, _, err := c.Compile(&query.Descriptor{Table: "photos", Operation: query.OpSelect}); err != nil {
		t.Errorf("allowed table rejected: %v", err)
	}
	_, _, err := c.Compile(&query.Descriptor{Table: "users", Operation: query.OpSelect})
	if !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Errorf("err = %v, want invalid_argument for table outside allow-list", err)
	}
}

func TestCompile_MissingTableOrOperation(t *testing.T) {
	c := New(nil)
	if _, _, err := c.Compile(&query.Descriptor{Operation: query.OpSelect}); !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Errorf("missing table: err = %v", err)
	}
	if _, _, err := c.Compile(&query.Descriptor{Table: "photos"}); !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Errorf("missing operation: err = %v", err)
	}
}
