// Package compiler turns a backend-agnostic query.Descriptor into one
// parameterized SQL statement and executes it against Postgres. Values are
// always bound as parameters; identifiers are validated before they are
// placed in statement text.
package compiler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/foliobase/foliobase/pkg/apperr"
	"github.com/foliobase/foliobase/pkg/query"
)

// Postgres caps identifiers at 63 bytes.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// Compiler compiles descriptors to SQL. The zero value accepts any
// identifier-safe table name; set AllowedTables to restrict compilation to a
// known schema.
type Compiler struct {
	AllowedTables map[string]struct{}
}

// New creates a Compiler restricted to the given tables. An empty list means
// any identifier-safe table is accepted.
func New(tables []string) *Compiler {
	c := &Compiler{}
	if len(tables) > 0 {
		c.AllowedTables = make(map[string]struct{}, len(tables))
		for _, t := range tables {
			c.AllowedTables[t] = struct{}{}
		}
	}
	return c
}

// Compile translates d into a parameterized SQL statement. It never
// interpolates caller-supplied values into statement text; a malformed
// descriptor returns an invalid_argument error and no statement.
func (c *Compiler) Compile(d *query.Descriptor) (string, []any, error) {
	if d == nil || d.Table == "" {
		return "", nil, apperr.InvalidArgument("table is required")
	}
	if err := c.checkTable(d.Table); err != nil {
		return "", nil, err
	}

	switch d.Operation {
	case query.OpSelect:
		return c.compileSelect(d)
	case query.OpInsert:
		return c.compileInsert(d)
	case query.OpUpdate:
		return c.compileUpdate(d)
	case query.OpUpsert:
		return c.compileUpsert(d)
	case query.OpDelete:
		return c.compileDelete(d)
	case "":
		return "", nil, apperr.InvalidArgument("operation is required")
	default:
		return "", nil, apperr.InvalidArgument(fmt.Sprintf("unknown operation %q", d.Operation))
	}
}

func (c *Compiler) checkTable(table string) error {
	if !identPattern.MatchString(table) {
		return apperr.InvalidArgument(fmt.Sprintf("invalid table name %q", table))
	}
	if c.AllowedTables != nil {
		if _, ok := c.AllowedTables[table]; !ok {
			return apperr.InvalidArgument(fmt.Sprintf("table %q is not queryable", table))
		}
	}
	return nil
}

func checkColumn(name string) error {
	if !identPattern.MatchString(name) {
		return apperr.InvalidArgument(fmt.Sprintf("invalid column name %q", name))
	}
	return nil
}

// selectList validates a comma-separated projection. Empty means "*".
func selectList(sel string) (string, error) {
	if strings.TrimSpace(sel) == "" || strings.TrimSpace(sel) == "*" {
		return "*", nil
	}
	parts := strings.Split(sel, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if err := checkColumn(p); err != nil {
			return "", err
		}
		cols = append(cols, p)
	}
	return strings.Join(cols, ", "), nil
}

func (c *Compiler) compileSelect(d *query.Descriptor) (string, []any, error) {
	cols, err := selectList(d.Select)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	var args []any
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, d.Table)

	if err := renderWhere(&sb, d.Where, &args); err != nil {
		return "", nil, err
	}

	if d.OrderBy != nil {
		if err := checkColumn(d.OrderBy.Column); err != nil {
			return "", nil, err
		}
		dir := "DESC"
		if d.OrderBy.Ascending {
			dir = "ASC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", d.OrderBy.Column, dir)
	}

	// Range wins over Limit when both are set.
	switch {
	case d.Range != nil:
		if d.Range.From < 0 || d.Range.To < d.Range.From {
			return "", nil, apperr.InvalidArgument("invalid range")
		}
		fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", d.Range.To-d.Range.From+1, d.Range.From)
	case d.Limit > 0:
		fmt.Fprintf(&sb, " LIMIT %d", d.Limit)
	case d.Limit < 0:
		return "", nil, apperr.InvalidArgument("invalid limit")
	}

	return sb.String(), args, nil
}

func (c *Compiler) compileInsert(d *query.Descriptor) (string, []any, error) {
	rows, cols, err := dataRows(d.Data)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	var args []any
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", d.Table, strings.Join(cols, ", "))
	if err := renderValues(&sb, rows, cols, &args); err != nil {
		return "", nil, err
	}
	sb.WriteString(" RETURNING *")
	return sb.String(), args, nil
}

func (c *Compiler) compileUpdate(d *query.Descriptor) (string, []any, error) {
	row, err := singleRow(d.Data)
	if err != nil {
		return "", nil, err
	}
	if len(d.Where) == 0 && !d.AllowFullTable {
		return "", nil, apperr.InvalidArgument("update without conditions requires allowFullTable")
	}

	var sb strings.Builder
	var args []any
	fmt.Fprintf(&sb, "UPDATE %s SET ", d.Table)
	cols := sortedKeys(row)
	for i, col := range cols {
		if err := checkColumn(col); err != nil {
			return "", nil, err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, row[col])
		fmt.Fprintf(&sb, "%s = $%d", col, len(args))
	}
	if err := renderWhere(&sb, d.Where, &args); err != nil {
		return "", nil, err
	}
	sb.WriteString(" RETURNING *")
	return sb.String(), args, nil
}

func (c *Compiler) compileUpsert(d *query.Descriptor) (string, []any, error) {
	rows, cols, err := dataRows(d.Data)
	if err != nil {
		return "", nil, err
	}
	target := d.OnConflict
	if target == "" {
		target = "id"
	}
	if err := checkColumn(target); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	var args []any
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", d.Table, strings.Join(cols, ", "))
	if err := renderValues(&sb, rows, cols, &args); err != nil {
		return "", nil, err
	}

	// Conflict column is excluded from the update list.
	var updates []string
	for _, col := range cols {
		if col == target {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	if len(updates) == 0 {
		fmt.Fprintf(&sb, " ON CONFLICT (%s) DO NOTHING", target)
	} else {
		fmt.Fprintf(&sb, " ON CONFLICT (%s) DO UPDATE SET %s", target, strings.Join(updates, ", "))
	}
	sb.WriteString(" RETURNING *")
	return sb.String(), args, nil
}

func (c *Compiler) compileDelete(d *query.Descriptor) (string, []any, error) {
	if len(d.Where) == 0 && !d.AllowFullTable {
		return "", nil, apperr.InvalidArgument("delete without conditions requires allowFullTable")
	}

	var sb strings.Builder
	var args []any
	fmt.Fprintf(&sb, "DELETE FROM %s", d.Table)
	if err := renderWhere(&sb, d.Where, &args); err != nil {
		return "", nil, err
	}
	sb.WriteString(" RETURNING *")
	return sb.String(), args, nil
}

// renderWhere appends a WHERE clause with all conditions ANDed in list order.
func renderWhere(sb *strings.Builder, conds []query.Condition, args *[]any) error {
	for i, cond := range conds {
		frag, err := renderCondition(cond, args)
		if err != nil {
			return err
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(frag)
	}
	return nil
}

func renderCondition(cond query.Condition, args *[]any) (string, error) {
	if err := checkColumn(cond.Column); err != nil {
		return "", err
	}
	op := cond.Operator
	negated := strings.HasPrefix(op, "not.")
	if negated {
		op = strings.TrimPrefix(op, "not.")
	}

	if op == "is" {
		kw, err := isKeyword(cond.Value)
		if err != nil {
			return "", err
		}
		if negated {
			return fmt.Sprintf("%s IS NOT %s", cond.Column, kw), nil
		}
		return fmt.Sprintf("%s IS %s", cond.Column, kw), nil
	}

	var frag string
	switch op {
	case "eq":
		frag = bindFrag(cond.Column, "=", cond.Value, args)
	case "neq":
		frag = bindFrag(cond.Column, "<>", cond.Value, args)
	case "gt":
		frag = bindFrag(cond.Column, ">", cond.Value, args)
	case "lt":
		frag = bindFrag(cond.Column, "<", cond.Value, args)
	case "gte":
		frag = bindFrag(cond.Column, ">=", cond.Value, args)
	case "lte":
		frag = bindFrag(cond.Column, "<=", cond.Value, args)
	case "like":
		frag = bindFrag(cond.Column, "LIKE", cond.Value, args)
	case "ilike":
		frag = bindFrag(cond.Column, "ILIKE", cond.Value, args)
	case "in":
		*args = append(*args, cond.Value)
		frag = fmt.Sprintf("%s = ANY($%d)", cond.Column, len(*args))
	default:
		return "", apperr.InvalidArgument(fmt.Sprintf("unknown operator %q", cond.Operator))
	}
	if negated {
		frag = "NOT (" + frag + ")"
	}
	return frag, nil
}

func bindFrag(col, sqlOp string, value any, args *[]any) string {
	*args = append(*args, value)
	return fmt.Sprintf("%s %s $%d", col, sqlOp, len(*args))
}

// isKeyword maps the value of an "is" condition onto a fixed SQL keyword.
// The value is never rendered directly.
func isKeyword(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "null":
			return "NULL", nil
		case "true":
			return "TRUE", nil
		case "false":
			return "FALSE", nil
		}
	}
	return "", apperr.InvalidArgument(`"is" accepts only null, true or false`)
}

// dataRows normalizes Data into one or more rows with a common column set.
// A bare object is one row; a list is a bulk operation spanning every element.
func dataRows(data any) ([]map[string]any, []string, error) {
	var rows []map[string]any
	switch t := data.(type) {
	case nil:
		return nil, nil, apperr.InvalidArgument("data is required")
	case map[string]any:
		rows = []map[string]any{t}
	case []map[string]any:
		rows = t
	case []any:
		for _, el := range t {
			m, ok := el.(map[string]any)
			if !ok {
				return nil, nil, apperr.InvalidArgument("data list elements must be objects")
			}
			rows = append(rows, m)
		}
	default:
		return nil, nil, apperr.InvalidArgument("data must be an object or a list of objects")
	}
	if len(rows) == 0 {
		return nil, nil, apperr.InvalidArgument("data is empty")
	}

	cols := sortedKeys(rows[0])
	if len(cols) == 0 {
		return nil, nil, apperr.InvalidArgument("data has no columns")
	}
	for _, col := range cols {
		if err := checkColumn(col); err != nil {
			return nil, nil, err
		}
	}
	for _, row := range rows {
		if len(row) != len(cols) {
			return nil, nil, apperr.InvalidArgument("all rows must share the same columns")
		}
		for _, col := range cols {
			if _, ok := row[col]; !ok {
				return nil, nil, apperr.InvalidArgument("all rows must share the same columns")
			}
		}
	}
	return rows, cols, nil
}

func singleRow(data any) (map[string]any, error) {
	rows, _, err := dataRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, apperr.InvalidArgument("update accepts exactly one data object")
	}
	return rows[0], nil
}

func renderValues(sb *strings.Builder, rows []map[string]any, cols []string, args *[]any) error {
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, col := range cols {
			if j > 0 {
				sb.WriteString(", ")
			}
			*args = append(*args, row[col])
			fmt.Fprintf(sb, "$%d", len(*args))
		}
		sb.WriteString(")")
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
