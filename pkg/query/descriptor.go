// Package query defines the backend-agnostic wire shapes shared by the
// Foliobase server and its client adapters: the Descriptor that represents
// one CRUD operation and the Result envelope every operation resolves to.
package query

// Operation identifies the kind of statement a Descriptor represents.
type Operation string

const (
	OpSelect Operation = "select"
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

// Condition is one filter predicate. All conditions on a Descriptor are ANDed
// in list order.
//
// Supported operators: eq, neq, gt, lt, gte, lte, like, ilike, in, is, and
// any of those prefixed with "not." for negation.
type Condition struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// Range selects rows From..To inclusive. It takes precedence over Limit when
// both are set.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// OrderBy names the sort column and direction for a select.
type OrderBy struct {
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

// Descriptor is the structured representation of one CRUD operation against a
// single table. Which fields are meaningful depends on Operation: Data drives
// insert/update/upsert, Where drives select/update/delete and narrows upsert
// reads, and the paging fields apply to select only.
type Descriptor struct {
	Table     string      `json:"table"`
	Operation Operation   `json:"operation"`
	Select    string      `json:"select,omitempty"`
	Where     []Condition `json:"where,omitempty"`
	// Data is a single object or a list of objects for mutating operations.
	Data        any      `json:"data,omitempty"`
	OrderBy     *OrderBy `json:"orderBy,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Range       *Range   `json:"range,omitempty"`
	Single      bool     `json:"single,omitempty"`
	MaybeSingle bool     `json:"maybeSingle,omitempty"`
	// OnConflict is the upsert conflict target column; defaults to "id".
	OnConflict string `json:"onConflict,omitempty"`
	// AllowFullTable opts in to an update or delete with an empty Where.
	// Without it such descriptors are rejected rather than silently
	// mutating every row.
	AllowFullTable bool `json:"allowFullTable,omitempty"`
}
