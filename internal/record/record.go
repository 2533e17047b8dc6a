package record

import (
	"sort"
	"strings"
)

// Record is a single row ready to be written: column name → storage primitive.
// A Record is built fresh for every entity and belongs to the caller.
type Record map[string]Value

// New returns an empty record with room for n columns.
func New(n int) Record {
	return make(Record, n)
}

// Put writes a column, replacing any previous value.
func (r Record) Put(column string, v Value) {
	r[column] = v
}

// Get returns the value of a column and whether it was written.
func (r Record) Get(column string) (Value, bool) {
	v, ok := r[column]
	return v, ok
}

// Columns returns the column names in lexical order, so statements built
// from a record are deterministic.
func (r Record) Columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Args returns the driver arguments for the given columns, in order.
func (r Record) Args(columns []string) []any {
	args := make([]any, len(columns))
	for i, c := range columns {
		args[i] = r[c].Any()
	}
	return args
}

// Clone returns an independent copy.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

func (r Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, c := range r.Columns() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c)
		b.WriteString(": ")
		b.WriteString(r[c].String())
	}
	b.WriteByte('}')
	return b.String()
}
