// Package record parses newline-delimited JSON measurement records.
package record

// DataIDField is the discriminator field naming a record's target table.
const DataIDField = "DataId"

// Field is one name/value pair of a record, in input order.
type Field struct {
	Name  string
	Value interface{}
}

// Record is one parsed measurement object. Fields keep the order they
// appeared in the input so that downstream inserts can pair column order
// with value order. Records are immutable once parsed.
type Record struct {
	fields []Field
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// Columns returns the field names in input order.
func (r Record) Columns() []string {
	cols := make([]string, len(r.fields))
	for i, f := range r.fields {
		cols[i] = f.Name
	}
	return cols
}

// Values returns the field values in input order, matching Columns.
func (r Record) Values() []interface{} {
	vals := make([]interface{}, len(r.fields))
	for i, f := range r.fields {
		vals[i] = f.Value
	}
	return vals
}

// Get returns the value of the named field.
func (r Record) Get(name string) (interface{}, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// DataID returns the discriminator field value, if present and a string.
func (r Record) DataID() (string, bool) {
	v, ok := r.Get(DataIDField)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float64 returns the named field as a float64. Integral values convert;
// non-numeric or missing fields report false.
func (r Record) Float64(name string) (float64, bool) {
	v, ok := r.Get(name)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}
