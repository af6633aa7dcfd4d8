package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Query is an immutable conjunction of field equality tests.
// The zero value is the empty query, which matches every record.
type Query struct {
	fields map[string]interface{}
	keys   []string
}

// Empty matches every record.
var Empty = Query{}

// New builds a Query from a field -> value mapping. The mapping is copied, so later
// changes to it do not affect the query.
//
// Values are mapped onto the JSON data model (nil, bool, string, json.Number,
// []interface{}, map[string]interface{}). Go numbers become json.Number, any slice or
// string-keyed map is converted element by element, so New(map[string]interface{}{"pop": 3})
// matches a decoded {"pop":3}. Values with no JSON form, such as structs, never match.
func New(fields map[string]interface{}) Query {
	if len(fields) == 0 {
		return Empty
	}
	q := Query{
		fields: make(map[string]interface{}, len(fields)),
		keys:   make([]string, 0, len(fields)),
	}
	for k, v := range fields {
		q.fields[k] = canonical(v)
		q.keys = append(q.keys, k)
	}
	sort.Strings(q.keys)
	return q
}

// Len returns the number of fields tested by the query.
func (q Query) Len() int {
	return len(q.keys)
}

// IsEmpty reports whether the query matches everything.
func (q Query) IsEmpty() bool {
	return len(q.keys) == 0
}

// Fields returns the field names in sorted order.
func (q Query) Fields() []string {
	res := make([]string, len(q.keys))
	copy(res, q.keys)
	return res
}

// Value returns the expected value for a field.
func (q Query) Value(field string) (interface{}, bool) {
	v, ok := q.fields[field]
	return v, ok
}

// Match reports whether every field of the query is present in the record with an
// exactly equal value. Numbers compare by exact decimal value, so 3 equals 3.0 but
// 9007199254740993 does not equal 9007199254740992. No other coercion happens: "3"
// does not equal 3, and a missing field does not equal null.
func (q Query) Match(record map[string]interface{}) bool {
	for _, k := range q.keys {
		got, ok := record[k]
		if !ok || !equal(q.fields[k], got) {
			return false
		}
	}
	return true
}

// String renders the query as a where clause accepted by Parse.
func (q Query) String() string {
	if q.IsEmpty() {
		return ""
	}
	parts := make([]string, len(q.keys))
	for i, k := range q.keys {
		parts[i] = formatField(k) + " = " + formatLiteral(q.fields[k])
	}
	return strings.Join(parts, " AND ")
}

func equal(want, got interface{}) bool {
	switch w := want.(type) {
	case nil:
		return got == nil
	case string:
		g, ok := got.(string)
		return ok && g == w
	case bool:
		g, ok := got.(bool)
		return ok && g == w
	case json.Number:
		g, ok := numberText(got)
		return ok && sameNumber(string(w), g)
	case map[string]interface{}:
		g, ok := got.(map[string]interface{})
		if !ok || len(g) != len(w) {
			return false
		}
		for k, wv := range w {
			gv, ok := g[k]
			if !ok || !equal(wv, gv) {
				return false
			}
		}
		return true
	case []interface{}:
		g, ok := got.([]interface{})
		if !ok || len(g) != len(w) {
			return false
		}
		for i := range w {
			if !equal(w[i], g[i]) {
				return false
			}
		}
		return true
	}
	// not a JSON value
	return false
}

// canonical maps a Go value onto the JSON data model: numbers become json.Number,
// slices and arrays []interface{}, maps with string keys map[string]interface{}.
func canonical(v interface{}) interface{} {
	switch n := v.(type) {
	case nil, bool, string, json.Number:
		return v
	case float64:
		return json.Number(strconv.FormatFloat(n, 'g', -1, 64))
	case map[string]interface{}:
		m := make(map[string]interface{}, len(n))
		for k, e := range n {
			m[k] = canonical(e)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(n))
		for i, e := range n {
			s[i] = canonical(e)
		}
		return s
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return json.Number(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return json.Number(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32:
		return json.Number(strconv.FormatFloat(rv.Float(), 'g', -1, 32))
	case reflect.Float64:
		return json.Number(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		s := make([]interface{}, rv.Len())
		for i := range s {
			s[i] = canonical(rv.Index(i).Interface())
		}
		return s
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		m := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = canonical(iter.Value().Interface())
		}
		return m
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return canonical(rv.Elem().Interface())
	}
	return v
}

func formatField(k string) string {
	if isIdent(k) && !isKeyword(k) {
		return k
	}
	return strconv.Quote(k)
}

func formatLiteral(v interface{}) string {
	switch l := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(l)
	case json.Number:
		return string(l)
	case bool:
		return strconv.FormatBool(l)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func isKeyword(s string) bool {
	switch strings.ToUpper(s) {
	case "AND", "TRUE", "FALSE", "NULL":
		return true
	}
	return false
}
