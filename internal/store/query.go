package store

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Operator is a filter comparison.
type Operator string

const (
	Eq  Operator = "=="
	Neq Operator = "!="
	Lt  Operator = "<"
	Lte Operator = "<="
	Gt  Operator = ">"
	Gte Operator = ">="
	In  Operator = "in"
)

// MaxInValues bounds the value list of an In filter.
const MaxInValues = 30

// Direction orders query results.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter restricts a query to documents whose Field compares to Value.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// Order sorts a query.
type Order struct {
	Field     string
	Direction Direction
}

// Query selects documents from one collection.
type Query struct {
	Collection Path
	Filters    []Filter
	Order      *Order
	Limit      int
}

// From starts a query over a collection.
func From(collection Path) Query {
	return Query{Collection: collection}
}

// Where adds a filter.
func (q Query) Where(field string, op Operator, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

// OrderBy sorts results. Documents without the field are excluded.
func (q Query) OrderBy(field string, dir Direction) Query {
	q.Order = &Order{Field: field, Direction: dir}
	return q
}

// WithLimit caps the number of results. Zero means no limit.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Validate checks the query shape.
func (q Query) Validate() error {
	const op = "query"
	if !q.Collection.IsCollection() {
		return newError(Invalid, op, q.Collection, fmt.Errorf("%q is not a collection", q.Collection))
	}
	if q.Limit < 0 {
		return newError(Invalid, op, q.Collection, fmt.Errorf("negative limit %d", q.Limit))
	}
	for _, f := range q.Filters {
		if strings.TrimSpace(f.Field) == "" {
			return newError(Invalid, op, q.Collection, fmt.Errorf("empty filter field"))
		}
		switch f.Op {
		case Eq, Neq, Lt, Lte, Gt, Gte:
		case In:
			values, ok := inValues(f.Value)
			if !ok {
				return newError(Invalid, op, q.Collection, fmt.Errorf("filter %s in: value must be a list", f.Field))
			}
			if len(values) == 0 {
				return newError(Invalid, op, q.Collection, fmt.Errorf("filter %s in: empty value list", f.Field))
			}
			if len(values) > MaxInValues {
				return newError(Invalid, op, q.Collection, fmt.Errorf("filter %s in: more than %d values", f.Field, MaxInValues))
			}
		default:
			return newError(Invalid, op, q.Collection, fmt.Errorf("unsupported operator %q", f.Op))
		}
	}
	if q.Order != nil && strings.TrimSpace(q.Order.Field) == "" {
		return newError(Invalid, op, q.Collection, fmt.Errorf("empty order field"))
	}
	return nil
}

// inValues flattens any slice into []any.
func inValues(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// fieldValue resolves a field. The pseudo field "__name__" is the document ID.
func fieldValue(d Document, field string) (any, bool) {
	if field == DocumentID {
		return d.ID(), true
	}
	v, ok := d.Fields[field]
	return v, ok
}

// DocumentID is the pseudo field naming a document's ID in filters.
const DocumentID = "__name__"

func matches(d Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fieldValue(d, f.Field)
		if !ok {
			return false
		}
		switch f.Op {
		case In:
			values, _ := inValues(f.Value)
			found := false
			for _, want := range values {
				if c, ok := compare(v, normalize(want)); ok && c == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			c, ok := compare(v, normalize(f.Value))
			if !ok {
				if f.Op == Neq {
					continue
				}
				return false
			}
			if !holds(f.Op, c) {
				return false
			}
		}
	}
	return true
}

func holds(op Operator, c int) bool {
	switch op {
	case Eq:
		return c == 0
	case Neq:
		return c != 0
	case Lt:
		return c < 0
	case Lte:
		return c <= 0
	case Gt:
		return c > 0
	case Gte:
		return c >= 0
	}
	return false
}

// compare orders two values of the same family. ok is false for
// incomparable values.
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case float64:
		y, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		return cmpFloat(x, y), true
	}
	if x, ok := toInt64(a); ok {
		if f, isFloat := b.(float64); isFloat {
			return cmpFloat(float64(x), f), true
		}
		y, ok := toInt64(b)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	if f, ok := v.(float64); ok {
		return f, true
	}
	n, ok := toInt64(v)
	return float64(n), ok
}

func cmpFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// evaluate runs q over an unfiltered collection listing. Backends that
// cannot push filters down to the database use it directly.
func evaluate(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if !d.Exists || d.Path.Parent() != q.Collection {
			continue
		}
		if !matches(d, q.Filters) {
			continue
		}
		if q.Order != nil {
			if _, ok := fieldValue(d, q.Order.Field); !ok {
				continue
			}
		}
		out = append(out, d)
	}
	sortDocuments(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func sortDocuments(docs []Document, order *Order) {
	sort.SliceStable(docs, func(i, j int) bool {
		if order != nil {
			a, _ := fieldValue(docs[i], order.Field)
			b, _ := fieldValue(docs[j], order.Field)
			if c, ok := compare(a, b); ok && c != 0 {
				if order.Direction == Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return docs[i].ID() < docs[j].ID()
	})
}
