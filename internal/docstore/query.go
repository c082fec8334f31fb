package docstore

import (
	"slices"
	"strings"
	"time"
)

type Filter struct {
	Field string
	Value any
}

// Query selects documents of one collection. Only equality filters exist.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

func Collection(path string) Query {
	return Query{Collection: path}
}

func (q Query) Where(field string, value any) Query {
	q.Filters = append(slices.Clone(q.Filters), Filter{Field: field, Value: value})
	return q
}

func (q Query) Order(field string, descending bool) Query {
	q.OrderBy = field
	q.Descending = descending
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Matches reports whether doc belongs to the query's collection and passes
// its filters.
func (q Query) Matches(doc *Document) bool {
	collection, _, err := Split(doc.Path)
	if err != nil || collection != q.Collection {
		return false
	}
	for _, f := range q.Filters {
		if !equal(doc.Data[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// Apply filters, orders and limits docs in memory. Documents without the
// order field sort after the ones that have it in both directions.
func (q Query) Apply(docs []*Document) []*Document {
	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	if q.OrderBy != "" {
		slices.SortStableFunc(out, func(a, b *Document) int {
			av, aok := a.Data[q.OrderBy]
			bv, bok := b.Data[q.OrderBy]
			aok = aok && av != nil
			bok = bok && bv != nil
			switch {
			case !aok && !bok:
				return 0
			case !aok:
				return 1
			case !bok:
				return -1
			}
			c := compare(av, bv)
			if q.Descending {
				return -c
			}
			return c
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func equal(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return a == b
}

func compare(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
