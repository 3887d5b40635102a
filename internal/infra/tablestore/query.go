package tablestore

import (
	"net/url"
	"strconv"
	"strings"
)

// Query accumulates PostgREST query parameters in insertion order.
// A nil *Query encodes to the empty string.
type Query struct {
	parts []string
}

// NewQuery starts an empty query.
func NewQuery() *Query { return &Query{} }

// Select restricts the returned columns.
func (q *Query) Select(cols string) *Query {
	return q.add("select=" + cols)
}

// Eq adds an equality filter.
func (q *Query) Eq(field, value string) *Query {
	return q.add(field + "=eq." + url.QueryEscape(value))
}

// EqInt adds an equality filter on an integer column.
func (q *Query) EqInt(field string, value int) *Query {
	return q.Eq(field, strconv.Itoa(value))
}

// Contains adds a case-insensitive substring match on field.
func (q *Query) Contains(field, keyword string) *Query {
	return q.add(field + "=ilike." + url.QueryEscape("*"+keyword+"*"))
}

// Order sorts by field.
func (q *Query) Order(field string, desc bool) *Query {
	dir := "asc"
	if desc {
		dir = "desc"
	}
	return q.add("order=" + field + "." + dir)
}

// Offset skips n rows.
func (q *Query) Offset(n int) *Query {
	return q.add("offset=" + strconv.Itoa(n))
}

// Limit caps the number of rows.
func (q *Query) Limit(n int) *Query {
	return q.add("limit=" + strconv.Itoa(n))
}

// Page applies offset and limit when they are meaningful.
func (q *Query) Page(offset, limit int) *Query {
	if offset > 0 {
		q.Offset(offset)
	}
	if limit > 0 {
		q.Limit(limit)
	}
	return q
}

// Encode joins the parameters with '&'.
func (q *Query) Encode() string {
	if q == nil {
		return ""
	}
	return strings.Join(q.parts, "&")
}

func (q *Query) add(p string) *Query {
	q.parts = append(q.parts, p)
	return q
}
