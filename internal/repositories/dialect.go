package repositories

import (
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Dialect selects placeholder syntax. Queries are written with "?".
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// anyOf renders a membership test of column against ids and appends the
// bind values to args. Postgres binds the whole list as one array.
func (d Dialect) anyOf(column string, ids []int64, args []interface{}) (string, []interface{}) {
	if d == Postgres {
		return column + " = ANY(?)", append(args, pq.Array(ids))
	}
	marks := make([]string, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args = append(args, id)
	}
	return column + " IN (" + strings.Join(marks, ", ") + ")", args
}
