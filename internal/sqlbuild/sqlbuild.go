// Package sqlbuild renders the statements of the DB blocks for one SQL
// dialect. Identifiers are always quoted and values always bound as
// arguments.
package sqlbuild

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/meikuraledutech/flow"
)

var (
	ErrNoColumns   = errors.New("sqlbuild: no columns to write")
	ErrNoTable     = errors.New("sqlbuild: table is required")
	ErrBadOperator = errors.New("sqlbuild: operator not supported in SQL")
)

// Dialect describes the SQL flavour of a database.
type Dialect struct {
	// Placeholder returns the n-th (1-based) bind placeholder.
	Placeholder func(n int) string
	// Quote quotes an identifier, which may be schema qualified.
	Quote func(ident string) string
	// NoLimit is the LIMIT value meaning "all rows", used when only an
	// offset is given.
	NoLimit string
	// Value converts a bound value into one the driver accepts. Nil means
	// values are passed through.
	Value func(v any) (any, error)
}

// Statement is rendered SQL with its arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Postgres uses $n placeholders.
var Postgres = Dialect{
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	Quote:       QuoteIdent,
	NoLimit:     "ALL",
}

// SQLite uses ? placeholders.
var SQLite = Dialect{
	Placeholder: func(int) string { return "?" },
	Quote:       QuoteIdent,
	NoLimit:     "-1",
}

// QuoteIdent double-quotes each dot separated part of ident.
func QuoteIdent(ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

type builder struct {
	d    Dialect
	sb   strings.Builder
	args []any
	err  error
}

func (b *builder) bind(v any) string {
	if b.d.Value != nil && b.err == nil {
		v, b.err = b.d.Value(v)
	}
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

func (b *builder) statement() (Statement, error) {
	if b.err != nil {
		return Statement{}, b.err
	}
	return Statement{SQL: b.sb.String(), Args: b.args}, nil
}

// Select renders a SELECT for q.
func (d Dialect) Select(q flow.Query) (Statement, error) {
	if q.Table == "" {
		return Statement{}, ErrNoTable
	}
	b := &builder{d: d}
	b.sb.WriteString("SELECT ")
	if len(q.Fields) == 0 {
		b.sb.WriteString("*")
	} else {
		for i, f := range q.Fields {
			if i > 0 {
				b.sb.WriteString(", ")
			}
			b.sb.WriteString(d.Quote(f))
		}
	}
	b.sb.WriteString(" FROM ")
	b.sb.WriteString(d.Quote(q.Table))
	if err := b.where(q.Where); err != nil {
		return Statement{}, err
	}
	if q.OrderBy != "" {
		b.sb.WriteString(" ORDER BY ")
		b.sb.WriteString(d.Quote(q.OrderBy))
		if q.Desc {
			b.sb.WriteString(" DESC")
		}
	}
	switch {
	case q.Limit > 0:
		fmt.Fprintf(&b.sb, " LIMIT %d", q.Limit)
	case q.Offset > 0:
		b.sb.WriteString(" LIMIT " + d.NoLimit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b.sb, " OFFSET %d", q.Offset)
	}
	return b.statement()
}

// Insert renders a single-row INSERT returning the stored row.
func (d Dialect) Insert(table string, row map[string]any) (Statement, error) {
	return d.InsertBulk(table, []map[string]any{row})
}

// InsertBulk renders a multi-row INSERT returning the stored rows. The
// column list is the union of the rows' keys; a row lacking a column binds
// NULL for it.
func (d Dialect) InsertBulk(table string, rows []map[string]any) (Statement, error) {
	if table == "" {
		return Statement{}, ErrNoTable
	}
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !slices.Contains(cols, k) {
				cols = append(cols, k)
			}
		}
	}
	if len(cols) == 0 {
		return Statement{}, ErrNoColumns
	}
	slices.Sort(cols)

	b := &builder{d: d}
	fmt.Fprintf(&b.sb, "INSERT INTO %s (", d.Quote(table))
	for i, c := range cols {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(d.Quote(c))
	}
	b.sb.WriteString(") VALUES ")
	for i, row := range rows {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString("(")
		for j, c := range cols {
			if j > 0 {
				b.sb.WriteString(", ")
			}
			b.sb.WriteString(b.bind(row[c]))
		}
		b.sb.WriteString(")")
	}
	b.sb.WriteString(" RETURNING *")
	return b.statement()
}

// Update renders an UPDATE of the rows matching q.Where.
func (d Dialect) Update(q flow.Query, row map[string]any) (Statement, error) {
	if q.Table == "" {
		return Statement{}, ErrNoTable
	}
	if len(row) == 0 {
		return Statement{}, ErrNoColumns
	}
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	slices.Sort(cols)

	b := &builder{d: d}
	fmt.Fprintf(&b.sb, "UPDATE %s SET ", d.Quote(q.Table))
	for i, c := range cols {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		fmt.Fprintf(&b.sb, "%s = %s", d.Quote(c), b.bind(row[c]))
	}
	if err := b.where(q.Where); err != nil {
		return Statement{}, err
	}
	return b.statement()
}

// Delete renders a DELETE of the rows matching q.Where.
func (d Dialect) Delete(q flow.Query) (Statement, error) {
	if q.Table == "" {
		return Statement{}, ErrNoTable
	}
	b := &builder{d: d}
	fmt.Fprintf(&b.sb, "DELETE FROM %s", d.Quote(q.Table))
	if err := b.where(q.Where); err != nil {
		return Statement{}, err
	}
	return b.statement()
}

// Native renders a hand-written statement. Its ? placeholders outside
// quoted text are rewritten to the dialect's. A script without ?
// placeholders is kept as written and args are bound in order.
func (d Dialect) Native(script string, args []any) (Statement, error) {
	b := &builder{d: d}
	quote := rune(0)
	n := 0
	for _, r := range script {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '?':
			if n >= len(args) {
				return Statement{}, fmt.Errorf("sqlbuild: script has more placeholders than the %d arguments", len(args))
			}
			b.sb.WriteString(b.bind(args[n]))
			n++
			continue
		}
		b.sb.WriteRune(r)
	}
	if n == 0 {
		// the script uses the dialect's own placeholders
		for _, a := range args {
			b.bind(a)
		}
		return b.statement()
	}
	if n != len(args) {
		return Statement{}, fmt.Errorf("sqlbuild: script has %d placeholders for %d arguments", n, len(args))
	}
	return b.statement()
}

// where renders conds as AND-groups joined by OR, matching how condition
// lists evaluate in memory. SQL binds AND tighter than OR, so no grouping
// parentheses are needed.
func (b *builder) where(conds []flow.Condition) error {
	if len(conds) == 0 {
		return nil
	}
	b.sb.WriteString(" WHERE ")
	for i, c := range conds {
		if i > 0 {
			if conds[i-1].Chain == flow.ChainOr {
				b.sb.WriteString(" OR ")
			} else {
				b.sb.WriteString(" AND ")
			}
		}
		if err := b.predicate(c); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	return nil
}

var comparisons = map[flow.Operator]string{
	flow.OpEq:  "=",
	flow.OpNeq: "<>",
	flow.OpGt:  ">",
	flow.OpGte: ">=",
	flow.OpLt:  "<",
	flow.OpLte: "<=",
}

func (b *builder) predicate(c flow.Condition) error {
	column, ok := c.LHS.(string)
	if !ok || column == "" {
		return errors.New("column must be a non-empty string")
	}
	col := b.d.Quote(column)

	switch c.Operator {
	case flow.OpEq, flow.OpNeq:
		if c.RHS == nil {
			if c.Operator == flow.OpEq {
				b.sb.WriteString(col + " IS NULL")
			} else {
				b.sb.WriteString(col + " IS NOT NULL")
			}
			return nil
		}
		fallthrough
	case flow.OpGt, flow.OpGte, flow.OpLt, flow.OpLte:
		fmt.Fprintf(&b.sb, "%s %s %s", col, comparisons[c.Operator], b.bind(c.RHS))

	case flow.OpContains, flow.OpNotContains, flow.OpStartsWith, flow.OpEndsWith:
		pattern := escapeLike(fmt.Sprint(c.RHS))
		switch c.Operator {
		case flow.OpStartsWith:
			pattern += "%"
		case flow.OpEndsWith:
			pattern = "%" + pattern
		default:
			pattern = "%" + pattern + "%"
		}
		not := ""
		if c.Operator == flow.OpNotContains {
			not = "NOT "
		}
		fmt.Fprintf(&b.sb, `%s %sLIKE %s ESCAPE '\'`, col, not, b.bind(pattern))

	case flow.OpIn, flow.OpNotIn:
		items, err := list(c.RHS)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			// x IN () is not valid SQL
			if c.Operator == flow.OpIn {
				b.sb.WriteString("1 = 0")
			} else {
				b.sb.WriteString("1 = 1")
			}
			return nil
		}
		b.sb.WriteString(col)
		if c.Operator == flow.OpNotIn {
			b.sb.WriteString(" NOT")
		}
		b.sb.WriteString(" IN (")
		for i, item := range items {
			if i > 0 {
				b.sb.WriteString(", ")
			}
			b.sb.WriteString(b.bind(item))
		}
		b.sb.WriteString(")")

	default:
		return fmt.Errorf("%w: %q", ErrBadOperator, c.Operator)
	}
	return nil
}

func list(v any) ([]any, error) {
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("in/not_in value must be a list, got %T", v)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
