package query

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/metadata"
)

// Compile translates a Builder into SQL with positional parameters.
// All path validation happens here, the builder itself never rejects a field.
func Compile(b *Builder, provider metadata.Provider, d Dialect) (sql string, params []any, err error) {
	c, err := newCompiler(b, provider, d)
	if err != nil {
		return "", nil, err
	}
	return c.compile(false)
}

// CompileCount compiles a "SELECT COUNT(*)" over the same joins and predicates.
func CompileCount(b *Builder, provider metadata.Provider, d Dialect) (sql string, params []any, err error) {
	c, err := newCompiler(b, provider, d)
	if err != nil {
		return "", nil, err
	}
	return c.compile(true)
}

type compiler struct {
	builder  *Builder
	provider metadata.Provider
	dialect  Dialect
	aliases  map[string]*metadata.Entity
	sqlParts []string
	params   []any
}

func newCompiler(b *Builder, provider metadata.Provider, d Dialect) (*compiler, error) {
	root, err := provider.Metadata(b.Entity())
	if err != nil {
		return nil, err
	}
	if !isValidIdentifier(b.Alias()) {
		return nil, malformed(b.Alias(), "invalid alias")
	}
	return &compiler{
		builder:  b,
		provider: provider,
		dialect:  d,
		aliases:  map[string]*metadata.Entity{b.Alias(): root},
	}, nil
}

func (c *compiler) compile(count bool) (string, []any, error) {
	root := c.aliases[c.builder.Alias()]
	joins := make([]string, 0, len(c.builder.Joins()))
	for _, j := range c.builder.Joins() {
		join, err := c.join(j)
		if err != nil {
			return "", nil, err
		}
		joins = append(joins, join)
	}
	selects := "COUNT(*)"
	if !count {
		var err error
		if selects, err = c.selectList(); err != nil {
			return "", nil, err
		}
	}
	for _, p := range c.builder.Predicates() {
		if err := c.predicate(p); err != nil {
			return "", nil, err
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selects)
	sb.WriteString(" FROM ")
	sb.WriteString(c.dialect.Quote(root.Table))
	sb.WriteString(" ")
	sb.WriteString(c.dialect.Quote(c.builder.Alias()))
	for _, join := range joins {
		sb.WriteString(" ")
		sb.WriteString(join)
	}
	if len(c.sqlParts) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(c.sqlParts, " AND "))
	}
	if !count && c.builder.MaxResults() > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(c.builder.MaxResults()))
	}
	return sb.String(), c.params, nil
}

func (c *compiler) selectList() (string, error) {
	selects := c.builder.Selects()
	if len(selects) == 0 {
		return c.dialect.Quote(c.builder.Alias()) + ".*", nil
	}
	columns := make([]string, 0, len(selects))
	for _, expr := range selects {
		ref, ok := ParseRef(expr)
		if !ok {
			return "", malformed(expr, "select expects alias.field")
		}
		column, err := c.column(ref)
		if err != nil {
			return "", err
		}
		columns = append(columns, column)
	}
	return strings.Join(columns, ", "), nil
}

func (c *compiler) join(j Join) (string, error) {
	ref, ok := ParseRef(j.Path)
	if !ok {
		return "", malformed(j.Path, "join expects alias.field")
	}
	parent, ok := c.aliases[ref.Alias]
	if !ok {
		return "", malformed(j.Path, "unknown alias %q", ref.Alias)
	}
	field, ok := parent.Field(ref.Field)
	if !ok || !field.Kind.IsAssociation() {
		return "", malformed(j.Path, "%s has no association %q", parent.Name, ref.Field)
	}
	if !isValidIdentifier(j.Alias) {
		return "", malformed(j.Path, "invalid alias %q", j.Alias)
	}
	if _, ok := c.aliases[j.Alias]; ok {
		return "", malformed(j.Path, "alias %q is already defined", j.Alias)
	}
	target, err := c.provider.Metadata(field.Kind.Target())
	if err != nil {
		return "", err
	}
	c.aliases[j.Alias] = target

	q := c.dialect.Quote
	var on string
	if field.Inverse {
		referenced := field.ReferencedColumn
		if referenced == "" {
			referenced = parent.IdentifierColumn()
		}
		on = q(j.Alias) + "." + q(field.JoinColumn) + " = " + q(ref.Alias) + "." + q(referenced)
	} else {
		referenced := field.ReferencedColumn
		if referenced == "" {
			referenced = target.IdentifierColumn()
		}
		on = q(ref.Alias) + "." + q(field.JoinColumn) + " = " + q(j.Alias) + "." + q(referenced)
	}
	return "INNER JOIN " + q(target.Table) + " " + q(j.Alias) + " ON " + on, nil
}

func (c *compiler) column(ref Ref) (string, error) {
	e, ok := c.aliases[ref.Alias]
	if !ok {
		return "", malformed(ref.String(), "unknown alias %q", ref.Alias)
	}
	if !isValidIdentifier(ref.Field) {
		return "", malformed(ref.String(), "invalid field name")
	}
	column, ok := e.ColumnFor(ref.Field)
	if !ok {
		return "", malformed(ref.String(), "inverse association %q has no column on %s", ref.Field, e.Name)
	}
	return c.dialect.Quote(ref.Alias) + "." + c.dialect.Quote(column), nil
}

func (c *compiler) predicate(p Predicate) error {
	column, err := c.column(p.Target())
	if err != nil {
		return err
	}
	switch p := p.(type) {
	case IsNull:
		c.sqlParts = append(c.sqlParts, column+" IS NULL")
	case Equal:
		value, ok := c.builder.Parameter(p.Param)
		if !ok {
			return errors.Wrapf(ErrUnboundParameter, "%q", p.Param)
		}
		c.params = append(c.params, value)
		c.sqlParts = append(c.sqlParts, column+" = "+c.dialect.Placeholder(len(c.params)))
	default:
		return errors.Errorf("query: unsupported predicate %T", p)
	}
	return nil
}

// CompileInsert builds an INSERT for one row of entity. With returning set the
// identifier column is handed back (dialects that support it only).
func CompileInsert(entity *metadata.Entity, values Params, d Dialect, returning bool) (sql string, params []any, err error) {
	q := d.Quote
	columns := make([]string, 0, len(values))
	placeholders := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := asParams(v.Value); ok {
			return "", nil, malformed(v.Key, "nested values cannot be inserted")
		}
		if !isValidIdentifier(v.Key) {
			return "", nil, malformed(v.Key, "invalid field name")
		}
		column, ok := entity.ColumnFor(v.Key)
		if !ok {
			return "", nil, malformed(v.Key, "inverse association %q has no column on %s", v.Key, entity.Name)
		}
		params = append(params, v.Value)
		columns = append(columns, q(column))
		placeholders = append(placeholders, d.Placeholder(len(params)))
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(q(entity.Table))
	switch {
	case len(columns) > 0:
		sb.WriteString(" (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")")
	case d == MySQL:
		sb.WriteString(" () VALUES ()")
	default:
		sb.WriteString(" DEFAULT VALUES")
	}
	if returning && d.SupportsReturning() {
		sb.WriteString(" RETURNING ")
		sb.WriteString(q(entity.IdentifierColumn()))
	}
	return sb.String(), params, nil
}
