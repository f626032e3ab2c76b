package query

import (
	"strings"
)

// QueryBuilder accumulates joins, predicates and named parameters against a root alias
type QueryBuilder interface {
	InnerJoin(path, alias string)
	AndWhere(predicate Predicate)
	SetParameter(name string, value any)
}

// Ref is a qualified field reference "alias.field"
type Ref struct {
	Alias string
	Field string
}

func (r Ref) String() string {
	return r.Alias + "." + r.Field
}

// ParseRef splits "alias.field" at the first dot.
func ParseRef(path string) (Ref, bool) {
	alias, field, ok := strings.Cut(path, ".")
	if !ok || alias == "" || field == "" {
		return Ref{}, false
	}
	return Ref{Alias: alias, Field: field}, true
}

type Predicate interface {
	Target() Ref
	DQL() string
}

// Equal compares a field to a named parameter
type Equal struct {
	Ref   Ref
	Param string
}

func (p Equal) Target() Ref {
	return p.Ref
}

func (p Equal) DQL() string {
	return p.Ref.String() + " = :" + p.Param
}

type IsNull struct {
	Ref Ref
}

func (p IsNull) Target() Ref {
	return p.Ref
}

func (p IsNull) DQL() string {
	return p.Ref.String() + " IS NULL"
}

// Join is an inner join of Path ("parent.field") under Alias
type Join struct {
	Path  string
	Alias string
}

func (j Join) DQL() string {
	return "INNER JOIN " + j.Path + " " + j.Alias
}

// Binding is a named parameter value
type Binding struct {
	Name  string
	Value any
}

// Builder is the in-memory QueryBuilder for one root entity.
// It is built once per query and then handed to Compile.
type Builder struct {
	entity     string
	alias      string
	selects    []string
	joins      []Join
	predicates []Predicate
	bindings   []Binding
	maxResults int
}

// RootAlias is the alias of the queried entity in queries built by the DSL and the CLI
const RootAlias = "s"

func NewBuilder(entity, alias string) *Builder {
	return &Builder{entity: entity, alias: alias}
}

func (b *Builder) Entity() string {
	return b.entity
}

func (b *Builder) Alias() string {
	return b.alias
}

// Select replaces the selected expressions, e.g. "s.title". Empty selects the root entity.
func (b *Builder) Select(exprs ...string) *Builder {
	b.selects = append([]string(nil), exprs...)
	return b
}

func (b *Builder) InnerJoin(path, alias string) {
	b.joins = append(b.joins, Join{Path: path, Alias: alias})
}

func (b *Builder) AndWhere(predicate Predicate) {
	b.predicates = append(b.predicates, predicate)
}

// SetParameter binds a value. Setting the same name again overwrites the value.
func (b *Builder) SetParameter(name string, value any) {
	for i := range b.bindings {
		if b.bindings[i].Name == name {
			b.bindings[i].Value = value
			return
		}
	}
	b.bindings = append(b.bindings, Binding{Name: name, Value: value})
}

// SetMaxResults limits the number of returned rows, 0 means no limit.
func (b *Builder) SetMaxResults(n int) *Builder {
	b.maxResults = n
	return b
}

func (b *Builder) MaxResults() int {
	return b.maxResults
}

func (b *Builder) Selects() []string {
	return append([]string(nil), b.selects...)
}

func (b *Builder) Joins() []Join {
	return append([]Join(nil), b.joins...)
}

func (b *Builder) Predicates() []Predicate {
	return append([]Predicate(nil), b.predicates...)
}

func (b *Builder) Bindings() []Binding {
	return append([]Binding(nil), b.bindings...)
}

func (b *Builder) Parameter(name string) (any, bool) {
	for _, binding := range b.bindings {
		if binding.Name == name {
			return binding.Value, true
		}
	}
	return nil, false
}

// DQL renders the entity-level query, e.g.
//
//	SELECT s FROM Post s INNER JOIN s.author author WHERE author.email = :author__email
func (b *Builder) DQL() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(b.selects) == 0 {
		sb.WriteString(b.alias)
	} else {
		sb.WriteString(strings.Join(b.selects, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(b.entity)
	sb.WriteString(" ")
	sb.WriteString(b.alias)
	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(j.DQL())
	}
	for i, p := range b.predicates {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(p.DQL())
	}
	return sb.String()
}

var _ QueryBuilder = (*Builder)(nil)
