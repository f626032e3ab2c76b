package metadata

import (
	"github.com/go-openapi/inflect"
)

// IDStrategy defines how the primary key of a new row is produced
type IDStrategy string

const (
	// IDAuto lets the database generate the key (serial / autoincrement)
	IDAuto IDStrategy = "auto"
	// IDUUID generates a random UUID before insert
	IDUUID IDStrategy = "uuid"
	// IDULID generates a ULID before insert
	IDULID IDStrategy = "ulid"
	// IDAssigned expects the caller to provide the key
	IDAssigned IDStrategy = "assigned"
)

// Kind tells whether a field is a plain column or an association to another entity.
type Kind struct {
	association bool
	target      string
}

func Scalar() Kind {
	return Kind{}
}

func AssociationTo(target string) Kind {
	return Kind{association: true, target: target}
}

func (k Kind) IsAssociation() bool {
	return k.association
}

// Target returns the associated entity name, empty for scalars.
func (k Kind) Target() string {
	return k.target
}

func (k Kind) String() string {
	if k.association {
		return "association(" + k.target + ")"
	}
	return "scalar"
}

// Field maps an entity field to storage
type Field struct {
	Name   string
	Column string
	Kind   Kind

	// JoinColumn holds the FK column. On the owning side it lives in this entity's
	// table, on the inverse side in the target's table.
	JoinColumn string
	// ReferencedColumn is the column the FK points to. Empty means the identifier
	// column of the referenced entity.
	ReferencedColumn string
	Inverse          bool

	// Fake names a fixture generator used when a seeded row omits this field
	Fake string
}

type AssociationOption func(*Field)

func JoinColumn(column string) AssociationOption {
	return func(f *Field) {
		f.JoinColumn = column
	}
}

func ReferencedColumn(column string) AssociationOption {
	return func(f *Field) {
		f.ReferencedColumn = column
	}
}

// MappedBy marks the association as the inverse side: the FK column lives in the target table.
func MappedBy(joinColumn string) AssociationOption {
	return func(f *Field) {
		f.Inverse = true
		f.JoinColumn = joinColumn
	}
}

// Entity holds the mapping of one entity type
type Entity struct {
	Name       string
	Table      string
	Identifier string
	IDStrategy IDStrategy

	fields []Field
	index  map[string]int
}

// NewEntity creates an Entity with conventional defaults:
// table "blog_posts" for "BlogPost", identifier "id", database generated keys.
func NewEntity(name string) *Entity {
	return &Entity{
		Name:       name,
		Table:      inflect.Pluralize(inflect.Underscore(name)),
		Identifier: "id",
		IDStrategy: IDAuto,
		index:      make(map[string]int),
	}
}

func (e *Entity) WithTable(table string) *Entity {
	e.Table = table
	return e
}

func (e *Entity) WithIdentifier(field string, strategy IDStrategy) *Entity {
	e.Identifier = field
	e.IDStrategy = strategy
	return e
}

// Column registers a scalar field. Without an explicit column the field name is underscored.
func (e *Entity) Column(field string, column ...string) *Entity {
	f := Field{Name: field, Column: inflect.Underscore(field), Kind: Scalar()}
	if len(column) > 0 && column[0] != "" {
		f.Column = column[0]
	}
	e.put(f)
	return e
}

// Association registers a field pointing to another entity.
// The owning side with join column "<field>_id" is assumed unless options say otherwise.
func (e *Entity) Association(field, target string, opts ...AssociationOption) *Entity {
	f := Field{
		Name:       field,
		Kind:       AssociationTo(target),
		JoinColumn: inflect.Underscore(field) + "_id",
	}
	for i := range opts {
		opts[i](&f)
	}
	e.put(f)
	return e
}

// WithFake attaches a fixture generator to an already registered field.
func (e *Entity) WithFake(field, generator string) *Entity {
	if i, ok := e.index[field]; ok {
		e.fields[i].Fake = generator
	}
	return e
}

// Register adds a field with full mapping configuration, replacing a previous one with the same name
func (e *Entity) Register(f Field) *Entity {
	e.put(f)
	return e
}

func (e *Entity) put(f Field) {
	if e.index == nil {
		e.index = make(map[string]int)
	}
	if i, ok := e.index[f.Name]; ok {
		e.fields[i] = f
		return
	}
	e.index[f.Name] = len(e.fields)
	e.fields = append(e.fields, f)
}

// Field returns the mapping of a field
func (e *Entity) Field(name string) (Field, bool) {
	i, ok := e.index[name]
	if !ok {
		return Field{}, false
	}
	return e.fields[i], true
}

// Fields returns the registered fields in registration order
func (e *Entity) Fields() []Field {
	result := make([]Field, len(e.fields))
	copy(result, e.fields)
	return result
}

// FieldKind reports whether name is an association. Unknown fields are scalars.
func (e *Entity) FieldKind(name string) Kind {
	f, ok := e.Field(name)
	if !ok {
		return Scalar()
	}
	return f.Kind
}

// ColumnFor returns the column that stores a field on this entity's table.
// Owning associations resolve to their join column, unmapped fields to their own name.
// The second result is false for inverse associations, which have no column here.
func (e *Entity) ColumnFor(name string) (string, bool) {
	f, ok := e.Field(name)
	if !ok {
		return name, true
	}
	if f.Kind.IsAssociation() {
		if f.Inverse {
			return "", false
		}
		return f.JoinColumn, true
	}
	return f.Column, true
}

// IdentifierColumn returns the column of the primary key
func (e *Entity) IdentifierColumn() string {
	column, ok := e.ColumnFor(e.Identifier)
	if !ok {
		return e.Identifier
	}
	return column
}
