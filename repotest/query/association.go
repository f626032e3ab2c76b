package query

import (
	"fmt"
	"strings"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/metadata"
)

// DuplicateAliasError reports a join whose alias is already bound to another path
type DuplicateAliasError struct {
	Alias    string
	Path     string
	Existing string
}

func (e *DuplicateAliasError) Error() string {
	existing := e.Existing
	if existing == "" {
		existing = "the root entity"
	}
	return fmt.Sprintf("query: alias %q for %s is already used by %s", e.Alias, e.Path, existing)
}

func (e *DuplicateAliasError) Is(err error) bool {
	return err == ErrDuplicateAlias
}

// AssociationBuilder turns a nested parameter map into joins and AND-ed equality / NULL
// predicates. A key naming an association with a nested map value joins the association
// under an alias equal to the key and constrains the joined entity; every other key is
// compared on the current alias. A scalar given for an association field does not join
// and compares the FK column directly.
type AssociationBuilder struct {
	metadata metadata.Provider
}

func NewAssociationBuilder(provider metadata.Provider) *AssociationBuilder {
	return &AssociationBuilder{metadata: provider}
}

// Build adds one join-or-predicate branch per key of params to qb.
// The whole tree is resolved before qb is touched: on error qb is left unchanged.
func (a *AssociationBuilder) Build(qb QueryBuilder, entity, alias string, params Params) error {
	p := newPlan(alias)
	if err := a.plan(p, entity, alias, params); err != nil {
		return err
	}
	p.apply(qb)
	return nil
}

func (a *AssociationBuilder) plan(p *plan, entity, alias string, params Params) error {
	meta, err := a.metadata.Metadata(entity)
	if err != nil {
		return err
	}
	for _, param := range params {
		kind := meta.FieldKind(param.Key)
		nested, isNested := asParams(param.Value)
		if kind.IsAssociation() && isNested {
			if err := p.join(alias+"."+param.Key, param.Key); err != nil {
				return err
			}
			for _, sub := range nested {
				if _, ok := asParams(sub.Value); ok {
					if err := a.plan(p, kind.Target(), param.Key, Params{sub}); err != nil {
						return err
					}
					continue
				}
				name := param.Key + "__" + sub.Key
				p.where(Equal{Ref: Ref{Alias: param.Key, Field: sub.Key}, Param: name})
				p.bind(name, sub.Value)
			}
			continue
		}
		ref := Ref{Alias: alias, Field: param.Key}
		if isNull(param.Value) {
			p.where(IsNull{Ref: ref})
			continue
		}
		name := strings.ReplaceAll(alias+"_"+param.Key, ".", "")
		p.where(Equal{Ref: ref, Param: name})
		p.bind(name, param.Value)
	}
	return nil
}

type operation func(QueryBuilder)

type plan struct {
	aliases    map[string]string
	operations []operation
}

func newPlan(rootAlias string) *plan {
	return &plan{aliases: map[string]string{rootAlias: ""}}
}

func (p *plan) join(path, alias string) error {
	if existing, ok := p.aliases[alias]; ok {
		if existing == path {
			return nil
		}
		return &DuplicateAliasError{Alias: alias, Path: path, Existing: existing}
	}
	p.aliases[alias] = path
	p.operations = append(p.operations, func(qb QueryBuilder) {
		qb.InnerJoin(path, alias)
	})
	return nil
}

func (p *plan) where(predicate Predicate) {
	p.operations = append(p.operations, func(qb QueryBuilder) {
		qb.AndWhere(predicate)
	})
}

func (p *plan) bind(name string, value any) {
	p.operations = append(p.operations, func(qb QueryBuilder) {
		qb.SetParameter(name, value)
	})
}

func (p *plan) apply(qb QueryBuilder) {
	for _, op := range p.operations {
		op(qb)
	}
}
