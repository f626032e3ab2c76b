package metadata

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownEntity = errors.New("metadata: unknown entity")

// UnknownEntityError is returned by a Provider that has no mapping for an entity
type UnknownEntityError struct {
	Entity string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("metadata: unknown entity %q", e.Entity)
}

// Is allows errors.Is(err, ErrUnknownEntity).
func (e *UnknownEntityError) Is(err error) bool {
	return err == ErrUnknownEntity
}

type Provider interface {
	Metadata(entity string) (*Entity, error)
}

// Registry is an in-memory Provider
type Registry struct {
	entities map[string]*Entity
}

func NewRegistry(entities ...*Entity) *Registry {
	r := &Registry{entities: make(map[string]*Entity)}
	for _, e := range entities {
		r.Register(e)
	}
	return r
}

func (r *Registry) Register(e *Entity) *Registry {
	if r.entities == nil {
		r.entities = make(map[string]*Entity)
	}
	r.entities[e.Name] = e
	return r
}

func (r *Registry) Metadata(entity string) (*Entity, error) {
	e, ok := r.entities[entity]
	if !ok {
		return nil, &UnknownEntityError{Entity: entity}
	}
	return e, nil
}

// Names returns registered entity names sorted alphabetically
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
