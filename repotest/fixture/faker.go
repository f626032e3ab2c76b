package fixture

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"syreclabs.com/go/faker"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/metadata"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/query"
)

var ErrUnknownGenerator = errors.New("fixture: unknown generator")

// Generator produces one fake column value
type Generator func() any

// Faker resolves generator names declared on entity fields.
type Faker struct {
	mu         sync.RWMutex
	generators map[string]Generator
}

func NewFaker() *Faker {
	return &Faker{generators: map[string]Generator{
		"name":       func() any { return faker.Name().Name() },
		"first_name": func() any { return faker.Name().FirstName() },
		"last_name":  func() any { return faker.Name().LastName() },
		"email":      func() any { return faker.Internet().Email() },
		"word":       func() any { return faker.Lorem().Word() },
		"sentence":   func() any { return faker.Lorem().Sentence(6) },
		"city":       func() any { return faker.Address().City() },
		"company":    func() any { return faker.Company().Name() },
		"phone":      func() any { return faker.PhoneNumber().PhoneNumber() },
		"int":        func() any { return int64(faker.RandomInt(1, 1000000)) },
		"uuid":       func() any { return uuid.NewString() },
		"ulid":       func() any { return ulid.Make().String() },
	}}
}

var Default = NewFaker()

func (f *Faker) Register(name string, g Generator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generators[name] = g
}

func (f *Faker) Generators() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.generators))
	for name := range f.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *Faker) Generate(name string) (any, error) {
	f.mu.RLock()
	g, ok := f.generators[name]
	f.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownGenerator, "%q", name)
	}
	return g(), nil
}

// Fill returns values extended with a generated value for every field of entity
// that declares a generator and is absent from values. values is not modified.
func (f *Faker) Fill(entity *metadata.Entity, values query.Params) (query.Params, error) {
	filled := values.Clone()
	for _, field := range entity.Fields() {
		if field.Fake == "" {
			continue
		}
		if _, ok := values.Get(field.Name); ok {
			continue
		}
		v, err := f.Generate(field.Fake)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", entity.Name, field.Name)
		}
		filled = append(filled, query.Param{Key: field.Name, Value: v})
	}
	return filled, nil
}

// Identity returns values with a generated primary key when entity uses a
// client side strategy and the key is absent or nil.
func (f *Faker) Identity(entity *metadata.Entity, values query.Params) (query.Params, error) {
	var generator string
	switch entity.IDStrategy {
	case metadata.IDUUID:
		generator = "uuid"
	case metadata.IDULID:
		generator = "ulid"
	default:
		return values, nil
	}
	if v, ok := values.Get(entity.Identifier); ok && v != nil {
		return values, nil
	}
	id, err := f.Generate(generator)
	if err != nil {
		return nil, err
	}
	return values.Clone().Set(entity.Identifier, id), nil
}

func Fill(entity *metadata.Entity, values query.Params) (query.Params, error) {
	return Default.Fill(entity, values)
}

func Identity(entity *metadata.Entity, values query.Params) (query.Params, error) {
	return Default.Identity(entity, values)
}
