package fixture

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/metadata"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/query"
)

func TestGenerate(t *testing.T) {
	f := NewFaker()
	for _, name := range f.Generators() {
		t.Run(name, func(t *testing.T) {
			v, err := f.Generate(name)
			require.NoError(t, err)
			assert.NotEmpty(t, v)
		})
	}

	_, err := f.Generate("nope")
	assert.True(t, errors.Is(err, ErrUnknownGenerator))
}

func TestRegister(t *testing.T) {
	f := NewFaker()
	f.Register("const", func() any { return "c" })
	v, err := f.Generate("const")
	require.NoError(t, err)
	assert.Equal(t, "c", v)
	assert.Contains(t, f.Generators(), "const")
}

func TestFill(t *testing.T) {
	f := NewFaker()
	f.Register("title", func() any { return "generated" })
	post := metadata.NewEntity("Post").
		Column("title").WithFake("title", "title").
		Column("body").WithFake("body", "sentence").
		Column("slug")

	values := query.P("body", "given")
	filled, err := f.Fill(post, values)
	require.NoError(t, err)
	assert.Equal(t, query.P("body", "given", "title", "generated"), filled)
	assert.Equal(t, query.P("body", "given"), values)
}

func TestFillKeepsExplicitNil(t *testing.T) {
	post := metadata.NewEntity("Post").Column("title").WithFake("title", "word")
	filled, err := NewFaker().Fill(post, query.P("title", nil))
	require.NoError(t, err)
	assert.Equal(t, query.P("title", nil), filled)
}

func TestFillUnknownGenerator(t *testing.T) {
	post := metadata.NewEntity("Post").Column("title").WithFake("title", "missing")
	_, err := NewFaker().Fill(post, query.Params{})
	assert.True(t, errors.Is(err, ErrUnknownGenerator))
}

func TestIdentity(t *testing.T) {
	t.Run("uuid", func(t *testing.T) {
		e := metadata.NewEntity("Tag").WithIdentifier("id", metadata.IDUUID)
		values, err := Identity(e, query.P("name", "x"))
		require.NoError(t, err)
		id, ok := values.Get("id")
		require.True(t, ok)
		_, err = uuid.Parse(id.(string))
		assert.NoError(t, err)
	})

	t.Run("ulid", func(t *testing.T) {
		e := metadata.NewEntity("Tag").WithIdentifier("code", metadata.IDULID)
		values, err := Identity(e, query.Params{})
		require.NoError(t, err)
		id, _ := values.Get("code")
		_, err = ulid.ParseStrict(id.(string))
		assert.NoError(t, err)
	})

	t.Run("given id is kept", func(t *testing.T) {
		e := metadata.NewEntity("Tag").WithIdentifier("id", metadata.IDUUID)
		values, err := Identity(e, query.P("id", "fixed"))
		require.NoError(t, err)
		assert.Equal(t, query.P("id", "fixed"), values)
	})

	t.Run("auto and assigned are left to the caller", func(t *testing.T) {
		for _, strategy := range []metadata.IDStrategy{metadata.IDAuto, metadata.IDAssigned} {
			e := metadata.NewEntity("Tag").WithIdentifier("id", strategy)
			values, err := Identity(e, query.Params{})
			require.NoError(t, err)
			assert.Empty(t, values)
		}
	})
}
