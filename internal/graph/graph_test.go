package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-helland/warp/internal/pipe"
)

func mustPipe(t *testing.T, b *pipe.Builder) *pipe.Pipe {
	t.Helper()
	p, err := b.Build()
	require.NoError(t, err)
	return p
}

func buildABCD(t *testing.T) *Graph {
	t.Helper()
	g := New()

	a := mustPipe(t, pipe.NewBuilder("a").
		Produces("out", "a/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(a, AddOptions{}))

	b := mustPipe(t, pipe.NewBuilder("b").
		DependsOn("in", "a/out.bin").
		Produces("out", "b/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(b, AddOptions{}))

	c := mustPipe(t, pipe.NewBuilder("c").
		DependsOn("in", "a/out.bin").
		Produces("out", "c/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(c, AddOptions{}))

	d := mustPipe(t, pipe.NewBuilder("d").
		DependsOn("left", "b/out.bin").
		DependsOn("right", "c/out.bin").
		Produces("out", "d/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(d, AddOptions{}))

	return g
}

func TestAddResolvesDependencyToProducer(t *testing.T) {
	g := buildABCD(t)
	b, err := g.Pipe("b")
	require.NoError(t, err)

	dep, err := b.DependencyByKeyword("in")
	require.NoError(t, err)
	assert.Equal(t, "a", dep.Producer())
	assert.Equal(t, "out", dep.ProductName())
}

func TestAddRejectsDuplicatePipe(t *testing.T) {
	g := New()
	a := mustPipe(t, pipe.NewBuilder("a").
		Produces("out", "a/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(a, AddOptions{}))

	a2 := mustPipe(t, pipe.NewBuilder("a").
		Produces("out", "a/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	err := g.Add(a2, AddOptions{})
	assert.Error(t, err)
}

func TestAddRejectsMissingDependency(t *testing.T) {
	g := New()
	b := mustPipe(t, pipe.NewBuilder("b").
		DependsOn("in", "a/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	err := g.Add(b, AddOptions{})
	assert.Error(t, err)
}

func TestAddMakeDependenciesSourcesSynthesizesSource(t *testing.T) {
	g := New()
	b := mustPipe(t, pipe.NewBuilder("b").
		DependsOn("in", "raw/data.csv").
		Produces("out", "b/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(b, AddOptions{MakeDependenciesSources: true}))

	dep, err := b.DependencyByKeyword("in")
	require.NoError(t, err)
	assert.NotEmpty(t, dep.Producer())

	producer, err := g.Pipe(dep.Producer())
	require.NoError(t, err)
	assert.True(t, isSource(producer))
	assert.Equal(t, "__source__b0", producer.Name)

	prod, err := producer.ProductByName("product0")
	require.NoError(t, err)
	assert.Equal(t, "raw/data.csv", prod.Path("/anything", "/anything"))
}

func TestAddMakeDependenciesSourcesBundlesUnresolvedDependencies(t *testing.T) {
	g := New()
	b := mustPipe(t, pipe.NewBuilder("b").
		DependsOn("in1", "raw/data.csv").
		DependsOn("in2", "raw/aux.csv").
		Produces("out", "b/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(b, AddOptions{MakeDependenciesSources: true}))

	dep1, err := b.DependencyByKeyword("in1")
	require.NoError(t, err)
	dep2, err := b.DependencyByKeyword("in2")
	require.NoError(t, err)

	// Both unresolved dependencies collapse into the same synthesized pipe.
	assert.Equal(t, "__source__b0", dep1.Producer())
	assert.Equal(t, dep1.Producer(), dep2.Producer())

	producer, err := g.Pipe(dep1.Producer())
	require.NoError(t, err)
	assert.Len(t, producer.Products, 2)
}

func isSource(p *pipe.Pipe) bool {
	return pipe.IsSourcePipe(p)
}

func TestAddRejectsNestedProduct(t *testing.T) {
	g := New()
	a := mustPipe(t, pipe.NewBuilder("a").
		Produces("out", "shared").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(a, AddOptions{}))

	b := mustPipe(t, pipe.NewBuilder("b").
		Produces("out", "shared/nested.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	err := g.Add(b, AddOptions{})
	assert.Error(t, err)
}

func TestAddAllowsSiblingProductWithSharedPrefix(t *testing.T) {
	g := New()
	a := mustPipe(t, pipe.NewBuilder("a").
		Produces("out", "data/x").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(a, AddOptions{}))

	b := mustPipe(t, pipe.NewBuilder("b").
		Produces("out", "data/xy").
		Action(func(*pipe.RunContext) error { return nil }))
	assert.NoError(t, g.Add(b, AddOptions{}))
}

func TestAddRejectsConfigFileReuse(t *testing.T) {
	g := New()
	a := mustPipe(t, pipe.NewBuilder("a").
		ConfigFile("shared.yml", false).
		Produces("out", "a/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(a, AddOptions{}))

	b := mustPipe(t, pipe.NewBuilder("b").
		ConfigFile("shared.yml", false).
		Produces("out", "b/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	err := g.Add(b, AddOptions{})
	assert.Error(t, err)
}

func TestAddAllowsConfigFileReuseWithMultiUse(t *testing.T) {
	g := New()
	a := mustPipe(t, pipe.NewBuilder("a").
		ConfigFile("shared.yml", true).
		Produces("out", "a/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(a, AddOptions{}))

	b := mustPipe(t, pipe.NewBuilder("b").
		ConfigFile("shared.yml", true).
		Produces("out", "b/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	assert.NoError(t, g.Add(b, AddOptions{}))
}

func TestLineageOrdersAncestorsByInsertion(t *testing.T) {
	g := buildABCD(t)
	lineage, err := g.Lineage("d")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lineage)
}

func TestPathsFindsAllRoutes(t *testing.T) {
	g := buildABCD(t)
	paths, err := g.Paths("a", "d")
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestResolveNameExactMatch(t *testing.T) {
	g := buildABCD(t)
	name, err := g.ResolveName("b")
	require.NoError(t, err)
	assert.Equal(t, "b", name)
}

func TestResolveNameAmbiguous(t *testing.T) {
	g := New()
	foo1 := mustPipe(t, pipe.NewBuilder("foobar").
		Produces("out", "foobar/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(foo1, AddOptions{}))
	foo2 := mustPipe(t, pipe.NewBuilder("foobaz").
		Produces("out", "foobaz/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(foo2, AddOptions{}))

	_, err := g.ResolveName("foo")
	assert.Error(t, err)
}

func TestToposortOrdersDependenciesFirst(t *testing.T) {
	g := buildABCD(t)
	order, err := g.Toposort()
	require.NoError(t, err)

	index := map[string]int{}
	for i, n := range order {
		index[n] = i
	}
	assert.Less(t, index["a"], index["b"])
	assert.Less(t, index["a"], index["c"])
	assert.Less(t, index["b"], index["d"])
	assert.Less(t, index["c"], index["d"])
}

func TestSaveLoadRoundTrip(t *testing.T) {
	g := buildABCD(t)
	data, err := g.Save()
	require.NoError(t, err)

	registry := map[string]func() *pipe.Pipe{
		"a": func() *pipe.Pipe {
			return mustPipe(t, pipe.NewBuilder("a").
				Produces("out", "a/out.bin").
				Action(func(*pipe.RunContext) error { return nil }))
		},
		"b": func() *pipe.Pipe {
			return mustPipe(t, pipe.NewBuilder("b").
				DependsOn("in", "a/out.bin").
				Produces("out", "b/out.bin").
				Action(func(*pipe.RunContext) error { return nil }))
		},
		"c": func() *pipe.Pipe {
			return mustPipe(t, pipe.NewBuilder("c").
				DependsOn("in", "a/out.bin").
				Produces("out", "c/out.bin").
				Action(func(*pipe.RunContext) error { return nil }))
		},
		"d": func() *pipe.Pipe {
			return mustPipe(t, pipe.NewBuilder("d").
				DependsOn("left", "b/out.bin").
				DependsOn("right", "c/out.bin").
				Produces("out", "d/out.bin").
				Action(func(*pipe.RunContext) error { return nil }))
		},
	}

	loaded, err := Load(data, func(name string) (*pipe.Pipe, error) {
		return registry[name](), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, loaded.Order())
}
