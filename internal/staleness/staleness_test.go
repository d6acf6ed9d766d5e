package staleness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-helland/warp/internal/graph"
	"github.com/j-helland/warp/internal/pipe"
)

func mustPipe(t *testing.T, b *pipe.Builder) *pipe.Pipe {
	t.Helper()
	p, err := b.Build()
	require.NoError(t, err)
	return p
}

// buildABCD wires a -> b -> d and a -> c -> d, mirroring the diamond
// topology used to test chronology-violation detection.
func buildABCD(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()

	a := mustPipe(t, pipe.NewBuilder("a").
		Produces("out", "a/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(a, graph.AddOptions{}))

	b := mustPipe(t, pipe.NewBuilder("b").
		DependsOn("in", "a/out.bin").
		Produces("out", "b/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(b, graph.AddOptions{}))

	c := mustPipe(t, pipe.NewBuilder("c").
		DependsOn("in", "a/out.bin").
		Produces("out", "c/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(c, graph.AddOptions{}))

	d := mustPipe(t, pipe.NewBuilder("d").
		DependsOn("left", "b/out.bin").
		DependsOn("right", "c/out.bin").
		Produces("out", "d/out.bin").
		Action(func(*pipe.RunContext) error { return nil }))
	require.NoError(t, g.Add(d, graph.AddOptions{}))

	return g
}

func allBuiltAt(base time.Time, names ...string) AgeLookup {
	return func(name string) (Age, error) {
		for _, n := range names {
			if n == name {
				return Age{Built: true, BuiltAt: base}, nil
			}
		}
		return Age{Built: false}, nil
	}
}

func allExist(names ...string) BuiltLookup {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	return func(name string) (bool, error) { return set[name], nil }
}

// noStaticProducts reports every product as neither static nor present --
// the correct StaticProductLookup for tests that never enable
// linkStaticProducts.
func noStaticProducts(string, string) (bool, error) { return false, nil }

func TestGapPipesAllFreshYieldsEmptyGap(t *testing.T) {
	g := buildABCD(t)
	now := time.Now()
	age := allBuiltAt(now, "a", "b", "c", "d")
	built := allExist("a", "b", "c", "d")

	gap, err := NewAnalyzer(g).GapPipes("d", age, built, nil, false, false, noStaticProducts)
	require.NoError(t, err)
	assert.Empty(t, gap)
}

func TestGapPipesNeverBuiltIsAlwaysInGap(t *testing.T) {
	g := buildABCD(t)
	now := time.Now()
	age := func(name string) (Age, error) {
		if name == "c" {
			return Age{Built: false}, nil
		}
		return Age{Built: true, BuiltAt: now}, nil
	}
	built := allExist("a", "b", "c", "d")

	gap, err := NewAnalyzer(g).GapPipes("d", age, built, nil, false, false, noStaticProducts)
	require.NoError(t, err)
	assert.Contains(t, gap, "c")
}

func TestGapPipesChronologyViolation(t *testing.T) {
	g := buildABCD(t)
	now := time.Now()
	// "a" was rebuilt after "b" already consumed it -- b is now stale
	// relative to a path-connected ancestor that changed underneath it.
	age := func(name string) (Age, error) {
		switch name {
		case "a":
			return Age{Built: true, BuiltAt: now}, nil
		case "b":
			return Age{Built: true, BuiltAt: now.Add(-time.Hour)}, nil
		default:
			return Age{Built: true, BuiltAt: now}, nil
		}
	}
	built := allExist("a", "b", "c", "d")

	gap, err := NewAnalyzer(g).GapPipes("d", age, built, nil, false, false, noStaticProducts)
	require.NoError(t, err)
	assert.Contains(t, gap, "b")
}

func TestGapPipesMissingProductTriggersRebuild(t *testing.T) {
	g := buildABCD(t)
	now := time.Now()
	age := allBuiltAt(now, "a", "b", "c", "d")
	built := allExist("a", "c", "d") // "b"'s product is missing from disk

	gap, err := NewAnalyzer(g).GapPipes("d", age, built, nil, false, false, noStaticProducts)
	require.NoError(t, err)
	assert.Contains(t, gap, "b")
}

func TestGapPipesAlwaysBuildForcesInclusion(t *testing.T) {
	g := buildABCD(t)
	now := time.Now()
	age := allBuiltAt(now, "a", "b", "c", "d")
	built := allExist("a", "b", "c", "d")

	gap, err := NewAnalyzer(g).GapPipes("d", age, built, map[string]bool{"a": true}, false, false, noStaticProducts)
	require.NoError(t, err)
	assert.Contains(t, gap, "a")
}

func TestGapPipesLinkStaticProductsPrunesSatisfiedAncestor(t *testing.T) {
	g := buildABCD(t)
	now := time.Now()
	// "a" has never been built in this session, but its product is static
	// and already present on disk -- with linking enabled it should be
	// dropped from the gap rather than forcing a rebuild.
	age := func(name string) (Age, error) {
		if name == "a" {
			return Age{Built: false}, nil
		}
		return Age{Built: true, BuiltAt: now}, nil
	}
	built := allExist("a", "b", "c", "d")
	staticPresent := func(pipeName, productName string) (bool, error) {
		return pipeName == "a" && productName == "out", nil
	}

	gap, err := NewAnalyzer(g).GapPipes("d", age, built, nil, true, false, staticPresent)
	require.NoError(t, err)
	assert.NotContains(t, gap, "a")
	assert.Empty(t, gap)
}

func TestGapPipesRebuildStaticProductsOverridesLinking(t *testing.T) {
	g := buildABCD(t)
	now := time.Now()
	age := func(name string) (Age, error) {
		if name == "a" {
			return Age{Built: false}, nil
		}
		return Age{Built: true, BuiltAt: now}, nil
	}
	built := allExist("a", "b", "c", "d")
	staticPresent := func(pipeName, productName string) (bool, error) {
		return pipeName == "a" && productName == "out", nil
	}

	gap, err := NewAnalyzer(g).GapPipes("d", age, built, nil, true, true, staticPresent)
	require.NoError(t, err)
	assert.Contains(t, gap, "a")
}

func TestCheckAncestryIntegrityDetectsUnbuiltAncestor(t *testing.T) {
	g := buildABCD(t)
	now := time.Now()
	age := func(name string) (Age, error) {
		if name == "a" {
			return Age{Built: false}, nil
		}
		return Age{Built: true, BuiltAt: now}, nil
	}
	err := NewAnalyzer(g).CheckAncestryIntegrity("d", age)
	assert.Error(t, err)
}

func TestCheckAncestryIntegrityPassesWhenConsistent(t *testing.T) {
	g := buildABCD(t)
	now := time.Now()
	age := func(name string) (Age, error) {
		switch name {
		case "a":
			return Age{Built: true, BuiltAt: now.Add(-2 * time.Hour)}, nil
		case "b", "c":
			return Age{Built: true, BuiltAt: now.Add(-time.Hour)}, nil
		default:
			return Age{Built: true, BuiltAt: now}, nil
		}
	}
	assert.NoError(t, NewAnalyzer(g).CheckAncestryIntegrity("d", age))
}
