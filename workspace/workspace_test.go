package workspace

import (
	"testing"

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

// buildChain wires a -> b, where a produces a scaled int and b doubles it.
func buildChain(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()

	a := mustPipe(t, pipe.NewBuilder("a").
		Param("scale", pipe.WithDefault(1)).
		Produces("out", "a/out.bin").
		Action(func(ctx *pipe.RunContext) error {
			scale, err := ctx.Param("scale")
			if err != nil {
				return err
			}
			return ctx.SetProduct("out", scale.(int)*10)
		}))
	require.NoError(t, g.Add(a, graph.AddOptions{}))

	b := mustPipe(t, pipe.NewBuilder("b").
		DependsOn("in", "a/out.bin").
		Produces("out", "b/out.bin").
		Action(func(ctx *pipe.RunContext) error {
			in, err := ctx.Dep("in")
			if err != nil {
				return err
			}
			return ctx.SetProduct("out", in.(int)*2)
		}))
	require.NoError(t, g.Add(b, graph.AddOptions{}))

	return g
}

func TestBuildFailsWhenDependencyNeverCached(t *testing.T) {
	g := buildChain(t)
	w, err := Open(g, t.TempDir(), "s1")
	require.NoError(t, err)

	_, err = w.Build("b", nil)
	assert.Error(t, err)
}

func TestBuildChainsProductsAcrossPipes(t *testing.T) {
	g := buildChain(t)
	w, err := Open(g, t.TempDir(), "s1")
	require.NoError(t, err)

	_, err = w.Build("a", nil)
	require.NoError(t, err)

	result, err := w.Build("b", nil)
	require.NoError(t, err)
	assert.Equal(t, 20, result.Products["out"])
}

func TestBuildRejectsDisallowedOverrideTypeBeforeRunningAction(t *testing.T) {
	ran := false
	a := mustPipe(t, pipe.NewBuilder("a").
		Param("scale", pipe.WithDefault(1)).
		Produces("out", "a/out.bin").
		Action(func(ctx *pipe.RunContext) error {
			ran = true
			return ctx.SetProduct("out", 1)
		}))
	g := graph.New()
	require.NoError(t, g.Add(a, graph.AddOptions{}))
	w, err := Open(g, t.TempDir(), "s1")
	require.NoError(t, err)

	_, err = w.Build("a", map[string]interface{}{"scale": func() {}})
	assert.Error(t, err)
	assert.False(t, ran, "action must not run once an override fails typechecking")
}

func TestBuildOverridesApplyToParameters(t *testing.T) {
	g := buildChain(t)
	w, err := Open(g, t.TempDir(), "s1")
	require.NoError(t, err)

	result, err := w.Build("a", map[string]interface{}{"scale": 5})
	require.NoError(t, err)
	assert.Equal(t, 50, result.Products["out"])
}

func TestBackfillRunsWholeGapAsChildProcesses(t *testing.T) {
	g := buildChain(t)
	w, err := Open(g, t.TempDir(), "s1")
	require.NoError(t, err)

	// "a" and "b" are both never-built, so both belong to the gap and are
	// each spawned as a child process; stubbing the build binary with the
	// "true" command exercises the trajectory-walking logic without
	// depending on a real build binary actually persisting products.
	err = w.Backfill("b", nil, false, false, "true")
	require.NoError(t, err)
}

func TestBackfillHaltsOnFailingChildProcess(t *testing.T) {
	g := buildChain(t)
	w, err := Open(g, t.TempDir(), "s1")
	require.NoError(t, err)

	err = w.Backfill("b", nil, false, false, "false")
	assert.Error(t, err)
}

func TestBackfillFallsBackToBuildWhenGapIsEmpty(t *testing.T) {
	g := buildChain(t)
	w, err := Open(g, t.TempDir(), "s1")
	require.NoError(t, err)

	_, err = w.Build("a", nil)
	require.NoError(t, err)
	_, err = w.Build("b", nil)
	require.NoError(t, err)

	// both pipes are now fresh, so the gap is empty and Backfill should
	// fall back to running build("b") directly rather than spawning any
	// child process.
	err = w.Backfill("b", nil, false, false, "false")
	require.NoError(t, err)
}

// buildStaticChain mirrors buildChain but a's product is static, so it is
// shared across sessions instead of cleared with the rest of a session's
// cache.
func buildStaticChain(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()

	a := mustPipe(t, pipe.NewBuilder("a").
		Produces("out", "a/out.bin", pipe.Static()).
		Action(func(ctx *pipe.RunContext) error {
			return ctx.SetProduct("out", 10)
		}))
	require.NoError(t, g.Add(a, graph.AddOptions{}))

	b := mustPipe(t, pipe.NewBuilder("b").
		DependsOn("in", "a/out.bin").
		Produces("out", "b/out.bin").
		Action(func(ctx *pipe.RunContext) error {
			in, err := ctx.Dep("in")
			if err != nil {
				return err
			}
			return ctx.SetProduct("out", in.(int)*2)
		}))
	require.NoError(t, g.Add(b, graph.AddOptions{}))

	return g
}

func TestLinkStaticProductsPrunesAncestorAcrossSessions(t *testing.T) {
	home := t.TempDir()

	g1 := buildStaticChain(t)
	w1, err := Open(g1, home, "s1")
	require.NoError(t, err)
	_, err = w1.Build("a", nil)
	require.NoError(t, err)

	// A brand-new session never built "a" itself, so without linking it is
	// stale; with linking enabled its already-present static product lets
	// the gap skip straight to "b".
	g2 := buildStaticChain(t)
	w2, err := Open(g2, home, "s2")
	require.NoError(t, err)
	status, err := w2.Status("b")
	require.NoError(t, err)
	assert.Contains(t, status.Stale, "a")

	g3 := buildStaticChain(t)
	w3, err := Open(g3, home, "s2", LinkStaticProducts())
	require.NoError(t, err)
	status, err = w3.Status("b")
	require.NoError(t, err)
	assert.NotContains(t, status.Stale, "a")
}

func TestStatusReportsUnbuiltPipe(t *testing.T) {
	g := buildChain(t)
	w, err := Open(g, t.TempDir(), "s1")
	require.NoError(t, err)

	status, err := w.Status("a")
	require.NoError(t, err)
	assert.False(t, status.Built)
	assert.Contains(t, status.Stale, "a")
}

func TestSessionsAndClearAll(t *testing.T) {
	g := buildChain(t)
	w, err := Open(g, t.TempDir(), "s1")
	require.NoError(t, err)

	_, err = w.Build("a", nil)
	require.NoError(t, err)

	sessions, err := w.Sessions()
	require.NoError(t, err)
	assert.Contains(t, sessions, "s1")

	require.NoError(t, w.ClearAll())
	sessions, err = w.Sessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestCheckAncestryFailsBeforeAnyBuild(t *testing.T) {
	g := buildChain(t)
	w, err := Open(g, t.TempDir(), "s1")
	require.NoError(t, err)

	assert.Error(t, w.CheckAncestry("b"))
}

func TestLoadSessionRejectsUnknownID(t *testing.T) {
	g := buildChain(t)
	w, err := Open(g, t.TempDir(), "s1")
	require.NoError(t, err)

	assert.Error(t, w.LoadSession("does-not-exist"))
}
