// Package staleness computes the "historical gap" for a target pipe: the
// subset of its lineage that must be rebuilt before the target itself can
// be considered up to date.
package staleness

import (
	"time"

	"github.com/pkg/errors"

	"github.com/j-helland/warp/internal/graph"
	"github.com/j-helland/warp/internal/pipe"
	"github.com/j-helland/warp/internal/werrors"
)

// Age reports when a pipe was last built, and whether it has ever been
// built at all. A pipe that has never been built is treated as infinitely
// stale: it always belongs to the gap.
type Age struct {
	BuiltAt time.Time
	Built   bool
}

// AgeLookup retrieves the last-build metadata for a pipe by name.
type AgeLookup func(pipeName string) (Age, error)

// BuiltLookup reports whether every saved product a pipe declares currently
// exists on disk.
type BuiltLookup func(pipeName string) (bool, error)

// StaticProductLookup reports whether a named product of a pipe is both
// declared static and already present on disk -- the test the
// link-static-products prune applies to every dependency edge.
type StaticProductLookup func(pipeName, productName string) (bool, error)

// Analyzer computes gap pipes against a fixed graph topology.
type Analyzer struct {
	g *graph.Graph
}

// NewAnalyzer binds an Analyzer to g.
func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// GapPipes returns, in the order they appear in the graph, every pipe in
// target's lineage (plus target itself) that must be rebuilt: pipes never
// built, pipes built out of chronological order relative to a path-
// connected descendant, pipes with unsaved dependencies consumed directly
// by target, pipes whose declared products are missing from disk, and any
// pipe named in alwaysBuild. If linkStaticProducts is set, the lineage is
// first pruned of ancestors whose every outgoing dependency edge within the
// lineage targets an already-present static product (see pruneStatic),
// unless rebuildStaticProducts overrides that shortcut. Source pipes are
// never stale and only enter the gap through alwaysBuild.
func (a *Analyzer) GapPipes(
	target string,
	age AgeLookup,
	built BuiltLookup,
	alwaysBuild map[string]bool,
	linkStaticProducts bool,
	rebuildStaticProducts bool,
	staticPresent StaticProductLookup,
) ([]string, error) {
	resolved, err := a.g.ResolveName(target)
	if err != nil {
		return nil, err
	}

	ancestors, err := a.g.Lineage(resolved)
	if err != nil {
		return nil, err
	}
	lineage := append(append([]string{}, ancestors...), resolved)

	if linkStaticProducts {
		pruned, err := a.pruneStatic(lineage, resolved, rebuildStaticProducts, staticPresent)
		if err != nil {
			return nil, err
		}
		lineage = pruned
	}

	ages := map[string]Age{}
	for _, p := range lineage {
		ap, err := age(p)
		if err != nil {
			return nil, errors.Wrapf(err, "reading build age for %q", p)
		}
		ages[p] = ap
	}

	targetPipe, err := a.g.Pipe(resolved)
	if err != nil {
		return nil, err
	}
	parentsRebuild := map[string]bool{}
	for _, dep := range targetPipe.Dependencies {
		producer := dep.Producer()
		if producer == "" {
			continue
		}
		producerPipe, err := a.g.Pipe(producer)
		if err != nil {
			return nil, err
		}
		for _, prod := range producerPipe.Products {
			if prod.Name() == dep.ProductName() && !prod.Savable() {
				parentsRebuild[producer] = true
			}
		}
	}

	bad := map[string]bool{}
	for i, p := range lineage {
		pp, err := a.g.Pipe(p)
		if err != nil {
			return nil, err
		}
		if pipe.IsSourcePipe(pp) {
			continue
		}
		if !ages[p].Built {
			bad[p] = true
			continue
		}

		chronologyViolation := false
		for j := 0; j < i; j++ {
			x := lineage[j]
			if !ages[x].Built {
				continue
			}
			if ages[p].BuiltAt.Before(ages[x].BuiltAt) {
				paths, err := a.g.Paths(x, p)
				if err != nil {
					return nil, err
				}
				if len(paths) > 0 {
					chronologyViolation = true
					break
				}
			}
		}
		if chronologyViolation {
			bad[p] = true
			continue
		}

		if parentsRebuild[p] {
			bad[p] = true
			continue
		}

		isBuilt, err := built(p)
		if err != nil {
			return nil, errors.Wrapf(err, "checking built state for %q", p)
		}
		if !isBuilt {
			bad[p] = true
		}
	}

	var gap []string
	for _, p := range lineage {
		if bad[p] || alwaysBuild[p] {
			gap = append(gap, p)
		}
	}
	return gap, nil
}

// pruneStatic drops from lineage any ancestor whose every outgoing
// dependency edge to another node in lineage targets a product that is
// both static and already present on disk, then restricts what remains to
// the component still connected to resolved once those edges are gone. A
// pipe is kept if at least one of its outgoing edges within the lineage is
// not static-and-present -- it is a multigraph, so the same producer can
// feed both a satisfied static product and a live one.
func (a *Analyzer) pruneStatic(lineage []string, resolved string, rebuildStaticProducts bool, staticPresent StaticProductLookup) ([]string, error) {
	inLineage := map[string]bool{}
	for _, p := range lineage {
		inLineage[p] = true
	}

	drop := map[string]bool{}
	keep := map[string]bool{}
	for _, consumer := range lineage {
		consumerPipe, err := a.g.Pipe(consumer)
		if err != nil {
			return nil, err
		}
		for _, dep := range consumerPipe.Dependencies {
			producer := dep.Producer()
			if producer == "" || !inLineage[producer] {
				continue
			}
			satisfied := false
			if !rebuildStaticProducts {
				satisfied, err = staticPresent(producer, dep.ProductName())
				if err != nil {
					return nil, errors.Wrapf(err, "checking static product presence for %q", producer)
				}
			}
			if satisfied {
				drop[producer] = true
			} else {
				keep[producer] = true
			}
		}
	}

	pruned := map[string]bool{}
	for _, p := range lineage {
		if drop[p] && !keep[p] && p != resolved {
			pruned[p] = true
		}
	}

	var result []string
	for _, p := range lineage {
		if pruned[p] {
			continue
		}
		if p == resolved {
			result = append(result, p)
			continue
		}
		reachable, err := a.reachesThroughSurvivors(p, resolved, pruned)
		if err != nil {
			return nil, err
		}
		if reachable {
			result = append(result, p)
		}
	}
	return result, nil
}

// reachesThroughSurvivors reports whether some directed path from p to
// resolved exists that never passes through a pruned node -- the reversed-
// subgraph connected-component restriction link_static_products applies
// after dropping ancestors.
func (a *Analyzer) reachesThroughSurvivors(p, resolved string, pruned map[string]bool) (bool, error) {
	paths, err := a.g.Paths(p, resolved)
	if err != nil {
		return false, err
	}
	for _, path := range paths {
		ok := true
		for _, n := range path {
			if n != p && n != resolved && pruned[n] {
				ok = false
				break
			}
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// CheckAncestryIntegrity reports StaleAncestors if any ancestor of target
// has never been built, and ChronologyViolation if an ancestor was built
// more recently than a path-connected descendant in the lineage. It is a
// read-only preflight: neither GapPipes nor a build calls it.
func (a *Analyzer) CheckAncestryIntegrity(target string, age AgeLookup) error {
	resolved, err := a.g.ResolveName(target)
	if err != nil {
		return err
	}
	lineage, err := a.g.Lineage(resolved)
	if err != nil {
		return err
	}

	ages := map[string]Age{}
	var unbuilt []string
	for _, p := range lineage {
		ap, err := age(p)
		if err != nil {
			return errors.Wrapf(err, "reading build age for %q", p)
		}
		ages[p] = ap
		if !ap.Built {
			unbuilt = append(unbuilt, p)
		}
	}
	if len(unbuilt) > 0 {
		return errors.Wrapf(werrors.StaleAncestors, "unbuilt ancestor pipe(s): %v", unbuilt)
	}

	var violations []string
	for i, p := range lineage {
		for j := i + 1; j < len(lineage); j++ {
			x := lineage[j]
			if ages[p].BuiltAt.After(ages[x].BuiltAt) {
				paths, err := a.g.Paths(p, x)
				if err != nil {
					return err
				}
				if len(paths) > 0 {
					violations = append(violations, p)
					break
				}
			}
		}
	}
	if len(violations) > 0 {
		return errors.Wrapf(werrors.ChronologyViolation, "ancestral pipe(s) built more recently than descendants: %v", violations)
	}
	return nil
}
