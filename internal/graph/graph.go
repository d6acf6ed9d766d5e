// Package graph assembles Pipes into a topology: a thin wrapper around a
// directed graph that validates every addition (no duplicate names, no
// nested product paths, no config file reused across pipes) and resolves
// each pipe's declared dependencies to the upstream pipe that produces the
// matching product.
package graph

import (
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/j-helland/warp/internal/pipe"
	"github.com/j-helland/warp/internal/toposort"
	"github.com/j-helland/warp/internal/werrors"
)

// Graph holds the set of pipes that make up a build topology along with the
// edges implied by their dependency declarations.
type Graph struct {
	pipes       map[string]*pipe.Pipe
	order       []string
	sources     bool2bool
	configFiles map[string]bool // attached path -> true if any pipe attached it without MultiUse
	g           *toposort.Graph
}

// sources records, per pipe name, whether it was added with
// MakeDependenciesSources so Save/Load can replay additions faithfully.
type bool2bool map[string]bool

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		pipes:       map[string]*pipe.Pipe{},
		sources:     bool2bool{},
		configFiles: map[string]bool{},
		g:           toposort.NewGraphWithInsertionOrder(),
	}
}

// AddOptions configures a single Add call.
type AddOptions struct {
	// MakeDependenciesSources causes any dependency that no existing pipe
	// produces to be satisfied by a synthesized source pipe instead of
	// raising UnresolvedDependency.
	MakeDependenciesSources bool
}

// Add inserts p into the graph, resolving its dependencies against the
// products already registered by earlier Add calls and wiring the implied
// edges. Order matters: a pipe can only depend on pipes added before it.
func (g *Graph) Add(p *pipe.Pipe, opts AddOptions) error {
	if _, exists := g.pipes[p.Name]; exists {
		return errors.Wrapf(werrors.DuplicatePipe, "pipe %q already exists in the graph", p.Name)
	}

	for _, cf := range p.ParameterFiles {
		claimed, attached := g.configFiles[cf.Path]
		if claimed || (attached && !cf.MultiUse) {
			return errors.Wrapf(werrors.DuplicateConfig,
				"config file %q is already claimed by another pipe; pass multi_use for shared config", cf.Path)
		}
	}

	for _, prod := range p.Products {
		if err := g.preventNestedProduct(prod.RelPath()); err != nil {
			return err
		}
	}

	parents := make([]string, len(p.Dependencies))
	var unresolved []int
	for i, dep := range p.Dependencies {
		producer, product, err := g.findProducer(dep.ProductPath)
		if err != nil {
			if !opts.MakeDependenciesSources {
				if errors.Is(err, werrors.MissingProducer) {
					return errors.Wrapf(werrors.UnresolvedDependency, "pipe %q dependency %q: %v", p.Name, dep.Keyword, err)
				}
				return err
			}
			unresolved = append(unresolved, i)
			continue
		}
		parents[i] = producer
		p.Dependencies[i].Bind(producer, product)
	}

	// Every dependency this pipe could not resolve is packaged into a
	// single synthesized source pipe, rather than one source pipe per
	// unresolved dependency.
	if len(unresolved) > 0 {
		paths := make([]string, len(unresolved))
		for j, i := range unresolved {
			paths[j] = p.Dependencies[i].ProductPath
		}
		producer, products := g.synthesizeSource(p.Name, paths)
		for j, i := range unresolved {
			parents[i] = producer
			p.Dependencies[i].Bind(producer, products[j])
		}
	}

	g.pipes[p.Name] = p
	g.order = append(g.order, p.Name)
	g.sources[p.Name] = opts.MakeDependenciesSources
	g.g.AddNode(p.Name)
	for _, parent := range parents {
		g.g.AddEdge(parent, p.Name)
	}

	if cycle := g.g.FindCycle(p.Name); len(cycle) > 0 {
		g.removeLast(p.Name)
		return errors.Wrapf(werrors.UnresolvedDependency, "adding pipe %q would create a cycle: %v", p.Name, cycle)
	}

	for _, cf := range p.ParameterFiles {
		g.configFiles[cf.Path] = g.configFiles[cf.Path] || !cf.MultiUse
	}

	return nil
}

func (g *Graph) removeLast(name string) {
	delete(g.pipes, name)
	delete(g.sources, name)
	g.g.RemoveNode(name)
	if n := len(g.order); n > 0 && g.order[n-1] == name {
		g.order = g.order[:n-1]
	}
}

// findProducer locates the single pipe whose product RelPath equals
// productPath, returning MissingProducer if none match and AmbiguousName if
// more than one does.
func (g *Graph) findProducer(productPath string) (producerName, productName string, err error) {
	var matches []string
	var matchedProduct string
	for _, name := range g.order {
		p := g.pipes[name]
		for _, prod := range p.Products {
			if prod.RelPath() == productPath || prod.Name() == productPath {
				matches = append(matches, name)
				matchedProduct = prod.Name()
			}
		}
	}
	switch len(matches) {
	case 0:
		return "", "", errors.Wrapf(werrors.MissingProducer, "no pipe producing %q exists in the graph", productPath)
	case 1:
		return matches[0], matchedProduct, nil
	default:
		return "", "", errors.Wrapf(werrors.AmbiguousName, "multiple pipes produce %q: %v", productPath, matches)
	}
}

// synthesizeSource fabricates a single source pipe exposing every path in
// productPaths as an external product and registers it in the graph,
// returning its name and the product name assigned to each path, in the
// same order. consumerName is the short name of the pipe whose unresolved
// dependencies are being packaged; the source pipe is named
// __source__<consumerName><n> for the lowest n making the name unique.
func (g *Graph) synthesizeSource(consumerName string, productPaths []string) (producerName string, productNames []string) {
	n := 0
	for {
		name := pipe.SourcePrefix + consumerName + itoa(n)
		if _, exists := g.pipes[name]; !exists {
			specs := make([]pipe.SourceSpec, len(productPaths))
			names := make([]string, len(productPaths))
			for i, path := range productPaths {
				names[i] = "product" + itoa(i)
				specs[i] = pipe.SourceSpec{ProductName: names[i], Path: path}
			}
			sp := pipe.NewSourcePipe(name, specs)
			g.pipes[name] = sp
			g.order = append(g.order, name)
			g.sources[name] = false
			g.g.AddNode(name)
			return name, names
		}
		n++
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func (g *Graph) preventNestedProduct(path string) error {
	for _, name := range g.order {
		p := g.pipes[name]
		for _, prod := range p.Products {
			other := prod.RelPath()
			if other == path {
				continue
			}
			if nestsUnder(other, path) || nestsUnder(path, other) {
				return errors.Wrapf(werrors.NestedProduct, "product path %q is nested under %q", path, other)
			}
		}
	}
	return nil
}

// nestsUnder reports whether s lies beneath prefix in the filesystem
// hierarchy -- that is, prefix is a strict, path-component-aligned ancestor
// of s. Comparing at path-component granularity (rather than raw string
// prefix) avoids falsely flagging siblings such as "data/x" and "data/xy".
func nestsUnder(s, prefix string) bool {
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return false
	}
	return s[len(prefix)] == filepath.Separator || s[len(prefix)] == '/'
}

// Pipe returns the named pipe, resolving abbreviations the way ResolveName
// does.
func (g *Graph) Pipe(name string) (*pipe.Pipe, error) {
	resolved, err := g.ResolveName(name)
	if err != nil {
		return nil, err
	}
	return g.pipes[resolved], nil
}

// Pipes returns every pipe in insertion order.
func (g *Graph) Pipes() []*pipe.Pipe {
	out := make([]*pipe.Pipe, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.pipes[name])
	}
	return out
}

// Order returns pipe names in the order they were added.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// ResolveName fuzzily resolves a possibly-abbreviated name to the single
// matching pipe name: exact matches win outright; otherwise every pipe name
// containing name as a substring is a candidate, and there must be exactly
// one.
func (g *Graph) ResolveName(name string) (string, error) {
	if _, ok := g.pipes[name]; ok {
		return name, nil
	}

	var matches []string
	for _, candidate := range g.order {
		if pipe.IsSourcePipe(g.pipes[candidate]) {
			continue
		}
		if contains(candidate, name) {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return "", errors.Wrapf(werrors.UnknownPipe, "could not find any pipes matching %q", name)
	case 1:
		return matches[0], nil
	default:
		return "", errors.Wrapf(werrors.AmbiguousName, "found multiple pipes matching %q: %v", name, matches)
	}
}

func contains(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// Lineage returns every ancestor of name (transitively, via FindParents),
// ordered by original insertion order, matching the display order a status
// report walks dependencies in.
func (g *Graph) Lineage(name string) ([]string, error) {
	resolved, err := g.ResolveName(name)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{}
	var walk func(string)
	walk = func(n string) {
		for _, parent := range g.g.FindParents(n) {
			if !visited[parent] {
				visited[parent] = true
				walk(parent)
			}
		}
	}
	walk(resolved)

	var out []string
	for _, n := range g.order {
		if visited[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// Paths enumerates every simple directed path from source to dest.
func (g *Graph) Paths(source, dest string) ([][]string, error) {
	src, err := g.ResolveName(source)
	if err != nil {
		return nil, err
	}
	dst, err := g.ResolveName(dest)
	if err != nil {
		return nil, err
	}

	var results [][]string
	var path []string
	visited := map[string]bool{}

	var walk func(string)
	walk = func(n string) {
		path = append(path, n)
		visited[n] = true
		if n == dst {
			cp := make([]string, len(path))
			copy(cp, path)
			results = append(results, cp)
		} else {
			for _, child := range g.g.FindChildren(n) {
				if !visited[child] {
					walk(child)
				}
			}
		}
		visited[n] = false
		path = path[:len(path)-1]
	}
	walk(src)
	return results, nil
}

// Toposort returns every pipe name in dependency order.
func (g *Graph) Toposort() ([]string, error) {
	order, ok := g.g.Toposort()
	if !ok {
		return nil, errors.Wrap(werrors.UnresolvedDependency, "graph contains a cycle")
	}
	return order, nil
}

// pipeRecord is the serializable replay unit persisted by Save: enough
// information for Load to re-Add each pipe in its original order once the
// caller supplies the concrete *pipe.Pipe values (Go has no dynamic import,
// so unlike a scripting-language graph, Load cannot resurrect pipe bodies
// on its own -- it only replays topology decisions).
type pipeRecord struct {
	Name                    string `yaml:"name"`
	MakeDependenciesSources bool   `yaml:"make_dependencies_sources"`
}

// Save serializes the graph's pipe names and their MakeDependenciesSources
// flag, in insertion order, as a YAML replay script.
func (g *Graph) Save() ([]byte, error) {
	var records []pipeRecord
	for _, name := range g.order {
		if pipe.IsSourcePipe(g.pipes[name]) {
			continue
		}
		records = append(records, pipeRecord{Name: name, MakeDependenciesSources: g.sources[name]})
	}
	return yaml.Marshal(records)
}

// Load replays a graph saved by Save. resolve must return the concrete Pipe
// declaration for a given name (the caller's own pipe registry), since a
// serialized record only names a pipe -- it carries no executable body.
func Load(data []byte, resolve func(name string) (*pipe.Pipe, error)) (*Graph, error) {
	var records []pipeRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "decoding graph replay script")
	}

	g := New()
	for _, rec := range records {
		p, err := resolve(rec.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving pipe %q during graph load", rec.Name)
		}
		if err := g.Add(p, AddOptions{MakeDependenciesSources: rec.MakeDependenciesSources}); err != nil {
			return nil, err
		}
	}
	return g, nil
}
