package pipe

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/j-helland/warp/internal/werrors"
)

// Dependency declares that a pipe consumes a product identified by
// ProductPath, which Graph.Add compares exactly against the declared
// relative path and the name of every product already in the graph
// (no abbreviation is expanded). Keyword is the local name the pipe's
// action uses to fetch the bound value via RunContext.Dep.
type Dependency struct {
	Keyword     string
	ProductPath string

	// producer and product are filled in once the owning Graph resolves
	// ProductPath to a concrete producer pipe and product name.
	producer string
	product  string
}

// Producer returns the resolved producer pipe name, or "" if unresolved.
func (d Dependency) Producer() string { return d.producer }

// ProductName returns the resolved product name, or "" if unresolved.
func (d Dependency) ProductName() string { return d.product }

// Bind records the producer pipe and product name a graph resolved this
// dependency's ProductPath to. Exported for use by the graph package, which
// is the only caller expected to know a dependency's resolution.
func (d *Dependency) Bind(producer, product string) {
	d.producer = producer
	d.product = product
}

// ActionFunc is the work a pipe performs once its dependencies, parameters
// and config files are bound. It reports products via RunContext.SetProduct
// and returns an error to fail the build (wrapped as PipeActionFailure by
// the caller).
type ActionFunc func(ctx *RunContext) error

// Pipe is a single node in the build graph: a unit of work that consumes
// parameters, config files and upstream products, and produces named
// products of its own.
type Pipe struct {
	Name           string
	Parameters     []*Parameter
	ParameterFiles []*ParameterFile
	Products       []*Product
	Dependencies   []Dependency
	SourcePath     string
	Action         ActionFunc

	paramIndex   map[string]*Parameter
	productIndex map[string]*Product
	depIndex     map[string]*Dependency
}

func newPipe(name string) *Pipe {
	return &Pipe{
		Name:         name,
		paramIndex:   map[string]*Parameter{},
		productIndex: map[string]*Product{},
		depIndex:     map[string]*Dependency{},
	}
}

// Param returns the named parameter, or an UnknownPipe-rooted error if the
// pipe declares no such parameter.
func (p *Pipe) Param(name string) (*Parameter, error) {
	param, ok := p.paramIndex[name]
	if !ok {
		return nil, errors.Wrapf(werrors.UnknownPipe, "pipe %q has no parameter %q", p.Name, name)
	}
	return param, nil
}

// ProductByName returns the named product declared by this pipe.
func (p *Pipe) ProductByName(name string) (*Product, error) {
	prod, ok := p.productIndex[name]
	if !ok {
		return nil, errors.Wrapf(werrors.UnknownPipe, "pipe %q has no product %q", p.Name, name)
	}
	return prod, nil
}

// DependencyByKeyword returns the dependency bound to the given local name.
func (p *Pipe) DependencyByKeyword(keyword string) (*Dependency, error) {
	dep, ok := p.depIndex[keyword]
	if !ok {
		return nil, errors.Wrapf(werrors.UnresolvedDependency, "pipe %q has no dependency %q", p.Name, keyword)
	}
	return dep, nil
}

func (p *Pipe) reindex() {
	p.paramIndex = make(map[string]*Parameter, len(p.Parameters))
	for _, param := range p.Parameters {
		p.paramIndex[param.Name()] = param
	}
	p.productIndex = make(map[string]*Product, len(p.Products))
	for _, prod := range p.Products {
		p.productIndex[prod.Name()] = prod
	}
	p.depIndex = make(map[string]*Dependency, len(p.Dependencies))
	for i := range p.Dependencies {
		p.depIndex[p.Dependencies[i].Keyword] = &p.Dependencies[i]
	}
}

// String implements fmt.Stringer for log and error messages.
func (p *Pipe) String() string {
	return fmt.Sprintf("pipe(%s)", p.Name)
}

// RunContext carries the bound inputs and collected outputs of a single
// pipe execution, passed to ActionFunc by the executor.
type RunContext struct {
	pipe         *Pipe
	deps         map[string]interface{}
	results      map[string]interface{}
}

// NewRunContext builds a RunContext for pipe p with upstream dependency
// values already resolved by the caller.
func NewRunContext(p *Pipe, deps map[string]interface{}) *RunContext {
	return &RunContext{
		pipe:    p,
		deps:    deps,
		results: map[string]interface{}{},
	}
}

// Param returns the current value of one of the pipe's own parameters.
func (c *RunContext) Param(name string) (interface{}, error) {
	param, err := c.pipe.Param(name)
	if err != nil {
		return nil, err
	}
	return param.Get(), nil
}

// Dep returns the value bound to a dependency's local keyword.
func (c *RunContext) Dep(keyword string) (interface{}, error) {
	if _, err := c.pipe.DependencyByKeyword(keyword); err != nil {
		return nil, err
	}
	v, ok := c.deps[keyword]
	if !ok {
		return nil, errors.Wrapf(werrors.UnresolvedDependency, "dependency %q was not bound for pipe %q", keyword, c.pipe.Name)
	}
	return v, nil
}

// SetProduct records the value produced for one of the pipe's declared
// products. The executor persists it via Product.Save after Action returns.
func (c *RunContext) SetProduct(name string, value interface{}) error {
	if _, err := c.pipe.ProductByName(name); err != nil {
		return err
	}
	c.results[name] = value
	return nil
}

// Results returns the product values collected during Run, keyed by
// product name.
func (c *RunContext) Results() map[string]interface{} {
	return c.results
}
