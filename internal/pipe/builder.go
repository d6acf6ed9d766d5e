package pipe

import (
	"github.com/pkg/errors"

	"github.com/j-helland/warp/internal/werrors"
)

// Builder assembles a Pipe declaratively. Where a Python implementation
// would use a class decorator to rewrite a plain function into a pipe
// object, Builder makes every declaration an explicit, chainable call so
// the resulting Pipe can be constructed without reflection or package-level
// registration.
type Builder struct {
	pipe *Pipe
	errs []error
}

// NewBuilder starts building a pipe named name.
func NewBuilder(name string) *Builder {
	if name == "" {
		b := &Builder{pipe: newPipe(name)}
		b.errs = append(b.errs, errors.Wrap(werrors.UnknownPipe, "pipe name must not be empty"))
		return b
	}
	return &Builder{pipe: newPipe(name)}
}

// Param declares a parameter on the pipe under construction.
func (b *Builder) Param(name string, opts ...ParameterOption) *Builder {
	b.pipe.Parameters = append(b.pipe.Parameters, NewParameter(name, opts...))
	return b
}

// ConfigFile declares a config-file attachment on the pipe under
// construction. Uniqueness of path across the graph (unless multiUse) is
// enforced by Graph.Add, not here, since it requires knowledge of the
// whole topology.
func (b *Builder) ConfigFile(path string, multiUse bool) *Builder {
	b.pipe.ParameterFiles = append(b.pipe.ParameterFiles, NewParameterFile(path, multiUse))
	return b
}

// Produces declares a product the pipe under construction will emit.
func (b *Builder) Produces(name, relpath string, opts ...ProductOption) *Builder {
	b.pipe.Products = append(b.pipe.Products, NewProduct(name, relpath, opts...))
	return b
}

// DependsOn declares a dependency on an upstream product. productPath must
// equal an upstream product's declared relative path or product name, which
// Graph.Add resolves to the producing pipe; keyword is the local name the
// action uses to fetch the bound value.
func (b *Builder) DependsOn(keyword, productPath string) *Builder {
	if productPath == "" {
		b.errs = append(b.errs, errors.Wrapf(werrors.UnresolvedDependency,
			"pipe %q: dependency %q has empty product path", b.pipe.Name, keyword))
		return b
	}
	b.pipe.Dependencies = append(b.pipe.Dependencies, Dependency{Keyword: keyword, ProductPath: productPath})
	return b
}

// Source marks the pipe as a source pipe rooted at the given filesystem
// path: a leaf with no dependencies whose only role is to expose an
// externally-supplied artifact as a product.
func (b *Builder) Source(path string) *Builder {
	b.pipe.SourcePath = path
	return b
}

// Action installs the pipe's work function.
func (b *Builder) Action(fn ActionFunc) *Builder {
	b.pipe.Action = fn
	return b
}

// Build validates and returns the assembled Pipe. A pipe with a SourcePath
// may not declare dependencies (source pipes are graph roots), and
// every non-source pipe must have an Action.
func (b *Builder) Build() (*Pipe, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if b.pipe.SourcePath != "" && len(b.pipe.Dependencies) > 0 {
		return nil, errors.Wrapf(werrors.UnresolvedDependency,
			"pipe %q: source pipes may not declare dependencies", b.pipe.Name)
	}
	if b.pipe.SourcePath == "" && b.pipe.Action == nil {
		return nil, errors.Wrapf(werrors.PipeActionFailure,
			"pipe %q: no action declared", b.pipe.Name)
	}
	b.pipe.reindex()
	return b.pipe, nil
}
