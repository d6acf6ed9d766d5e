package pipe

import "strings"

// SourcePrefix marks the synthetic pipes the graph generates to stand in
// for externally-supplied products when a consuming pipe asks for its
// dependencies to be wrapped as sources ("make dependencies
// sources"). A source pipe has no action of its own: it merely exposes
// pre-existing artifacts as external products, one per path it was given;
// SourcePath holds the first of those paths.
const SourcePrefix = "__source__"

// IsSourcePipe reports whether p is a source pipe: either synthesized by the
// graph (its name starts with SourcePrefix) or declared with a SourcePath
// via Builder.Source.
func IsSourcePipe(p *Pipe) bool {
	return strings.HasPrefix(p.Name, SourcePrefix) || p.SourcePath != ""
}

// SourceSpec names one artifact a synthesized source pipe exposes as a
// product.
type SourceSpec struct {
	ProductName string
	Path        string
}

// NewSourcePipe synthesizes a source pipe named name that exposes every
// spec as an external, always-built product. A single consumer's entire
// set of unresolved dependencies is packaged into one source pipe rather
// than one source pipe per dependency; the graph assigns disjoint names
// (appending a numeric suffix) when multiple source pipes are synthesized
// for the same consumer across separate Add calls.
func NewSourcePipe(name string, specs []SourceSpec) *Pipe {
	p := newPipe(name)
	if len(specs) > 0 {
		p.SourcePath = specs[0].Path
	}
	p.Products = make([]*Product, len(specs))
	for i, s := range specs {
		p.Products[i] = NewProduct(s.ProductName, s.Path, External(s.Path), NoSave())
	}
	p.reindex()
	return p
}
