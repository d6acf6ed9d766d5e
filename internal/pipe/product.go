package pipe

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriterFunc persists a value to path. The default writer gob-encodes the
// value; pipes that produce files directly (rather than in-memory values)
// supply a custom WriterFunc with the same (path, value) signature,
// installed together with its ReaderFunc through WithCodec.
type WriterFunc func(path string, value interface{}) error

// ReaderFunc is the inverse of WriterFunc.
type ReaderFunc func(path string) (interface{}, error)

// Product is a named artifact a pipe promises to produce. Its
// resolved path depends on three mutually exclusive placement modes:
// External (an absolute path outside any session, never cleared by
// ClearCache), Static (shared across sessions under the home directory's
// static products area), or the default session-local placement beneath the
// active session's product directory.
type Product struct {
	name     string
	relpath  string
	external string
	static   bool
	save     bool
	writer   WriterFunc
	reader   ReaderFunc
}

// ProductOption configures a Product at construction time.
type ProductOption func(*Product)

// External pins the product to a fixed, absolute path outside of any
// session -- the highest-priority placement.
func External(path string) ProductOption {
	return func(p *Product) { p.external = path }
}

// Static places the product under the home directory's shared static area
// rather than beneath a single session, so it persists across sessions and
// is rebuilt only when explicitly requested.
func Static() ProductOption {
	return func(p *Product) { p.static = true }
}

// NoSave marks a product as transient: its action's return value is kept in
// memory for the duration of a single build but never written to disk, and
// downstream pipes may not depend on it across a process boundary.
func NoSave() ProductOption {
	return func(p *Product) { p.save = false }
}

// WithCodec installs a custom WriterFunc/ReaderFunc pair, for products that
// must be materialized in a particular file format rather than the default
// gob encoding.
func WithCodec(w WriterFunc, r ReaderFunc) ProductOption {
	return func(p *Product) {
		p.writer = w
		p.reader = r
	}
}

// NewProduct declares a product named name, materialized by default at
// relpath beneath the active session's product directory.
func NewProduct(name, relpath string, opts ...ProductOption) *Product {
	p := &Product{
		name:    name,
		relpath: relpath,
		save:    true,
		writer:  gobWrite,
		reader:  gobRead,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the product's identifier.
func (p *Product) Name() string { return p.name }

// RelPath returns the path fragment the product was declared with, prior to
// resolution against any session directory.
func (p *Product) RelPath() string { return p.relpath }

// IsStatic reports whether the product resolves beneath the shared static
// products area instead of a session.
func (p *Product) IsStatic() bool { return p.static }

// IsExternal reports whether the product is pinned to a fixed path outside
// any session.
func (p *Product) IsExternal() bool { return p.external != "" }

// Savable reports whether the product's value is persisted to disk at all.
func (p *Product) Savable() bool { return p.save }

// Path resolves the product's on-disk location given the session and static
// product root directories. External products ignore both roots; static
// products resolve beneath staticRoot; everything else resolves beneath
// sessionRoot. This mirrors the external > static > session-local priority
// placement rule assigns to Product path resolution.
func (p *Product) Path(sessionRoot, staticRoot string) string {
	if p.external != "" {
		return p.external
	}
	if p.static {
		return filepath.Join(staticRoot, p.relpath)
	}
	return filepath.Join(sessionRoot, p.relpath)
}

// Save writes value to path using the product's writer, creating parent
// directories as needed.
func (p *Product) Save(path string, value interface{}) error {
	if !p.save {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent directory for product %q", p.name)
	}
	if err := p.writer(path, value); err != nil {
		return errors.Wrapf(err, "saving product %q to %s", p.name, path)
	}
	return nil
}

// Load reads the product's persisted value back from path.
func (p *Product) Load(path string) (interface{}, error) {
	v, err := p.reader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading product %q from %s", p.name, path)
	}
	return v, nil
}

func gobWrite(path string, value interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	// gob requires every concrete type carried in an interface{} value to be
	// registered under a stable name, even builtins -- register on the way
	// out so callers never need to do this themselves for ordinary Go values.
	gob.Register(value)
	return gob.NewEncoder(f).Encode(&value)
}

func gobRead(path string) (interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var value interface{}
	if err := gob.NewDecoder(f).Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}
