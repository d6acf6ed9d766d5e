package pipe

import (
	"github.com/pkg/errors"

	"github.com/j-helland/warp/internal/werrors"
)

// Parameter is a named scalar attached to a pipe. Its type is
// inferred from the declared default, else defaults to string, and its
// value is mutated over the pipe's lifecycle: by config files at build
// start, by caller-supplied overrides, and by the pipe action itself.
//
// Design note: a scripting-language implementation could make Parameter a
// dual-personality wrapper that behaves like its contained value at read
// sites and like the wrapper object at introspection sites, using a stack-
// inspection trick. That has no portable Go equivalent, so Parameter instead
// exposes Get/Set explicitly.
type Parameter struct {
	name  string
	value interface{}
	typ   ParameterType
}

// ParameterOption configures a Parameter at construction time.
type ParameterOption func(*Parameter)

// WithDefault sets the parameter's initial value and infers its type from
// the value's Go type.
func WithDefault(v interface{}) ParameterOption {
	return func(p *Parameter) {
		p.value = v
		p.typ = inferType(v)
	}
}

// WithType overrides the inferred type, for parameters whose default would
// otherwise infer the wrong scalar kind (e.g. a timestamp passed in as a
// pre-formatted string that should still validate as TypeTimestamp once a
// real time.Time is assigned).
func WithType(t ParameterType) ParameterOption {
	return func(p *Parameter) { p.typ = t }
}

// NewParameter declares a new Parameter. Without WithDefault, the value
// defaults to the parameter's own name and its type to string.
func NewParameter(name string, opts ...ParameterOption) *Parameter {
	p := &Parameter{name: name, value: name, typ: TypeString}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the parameter's identifier.
func (p *Parameter) Name() string { return p.name }

// Type returns the parameter's declared scalar type.
func (p *Parameter) Type() ParameterType { return p.typ }

// Get returns the parameter's current value.
func (p *Parameter) Get() interface{} { return p.value }

// Set validates v against the parameter's declared type and, if it
// matches, updates the value. Returns InvalidParameterType otherwise (the
// validate-and-reject policy chosen for the open question
// of whether overrides should coerce, validate, or reject).
func (p *Parameter) Set(v interface{}) error {
	if !typeMatches(p.typ, v) {
		return errors.Wrapf(werrors.InvalidParameterType,
			"parameter %q expects %s, got %T", p.name, p.typ, v)
	}
	p.value = v
	return nil
}
