// Package config loads pipe parameter overrides from YAML or JSON config
// files and merges them with caller-supplied override maps.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/j-helland/warp/internal/werrors"
)

// Load reads a flat key/value document from path. The extension selects the
// decoder: .yml/.yaml for YAML, .json for JSON; anything else is rejected.
func Load(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	var raw map[string]interface{}
	switch ext {
	case "yml", "yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrapf(err, "decoding YAML config file %s", path)
		}
	case "json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrapf(err, "decoding JSON config file %s", path)
		}
	default:
		return nil, errors.Errorf("unrecognized config file extension %q for file %s", ext, path)
	}
	return raw, nil
}

// Merge recursively folds override's values into base, returning the
// combined map. Keys present in override but absent in base are added;
// nested maps are merged recursively rather than replaced wholesale.
// Override values always win on conflict.
func Merge(base, override map[string]interface{}) (map[string]interface{}, error) {
	if base == nil {
		base = map[string]interface{}{}
	}
	if err := mergo.Merge(&base, override, mergo.WithOverride()); err != nil {
		return nil, errors.Wrap(err, "merging config overrides")
	}
	return base, nil
}

// allowedScalar reports whether v's dynamic type is one of the scalar kinds
// WARP parameters may hold, or a slice/map of such values.
func allowedScalar(v interface{}) bool {
	switch x := v.(type) {
	case nil, bool, int, int64, float64, float32, string, time.Time, []byte, complex64, complex128:
		return true
	case []interface{}:
		for _, e := range x {
			if !allowedScalar(e) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		for _, e := range x {
			if !allowedScalar(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Typecheck validates that every value in a decoded config document is one
// of the scalar types (or nested collections thereof) that a Parameter is
// allowed to hold, returning InvalidParameterType otherwise instead of
// silently accepting a value no pipe could ever Set.
func Typecheck(values map[string]interface{}) error {
	for k, v := range values {
		if !allowedScalar(v) {
			return errors.Wrapf(werrors.InvalidParameterType, "config key %q has disallowed type %T", k, v)
		}
	}
	return nil
}

// Save persists a flat parameter snapshot as YAML, after validating that
// every value is one WARP can round-trip. Used to record the exact
// parameter values a build ran with.
func Save(path string, values map[string]interface{}) error {
	if err := Typecheck(values); err != nil {
		return errors.Wrap(err, "cannot snapshot parameter values")
	}
	data, err := yaml.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "encoding parameter snapshot")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent directory for %s", path)
	}
	return os.WriteFile(path, data, 0o644)
}
