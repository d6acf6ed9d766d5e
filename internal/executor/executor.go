// Package executor runs a single pipe's action against its resolved
// dependencies and parameters, persists the products it promises, and
// records the build metadata future staleness checks read back.
package executor

import (
	"os"
	"reflect"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/j-helland/warp/internal/config"
	"github.com/j-helland/warp/internal/corelog"
	"github.com/j-helland/warp/internal/pipe"
	"github.com/j-helland/warp/internal/provenance"
	"github.com/j-helland/warp/internal/session"
	"github.com/j-helland/warp/internal/werrors"
)

// Paths bundles the filesystem roots a single build needs to resolve
// product locations and cache directories.
type Paths struct {
	SessionRoot string
	StaticRoot  string
	CacheDir    string
	RepoRoot    string
}

// Result reports what a build produced and how long it took.
type Result struct {
	Products map[string]interface{}
	Elapsed  time.Duration
	Metadata Metadata
}

// Build runs p's action with deps bound as its dependency values and
// overrides merged over any config-file parameters already loaded onto p,
// then persists every product p declares with Savable() true, verifying
// each was actually written before returning. On success, it also records
// the pipe's build metadata, parameter snapshot and source listing beneath
// paths.CacheDir.
func Build(p *pipe.Pipe, deps map[string]interface{}, overrides map[string]interface{}, paths Paths, log corelog.Logger) (Result, error) {
	if err := bindParameters(p, overrides); err != nil {
		return Result{}, err
	}

	ctx := pipe.NewRunContext(p, deps)

	start := time.Now()
	if err := p.Action(ctx); err != nil {
		return Result{}, errors.Wrapf(werrors.PipeActionFailure, "pipe %q action failed: %v", p.Name, err)
	}
	elapsed := time.Since(start)

	results := ctx.Results()
	for _, prod := range p.Products {
		if !prod.Savable() {
			continue
		}
		value, produced := results[prod.Name()]
		if !produced {
			return Result{}, errors.Wrapf(werrors.ProductNotProduced,
				"pipe %q promised product %q but never called SetProduct for it", p.Name, prod.Name())
		}
		path := prod.Path(paths.SessionRoot, paths.StaticRoot)
		if err := prod.Save(path, value); err != nil {
			return Result{}, err
		}
		if _, err := os.Stat(path); err != nil {
			return Result{}, errors.Wrapf(werrors.ProductNotProduced,
				"pipe %q saved product %q but it is not present at %s: %v", p.Name, prod.Name(), path, err)
		}
	}

	commitHash, err := provenance.CommitHash(paths.RepoRoot)
	if err != nil {
		log.Warnf("no git versioning detected for %s: %v", paths.RepoRoot, err)
		commitHash = ""
	}

	meta := Metadata{
		PipeName:      p.Name,
		LastBuildTime: start,
		TimeElapsed:   elapsed,
		GitCommitHash: commitHash,
	}
	if err := WriteMetadata(session.MetadataPath(paths.CacheDir), meta); err != nil {
		return Result{}, err
	}
	if err := config.Save(session.ParameterSnapshotPath(paths.CacheDir), snapshotParameters(p)); err != nil {
		return Result{}, err
	}
	if err := recordSourceSnapshot(p, session.SourceSnapshotPath(paths.CacheDir)); err != nil {
		log.Warnf("could not record source snapshot for pipe %q: %v", p.Name, err)
	}

	return Result{Products: results, Elapsed: elapsed, Metadata: meta}, nil
}

// recordSourceSnapshot copies the Go source file that defines p's action
// closure to path, for provenance display. A source pipe (no action) or an
// action defined somewhere the runtime cannot resolve a file for (e.g. a
// symbol stripped from the binary) is recorded as a no-op rather than an
// error, since the snapshot is informational only and never compared when
// computing staleness.
func recordSourceSnapshot(p *pipe.Pipe, path string) error {
	file, ok := actionSourceFile(p.Action)
	if !ok {
		return nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrapf(err, "reading source file %s for pipe %q", file, p.Name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing source snapshot for pipe %q", p.Name)
	}
	return nil
}

// actionSourceFile resolves the .go file that declares action by looking up
// its program counter in the runtime's function table.
func actionSourceFile(action pipe.ActionFunc) (string, bool) {
	if action == nil {
		return "", false
	}
	fn := runtime.FuncForPC(reflect.ValueOf(action).Pointer())
	if fn == nil {
		return "", false
	}
	file, _ := fn.FileLine(fn.Entry())
	return file, file != ""
}

func bindParameters(p *pipe.Pipe, overrides map[string]interface{}) error {
	for name, v := range overrides {
		param, err := p.Param(name)
		if err != nil {
			continue // overrides may target pipes other than p when applied from a shared config map
		}
		if err := param.Set(v); err != nil {
			return err
		}
	}
	return nil
}

func snapshotParameters(p *pipe.Pipe) map[string]interface{} {
	values := make(map[string]interface{}, len(p.Parameters))
	for _, param := range p.Parameters {
		values[param.Name()] = param.Get()
	}
	return values
}
