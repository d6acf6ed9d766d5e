// Package workspace is the public façade over a pipeline: it owns the
// topology, the on-disk cache, and the staleness analysis that decides
// which pipes a backfill rebuilds.
package workspace

import (
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/j-helland/warp/internal/config"
	"github.com/j-helland/warp/internal/corelog"
	"github.com/j-helland/warp/internal/executor"
	"github.com/j-helland/warp/internal/graph"
	"github.com/j-helland/warp/internal/pipe"
	"github.com/j-helland/warp/internal/session"
	"github.com/j-helland/warp/internal/staleness"
	"github.com/j-helland/warp/internal/werrors"
)

// Workspace is the main entry point for generating pipeline output,
// inspecting historical runs, and managing the on-disk cache that makes a
// build reproducible.
type Workspace struct {
	g          *graph.Graph
	home       *session.Home
	analyzer   *staleness.Analyzer
	repoRoot   string
	linkStatic bool
	log        corelog.Logger
}

// Option configures a Workspace at construction time.
type Option func(*Workspace)

// WithLogger overrides the default stderr logger.
func WithLogger(log corelog.Logger) Option { return func(w *Workspace) { w.log = log } }

// WithRepoRoot sets the directory provenance.CommitHash resolves the
// calling project's commit hash from. Defaults to the current directory.
func WithRepoRoot(path string) Option { return func(w *Workspace) { w.repoRoot = path } }

// LinkStaticProducts lets this session's backfills treat static products
// left behind by other sessions as already built. Can cause surprising
// results if those products were produced by a different pipeline version.
func LinkStaticProducts() Option { return func(w *Workspace) { w.linkStatic = true } }

// Open creates or loads the WARP cache directory at homeDir (the default
// home directory if homeDir is empty) and binds it to g. If sessionID is
// empty, the most recently active session is reopened, or a fresh one is
// minted if none exists yet.
func Open(g *graph.Graph, homeDir, sessionID string, opts ...Option) (*Workspace, error) {
	if homeDir == "" {
		var err error
		homeDir, err = session.DefaultHomeDir()
		if err != nil {
			return nil, err
		}
	}

	var homeOpts []session.Option
	if sessionID != "" {
		homeOpts = append(homeOpts, session.WithSessionID(sessionID))
	}
	home, err := session.Open(homeDir, homeOpts...)
	if err != nil {
		return nil, err
	}

	w := &Workspace{
		g:        g,
		home:     home,
		analyzer: staleness.NewAnalyzer(g),
		log:      corelog.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.repoRoot == "" {
		w.repoRoot = "."
	}
	if w.linkStatic {
		w.log.Warnf("linking static products of other sessions to this one can cause unexpected behavior -- use with caution")
	}
	w.log.Infof("loaded session %s", home.SessionID())
	return w, nil
}

// SessionID returns the currently active session.
func (w *Workspace) SessionID() string { return w.home.SessionID() }

// Pipes returns every pipe name in the topology, in insertion order.
func (w *Workspace) Pipes() []string { return w.g.Order() }

// ViewPipe fuzzily resolves name and returns its pipe, for CLI inspection
// commands.
func (w *Workspace) ViewPipe(name string) (*pipe.Pipe, error) {
	resolved, err := w.g.ResolveName(name)
	if err != nil {
		return nil, err
	}
	return w.g.Pipe(resolved)
}

// Parameters returns the current parameter values of the named pipe.
func (w *Workspace) Parameters(name string) (map[string]interface{}, error) {
	p, err := w.ViewPipe(name)
	if err != nil {
		return nil, err
	}
	values := make(map[string]interface{}, len(p.Parameters))
	for _, param := range p.Parameters {
		values[param.Name()] = param.Get()
	}
	return values, nil
}

// Products lists the product names the named pipe declares.
func (w *Workspace) Products(name string) ([]string, error) {
	p, err := w.ViewPipe(name)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(p.Products))
	for i, prod := range p.Products {
		names[i] = prod.Name()
	}
	return names, nil
}

// Configs loads the config-file values attached to every non-source pipe in
// the topology, keyed by pipe name.
func (w *Workspace) Configs() (map[string]map[string]interface{}, error) {
	out := map[string]map[string]interface{}{}
	for _, name := range w.g.Order() {
		p, err := w.g.Pipe(name)
		if err != nil {
			return nil, err
		}
		if pipe.IsSourcePipe(p) {
			continue
		}
		values, err := w.fileParameters(p)
		if err != nil {
			return nil, err
		}
		out[name] = values
	}
	return out, nil
}

func (w *Workspace) fileParameters(p *pipe.Pipe) (map[string]interface{}, error) {
	merged := map[string]interface{}{}
	for _, cf := range p.ParameterFiles {
		values, err := config.Load(cf.Path)
		if err != nil {
			return nil, err
		}
		merged, err = config.Merge(merged, values)
		if err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func (w *Workspace) paths(pipeName string) (executor.Paths, error) {
	sessionRoot, err := w.home.ProductsDir()
	if err != nil {
		return executor.Paths{}, err
	}
	staticRoot, err := w.home.StaticProductsDir()
	if err != nil {
		return executor.Paths{}, err
	}
	cacheDir, err := w.home.PipeCacheDir(pipeName)
	if err != nil {
		return executor.Paths{}, err
	}
	return executor.Paths{
		SessionRoot: sessionRoot,
		StaticRoot:  staticRoot,
		CacheDir:    cacheDir,
		RepoRoot:    w.repoRoot,
	}, nil
}

func (w *Workspace) age(pipeName string) (staleness.Age, error) {
	cacheDir, err := w.home.PipeCacheDir(pipeName)
	if err != nil {
		return staleness.Age{}, err
	}
	meta, err := executor.ReadMetadata(session.MetadataPath(cacheDir))
	if err != nil {
		return staleness.Age{}, err
	}
	if meta.LastBuildTime.IsZero() {
		return staleness.Age{Built: false}, nil
	}
	return staleness.Age{Built: true, BuiltAt: meta.LastBuildTime}, nil
}

func (w *Workspace) built(pipeName string) (bool, error) {
	p, err := w.g.Pipe(pipeName)
	if err != nil {
		return false, err
	}
	paths, err := w.paths(pipeName)
	if err != nil {
		return false, err
	}
	for _, prod := range p.Products {
		if !prod.Savable() {
			continue
		}
		if _, err := os.Stat(prod.Path(paths.SessionRoot, paths.StaticRoot)); err != nil {
			return false, nil
		}
	}
	return true, nil
}

// staticProductPresent reports whether productName on pipeName is declared
// static and already materialized on disk, the test the
// link-static-products prune applies to every dependency edge.
func (w *Workspace) staticProductPresent(pipeName, productName string) (bool, error) {
	p, err := w.g.Pipe(pipeName)
	if err != nil {
		return false, err
	}
	prod, err := p.ProductByName(productName)
	if err != nil {
		return false, err
	}
	if !prod.IsStatic() {
		return false, nil
	}
	paths, err := w.paths(pipeName)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(prod.Path(paths.SessionRoot, paths.StaticRoot)); err != nil {
		return false, nil
	}
	return true, nil
}

// Build runs target's action directly against its currently cached parent
// products and config values. It does not check whether those ancestors
// are themselves stale -- call CheckAncestry first, or use Backfill, when
// that matters.
func (w *Workspace) Build(target string, overrides map[string]interface{}) (executor.Result, error) {
	resolved, err := w.g.ResolveName(target)
	if err != nil {
		return executor.Result{}, err
	}

	w.log.Infof("building pipe %s", resolved)

	targetPipe, err := w.g.Pipe(resolved)
	if err != nil {
		return executor.Result{}, err
	}

	deps, err := w.loadDependencyValues(targetPipe)
	if err != nil {
		return executor.Result{}, err
	}

	merged, err := w.mergedParameters(targetPipe, overrides)
	if err != nil {
		return executor.Result{}, err
	}

	paths, err := w.paths(resolved)
	if err != nil {
		return executor.Result{}, err
	}

	result, err := executor.Build(targetPipe, deps, merged, paths, w.log)
	if err != nil {
		return executor.Result{}, err
	}
	w.log.Infof("elapsed time: %s", result.Elapsed)
	return result, nil
}

func (w *Workspace) loadDependencyValues(p *pipe.Pipe) (map[string]interface{}, error) {
	values := map[string]interface{}{}
	for _, dep := range p.Dependencies {
		producer := dep.Producer()
		if producer == "" {
			return nil, errors.Wrapf(werrors.UnresolvedDependency,
				"dependency %q on pipe %q was never resolved against the graph", dep.Keyword, p.Name)
		}
		producerPipe, err := w.g.Pipe(producer)
		if err != nil {
			return nil, err
		}
		prod, err := producerPipe.ProductByName(dep.ProductName())
		if err != nil {
			return nil, err
		}
		producerPaths, err := w.paths(producer)
		if err != nil {
			return nil, err
		}
		value, err := prod.Load(prod.Path(producerPaths.SessionRoot, producerPaths.StaticRoot))
		if err != nil {
			return nil, errors.Wrapf(err, "loading cached product %q from pipe %q", dep.ProductName(), producer)
		}
		values[dep.Keyword] = value
	}
	return values, nil
}

func (w *Workspace) mergedParameters(p *pipe.Pipe, overrides map[string]interface{}) (map[string]interface{}, error) {
	merged, err := w.fileParameters(p)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		merged, err = config.Merge(merged, overrides)
		if err != nil {
			return nil, err
		}
	}
	// Reject a disallowed-type override here, before the caller ever reaches
	// executor.Build and invokes the pipe's action, rather than waiting for
	// the parameter snapshot write at the end of a build to surface it.
	if err := config.Typecheck(merged); err != nil {
		return nil, errors.Wrapf(err, "pipe %q parameter overrides", p.Name)
	}
	return merged, nil
}

// Backfill brings target up to date by building every out-of-sync ancestor
// first, each in its own child process via buildBinary (the calling
// project's own executable, re-invoked with the child-build flags), halting
// the whole trajectory at the first pipe that fails. configs maps a
// (fuzzily matched) pipe name to parameter overrides that force that pipe
// into the rebuild regardless of its staleness. rebuildStaticProducts
// overrides the LinkStaticProducts shortcut for this one call, forcing
// otherwise-satisfied static ancestors back into the gap. If buildBinary is
// empty, the currently running executable is reused.
func (w *Workspace) Backfill(target string, configs map[string]map[string]interface{}, rebuildAll, rebuildStaticProducts bool, buildBinary string) error {
	resolved, err := w.g.ResolveName(target)
	if err != nil {
		return err
	}

	resolvedConfigs := map[string]map[string]interface{}{}
	alwaysBuild := map[string]bool{}
	for name, values := range configs {
		n, err := w.g.ResolveName(name)
		if err != nil {
			return err
		}
		resolvedConfigs[n] = values
		alwaysBuild[n] = true
	}

	var gap []string
	if rebuildAll {
		ancestors, err := w.g.Lineage(resolved)
		if err != nil {
			return err
		}
		gap = append(ancestors, resolved)
	} else {
		gap, err = w.analyzer.GapPipes(resolved, w.age, w.built, alwaysBuild, w.linkStatic, rebuildStaticProducts, w.staticProductPresent)
		if err != nil {
			return err
		}
	}

	if buildBinary == "" {
		exe, err := os.Executable()
		if err != nil {
			return errors.Wrap(err, "resolving own executable path for backfill")
		}
		buildBinary = exe
	}

	newCmd := func(pipeName string) *exec.Cmd {
		configPath := ""
		if overrides, ok := resolvedConfigs[pipeName]; ok && len(overrides) > 0 {
			cacheDir, err := w.home.PipeCacheDir(pipeName)
			if err == nil {
				configPath = filepath.Join(cacheDir, "backfill_override.yml")
				_ = config.Save(configPath, overrides)
			}
		}
		return executor.ChildBuildCommand(buildBinary, w.home.Path(), w.home.SessionID(), pipeName, configPath)
	}

	if err := executor.Backfill(gap, newCmd, w.log); err != nil {
		return err
	}

	inGap := map[string]bool{}
	for _, n := range gap {
		inGap[n] = true
	}
	if !inGap[resolved] {
		w.log.Infof("all relevant ancestors are up to date, running build(%q)", resolved)
		if _, err := w.Build(resolved, nil); err != nil {
			return err
		}
	}
	return nil
}

// Status reports whether target has been built, its lineage with stale
// pipes distinguished, and the metadata of its most recent build.
type Status struct {
	PipeName string
	Lineage  []string
	Stale    map[string]bool
	Built    bool
	Metadata executor.Metadata
}

// Status fuzzily resolves target and reports its build state.
func (w *Workspace) Status(target string) (Status, error) {
	resolved, err := w.g.ResolveName(target)
	if err != nil {
		return Status{}, err
	}
	ancestors, err := w.g.Lineage(resolved)
	if err != nil {
		return Status{}, err
	}
	lineage := append(append([]string{}, ancestors...), resolved)

	gap, err := w.analyzer.GapPipes(resolved, w.age, w.built, nil, w.linkStatic, false, w.staticProductPresent)
	if err != nil {
		return Status{}, err
	}
	stale := make(map[string]bool, len(gap))
	for _, p := range gap {
		stale[p] = true
	}

	age, err := w.age(resolved)
	if err != nil {
		return Status{}, err
	}
	status := Status{PipeName: resolved, Lineage: lineage, Stale: stale, Built: age.Built}
	if age.Built {
		cacheDir, err := w.home.PipeCacheDir(resolved)
		if err != nil {
			return Status{}, err
		}
		meta, err := executor.ReadMetadata(session.MetadataPath(cacheDir))
		if err != nil {
			return Status{}, err
		}
		status.Metadata = meta
	}
	return status, nil
}

// ClearSession deletes the cache for a single session, leaving other
// sessions and the shared static products area untouched.
func (w *Workspace) ClearSession(sessionID string) error {
	return w.home.ClearSession(sessionID)
}

// ClearAll wipes every session beneath the home directory, including the
// shared static products area, then starts a fresh session.
func (w *Workspace) ClearAll() error {
	return w.home.ClearAll()
}

// Resume switches to the most recently active session recorded by a
// previous process, if one exists. If none does, the currently loaded
// session is left unchanged.
func (w *Workspace) Resume() error {
	last, err := w.home.LastActiveSession()
	if err != nil || last == "" {
		w.log.Infof("no previous sessions are available, retaining current session")
		return nil
	}
	if last == w.home.SessionID() {
		w.log.Infof("the current session is already the most recent")
		return nil
	}
	return w.LoadSession(last)
}

// LoadSession switches the active session to an existing session id and
// re-applies each pipe's last parameter snapshot from that session to its
// in-memory parameter values.
func (w *Workspace) LoadSession(sessionID string) error {
	if !w.home.IsValidSessionID(sessionID) {
		return errors.Wrapf(werrors.MissingSession, "session %q does not exist under %s", sessionID, w.home.Path())
	}
	if err := w.home.SwitchSession(sessionID); err != nil {
		return err
	}
	for _, p := range w.g.Pipes() {
		cacheDir, err := w.home.PipeCacheDir(p.Name)
		if err != nil {
			return err
		}
		values, err := config.Load(session.ParameterSnapshotPath(cacheDir))
		if err != nil {
			continue // never built in this session: no snapshot to restore
		}
		for name, v := range values {
			if param, err := p.Param(name); err == nil && param.Set(v) != nil {
				w.log.Warnf("could not restore parameter %q of pipe %q from its snapshot", name, p.Name)
			}
		}
	}
	w.log.Infof("loaded session %s", sessionID)
	return nil
}

// CreateSession starts a brand-new session with the given id.
func (w *Workspace) CreateSession(sessionID string) error {
	if w.home.IsValidSessionID(sessionID) {
		return errors.Errorf("session %q already exists under %s", sessionID, w.home.Path())
	}
	if err := w.home.SwitchSession(sessionID); err != nil {
		return err
	}
	w.log.Infof("started new session %s", sessionID)
	return nil
}

// Sessions lists every session id under the home directory, with the
// wall-clock time it was last opened.
func (w *Workspace) Sessions() (map[string]time.Time, error) {
	ids, err := w.home.Sessions()
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(ids))
	for _, id := range ids {
		ts, err := w.home.SessionTimestamp(id)
		if err != nil {
			return nil, err
		}
		out[id] = ts
	}
	return out, nil
}

// CheckAncestry reports an error if target's lineage has unbuilt ancestors
// or a chronology violation, without performing any build.
func (w *Workspace) CheckAncestry(target string) error {
	resolved, err := w.g.ResolveName(target)
	if err != nil {
		return err
	}
	return w.analyzer.CheckAncestryIntegrity(resolved, w.age)
}
