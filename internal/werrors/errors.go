// Package werrors defines the closed taxonomy of error kinds raised by the
// WARP build kernel. Call sites wrap a sentinel with
// github.com/pkg/errors so that context can be attached while the kind
// remains recoverable with errors.Is / errors.Cause.
package werrors

import "github.com/pkg/errors"

// Kind is one of the error classes of the build kernel. Kinds are sentinel
// errors rather than concrete types: wrap them with errors.Wrap/Wrapf to
// attach the offending pipe/product/path, and recover the kind later with
// errors.Is(err, werrors.DuplicatePipe).
type Kind = error

var (
	// DuplicatePipe: graph.Add was called with a pipe name already present.
	DuplicatePipe Kind = errors.New("duplicate pipe")
	// NestedProduct: a pipe's product path nests with an existing product path.
	NestedProduct Kind = errors.New("nested product path")
	// DuplicateConfig: a non-multi-use config path is attached to more than one pipe.
	DuplicateConfig Kind = errors.New("config file already bound to another pipe")
	// UnresolvedDependency: add() could not find a producer and make_dependencies_sources was false.
	UnresolvedDependency Kind = errors.New("unresolved dependency")

	// UnknownPipe: fuzzy name resolution found zero matches.
	UnknownPipe Kind = errors.New("unknown pipe")
	// AmbiguousName: fuzzy name resolution found more than one non-exact match.
	AmbiguousName Kind = errors.New("ambiguous pipe name")

	// MissingProducer: a dependency has no matching owned product on its declared source pipe.
	MissingProducer Kind = errors.New("missing producer for dependency")

	// InvalidParameterType: a config or override value does not match a parameter's declared type.
	InvalidParameterType Kind = errors.New("invalid parameter type")

	// PipeActionFailure: the pipe's action returned an error.
	PipeActionFailure Kind = errors.New("pipe action failed")

	// ProductNotProduced: a promised saved product does not exist on disk after a build.
	ProductNotProduced Kind = errors.New("promised product was not produced")

	// StaleAncestors: an ancestor of the target has never been built.
	StaleAncestors Kind = errors.New("stale ancestors in lineage")
	// ChronologyViolation: an ancestor was built more recently than one of its descendants.
	ChronologyViolation Kind = errors.New("ancestor built more recently than descendant")

	// MissingGitVersioning is warn-only: the kernel never returns it, only logs it.
	MissingGitVersioning Kind = errors.New("no git repository found for commit hash")

	// MissingHome: the home directory did not exist (recovered by creating it).
	MissingHome Kind = errors.New("home directory missing")
	// MissingSession: a referenced session id does not exist.
	MissingSession Kind = errors.New("session does not exist")

	// BuildTrajectoryHalted: a pipe partway through a backfill's build
	// trajectory failed, stopping every pipe still queued behind it.
	BuildTrajectoryHalted Kind = errors.New("build trajectory halted")
)
