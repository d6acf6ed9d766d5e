// Package main implements warp, the non-interactive command line surface
// over a workspace.Workspace: build, backfill, status, sessions,
// clear-cache, resume, and view.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/j-helland/warp/examples/basic"
	"github.com/j-helland/warp/internal/cliutil"
	"github.com/j-helland/warp/workspace"
)

var (
	homeDir    string
	sessionID  string
	configDir  string
	linkStatic bool
)

var rootCmd = &cobra.Command{
	Use:   "warp",
	Short: "Build and cache pipeline products from a dependency graph.",
	Long: `warp drives a pipeline's build graph: it resolves which pipes are
stale relative to a target, rebuilds exactly that gap in dependency order,
and caches every product so the next invocation only redoes what changed.`,
}

func main() {
	cliutil.EnablePathFlagTypeMasquerade()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&homeDir, "home", "", "WARP cache home directory (defaults to $WARP_HOME_DIR/.warp or ~/.warp)")
	pf.StringVar(&configDir, "config-dir", "config", "directory containing the example pipeline's config files")
	pf.StringVar(&sessionID, "session-id", "", "session id to operate within (defaults to the most recently active session)")
	pf.BoolVar(&linkStatic, "link-static-products", false,
		"treat static products left behind by other sessions as already built (use with caution)")
	cliutil.PathifyFlagValue(pf.Lookup("home"))
	cliutil.PathifyFlagValue(pf.Lookup("config-dir"))

	rootCmd.AddCommand(
		buildCmd,
		backfillCmd,
		statusCmd,
		sessionsCmd,
		clearCacheCmd,
		resumeCmd,
		viewCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "warp: %v\n", err)
		os.Exit(1)
	}
}

func openWorkspace() (*workspace.Workspace, error) {
	g, err := basic.BuildGraph(configDir)
	if err != nil {
		return nil, err
	}
	var opts []workspace.Option
	if linkStatic {
		opts = append(opts, workspace.LinkStaticProducts())
	}
	return workspace.Open(g, homeDir, sessionID, opts...)
}
