// Command warp-build is the single-pipe child process a backfill spawns one
// copy of per gap pipe. It is never meant to be invoked directly by a user:
// warp backfill runs this binary (the warp-build next to the warp executable,
// or the one named by --build-binary) with these flags, one process per
// trajectory step, so a panic or os.Exit in one pipe's action can never take
// down the pipes still queued behind it.
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/j-helland/warp/examples/basic"
	"github.com/j-helland/warp/internal/config"
	"github.com/j-helland/warp/workspace"
)

func main() {
	var (
		homeDir    string
		sessionID  string
		target     string
		configPath string
		configDir  string
	)
	flag.StringVar(&homeDir, "home", "", "WARP cache home directory")
	flag.StringVar(&sessionID, "session-id", "", "session id to build within")
	flag.StringVar(&target, "target", "", "pipe to build")
	flag.StringVar(&configPath, "config", "", "parameter override file written by the parent backfill")
	flag.StringVar(&configDir, "config-dir", "config", "directory containing the example pipeline's config files")
	flag.Parse()

	if target == "" || sessionID == "" {
		fmt.Fprintln(os.Stderr, "warp-build: --session-id and --target are required")
		os.Exit(1)
	}

	if err := run(homeDir, sessionID, target, configPath, configDir); err != nil {
		fmt.Fprintf(os.Stderr, "warp-build: %v\n", err)
		os.Exit(1)
	}
}

func run(homeDir, sessionID, target, configPath, configDir string) error {
	g, err := basic.BuildGraph(configDir)
	if err != nil {
		return err
	}

	w, err := workspace.Open(g, homeDir, sessionID)
	if err != nil {
		return err
	}

	var overrides map[string]interface{}
	if configPath != "" {
		overrides, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	_, err = w.Build(target, overrides)
	return err
}
