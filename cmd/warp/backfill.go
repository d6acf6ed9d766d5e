package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	backfillSet                   []string
	backfillRebuildAll            bool
	backfillRebuildStaticProducts bool
	backfillBuildBinary           string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill <pipe>",
	Short: "Bring a pipe and every out-of-date ancestor up to date.",
	Long: `backfill computes the gap of stale ancestors between the target and
its last built descendants, rebuilds each in dependency order as a separate
child process, and halts the whole trajectory at the first failure.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configs, err := parseBackfillSetFlags(backfillSet)
		if err != nil {
			return err
		}
		w, err := openWorkspace()
		if err != nil {
			return err
		}
		buildBinary := backfillBuildBinary
		if buildBinary == "" {
			buildBinary = siblingWarpBuildBinary()
		}
		return w.Backfill(args[0], configs, backfillRebuildAll, backfillRebuildStaticProducts, buildBinary)
	},
}

// siblingWarpBuildBinary looks for a warp-build executable next to the
// currently running warp binary, the layout `go build ./...` produces. If
// none is found, an empty string is returned and workspace.Backfill falls
// back to re-invoking this process instead.
func siblingWarpBuildBinary() string {
	self, err := os.Executable()
	if err != nil {
		return ""
	}
	candidate := filepath.Join(filepath.Dir(self), "warp-build")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

func init() {
	backfillCmd.Flags().StringArrayVar(&backfillSet, "set", nil,
		"force a pipe into the rebuild with a parameter override, pipe.key=value (repeatable)")
	backfillCmd.Flags().BoolVar(&backfillRebuildAll, "rebuild-all", false,
		"rebuild the entire lineage regardless of staleness")
	backfillCmd.Flags().BoolVar(&backfillRebuildStaticProducts, "rebuild-static-products", false,
		"force re-generation of static products even if --link-static-products would treat them as already built")
	backfillCmd.Flags().StringVar(&backfillBuildBinary, "build-binary", "",
		"executable to spawn for each gap pipe (defaults to the warp-build binary alongside this one)")
}

// parseBackfillSetFlags turns repeated "pipe.key=value" flags into a
// per-pipe override map, forcing every named pipe into the rebuild.
func parseBackfillSetFlags(kvs []string) (map[string]map[string]interface{}, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	out := map[string]map[string]interface{}{}
	for _, kv := range kvs {
		lhs, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set value %q, expected pipe.key=value", kv)
		}
		pipeName, key, ok := strings.Cut(lhs, ".")
		if !ok {
			return nil, fmt.Errorf("invalid --set value %q, expected pipe.key=value", kv)
		}
		if out[pipeName] == nil {
			out[pipeName] = map[string]interface{}{}
		}
		out[pipeName][key] = value
	}
	return out, nil
}
