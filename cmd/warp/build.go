package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var buildSet []string

var buildCmd = &cobra.Command{
	Use:   "build <pipe>",
	Short: "Build a single pipe against its currently cached ancestor products.",
	Long: `build runs a pipe's action directly, without checking whether its
ancestors are themselves out of date. Use backfill instead when the whole
lineage needs to be brought up to date first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := parseSetFlags(buildSet)
		if err != nil {
			return err
		}
		w, err := openWorkspace()
		if err != nil {
			return err
		}
		result, err := w.Build(args[0], overrides)
		if err != nil {
			return err
		}
		fmt.Printf("built %s in %s\n", args[0], result.Elapsed)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringArrayVar(&buildSet, "set", nil, "override a parameter, key=value (repeatable)")
}

// parseSetFlags turns repeated "key=value" flags into an override map of
// string values. Values are not converted, so only string-typed parameters
// accept them; any other parameter type rejects a string with
// InvalidParameterType.
func parseSetFlags(kvs []string) (map[string]interface{}, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(kvs))
	for _, kv := range kvs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set value %q, expected key=value", kv)
		}
		out[key] = value
	}
	return out, nil
}
