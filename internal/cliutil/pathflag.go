// Package cliutil holds small pflag helpers shared by the warp command
// tree, kept separate from the cobra command definitions themselves.
package cliutil

import "github.com/spf13/pflag"

var pathFlagTypeMasquerade bool

// EnablePathFlagTypeMasquerade changes the displayed type of every flag
// wrapped with PathifyFlagValue from "string" to "path" for --help output.
// The change is global and cannot be reversed once enabled.
func EnablePathFlagTypeMasquerade() {
	pathFlagTypeMasquerade = true
}

type pathValue struct {
	origin pflag.Value
}

func (p *pathValue) Set(val string) error { return p.origin.Set(val) }
func (p *pathValue) String() string       { return p.origin.String() }
func (p *pathValue) Type() string {
	if pathFlagTypeMasquerade {
		return "path"
	}
	return "string"
}

// PathifyFlagValue marks flag as holding a filesystem path for --help
// rendering, without changing how its value is parsed or set.
func PathifyFlagValue(flag *pflag.Flag) {
	flag.Value = &pathValue{origin: flag.Value}
}
