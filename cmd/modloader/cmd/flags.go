// Copyright 2026 CUE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Common flags
const (
	flagCall    flagName = "call"
	flagCI      flagName = "ci"
	flagConfig  flagName = "config"
	flagJSON    flagName = "json"
	flagLogJSON flagName = "log-json"
	flagOrigin  flagName = "origin"
	flagRoot    flagName = "root"
	flagRule    flagName = "rule"
	flagVerbose flagName = "verbose"
)

func addGlobalFlags(f *pflag.FlagSet) {
	f.String(string(flagConfig), "",
		"configuration file (.cue, .yaml, .toml or .json); defaults to $MODLOADER_CONFIG")
	f.StringArray(string(flagRule), nil,
		"add rules in the form prefix=package[@version][+fallback], comma-separated")
	f.Bool(string(flagCI), false,
		"treat the environment as CI-like, overriding detection")
	f.Bool(string(flagLogJSON), false,
		"write logs as JSON")
	f.BoolP(string(flagVerbose), "v", false,
		"print information about progress")
}

func addSourceFlags(f *pflag.FlagSet) {
	f.String(string(flagRoot), "",
		"directory serving root-relative local modules")
	f.String(string(flagOrigin), "",
		"HTTP origin serving root-relative local modules")
}

type flagName string

// ensureAdded detects if a flag is being used without it first being
// added to the flagSet. Because flagNames are global, it is quite
// easy to accidentally use a flag in a command without adding it to
// the flagSet.
func (f flagName) ensureAdded(cmd *Command) {
	if cmd.Flags().Lookup(string(f)) == nil {
		panic(fmt.Sprintf("Cmd %q uses flag %q without adding it", cmd.Name(), f))
	}
}

func (f flagName) Bool(cmd *Command) bool {
	f.ensureAdded(cmd)
	v, _ := cmd.Flags().GetBool(string(f))
	return v
}

func (f flagName) String(cmd *Command) string {
	f.ensureAdded(cmd)
	v, _ := cmd.Flags().GetString(string(f))
	return v
}

func (f flagName) StringArray(cmd *Command) []string {
	f.ensureAdded(cmd)
	v, _ := cmd.Flags().GetStringArray(string(f))
	return v
}

// IsSet reports whether the flag was given on the command line.
func (f flagName) IsSet(cmd *Command) bool {
	f.ensureAdded(cmd)
	return cmd.Flags().Changed(string(f))
}
