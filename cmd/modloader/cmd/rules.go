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
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRulesCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "print the configured rules",
		Long: `Rules prints the effective configuration, including rules added
with --rule, as YAML.
`,
		Args: cobra.NoArgs,
		RunE: mkRunE(c, runRules),
	}
	cmd.Flags().Bool(string(flagJSON), false, "print the configuration as JSON")
	return cmd
}

func runRules(cmd *Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if flagJSON.Bool(cmd) {
		return writeJSON(w, cfg)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
