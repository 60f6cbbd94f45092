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

	"github.com/spf13/cobra"
)

func newResolveCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [flags] specifier...",
		Short: "print the candidate URLs of remote specifiers",
		Long: `Resolve prints, for each remote specifier, the matching rule and the
candidate URLs in the order they would be probed. No requests are
made.

The order of the provider bases depends on whether the environment
is CI-like; use --ci to override the detection.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: mkRunE(c, runResolve),
	}
	cmd.Flags().Bool(string(flagJSON), false, "print the plans as JSON")
	return cmd
}

type planOutput struct {
	Specifier  string   `json:"specifier"`
	Prefix     string   `json:"prefix"`
	Package    string   `json:"package"`
	Version    string   `json:"version,omitempty"`
	Format     string   `json:"format"`
	Bases      []string `json:"bases"`
	Candidates []string `json:"candidates"`
}

func runResolve(cmd *Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	var plans []planOutput
	for _, spec := range args {
		plan, err := s.loader.Plan(spec)
		if err != nil {
			return err
		}
		plans = append(plans, planOutput{
			Specifier:  spec,
			Prefix:     plan.Rule.Prefix,
			Package:    plan.Rule.Package,
			Version:    plan.Rule.Version,
			Format:     string(plan.Rule.EffectiveFormat()),
			Bases:      plan.Bases,
			Candidates: plan.Candidates,
		})
	}
	w := cmd.OutOrStdout()
	if flagJSON.Bool(cmd) {
		return writeJSON(w, plans)
	}
	for _, p := range plans {
		fmt.Fprintf(w, "%s (%s)\n", p.Specifier, p.Format)
		for _, u := range p.Candidates {
			fmt.Fprintf(w, "\t%s\n", u)
		}
	}
	return nil
}
