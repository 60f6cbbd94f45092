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

func newProbeCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [flags] specifier...",
		Short: "find the first candidate URL that exists",
		Long: `Probe requests the candidate URLs of each remote specifier in order
and prints the first one that exists. The module is not loaded.

If no candidate exists, every URL that was tried is reported.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: mkRunE(c, runProbe),
	}
	return cmd
}

func runProbe(cmd *Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	for _, spec := range args {
		u, err := s.loader.Probe(ctx, spec)
		if err != nil {
			fmt.Fprintln(cmd.Stderr(), err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", spec, u)
	}
	return nil
}
