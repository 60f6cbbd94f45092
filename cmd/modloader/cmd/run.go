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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cuelabs.dev/go/modloader/mod/modexec"
	"cuelabs.dev/go/modloader/mod/module"
)

func newRunCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] entry [arg...]",
		Short: "load a module and print its exports",
		Long: `Run loads the entry module with all of its dependencies and prints
its exports as JSON. Functions are printed by name.

With --call, the default export is called with the remaining
arguments, each parsed as JSON, and its result is printed instead:

	modloader run --root . --call ./src/app.ts 21
`,
		Args: cobra.MinimumNArgs(1),
		RunE: mkRunE(c, runRun),
	}
	addSourceFlags(cmd.Flags())
	cmd.Flags().Bool(string(flagCall), false, "call the default export with the remaining arguments")
	return cmd
}

func runRun(cmd *Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	ns, err := s.loader.Resolve(ctx, args[0], "")
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if !flagCall.Bool(cmd) {
		if len(args) > 1 {
			return fmt.Errorf("unexpected arguments after %s; use --call to pass them", args[0])
		}
		return writeJSON(w, modexec.Export(ns))
	}
	fn, ok := ns.Default().(*modexec.Object)
	if !ok || !fn.IsFunction() {
		return fmt.Errorf("default export of %s is not a function", args[0])
	}
	v, err := fn.Call(parseArgs(args[1:])...)
	if err != nil {
		return err
	}
	return writeJSON(w, modexec.Export(v))
}

// parseArgs parses each argument as JSON, falling back to the
// argument as a string.
func parseArgs(args []string) []any {
	out := make([]any, 0, len(args))
	for _, a := range args {
		var v any
		dec := json.NewDecoder(strings.NewReader(a))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			out = append(out, a)
			continue
		}
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				v = i
			} else if f, err := n.Float64(); err == nil {
				v = f
			}
		}
		out = append(out, v)
	}
	return out
}

func newGraphCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph [flags] entry",
		Short: "list the modules loaded for an entry module",
		Long: `Graph loads the entry module and lists every module that was loaded,
with its content digest and the specifiers it references.
Remote modules are listed by specifier.
`,
		Args: cobra.ExactArgs(1),
		RunE: mkRunE(c, runGraph),
	}
	addSourceFlags(cmd.Flags())
	cmd.Flags().Bool(string(flagJSON), false, "print the graph as JSON")
	return cmd
}

func runGraph(cmd *Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	if _, err := s.loader.Resolve(ctx, args[0], ""); err != nil {
		return err
	}
	infos := s.loader.Modules()
	w := cmd.OutOrStdout()
	if flagJSON.Bool(cmd) {
		return writeJSON(w, infos)
	}
	for _, info := range infos {
		fmt.Fprintf(w, "%s %s %d\n", info.Path, info.Digest, info.Size)
		for _, dep := range info.Deps {
			fmt.Fprintf(w, "\t%s\n", dep)
		}
	}
	for _, key := range s.loader.Keys() {
		if !module.IsLocal(key) {
			fmt.Fprintf(w, "%s (remote)\n", key)
		}
	}
	return nil
}
