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
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

type runFunction func(cmd *Command, args []string) error

func mkRunE(c *Command, f runFunction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c.Command = cmd
		return f(c, args)
	}
}

// newRootCmd creates the base command when called without any subcommands
func newRootCmd() *Command {
	cmd := &cobra.Command{
		Use:   "modloader",
		Short: "modloader resolves and runs modules from local files and CDN providers.",
		Long: `modloader resolves module specifiers the way an application would
at run time.

Specifiers starting with ./, ../ or / are local: they are looked up
below --root (or fetched from --origin), trying the known extensions
and index files. Other specifiers are remote: the longest matching
rule maps them onto a provider package, whose candidate URLs are
probed in order.

Rules are read from the file named by --config or $MODLOADER_CONFIG,
and may be added with --rule:

	modloader resolve --rule 'icons/=@lib/icons@2.1.0' icons/star

Set $MODLOADER_DEBUG to a comma-separated list of http, scan and exec
to log requests, scanned dependencies and module execution.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c := &Command{Command: cmd, root: cmd}

	subCommands := []*cobra.Command{
		newResolveCmd(c),
		newProbeCmd(c),
		newRunCmd(c),
		newGraphCmd(c),
		newRulesCmd(c),
	}

	addGlobalFlags(cmd.PersistentFlags())

	for _, sub := range subCommands {
		cmd.AddCommand(sub)
	}
	return c
}

// Main runs the modloader tool and returns the code for passing to os.Exit.
func Main() int {
	err := mainErr(context.Background(), os.Args[1:])
	if err != nil {
		if err != ErrPrintedError {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	return 0
}

func mainErr(ctx context.Context, args []string) error {
	cmd := New(args)
	return cmd.Run(ctx)
}

type Command struct {
	// The currently active command.
	*cobra.Command

	root *cobra.Command

	hasErr bool
}

type errWriter Command

func (w *errWriter) Write(b []byte) (int, error) {
	c := (*Command)(w)
	c.hasErr = true
	return c.Command.OutOrStderr().Write(b)
}

// Stderr returns a writer that should be used for error messages.
// Writing to it causes a non-zero exit code.
func (c *Command) Stderr() io.Writer {
	return (*errWriter)(c)
}

func (c *Command) SetOutput(w io.Writer) {
	c.root.SetOutput(w)
}

// ErrPrintedError indicates error messages have been printed to stderr.
var ErrPrintedError = errors.New("terminating because of errors")

func (c *Command) Run(ctx context.Context) error {
	if err := c.root.ExecuteContext(ctx); err != nil {
		return err
	}
	if c.hasErr {
		return ErrPrintedError
	}
	return nil
}

// New returns the root command with its arguments set.
func New(args []string) *Command {
	cmd := newRootCmd()
	cmd.root.SetArgs(args)
	return cmd
}
