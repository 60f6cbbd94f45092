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

// Package modexec compiles module source into CommonJS form and
// executes it on a JavaScript runtime.
package modexec

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"cuelabs.dev/go/modloader/mod/module"
)

// Unit is a compiled module body.
type Unit struct {
	// Path is the canonical path or URL of the module.
	Path string
	// Dir is the base directory for the module's relative requests.
	Dir string
	// Code is the CommonJS body of the module.
	Code string
}

// Compiler transforms TypeScript, JSX and modern JavaScript into
// CommonJS code the runtime can execute.
type Compiler struct {
	// Target is the language level of the output.
	// If it is zero, api.ES2017 is used.
	Target api.Target
}

// Compile transforms src, naming it path in diagnostics. The loader
// is chosen from the extension of path.
func (c *Compiler) Compile(p, dir string, src []byte) (*Unit, error) {
	target := c.Target
	if target == 0 {
		target = api.ES2017
	}
	res := api.Transform(string(src), api.TransformOptions{
		Loader:     loaderFor(p),
		Format:     api.FormatCommonJS,
		Target:     target,
		Sourcefile: p,
	})
	if len(res.Errors) > 0 {
		return nil, &module.CompileError{Path: p, Err: messagesError(res.Errors)}
	}
	return &Unit{
		Path: p,
		Dir:  dir,
		Code: string(res.Code),
	}, nil
}

func loaderFor(p string) api.Loader {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch path.Ext(p) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	case ".json":
		return api.LoaderJSON
	}
	return api.LoaderJS
}

func messagesError(msgs []api.Message) error {
	errs := make([]error, 0, len(msgs))
	for _, m := range msgs {
		if loc := m.Location; loc != nil {
			errs = append(errs, fmt.Errorf("%s:%d:%d: %s", loc.File, loc.Line, loc.Column, m.Text))
		} else {
			errs = append(errs, errors.New(m.Text))
		}
	}
	return errors.Join(errs...)
}
