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

package modexec

import (
	"context"

	"cuelabs.dev/go/modloader/mod/module"
)

// Runner compiles and executes local module sources.
type Runner struct {
	Compiler *Compiler
	Engine   *Engine
}

// Run compiles src and executes it as the module at path.
func (r *Runner) Run(ctx context.Context, path, dir string, src []byte, require module.RequireFunc) (any, error) {
	u, err := r.Compiler.Compile(path, dir, src)
	if err != nil {
		return nil, err
	}
	return r.Engine.Execute(ctx, u, require)
}
