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
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"cuelabs.dev/go/modloader/internal/par"
	"cuelabs.dev/go/modloader/mod/modfetch"
	"cuelabs.dev/go/modloader/mod/modhost"
	"cuelabs.dev/go/modloader/mod/module"
)

// Host implements [modhost.Host] on an [Engine].
type Host struct {
	Engine   *Engine
	Compiler *Compiler
	Fetcher  modfetch.Fetcher

	// Require is used by imported modules to require their own
	// dependencies. If it is nil, such requires fail.
	Require module.RequireFunc

	// Preload, if set, is called with the source of every imported
	// module before it executes.
	Preload func(ctx context.Context, src []byte)

	imports sync.Map // url -> any
	scripts sync.Map // url -> struct{}
	group   singleflight.Group
}

var _ modhost.Host = (*Host)(nil)

// Import fetches, compiles and executes the module at url. Each url
// is executed at most once successfully; failed imports may be
// retried.
//
// Concurrent imports of url share one execution. If ctx is done
// while waiting on it, Import returns ctx.Err() and the execution
// continues for the other callers.
func (h *Host) Import(ctx context.Context, url string) (any, error) {
	if v, ok := h.imports.Load(url); ok {
		return v, nil
	}
	return par.Await(ctx, &h.group, "import\x00"+url, func(ctx context.Context) (any, error) {
		if v, ok := h.imports.Load(url); ok {
			return v, nil
		}
		src, err := h.Fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		u, err := h.Compiler.Compile(url, urlDir(url), src)
		if err != nil {
			return nil, err
		}
		if h.Preload != nil {
			h.Preload(ctx, src)
		}
		v, err := h.Engine.Execute(ctx, u, h.Require)
		if err != nil {
			return nil, err
		}
		h.imports.Store(url, v)
		return v, nil
	})
}

// LoadScript fetches the script at url and runs it in the global
// scope, unless it has already run successfully. Waiting callers
// behave as for [Host.Import].
func (h *Host) LoadScript(ctx context.Context, url string) error {
	if _, ok := h.scripts.Load(url); ok {
		return nil
	}
	_, err := par.Await(ctx, &h.group, "script\x00"+url, func(ctx context.Context) (struct{}, error) {
		if _, ok := h.scripts.Load(url); ok {
			return struct{}{}, nil
		}
		src, err := h.Fetcher.Fetch(ctx, url)
		if err != nil {
			return struct{}{}, err
		}
		if err := h.Engine.RunScript(ctx, url, src); err != nil {
			return struct{}{}, err
		}
		h.scripts.Store(url, struct{}{})
		return struct{}{}, nil
	})
	return err
}

// Global returns the global binding at the dot-separated path.
func (h *Host) Global(path string) (any, bool) {
	return modhost.Traverse(h.Engine.Global(), path)
}

func urlDir(url string) string {
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[:i]
	}
	return ""
}
