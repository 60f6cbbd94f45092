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

// Package modhost materializes remote resources into module
// namespaces using the primitives of a host runtime.
package modhost

import (
	"context"
	"fmt"
	"strings"

	"cuelabs.dev/go/modloader/mod/modfetch"
	"cuelabs.dev/go/modloader/mod/modremote"
	"cuelabs.dev/go/modloader/mod/modrule"
	"cuelabs.dev/go/modloader/mod/module"
)

// Host provides the loading primitives of a script runtime.
type Host interface {
	// Import loads the module at url and returns its export value.
	Import(ctx context.Context, url string) (any, error)

	// LoadScript runs the classic script at url for its side
	// effects on the global scope. Loading the same url more than
	// once must not run the script again.
	LoadScript(ctx context.Context, url string) error

	// Global returns the value of the global binding at the
	// dot-separated path.
	Global(path string) (any, bool)
}

// Materializer implements [modremote.Materializer] for every
// [modrule.Format].
type Materializer struct {
	Host Host

	// Fetcher and Wasm are used for [modrule.FormatWasm] only.
	Fetcher modfetch.Fetcher
	Wasm    *WasmRuntime
}

var _ modremote.Materializer = (*Materializer)(nil)

func (m *Materializer) Materialize(ctx context.Context, match modremote.Match, url string) (*module.Namespace, error) {
	switch f := match.Rule.EffectiveFormat(); f {
	case modrule.FormatImport:
		if m.Host == nil {
			return nil, fmt.Errorf("cannot import %s: no host runtime", url)
		}
		v, err := m.Host.Import(ctx, url)
		if err != nil {
			return nil, err
		}
		return module.Normalize(v), nil
	case modrule.FormatGlobal:
		if m.Host == nil {
			return nil, fmt.Errorf("cannot load %s: no host runtime", url)
		}
		if err := m.Host.LoadScript(ctx, url); err != nil {
			return nil, err
		}
		p := match.Rule.GlobalPath(match.Name)
		v, ok := m.Host.Global(p)
		if !ok {
			return nil, &module.GlobalNotFoundError{
				Specifier: match.Specifier,
				Path:      p,
			}
		}
		return module.Normalize(v), nil
	case modrule.FormatWasm:
		if m.Wasm == nil || m.Fetcher == nil {
			return nil, fmt.Errorf("cannot instantiate %s: no wasm runtime", url)
		}
		if inst, ok := m.Wasm.Lookup(url); ok {
			return module.Normalize(inst), nil
		}
		buf, err := m.Fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		inst, err := m.Wasm.Instantiate(ctx, url, buf)
		if err != nil {
			return nil, err
		}
		return module.Normalize(inst), nil
	default:
		return nil, fmt.Errorf("unknown module format %q", f)
	}
}

// Traverse follows the dot-separated path from root through nested
// maps and [module.Object] values. An empty path yields root.
func Traverse(root any, path string) (any, bool) {
	v := root
	if path == "" {
		return v, v != nil
	}
	for _, elem := range strings.Split(path, ".") {
		switch x := v.(type) {
		case map[string]any:
			var ok bool
			if v, ok = x[elem]; !ok {
				return nil, false
			}
		case module.Object:
			v = x.Get(elem)
		default:
			return nil, false
		}
		if v == nil {
			return nil, false
		}
	}
	return v, true
}
