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

package modhost

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"cuelabs.dev/go/modloader/mod/module"
)

// A WasmRuntime compiles and instantiates WebAssembly modules.
// WASI preview1 is available to every module.
type WasmRuntime struct {
	mu        sync.Mutex
	instances map[string]*WasmInstance
	wazero.Runtime
}

// NewWasmRuntime returns a new runtime. It must be closed after use.
func NewWasmRuntime(ctx context.Context) *WasmRuntime {
	r := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)
	return &WasmRuntime{
		Runtime:   r,
		instances: make(map[string]*WasmInstance),
	}
}

// Lookup returns the instance previously loaded under name.
func (r *WasmRuntime) Lookup(name string) (*WasmInstance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// Instantiate compiles buf and loads it into memory under the given
// name. The exported functions of the module become the members of
// the returned instance.
//
// A name is instantiated at most once: later calls with the same name
// return the first instance and ignore buf.
func (r *WasmRuntime) Instantiate(ctx context.Context, name string, buf []byte) (*WasmInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[name]; ok {
		return inst, nil
	}
	compiled, err := r.Runtime.CompileModule(ctx, buf)
	if err != nil {
		return nil, &module.CompileError{Path: name, Err: err}
	}
	// Instances keep working once their compiled module is closed.
	defer compiled.Close(ctx)

	cfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	mod, err := r.Runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, &module.ExecutionError{Path: name, Err: fmt.Errorf("can't instantiate Wasm module: %w", err)}
	}
	names := make([]string, 0, len(compiled.ExportedFunctions()))
	for n := range compiled.ExportedFunctions() {
		names = append(names, n)
	}
	sort.Strings(names)
	inst := &WasmInstance{
		name:     name,
		instance: mod,
		names:    names,
	}
	r.instances[name] = inst
	return inst, nil
}

// A WasmInstance is a Wasm module loaded into memory.
// It implements [module.Object]; each member is a [*WasmFunc].
type WasmInstance struct {
	// mu serializes calls into the instance.
	mu sync.Mutex

	name     string
	instance api.Module
	names    []string
}

func (i *WasmInstance) Keys() []string {
	return slices.Clone(i.names)
}

func (i *WasmInstance) Get(key string) any {
	f := i.instance.ExportedFunction(key)
	if f == nil {
		return nil
	}
	return &WasmFunc{inst: i, name: key, fn: f}
}

// A WasmFunc is a function exported by a [WasmInstance].
type WasmFunc struct {
	inst *WasmInstance
	name string
	fn   api.Function
}

// Call calls the function with the given raw arguments.
func (f *WasmFunc) Call(ctx context.Context, args ...uint64) ([]uint64, error) {
	f.inst.mu.Lock()
	defer f.inst.mu.Unlock()

	res, err := f.fn.Call(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("calling %s in Wasm module %s: %w", f.name, f.inst.name, err)
	}
	return res, nil
}

func (f *WasmFunc) String() string {
	return fmt.Sprintf("wasm function %s", f.name)
}
