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

// Package modregistry holds the registry of resolved modules shared
// by all operations of a loader.
package modregistry

import (
	"sort"
	"sync"

	"cuelabs.dev/go/modloader/mod/module"
)

// Registry maps specifiers and canonical paths to resolved module
// namespaces. Entries are never replaced or removed.
//
// The zero value is ready to use. A Registry must not be copied.
type Registry struct {
	mu sync.RWMutex
	m  map[string]*module.Namespace
}

// Get returns the entry for key.
func (r *Registry) Get(key string) (*module.Namespace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.m[key]
	return ns, ok
}

// Lookup is the synchronous form of module resolution: it returns the
// entry for spec or a [*module.NotYetLoadedError] if there is none.
func (r *Registry) Lookup(spec string) (*module.Namespace, error) {
	if ns, ok := r.Get(spec); ok {
		return ns, nil
	}
	return nil, &module.NotYetLoadedError{Specifier: spec}
}

// Set records ns under key unless key already has an entry, and
// returns the entry now held for key.
func (r *Registry) Set(key string, ns *module.Namespace) *module.Namespace {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.m[key]; ok {
		return old
	}
	if r.m == nil {
		r.m = make(map[string]*module.Namespace)
	}
	r.m[key] = ns
	return ns
}

// Keys returns all keys in lexical order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.m))
	for k := range r.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}
