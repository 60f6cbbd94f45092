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

package module

import (
	"slices"
	"sort"
)

// Object is implemented by export values that carry their own
// properties, such as script objects and functions.
// Keys returns the own enumerable property names.
type Object interface {
	Keys() []string
	Get(key string) any
}

// Namespace is the normalized form of a module's exports: a
// "default" member plus the module's named members flattened beside it.
//
// A Namespace is immutable once built.
type Namespace struct {
	names   []string
	members map[string]any
}

// Normalize converts an arbitrary export value into a Namespace.
//
// A value that is already a *Namespace is returned unchanged.
// Otherwise the result holds {default: v} overlaid with the own
// enumerable properties of v (so an explicit "default" property of v
// replaces v itself). If the resulting default is object-like, its own
// properties are copied as well, without overriding members already
// present. This gives default-style and named-style exports a single
// shape.
func Normalize(v any) *Namespace {
	if ns, ok := v.(*Namespace); ok {
		return ns
	}
	ns := &Namespace{members: map[string]any{"default": v}}
	for _, k := range ownKeys(v) {
		ns.members[k] = ownGet(v, k)
	}
	// Only an explicit "default" property can differ from v itself.
	if hasOwn(v, "default") {
		def := ns.members["default"]
		for _, k := range ownKeys(def) {
			if _, ok := ns.members[k]; !ok {
				ns.members[k] = ownGet(def, k)
			}
		}
	}
	ns.names = sortedNames(ns.members)
	return ns
}

// NewNamespace returns a namespace with the given default and named
// members. A "default" entry in members is ignored.
func NewNamespace(def any, members map[string]any) *Namespace {
	ns := &Namespace{members: make(map[string]any, len(members)+1)}
	for k, v := range members {
		ns.members[k] = v
	}
	ns.members["default"] = def
	ns.names = sortedNames(ns.members)
	return ns
}

// Default returns the default member.
func (ns *Namespace) Default() any {
	return ns.members["default"]
}

// Get returns the named member.
func (ns *Namespace) Get(name string) (any, bool) {
	v, ok := ns.members[name]
	return v, ok
}

// Names returns all member names, "default" first and
// the rest in lexical order.
func (ns *Namespace) Names() []string {
	return slices.Clone(ns.names)
}

// Len returns the number of members including "default".
func (ns *Namespace) Len() int {
	return len(ns.names)
}

func sortedNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		if k != "default" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return append([]string{"default"}, names...)
}

func ownKeys(v any) []string {
	switch v := v.(type) {
	case Object:
		return v.Keys()
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}
	return nil
}

func ownGet(v any, key string) any {
	switch v := v.(type) {
	case Object:
		return v.Get(key)
	case map[string]any:
		return v[key]
	}
	return nil
}

func hasOwn(v any, key string) bool {
	switch v := v.(type) {
	case Object:
		return slices.Contains(v.Keys(), key)
	case map[string]any:
		_, ok := v[key]
		return ok
	}
	return false
}
