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
	"errors"
	"fmt"
	"testing"

	"github.com/go-quicktest/qt"
)

type fakeObject struct {
	keys []string
	m    map[string]any
}

func (o *fakeObject) Keys() []string   { return o.keys }
func (o *fakeObject) Get(k string) any { return o.m[k] }

var normalizeTests = []struct {
	testName  string
	value     any
	wantNames []string
	wantDef   any
}{{
	testName:  "Scalar",
	value:     42,
	wantNames: []string{"default"},
	wantDef:   42,
}, {
	testName:  "NamedExports",
	value:     map[string]any{"b": 2, "a": 1},
	wantNames: []string{"default", "a", "b"},
}, {
	testName: "ExplicitDefaultIsFlattened",
	value: map[string]any{
		"default": map[string]any{"x": 1, "named": "inner"},
		"named":   "outer",
	},
	wantNames: []string{"default", "named", "x"},
}, {
	testName: "ObjectExports",
	value: &fakeObject{
		keys: []string{"render"},
		m:    map[string]any{"render": "fn"},
	},
	wantNames: []string{"default", "render"},
}}

func TestNormalize(t *testing.T) {
	for _, test := range normalizeTests {
		t.Run(test.testName, func(t *testing.T) {
			ns := Normalize(test.value)
			qt.Assert(t, qt.DeepEquals(ns.Names(), test.wantNames))
			qt.Assert(t, qt.Equals(ns.Len(), len(test.wantNames)))
			if test.wantDef != nil {
				qt.Assert(t, qt.Equals(ns.Default(), test.wantDef))
			}
		})
	}
}

func TestNormalizeExplicitDefaultPrecedence(t *testing.T) {
	ns := Normalize(map[string]any{
		"default": map[string]any{"named": "inner"},
		"named":   "outer",
	})
	v, ok := ns.Get("named")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(v, any("outer")))
}

func TestNormalizeIdempotent(t *testing.T) {
	ns := Normalize(map[string]any{"a": 1})
	qt.Assert(t, qt.Equals(Normalize(ns), ns))
	qt.Assert(t, qt.Equals(Normalize(Normalize(ns)), ns))
}

func TestNewNamespace(t *testing.T) {
	ns := NewNamespace("d", map[string]any{"default": "ignored", "z": 1, "y": 2})
	qt.Assert(t, qt.Equals(ns.Default(), any("d")))
	qt.Assert(t, qt.DeepEquals(ns.Names(), []string{"default", "y", "z"}))
	_, ok := ns.Get("missing")
	qt.Assert(t, qt.IsFalse(ok))
}

var isLocalTests = []struct {
	spec string
	want bool
}{
	{"./widgets", true},
	{"../lib/x", true},
	{"/abs/path", true},
	{".", true},
	{"..", true},
	{"icons/star", false},
	{"@scope/pkg", false},
	{"react", false},
	{".hidden", false},
	{"//cdn.example.com/x.js", false},
}

func TestIsLocal(t *testing.T) {
	for _, test := range isLocalTests {
		t.Run(test.spec, func(t *testing.T) {
			qt.Assert(t, qt.Equals(IsLocal(test.spec), test.want))
		})
	}
}

func TestErrorKinds(t *testing.T) {
	cause := fmt.Errorf("boom")
	tests := []struct {
		err  error
		kind error
	}{
		{&ResolutionError{Specifier: "x"}, ErrNoRule},
		{&NotFoundError{Specifier: "x"}, ErrNotFound},
		{&LocalNotFoundError{Specifier: "./x"}, ErrNotFound},
		{&GlobalNotFoundError{Specifier: "x", Path: "a.b"}, ErrGlobalMissing},
		{&NotYetLoadedError{Specifier: "x"}, ErrNotLoaded},
		{&NotRegisteredError{Specifier: "x"}, ErrNotRegistered},
		{&CyclicDependencyError{Chain: []string{"a", "a"}}, ErrCycle},
		{&ExecutionError{Path: "a.js", Err: cause}, cause},
		{&CompileError{Path: "a.js", Err: cause}, cause},
	}
	for _, test := range tests {
		qt.Check(t, qt.ErrorIs(fmt.Errorf("wrapped: %w", test.err), test.kind), qt.Commentf("%T", test.err))
	}
}

func TestNotFoundErrorListsAttempts(t *testing.T) {
	err := &NotFoundError{
		Specifier: "icons/star",
		Attempts: []string{
			"https://unpkg.com/@lib/icons/star.js",
			"https://unpkg.com/@lib/icons/umd/star.js",
		},
	}
	qt.Assert(t, qt.Equals(err.Error(), `module "icons/star" not found; tried 2 locations:
	https://unpkg.com/@lib/icons/star.js
	https://unpkg.com/@lib/icons/umd/star.js`))
}

func TestCyclicDependencyErrorMessage(t *testing.T) {
	err := &CyclicDependencyError{Chain: []string{"a.js", "b.js", "a.js"}}
	qt.Assert(t, qt.Equals(err.Error(), "import cycle detected: a.js -> b.js -> a.js"))
	var target *CyclicDependencyError
	qt.Assert(t, qt.IsTrue(errors.As(fmt.Errorf("x: %w", err), &target)))
}
