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

package modregistry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/go-quicktest/qt"

	"cuelabs.dev/go/modloader/mod/module"
)

func TestRegistry(t *testing.T) {
	var r Registry
	_, err := r.Lookup("icons/star")
	qt.Assert(t, qt.ErrorIs(err, module.ErrNotLoaded))
	qt.Assert(t, qt.ErrorMatches(err, `module "icons/star" has not been loaded yet`))

	a := module.Normalize("a")
	b := module.Normalize("b")
	qt.Assert(t, qt.Equals(r.Set("icons/star", a), a))
	// First write wins.
	qt.Assert(t, qt.Equals(r.Set("icons/star", b), a))

	ns, err := r.Lookup("icons/star")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(ns, a))

	r.Set("/src/app.ts", b)
	qt.Assert(t, qt.DeepEquals(r.Keys(), []string{"/src/app.ts", "icons/star"}))
	qt.Assert(t, qt.Equals(r.Len(), 2))
}

func TestRegistryConcurrentSet(t *testing.T) {
	var r Registry
	var wg sync.WaitGroup
	got := make([]*module.Namespace, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = r.Set("k", module.Normalize(fmt.Sprint(i)))
		}()
	}
	wg.Wait()
	for _, ns := range got {
		qt.Assert(t, qt.Equals(ns, got[0]))
	}
	qt.Assert(t, qt.Equals(r.Len(), 1))
}
