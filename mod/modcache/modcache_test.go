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

package modcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-quicktest/qt"
	"github.com/opencontainers/go-digest"

	"cuelabs.dev/go/modloader/internal/txtarfs"
	"cuelabs.dev/go/modloader/mod/modfetch"
	"cuelabs.dev/go/modloader/mod/modregistry"
	"cuelabs.dev/go/modloader/mod/module"
)

// countingFetcher counts the successful fetches of each path.
type countingFetcher struct {
	modfetch.Fetcher
	mu sync.Mutex
	n  map[string]int
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	data, err := f.Fetcher.Fetch(ctx, url)
	if err == nil {
		f.mu.Lock()
		f.n[url]++
		f.mu.Unlock()
	}
	return data, err
}

func (f *countingFetcher) count(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n[p]
}

// fakeRunner runs module bodies written in Go. A module without a
// body exports {path: <its path>}.
type fakeRunner struct {
	mu     sync.Mutex
	runs   map[string]int
	bodies map[string]func(require module.RequireFunc) (any, error)
}

func (r *fakeRunner) Run(ctx context.Context, path, dir string, src []byte, require module.RequireFunc) (any, error) {
	r.mu.Lock()
	r.runs[path]++
	body := r.bodies[path]
	r.mu.Unlock()
	if body == nil {
		return map[string]any{"path": path}, nil
	}
	return body(require)
}

func (r *fakeRunner) count(p string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[p]
}

type prefixMatcher string

func (m prefixMatcher) Matches(spec string) bool {
	return strings.HasPrefix(spec, string(m))
}

type testCache struct {
	*Cache
	fetcher  *countingFetcher
	runner   *fakeRunner
	registry *modregistry.Registry
}

func newTestCache(t *testing.T, archive string, bodies map[string]func(module.RequireFunc) (any, error)) *testCache {
	fetcher := &countingFetcher{
		Fetcher: &modfetch.FSFetcher{FS: txtarfs.Parse(archive)},
		n:       make(map[string]int),
	}
	runner := &fakeRunner{runs: make(map[string]int), bodies: bodies}
	reg := new(modregistry.Registry)
	return &testCache{
		Cache: New(Config{
			Fetcher:  fetcher,
			Runner:   runner,
			Registry: reg,
		}),
		fetcher:  fetcher,
		runner:   runner,
		registry: reg,
	}
}

const widgetsArchive = `
-- src/widgets/index.ts --
export const button = 1;
-- src/app.ts --
import { button } from "./widgets";
`

func TestConcurrentLoadsShareOneExecution(t *testing.T) {
	c := newTestCache(t, widgetsArchive, nil)
	const n = 20
	results := make([]*module.Namespace, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Load(context.Background(), "./widgets", "src")
		}()
	}
	wg.Wait()
	for i := range n {
		qt.Assert(t, qt.IsNil(errs[i]))
		qt.Assert(t, qt.Equals(results[i], results[0]))
	}
	qt.Assert(t, qt.Equals(c.runner.count("/src/widgets/index.ts"), 1))
	qt.Assert(t, qt.Equals(c.fetcher.count("/src/widgets/index.ts"), 1))
	qt.Assert(t, qt.Equals(c.Fetches(), 1))
}

func TestAliasConvergence(t *testing.T) {
	c := newTestCache(t, widgetsArchive, nil)
	ctx := context.Background()
	ns1, err := c.Load(ctx, "./widgets", "src")
	qt.Assert(t, qt.IsNil(err))
	ns2, err := c.Load(ctx, "./widgets/index", "src")
	qt.Assert(t, qt.IsNil(err))
	ns3, err := c.Load(ctx, "../src/widgets/index.ts", "src/")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(ns2, ns1))
	qt.Assert(t, qt.Equals(ns3, ns1))
	qt.Assert(t, qt.Equals(c.runner.count("/src/widgets/index.ts"), 1))
	qt.Assert(t, qt.Equals(c.fetcher.count("/src/widgets/index.ts"), 1))

	got, ok := c.registry.Get("/src/widgets/index.ts")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(got, ns1))
}

func TestRegistryKeys(t *testing.T) {
	c := newTestCache(t, widgetsArchive, nil)
	ctx := context.Background()
	_, err := c.Load(ctx, "./src/app.ts", "")
	qt.Assert(t, qt.IsNil(err))
	_, err = c.Load(ctx, "./widgets", "src")
	qt.Assert(t, qt.IsNil(err))
	// Only root-relative specifiers are unambiguous registry keys.
	qt.Assert(t, qt.DeepEquals(c.registry.Keys(), []string{
		"./src/app.ts",
		"/src/app.ts",
		"/src/widgets/index.ts",
	}))
}

func TestPreloadBeforeExecute(t *testing.T) {
	c := newTestCache(t, `
-- src/app.ts --
import { button } from "./widgets";
import star from "icons/star";
import lodash from "lodash";
-- src/widgets/index.ts --
export const button = 1;
`, map[string]func(module.RequireFunc) (any, error){
		"/src/app.ts": func(require module.RequireFunc) (any, error) {
			w, err := require("./widgets")
			if err != nil {
				return nil, err
			}
			return map[string]any{"widgets": w}, nil
		},
	})
	var mu sync.Mutex
	var remote []string
	c.cfg.Rules = prefixMatcher("icons/")
	c.cfg.Remote = func(ctx context.Context, spec string) error {
		mu.Lock()
		defer mu.Unlock()
		remote = append(remote, spec)
		return errors.New("offline")
	}
	ns, err := c.Load(context.Background(), "./app", "src")
	qt.Assert(t, qt.IsNil(err))
	w, ok := ns.Get("widgets")
	qt.Assert(t, qt.IsTrue(ok))
	wns, err := c.Require("src")("./widgets")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(w, any(wns)))
	// The failed remote prefetch did not fail the load.
	qt.Assert(t, qt.DeepEquals(remote, []string{"icons/star"}))
}

func TestRequireNotYetLoaded(t *testing.T) {
	c := newTestCache(t, widgetsArchive, nil)
	_, err := c.Require("src")("./widgets")
	qt.Assert(t, qt.ErrorIs(err, module.ErrNotLoaded))
	_, err = c.Require("")("icons/star")
	qt.Assert(t, qt.ErrorIs(err, module.ErrNotLoaded))
}

func TestLocalNotFound(t *testing.T) {
	c := newTestCache(t, widgetsArchive, nil)
	_, err := c.Load(context.Background(), "./missing", "src")
	var lerr *module.LocalNotFoundError
	qt.Assert(t, qt.ErrorAs(err, &lerr))
	qt.Assert(t, qt.HasLen(lerr.Candidates, 15))
	qt.Assert(t, qt.Equals(lerr.Candidates[0], "/src/missing"))
	qt.Assert(t, qt.ErrorIs(err, module.ErrNotFound))
}

// brokenFetcher fails every fetch of a path in broken with err.
type brokenFetcher struct {
	modfetch.Fetcher
	broken map[string]bool
	err    error
}

func (f *brokenFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.broken[url] {
		return nil, f.err
	}
	return f.Fetcher.Fetch(ctx, url)
}

func TestLocalNotFoundKeepsCause(t *testing.T) {
	errReset := errors.New("connection reset by peer")
	c := New(Config{
		Fetcher: &brokenFetcher{
			Fetcher: &modfetch.FSFetcher{FS: txtarfs.Parse(widgetsArchive)},
			broken:  map[string]bool{"/src/flaky.ts": true},
			err:     errReset,
		},
		Runner: &fakeRunner{runs: make(map[string]int)},
	})
	_, err := c.Load(context.Background(), "./flaky", "src")
	var lerr *module.LocalNotFoundError
	qt.Assert(t, qt.ErrorAs(err, &lerr))
	qt.Assert(t, qt.Equals(lerr.Err, errReset))
	qt.Assert(t, qt.ErrorIs(err, module.ErrNotFound))
	qt.Assert(t, qt.ErrorIs(err, errReset))
	qt.Assert(t, qt.ErrorMatches(err, `cannot find module "./flaky" from "/src" \(tried .*\): connection reset by peer`))

	// Plain missing files leave no cause.
	_, err = c.Load(context.Background(), "./missing", "src")
	qt.Assert(t, qt.ErrorAs(err, &lerr))
	qt.Assert(t, qt.IsNil(lerr.Err))
}

func TestRetryAfterFailure(t *testing.T) {
	fail := true
	c := newTestCache(t, widgetsArchive, map[string]func(module.RequireFunc) (any, error){
		"/src/widgets/index.ts": func(module.RequireFunc) (any, error) {
			if fail {
				return nil, errors.New("transient")
			}
			return "ok", nil
		},
	})
	ctx := context.Background()
	_, err := c.Load(ctx, "./widgets", "src")
	qt.Assert(t, qt.ErrorMatches(err, "transient"))
	_, ok := c.registry.Get("/src/widgets/index.ts")
	qt.Assert(t, qt.IsFalse(ok))

	fail = false
	ns, err := c.Load(ctx, "./widgets", "src")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(ns.Default(), any("ok")))
	qt.Assert(t, qt.Equals(c.runner.count("/src/widgets/index.ts"), 2))
	qt.Assert(t, qt.Equals(c.fetcher.count("/src/widgets/index.ts"), 1))
}

const cycleArchive = `
-- a.js --
import b from "./b.js";
-- b.js --
import a from "./a.js";
`

func cycleBodies() map[string]func(module.RequireFunc) (any, error) {
	return map[string]func(module.RequireFunc) (any, error){
		"/a.js": func(require module.RequireFunc) (any, error) { return require("./b.js") },
		"/b.js": func(require module.RequireFunc) (any, error) { return require("./a.js") },
	}
}

var errTimeout = errors.New("load did not finish")

func loadWithin(c *testCache, spec string) error {
	done := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background(), spec, "")
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		return errTimeout
	}
}

func TestCycleDoesNotHang(t *testing.T) {
	c := newTestCache(t, cycleArchive, cycleBodies())
	err := loadWithin(c, "./a.js")
	qt.Assert(t, qt.ErrorIs(err, module.ErrNotLoaded))
	qt.Assert(t, qt.Equals(c.runner.count("/a.js"), 1))
}

func TestConcurrentCycleDoesNotHang(t *testing.T) {
	c := newTestCache(t, cycleArchive, cycleBodies())
	specs := []string{"./a.js", "./b.js"}
	errs := make([]error, len(specs))
	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = loadWithin(c, spec)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		qt.Assert(t, qt.IsNotNil(err))
		qt.Assert(t, qt.Not(qt.ErrorIs(err, errTimeout)))
	}
}

func TestSelfImport(t *testing.T) {
	c := newTestCache(t, "-- self.js --\nimport s from './self.js';\n", map[string]func(module.RequireFunc) (any, error){
		"/self.js": func(module.RequireFunc) (any, error) { return "self", nil },
	})
	ns, err := c.Load(context.Background(), "./self.js", "")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(ns.Default(), any("self")))
}

func TestWaitGraph(t *testing.T) {
	var g waitGraph
	qt.Assert(t, qt.IsNil(g.enter("/a.js", "/b.js")))
	qt.Assert(t, qt.IsNil(g.enter("/b.js", "/c.js")))
	err := g.enter("/c.js", "/a.js")
	var cerr *module.CyclicDependencyError
	qt.Assert(t, qt.ErrorAs(err, &cerr))
	qt.Assert(t, qt.DeepEquals(cerr.Chain, []string{"/c.js", "/a.js", "/b.js", "/c.js"}))

	err = g.enter("/a.js", "/a.js")
	qt.Assert(t, qt.ErrorMatches(err, `import cycle detected: /a.js -> /a.js`))

	g.leave("/b.js", "/c.js")
	qt.Assert(t, qt.IsNil(g.enter("/c.js", "/a.js")))
}

func TestWaiterCanceled(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c := newTestCache(t, widgetsArchive, map[string]func(module.RequireFunc) (any, error){
		"/src/widgets/index.ts": func(module.RequireFunc) (any, error) {
			close(started)
			<-release
			return "done", nil
		},
	})
	first := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background(), "./widgets", "src")
		first <- err
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Load(ctx, "./widgets", "src")
	qt.Assert(t, qt.ErrorIs(err, context.Canceled))

	close(release)
	qt.Assert(t, qt.IsNil(<-first))
	qt.Assert(t, qt.Equals(c.runner.count("/src/widgets/index.ts"), 1))
}

func TestModules(t *testing.T) {
	c := newTestCache(t, widgetsArchive, nil)
	_, err := c.Load(context.Background(), "./app.ts", "src")
	qt.Assert(t, qt.IsNil(err))
	mods := c.Modules()
	qt.Assert(t, qt.HasLen(mods, 2))
	qt.Assert(t, qt.Equals(mods[0].Path, "/src/app.ts"))
	qt.Assert(t, qt.DeepEquals(mods[0].Deps, []string{"./widgets"}))
	qt.Assert(t, qt.Equals(mods[1].Path, "/src/widgets/index.ts"))

	src, err := fs.ReadFile(txtarfs.Parse(widgetsArchive), "src/widgets/index.ts")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(mods[1].Digest, digest.FromBytes(src)))
	qt.Assert(t, qt.Equals(mods[1].Size, len(src)))
	qt.Assert(t, qt.Equals(fmt.Sprint(mods[1].Digest.Algorithm()), "sha256"))
}
