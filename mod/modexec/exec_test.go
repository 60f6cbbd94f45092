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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-quicktest/qt"
	"github.com/grafana/sobek"

	"cuelabs.dev/go/modloader/internal/txtarfs"
	"cuelabs.dev/go/modloader/mod/modfetch"
	"cuelabs.dev/go/modloader/mod/module"
)

func run(t *testing.T, e *Engine, path, src string, require module.RequireFunc) (any, error) {
	t.Helper()
	var c Compiler
	u, err := c.Compile(path, "src", []byte(src))
	qt.Assert(t, qt.IsNil(err))
	return e.Execute(context.Background(), u, require)
}

func TestExecuteDefaultExport(t *testing.T) {
	e := NewEngine(nil)
	v, err := run(t, e, "/src/add.ts", `
export default function add(a: number, b: number): number {
	return a + b;
}
`, nil)
	qt.Assert(t, qt.IsNil(err))
	fn, ok := v.(*Object)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.IsTrue(fn.IsFunction()))
	res, err := fn.Call(2, 3)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(res, any(int64(5))))
	qt.Assert(t, qt.Equals(Export(fn), any("[Function add]")))
}

func TestExecuteNamedExports(t *testing.T) {
	e := NewEngine(nil)
	v, err := run(t, e, "/src/consts.ts", `
export const answer: number = 42;
export const name = "modloader";
`, nil)
	qt.Assert(t, qt.IsNil(err))
	ns := module.Normalize(v)
	qt.Assert(t, qt.DeepEquals(ns.Names(), []string{"default", "answer", "name"}))
	answer, _ := ns.Get("answer")
	qt.Assert(t, qt.Equals(answer, any(int64(42))))
}

func TestExecuteJSON(t *testing.T) {
	e := NewEngine(nil)
	v, err := run(t, e, "/src/data.json", `{"a": 1, "b": [true, "x"]}`, nil)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(Export(v), any(map[string]any{
		"a": int64(1),
		"b": []any{true, "x"},
	})))
}

func TestExecuteRequire(t *testing.T) {
	e := NewEngine(nil)
	dep := module.NewNamespace("D", map[string]any{
		"greet": func() string { return "hi" },
	})
	var requested []string
	var frame Frame
	v, err := run(t, e, "/src/app.ts", `
import dep, { greet } from "./dep";
const again = require("./dep");
export default greet() + ":" + dep + ":" + (again === require("./dep"));
`, func(spec string) (*module.Namespace, error) {
		requested = append(requested, spec)
		frame, _ = e.Current()
		return dep, nil
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, any("hi:D:true")))
	qt.Assert(t, qt.DeepEquals(requested, []string{"./dep", "./dep", "./dep"}))
	qt.Assert(t, qt.Equals(frame, Frame{Path: "/src/app.ts", Dir: "src"}))

	_, ok := e.Current()
	qt.Assert(t, qt.IsFalse(ok))
}

func TestExecuteRequireError(t *testing.T) {
	e := NewEngine(nil)
	_, err := run(t, e, "/src/app.js", `module.exports = require("./later");`,
		func(spec string) (*module.Namespace, error) {
			return nil, &module.NotYetLoadedError{Specifier: spec}
		})
	var xerr *module.ExecutionError
	qt.Assert(t, qt.ErrorAs(err, &xerr))
	qt.Assert(t, qt.Equals(xerr.Path, "/src/app.js"))
	qt.Assert(t, qt.ErrorIs(err, module.ErrNotLoaded))

	_, err = run(t, e, "/src/app.js", `require("./x");`, nil)
	qt.Assert(t, qt.ErrorIs(err, module.ErrNotRegistered))

	// The frame is popped on failure too.
	_, ok := e.Current()
	qt.Assert(t, qt.IsFalse(ok))
}

func TestExecuteThrow(t *testing.T) {
	e := NewEngine(nil)
	_, err := run(t, e, "/src/boom.js", `throw new Error("boom");`, nil)
	var xerr *module.ExecutionError
	qt.Assert(t, qt.ErrorAs(err, &xerr))
	var exc *sobek.Exception
	qt.Assert(t, qt.ErrorAs(err, &exc))
	qt.Assert(t, qt.StringContains(exc.Error(), "boom"))
}

func TestCompileError(t *testing.T) {
	var c Compiler
	_, err := c.Compile("/src/bad.ts", "src", []byte("export const = ;"))
	var cerr *module.CompileError
	qt.Assert(t, qt.ErrorAs(err, &cerr))
	qt.Assert(t, qt.Equals(cerr.Path, "/src/bad.ts"))
	qt.Assert(t, qt.StringContains(err.Error(), "/src/bad.ts:1:"))
}

func TestExecuteInterrupted(t *testing.T) {
	e := NewEngine(nil)
	var c Compiler
	u, err := c.Compile("/src/loop.js", "src", []byte(`for (;;) {}`))
	qt.Assert(t, qt.IsNil(err))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.Execute(ctx, u, nil)
	var ierr *sobek.InterruptedError
	qt.Assert(t, qt.ErrorAs(err, &ierr))

	// The engine remains usable.
	v, err := run(t, e, "/src/ok.js", `module.exports = 1;`, nil)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, any(int64(1))))
}

func TestHost(t *testing.T) {
	ctx := context.Background()
	fsys := txtarfs.Parse(`
-- lib/charts.js --
var loads = (typeof loads === "undefined" ? 0 : loads) + 1;
var Charts = { Bar: { kind: "bar" }, loads: loads };
-- lib/icons/star.js --
export const glyph = "*";
export default { size: 16 };
`)
	h := &Host{
		Engine:   NewEngine(nil),
		Compiler: &Compiler{},
		Fetcher:  &modfetch.FSFetcher{FS: fsys},
	}
	qt.Assert(t, qt.IsNil(h.LoadScript(ctx, "/lib/charts.js")))
	qt.Assert(t, qt.IsNil(h.LoadScript(ctx, "/lib/charts.js")))
	loads, ok := h.Global("Charts.loads")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(loads, any(int64(1))))
	_, ok = h.Global("Charts.Pie")
	qt.Assert(t, qt.IsFalse(ok))

	v1, err := h.Import(ctx, "/lib/icons/star.js")
	qt.Assert(t, qt.IsNil(err))
	v2, err := h.Import(ctx, "/lib/icons/star.js")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v1, v2))
	qt.Assert(t, qt.DeepEquals(Export(v1), any(map[string]any{"size": int64(16)})))

	_, err = h.Import(ctx, "/lib/icons/none.js")
	qt.Assert(t, qt.IsNotNil(err))
	qt.Assert(t, qt.IsFalse(errors.Is(err, module.ErrNotLoaded)))
}

// gateFetcher blocks every fetch until release is closed.
type gateFetcher struct {
	modfetch.Fetcher
	started chan string
	release chan struct{}
	fetches atomic.Int32
}

func (f *gateFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.fetches.Add(1)
	f.started <- url
	<-f.release
	return f.Fetcher.Fetch(ctx, url)
}

func TestHostImportWaiterCanceled(t *testing.T) {
	f := &gateFetcher{
		Fetcher: &modfetch.FSFetcher{FS: txtarfs.Parse(`
-- lib/slow.js --
export const ready = true;
`)},
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	h := &Host{
		Engine:   NewEngine(nil),
		Compiler: &Compiler{},
		Fetcher:  f,
	}
	cctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := h.Import(cctx, "/lib/slow.js")
		first <- err
	}()
	qt.Assert(t, qt.Equals(<-f.started, "/lib/slow.js"))

	type result struct {
		v   any
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := h.Import(context.Background(), "/lib/slow.js")
		second <- result{v, err}
	}()

	cancel()
	qt.Assert(t, qt.ErrorIs(<-first, context.Canceled))

	close(f.release)
	r := <-second
	qt.Assert(t, qt.IsNil(r.err))
	ready, _ := module.Normalize(r.v).Get("ready")
	qt.Assert(t, qt.Equals(ready, any(true)))
	qt.Assert(t, qt.Equals(f.fetches.Load(), int32(1)))
}
