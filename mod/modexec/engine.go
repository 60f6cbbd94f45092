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
	"fmt"
	"log/slog"
	"sync"

	"github.com/grafana/sobek"

	"cuelabs.dev/go/modloader/mod/module"
)

// Frame identifies the module whose body is executing.
type Frame struct {
	Path string
	Dir  string
}

// Engine executes compiled modules on a single JavaScript runtime.
// All access to the runtime is serialized, so an Engine may be
// shared between goroutines.
type Engine struct {
	// mu guards rt and nsObjects.
	mu        sync.Mutex
	rt        *sobek.Runtime
	nsObjects map[*module.Namespace]*sobek.Object

	fmu    sync.Mutex
	frames []Frame

	logger    *slog.Logger
	logFrames bool
}

// Options holds configuration for [NewEngine].
type Options struct {
	// Logger is used for debug output. If it is nil, [slog.Default]
	// is used.
	Logger *slog.Logger
	// LogFrames logs every frame pushed and popped.
	LogFrames bool
}

// NewEngine returns an engine with a fresh runtime.
// A nil opts is equivalent to a zero [Options].
func NewEngine(opts *Options) *Engine {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		rt:        sobek.New(),
		nsObjects: make(map[*module.Namespace]*sobek.Object),
		logger:    logger,
		logFrames: opts.LogFrames,
	}
}

// Current returns the innermost executing module.
func (e *Engine) Current() (Frame, bool) {
	e.fmu.Lock()
	defer e.fmu.Unlock()
	if len(e.frames) == 0 {
		return Frame{}, false
	}
	return e.frames[len(e.frames)-1], true
}

func (e *Engine) push(f Frame) {
	e.fmu.Lock()
	e.frames = append(e.frames, f)
	depth := len(e.frames)
	e.fmu.Unlock()
	if e.logFrames {
		e.logger.Debug("enter module", "path", f.Path, "dir", f.Dir, "depth", depth)
	}
}

func (e *Engine) pop() {
	e.fmu.Lock()
	f := e.frames[len(e.frames)-1]
	e.frames = e.frames[:len(e.frames)-1]
	e.fmu.Unlock()
	if e.logFrames {
		e.logger.Debug("leave module", "path", f.Path)
	}
}

// Execute runs the body of u. The body sees exactly three bindings:
// require, which calls the given function, a fresh exports object, and
// module, whose exports property holds that object.
//
// The result is the default member of module.exports when there is
// one, and module.exports otherwise. An exception thrown by the body
// is returned as a [*module.ExecutionError] wrapping the thrown value;
// an error returned by require and not caught by the body is wrapped
// unchanged.
func (e *Engine) Execute(ctx context.Context, u *Unit, require module.RequireFunc) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prog, err := sobek.Compile(u.Path, "(function(require, exports, module) {"+u.Code+"\n})", false)
	if err != nil {
		return nil, &module.CompileError{Path: u.Path, Err: err}
	}
	rt := e.rt
	defer e.interruptOnDone(ctx)()

	fv, err := rt.RunProgram(prog)
	if err != nil {
		return nil, &module.ExecutionError{Path: u.Path, Err: err}
	}
	fn, ok := sobek.AssertFunction(fv)
	if !ok {
		return nil, &module.CompileError{Path: u.Path, Err: fmt.Errorf("module body is not a function")}
	}

	// thrown maps the script errors raised by require back to the
	// Go errors they were made from.
	thrown := make(map[*sobek.Object]error)
	req := rt.ToValue(func(call sobek.FunctionCall) sobek.Value {
		spec := call.Argument(0).String()
		if require == nil {
			panic(e.throw(thrown, &module.NotRegisteredError{Specifier: spec}))
		}
		ns, err := require(spec)
		if err != nil {
			panic(e.throw(thrown, err))
		}
		return e.toJS(ns)
	})
	exports := rt.NewObject()
	mod := rt.NewObject()
	mod.Set("exports", exports)
	mod.Set("id", u.Path)

	e.push(Frame{Path: u.Path, Dir: u.Dir})
	defer e.pop()

	if _, err := fn(exports, req, exports, mod); err != nil {
		if exc, ok := err.(*sobek.Exception); ok {
			if obj, ok := exc.Value().(*sobek.Object); ok {
				if gerr, ok := thrown[obj]; ok {
					err = gerr
				}
			}
		}
		return nil, &module.ExecutionError{Path: u.Path, Err: err}
	}
	result := mod.Get("exports")
	if obj, ok := result.(*sobek.Object); ok {
		if def := obj.Get("default"); def != nil {
			return e.fromJS(def), nil
		}
	}
	return e.fromJS(result), nil
}

// RunScript runs src as a classic script in the global scope.
func (e *Engine) RunScript(ctx context.Context, name string, src []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.interruptOnDone(ctx)()

	if _, err := e.rt.RunScript(name, string(src)); err != nil {
		return &module.ExecutionError{Path: name, Err: err}
	}
	return nil
}

// Global returns the object holding the global bindings.
func (e *Engine) Global() module.Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &Object{e: e, obj: e.rt.GlobalObject()}
}

// interruptOnDone interrupts the runtime when ctx is done and
// returns a function that undoes this. It must be called with mu held.
func (e *Engine) interruptOnDone(ctx context.Context) func() {
	stop := context.AfterFunc(ctx, func() {
		e.rt.Interrupt(ctx.Err())
	})
	return func() {
		stop()
		e.rt.ClearInterrupt()
	}
}

func (e *Engine) throw(thrown map[*sobek.Object]error, err error) *sobek.Object {
	obj := e.rt.NewGoError(err)
	thrown[obj] = err
	return obj
}
