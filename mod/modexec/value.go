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
	"sort"

	"github.com/grafana/sobek"

	"cuelabs.dev/go/modloader/mod/modhost"
	"cuelabs.dev/go/modloader/mod/module"
)

// Object is a script object or function owned by an [Engine].
// It implements [module.Object] over the object's own enumerable
// properties.
type Object struct {
	e   *Engine
	obj *sobek.Object
}

var _ module.Object = (*Object)(nil)

func (o *Object) Keys() []string {
	o.e.mu.Lock()
	defer o.e.mu.Unlock()
	return o.obj.Keys()
}

func (o *Object) Get(key string) any {
	o.e.mu.Lock()
	defer o.e.mu.Unlock()
	v := o.obj.Get(key)
	if v == nil {
		return nil
	}
	return o.e.fromJS(v)
}

// IsFunction reports whether o is callable.
func (o *Object) IsFunction() bool {
	_, ok := sobek.AssertFunction(o.obj)
	return ok
}

// Call calls o with the given arguments and an undefined receiver.
func (o *Object) Call(args ...any) (any, error) {
	o.e.mu.Lock()
	defer o.e.mu.Unlock()
	fn, ok := sobek.AssertFunction(o.obj)
	if !ok {
		return nil, fmt.Errorf("%s is not a function", o.obj.ClassName())
	}
	jsArgs := make([]sobek.Value, len(args))
	for i, a := range args {
		jsArgs[i] = o.e.toJS(a)
	}
	res, err := fn(sobek.Undefined(), jsArgs...)
	if err != nil {
		return nil, err
	}
	return o.e.fromJS(res), nil
}

// Export returns o as plain Go data. Functions are described by
// name rather than exported.
func (o *Object) Export() any {
	o.e.mu.Lock()
	defer o.e.mu.Unlock()
	return o.e.export(o.obj)
}

func (o *Object) String() string {
	return fmt.Sprint(o.Export())
}

// fromJS converts a script value into its Go form: objects and
// functions become *Object, undefined and null become nil and other
// primitives are exported. It must be called with mu held.
func (e *Engine) fromJS(v sobek.Value) any {
	if v == nil || sobek.IsUndefined(v) || sobek.IsNull(v) {
		return nil
	}
	if obj, ok := v.(*sobek.Object); ok {
		return &Object{e: e, obj: obj}
	}
	return v.Export()
}

// toJS converts a Go value for use by scripts. Namespaces become
// objects tagged with a non-enumerable __esModule property, created
// once per namespace. It must be called with mu held.
func (e *Engine) toJS(v any) sobek.Value {
	switch v := v.(type) {
	case nil:
		return sobek.Undefined()
	case *module.Namespace:
		if obj, ok := e.nsObjects[v]; ok {
			return obj
		}
		obj := e.rt.NewObject()
		obj.DefineDataProperty("__esModule", e.rt.ToValue(true), sobek.FLAG_FALSE, sobek.FLAG_FALSE, sobek.FLAG_FALSE)
		for _, name := range v.Names() {
			m, _ := v.Get(name)
			obj.Set(name, e.toJS(m))
		}
		e.nsObjects[v] = obj
		return obj
	case *Object:
		if v.e == e {
			return v.obj
		}
		return e.rt.ToValue(v.Export())
	case *modhost.WasmFunc:
		return e.rt.ToValue(func(call sobek.FunctionCall) sobek.Value {
			args := make([]uint64, len(call.Arguments))
			for i, a := range call.Arguments {
				args[i] = uint64(a.ToInteger())
			}
			res, err := v.Call(context.Background(), args...)
			if err != nil {
				panic(e.rt.NewGoError(err))
			}
			switch len(res) {
			case 0:
				return sobek.Undefined()
			case 1:
				return e.rt.ToValue(int64(res[0]))
			}
			out := make([]any, len(res))
			for i, r := range res {
				out[i] = int64(r)
			}
			return e.rt.ToValue(out)
		})
	case module.Object:
		obj := e.rt.NewObject()
		for _, k := range v.Keys() {
			obj.Set(k, e.toJS(v.Get(k)))
		}
		return obj
	}
	return e.rt.ToValue(v)
}

func (e *Engine) export(obj *sobek.Object) any {
	if _, ok := sobek.AssertFunction(obj); ok {
		name := obj.Get("name")
		if name == nil || name.String() == "" {
			return "[Function]"
		}
		return "[Function " + name.String() + "]"
	}
	if obj.ClassName() == "Array" {
		n := int(obj.Get("length").ToInteger())
		out := make([]any, n)
		for i := range n {
			out[i] = e.exportValue(obj.Get(fmt.Sprint(i)))
		}
		return out
	}
	keys := obj.Keys()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = e.exportValue(obj.Get(k))
	}
	return out
}

func (e *Engine) exportValue(v sobek.Value) any {
	if obj, ok := v.(*sobek.Object); ok {
		return e.export(obj)
	}
	if v == nil || sobek.IsUndefined(v) || sobek.IsNull(v) {
		return nil
	}
	return v.Export()
}

// Export converts a namespace member into plain Go data suitable for
// encoding as JSON.
func Export(v any) any {
	switch v := v.(type) {
	case *module.Namespace:
		m := make(map[string]any, v.Len())
		for _, name := range v.Names() {
			x, _ := v.Get(name)
			m[name] = Export(x)
		}
		return m
	case *Object:
		return v.Export()
	case *modhost.WasmFunc:
		return v.String()
	case *modhost.WasmInstance:
		keys := v.Keys()
		sort.Strings(keys)
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			out[k] = Export(v.Get(k))
		}
		return out
	}
	return v
}
