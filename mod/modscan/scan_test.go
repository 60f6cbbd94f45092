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

package modscan

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-quicktest/qt"
	"golang.org/x/tools/txtar"
)

// Each file in scanArchive is scanned and checked against scanWant.
var scanArchive = `
-- es.ts --
import React from "react";
import { a,
  b } from './widgets';
import * as ns from '../lib/ns.js';
import type { T } from "./types";
import "./side-effect.css";
export { x } from "./x";
export * from './star';
-- dynamic.js --
const m = await import("./lazy");
const n = import( 'icons/star' );
const bad = import(name);
const tpl = import(` + "`./tpl-${x}`" + `);
const plain = import(` + "`./plain`" + `);
-- cjs.cjs --
const fs = require('fs');
const w = require("./widgets");
const again = require('./widgets');
-- none.js --
const importance = "from";
`

var scanWant = map[string][]string{
	"es.ts":      {"react", "./widgets", "../lib/ns.js", "./types", "./side-effect.css", "./x", "./star"},
	"dynamic.js": {"./lazy", "icons/star", "./plain"},
	"cjs.cjs":    {"fs", "./widgets"},
	"none.js":    nil,
}

func TestScan(t *testing.T) {
	ar := txtar.Parse([]byte(scanArchive))
	qt.Assert(t, qt.HasLen(ar.Files, len(scanWant)))
	for _, f := range ar.Files {
		t.Run(f.Name, func(t *testing.T) {
			qt.Assert(t, qt.DeepEquals(Scan(f.Data), scanWant[f.Name]))
		})
	}
}

type prefixMatcher []string

func (m prefixMatcher) Matches(spec string) bool {
	for _, p := range m {
		if strings.HasPrefix(spec, p) {
			return true
		}
	}
	return false
}

func TestFilter(t *testing.T) {
	specs := []string{"react", "./widgets", "icons/star", "../x", "lodash"}
	qt.Assert(t, qt.DeepEquals(Filter(specs, prefixMatcher{"icons/"}), []string{"./widgets", "icons/star", "../x"}))
	qt.Assert(t, qt.DeepEquals(Filter(specs, nil), []string{"./widgets", "../x"}))
}

func TestPreloadSwallowsErrors(t *testing.T) {
	var mu sync.Mutex
	var loaded []string
	var buf strings.Builder
	p := &Preloader{
		Load: func(ctx context.Context, spec string) error {
			mu.Lock()
			loaded = append(loaded, spec)
			mu.Unlock()
			if spec == "./bad" {
				return errors.New("boom")
			}
			return nil
		},
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
	}
	p.Preload(context.Background(), []string{"./a", "./bad", "./c"})
	qt.Assert(t, qt.HasLen(loaded, 3))
	qt.Assert(t, qt.StringContains(buf.String(), `msg="preload failed" specifier=./bad error=boom`))
}

func TestPreloadConcurrencyLimit(t *testing.T) {
	var running, peak atomic.Int32
	p := &Preloader{
		Load: func(ctx context.Context, spec string) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		},
		Concurrency: 2,
	}
	p.Preload(context.Background(), []string{"a", "b", "c", "d", "e", "f"})
	qt.Assert(t, qt.IsTrue(peak.Load() <= 2))
	qt.Assert(t, qt.Equals(running.Load(), int32(0)))
}
