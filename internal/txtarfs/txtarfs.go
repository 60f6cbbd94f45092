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

// Package txtarfs presents a txtar archive as an [fs.FS], for use
// as a module tree in tests.
package txtarfs

import (
	"io/fs"
	"strings"
	"testing/fstest"

	"golang.org/x/tools/txtar"
)

// FS returns the contents of ar as a read-only file system.
// Leading slashes in file names are removed so that archives may use
// either "widgets/index.ts" or "/widgets/index.ts".
func FS(ar *txtar.Archive) fs.FS {
	m := make(fstest.MapFS)
	for _, f := range ar.Files {
		m[strings.TrimPrefix(f.Name, "/")] = &fstest.MapFile{
			Data: f.Data,
			Mode: 0o444,
		}
	}
	return m
}

// Parse is a shorthand for FS(txtar.Parse([]byte(s))).
func Parse(s string) fs.FS {
	return FS(txtar.Parse([]byte(s)))
}
