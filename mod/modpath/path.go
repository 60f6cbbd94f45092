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

// Package modpath resolves local specifiers to root-relative paths and
// computes the file candidates tried for each of them.
//
// Paths handled here are slash-separated. A base directory is written
// without leading or trailing slashes ("" is the root); a resolved
// path always starts with a slash ("/src/app.ts").
package modpath

import (
	"net/url"
	"path"
	"slices"
	"strings"
)

// Extensions lists the recognized source extensions in the order
// they are tried.
var Extensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".cjs", ".json"}

// Normalize strips leading and trailing slashes from dir.
func Normalize(dir string) string {
	return strings.Trim(dir, "/")
}

// ResolveBase resolves spec relative to the directory baseDir using
// URL reference resolution, and returns the resulting path.
// Dot segments are removed and the result never climbs above the
// root. A trailing slash is dropped.
func ResolveBase(spec, baseDir string) string {
	base := &url.URL{Scheme: "file", Path: "/"}
	if dir := Normalize(baseDir); dir != "" {
		base.Path = "/" + dir + "/"
	}
	// Build the reference directly so that characters such as '?'
	// and '%' remain part of the path.
	u := base.ResolveReference(&url.URL{Path: spec})
	p := u.Path
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// HasExtension reports whether p ends in one of [Extensions].
func HasExtension(p string) bool {
	return slices.Contains(Extensions, path.Ext(p))
}

// Candidates returns the paths to try for the resolved path p, in
// priority order.
//
// If p has a recognized extension it is the only candidate. Otherwise
// the candidates are p itself, then p with each extension appended,
// then p/index with each extension appended.
func Candidates(p string) []string {
	if HasExtension(p) {
		return []string{p}
	}
	cands := make([]string, 0, 1+2*len(Extensions))
	if p != "/" {
		cands = append(cands, p)
		for _, ext := range Extensions {
			cands = append(cands, p+ext)
		}
	}
	index := path.Join(p, "index")
	for _, ext := range Extensions {
		cands = append(cands, index+ext)
	}
	return cands
}

// ModuleDir returns the base directory for the relative requests of
// the module at the resolved path p.
func ModuleDir(p string) string {
	return Normalize(path.Dir(p))
}
